package designd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/waveforge/photonics-core/internal/adjoint"
	"github.com/waveforge/photonics-core/internal/continuation"
	"github.com/waveforge/photonics-core/internal/metrics"
	"github.com/waveforge/photonics-core/pkg/config"
	"github.com/waveforge/photonics-core/pkg/logger"
	"github.com/waveforge/photonics-core/pkg/models"
)

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	notifier *Notifier

	// artifactRoot is the base directory for per-run artifacts.
	artifactRoot string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
)

func NewRunExecutor(store *RunStore) *RunExecutor {
	return &RunExecutor{
		store:   store,
		cancels: make(map[string]context.CancelFunc),
	}
}

// WithNotifier enables completion callbacks.
func (e *RunExecutor) WithNotifier(n *Notifier) *RunExecutor {
	e.notifier = n
	return e
}

// WithArtifactRoot sets the base directory for run artifacts.
func (e *RunExecutor) WithArtifactRoot(dir string) *RunExecutor {
	e.artifactRoot = dir
	return e
}

// Start begins executing a run asynchronously.
// Returns the updated run state (running) or an error.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	if rec.Run.Status == models.RunStatusRunning {
		return rec, nil
	}
	if rec.Run.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusRunning, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if old, exists := e.cancels[runID]; exists {
		old()
	}
	e.cancels[runID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runOptimization(ctx, runID)
	}()
	return updated, nil
}

// Stop requests cancellation for a running run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()

	if ok {
		cancel()
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "")
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Wait blocks until every started run has finished. Used at shutdown.
func (e *RunExecutor) Wait() {
	e.wg.Wait()
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) fail(runID, msg string) {
	if _, err := e.store.SetStatus(runID, models.RunStatusFailed, msg); err != nil {
		logger.Error("failed to set failed status", "run_id", runID, "error", err)
	}
}

func (e *RunExecutor) runOptimization(ctx context.Context, runID string) {
	defer e.cleanup(runID)
	defer e.notify(runID)

	rec, ok := e.store.Get(runID)
	if !ok {
		logger.Error("run not found", "run_id", runID)
		return
	}

	problem, err := config.ParseProblemYAMLString(rec.Input.ProblemYAML)
	if err != nil {
		logger.Error("failed to parse problem YAML", "run_id", runID, "error", err)
		e.fail(runID, fmt.Sprintf("invalid problem: %v", err))
		return
	}

	evaluator, err := adjoint.NewEvaluator(problem)
	if err != nil {
		logger.Error("failed to compile problem", "run_id", runID, "error", err)
		e.fail(runID, fmt.Sprintf("problem compilation failed: %v", err))
		return
	}

	collector := metrics.NewCollector()
	collector.Start()
	if err := e.store.SetCollector(runID, collector); err != nil {
		logger.Error("failed to store collector", "run_id", runID, "error", err)
		// Continue anyway, the run itself does not need it.
	}

	artifactDir := e.artifactDir(rec)
	if artifactDir == "" && problem.Outputs.SavePNG {
		artifactDir = filepath.Join(problem.Outputs.Dir, rec.Run.ID)
	}

	driver := continuation.NewDriver(problem, evaluator).
		WithSeed(rec.Input.Seed).
		WithArtifactDir(artifactDir).
		WithProgress(func(p continuation.Progress) {
			collector.RecordIteration(models.IterationPoint{
				Iteration: p.Iteration,
				Round:     p.Round,
				Beta:      p.Beta,
				Objective: p.Objective,
				ArmPowers: p.ArmPowers,
				GradNorm:  p.GradNorm,
			})
			if err := e.store.SetProgress(runID, p.Round, p.Iteration, p.Beta, p.Objective); err != nil {
				logger.Error("failed to record progress", "run_id", runID, "error", err)
			}
		})

	logger.Info("starting optimization", "run_id", runID)
	result, err := driver.Run(ctx)
	collector.Stop()

	if err != nil {
		if ctx.Err() != nil {
			logger.Info("optimization cancelled", "run_id", runID)
			return
		}
		logger.Error("optimization failed", "run_id", runID, "error", err)
		e.fail(runID, err.Error())
		return
	}

	runMetrics := collector.RunMetrics()
	runMetrics.BestObjective = result.BestObjective
	runMetrics.BestIteration = result.BestIteration
	runMetrics.FinalBeta = result.FinalBeta
	runMetrics.Binarization = result.Binarization
	runMetrics.Converged = result.Converged
	runMetrics.ConvergenceReason = result.ConvergenceReason

	if err := e.store.SetMetrics(runID, runMetrics); err != nil {
		logger.Error("failed to set metrics", "run_id", runID, "error", err)
	}
	if err := e.store.SetBestDesign(runID, result.BestDesign); err != nil {
		logger.Error("failed to store best design", "run_id", runID, "error", err)
	}

	// Mark as completed if still running.
	rec, ok = e.store.Get(runID)
	if ok && rec.Run.Status == models.RunStatusRunning {
		if _, err := e.store.SetStatus(runID, models.RunStatusCompleted, ""); err != nil {
			logger.Error("failed to set completed status", "run_id", runID, "error", err)
		} else {
			logger.Info("run completed", "run_id", runID,
				"best_objective", runMetrics.BestObjective,
				"iterations", runMetrics.Iterations,
				"binarization", runMetrics.Binarization)
		}
	}
}

// artifactDir resolves the per-run artifact directory, empty when artifacts
// are disabled.
func (e *RunExecutor) artifactDir(rec *RunRecord) string {
	if rec.Input.ArtifactDir != "" {
		return rec.Input.ArtifactDir
	}
	if e.artifactRoot == "" {
		return ""
	}
	return filepath.Join(e.artifactRoot, rec.Run.ID)
}

func (e *RunExecutor) notify(runID string) {
	if e.notifier == nil {
		return
	}
	if rec, ok := e.store.Get(runID); ok {
		e.notifier.Notify(rec)
	}
}
