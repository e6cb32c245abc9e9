// Package continuation runs the outer optimization loop: a schedule of
// strictly increasing projection sharpness values, with a fresh inner
// optimizer per round and the design vector carried across rounds.
package continuation

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/waveforge/photonics-core/internal/adjoint"
	"github.com/waveforge/photonics-core/internal/optimize"
	"github.com/waveforge/photonics-core/internal/render"
	"github.com/waveforge/photonics-core/internal/topology"
	"github.com/waveforge/photonics-core/pkg/config"
	"github.com/waveforge/photonics-core/pkg/logger"
	"github.com/waveforge/photonics-core/pkg/utils"
)

// Progress is one accepted optimization step, numbered globally across
// rounds.
type Progress struct {
	Round     int
	Beta      float64
	Iteration int
	Objective float64
	GradNorm  float64
	StepNorm  float64
	ArmPowers []float64
	Design    []float64
}

// ProgressFunc observes every recorded step.
type ProgressFunc func(Progress)

// RoundResult is the inner-loop outcome for one sharpness value.
type RoundResult struct {
	Round  int
	Beta   float64
	Result *optimize.OptimizationResult
}

// Result is the outcome of a full continuation run.
type Result struct {
	BestDesign        []float64
	BestObjective     float64
	BestIteration     int
	Iterations        int
	FinalBeta         float64
	Rounds            []RoundResult
	Converged         bool
	ConvergenceReason string
	ArmPowers         []float64
	Binarization      float64
}

// Evaluator scores designs at a given projection sharpness. It is
// implemented by adjoint.Evaluator.
type Evaluator interface {
	DesignSize() int
	Mapping() *topology.Mapping
	Objective(ctx context.Context, beta float64, rho []float64) (*adjoint.Result, error)
	Probe(ctx context.Context, beta float64, rho []float64) (float64, error)
}

// Driver owns one continuation run over a compiled evaluator.
type Driver struct {
	cfg  *config.Problem
	eval Evaluator

	seed        int64
	artifactDir string
	progress    ProgressFunc
}

// NewDriver builds a driver for the given problem.
func NewDriver(cfg *config.Problem, eval Evaluator) *Driver {
	return &Driver{cfg: cfg, eval: eval}
}

// WithSeed seeds the initial-design jitter.
func (d *Driver) WithSeed(seed int64) *Driver {
	d.seed = seed
	return d
}

// WithArtifactDir enables density snapshots under the given directory.
func (d *Driver) WithArtifactDir(dir string) *Driver {
	d.artifactDir = dir
	return d
}

// WithProgress sets the step observer.
func (d *Driver) WithProgress(fn ProgressFunc) *Driver {
	d.progress = fn
	return d
}

// initialDesign builds the starting density: a uniform value, optionally
// jittered to break the symmetry of symmetric splitter problems.
func (d *Driver) initialDesign() []float64 {
	rho := make([]float64, d.eval.DesignSize())
	for i := range rho {
		rho[i] = d.cfg.Init.Value
	}
	if amp := d.cfg.Init.JitterAmplitude; amp > 0 {
		utils.Jitter(rho, amp, utils.NewRand(d.seed))
	}
	return rho
}

func (d *Driver) convergenceConfig() *optimize.ConvergenceConfig {
	cc := optimize.DefaultConvergenceConfig()
	if n := d.cfg.Optimizer.NoImprovementIterations; n > 0 {
		cc.NoImprovementIterations = n
	}
	if tol := d.cfg.Optimizer.StepTolerance; tol > 0 {
		cc.StepTolerance = tol
	}
	return cc
}

// Run executes the full schedule. The returned result reflects the best
// design seen across all rounds; the per-step history is delivered through
// the progress callback as it happens.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	betas := d.cfg.Continuation.BetaSchedule()
	if len(betas) == 0 {
		return nil, fmt.Errorf("empty sharpness schedule")
	}

	rho := d.initialDesign()
	out := &Result{
		BestObjective: math.MaxFloat64,
		BestIteration: -1,
	}

	globalIter := 0
	prevRoundBest := math.MaxFloat64
	var lastEval *adjoint.Result

	for round, beta := range betas {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		logger.Info("continuation round starting",
			"round", round,
			"beta", beta,
			"iteration", globalIter,
		)

		evaluate := func(ctx context.Context, design []float64) (float64, []float64, error) {
			res, err := d.eval.Objective(ctx, beta, design)
			if err != nil {
				return 0, nil, err
			}
			lastEval = res
			return res.Value, res.Grad, nil
		}
		probe := func(ctx context.Context, design []float64) (float64, error) {
			return d.eval.Probe(ctx, beta, design)
		}

		roundStart := globalIter
		reporter := func(step optimize.OptimizationStep) {
			// The initial evaluation of a later round re-scores the
			// carried design at the new beta; it is still a new point
			// in the global history.
			iter := roundStart + step.Iteration
			if iter > globalIter {
				globalIter = iter
			}

			p := Progress{
				Round:     round,
				Beta:      beta,
				Iteration: iter,
				Objective: step.Score,
				GradNorm:  step.GradNorm,
				StepNorm:  step.StepNorm,
				Design:    step.Design,
			}
			if lastEval != nil {
				p.ArmPowers = append([]float64(nil), lastEval.Powers...)
			}
			if d.progress != nil {
				d.progress(p)
			}
			d.snapshot(iter, beta, step.Design)
		}

		opt := optimize.NewOptimizer(d.cfg.Optimizer.MaxIterations, d.cfg.Optimizer.StepSize).
			WithConvergence(optimize.NewCombinedStrategy(d.convergenceConfig())).
			WithProbe(probe).
			WithProgressReporter(reporter)

		res, err := opt.Optimize(ctx, rho, evaluate)
		if err != nil {
			return nil, fmt.Errorf("round %d (beta=%g): %w", round, beta, err)
		}

		out.Rounds = append(out.Rounds, RoundResult{Round: round, Beta: beta, Result: res})
		out.FinalBeta = beta

		// Carry the round's best design into the next round.
		rho = res.BestDesign
		if res.BestScore < out.BestObjective {
			out.BestObjective = res.BestScore
			out.BestDesign = append([]float64(nil), res.BestDesign...)
			out.BestIteration = roundStart + bestIteration(res)
		}

		globalIter++

		logger.Info("continuation round finished",
			"round", round,
			"beta", beta,
			"best", res.BestScore,
			"converged", res.Converged,
			"reason", res.ConvergenceReason,
		)

		// Plateau across rounds: stop sharpening once a round no longer
		// improves the objective meaningfully.
		if tol := d.cfg.Continuation.PlateauTolerance; tol > 0 && round > 0 {
			improvement := prevRoundBest - res.BestScore
			if improvement < tol*math.Max(1, math.Abs(prevRoundBest)) {
				out.Converged = true
				out.ConvergenceReason = fmt.Sprintf("round %d improved by %.3g, below plateau tolerance", round, improvement)
				break
			}
		}
		prevRoundBest = res.BestScore
	}

	out.Iterations = globalIter
	if !out.Converged {
		last := out.Rounds[len(out.Rounds)-1].Result
		out.Converged = last.Converged
		out.ConvergenceReason = last.ConvergenceReason
	}
	if lastEval != nil {
		out.ArmPowers = append([]float64(nil), lastEval.Powers...)
		out.Binarization = lastEval.Binarization
	}
	return out, nil
}

// snapshot writes a density image when artifacts are enabled.
func (d *Driver) snapshot(iter int, beta float64, design []float64) {
	if d.artifactDir == "" || !d.cfg.Outputs.SavePNG {
		return
	}
	every := d.cfg.Outputs.EveryN
	if every <= 0 {
		every = 1
	}
	if iter%every != 0 {
		return
	}

	m := d.eval.Mapping()
	density := m.Forward(design, beta)
	path := filepath.Join(d.artifactDir, fmt.Sprintf("iter-%04d.png", iter))
	if err := render.WriteDensityPNG(path, m.W, m.H, density); err != nil {
		logger.Warn("density snapshot failed", "path", path, "error", err)
	}
}

func bestIteration(res *optimize.OptimizationResult) int {
	best := 0
	for i, step := range res.History {
		if step.Score < res.History[best].Score {
			best = i
		}
	}
	return res.History[best].Iteration
}
