// Package optimize implements projected gradient descent over box-bounded
// design vectors, with Armijo backtracking line search and pluggable
// convergence detection.
package optimize

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/waveforge/photonics-core/pkg/utils"
)

// armijoC1 is the sufficient-decrease constant for the line search.
const armijoC1 = 1e-4

// maxBacktracks bounds the line search; each probe is a full simulation.
const maxBacktracks = 8

// EvaluateFunc computes the objective value and its gradient with respect
// to the design vector. The gradient may be nil when err is non-nil.
type EvaluateFunc func(ctx context.Context, design []float64) (float64, []float64, error)

// ProbeFunc computes only the objective value; the line search uses it for
// trial points where the gradient is not needed. When nil, the optimizer
// falls back to EvaluateFunc.
type ProbeFunc func(ctx context.Context, design []float64) (float64, error)

// ProgressReporter observes each accepted optimization step.
type ProgressReporter func(step OptimizationStep)

// OptimizationStep represents a single optimization step
type OptimizationStep struct {
	Iteration int
	Score     float64
	GradNorm  float64
	StepNorm  float64
	Design    []float64
}

// OptimizationResult contains the final optimization result
type OptimizationResult struct {
	BestDesign        []float64
	BestScore         float64
	Iterations        int
	History           []OptimizationStep
	Converged         bool
	ConvergenceReason string
}

// Optimizer runs projected gradient descent on a [0,1]-bounded design.
type Optimizer struct {
	maxIterations int
	stepSize      float64
	convergence   ConvergenceStrategy
	probe         ProbeFunc
	reporter      ProgressReporter

	mu         sync.RWMutex
	bestScore  float64
	bestDesign []float64
	iteration  int
	history    []OptimizationStep
}

// NewOptimizer creates a new projected gradient optimizer
func NewOptimizer(maxIterations int, stepSize float64) *Optimizer {
	if stepSize <= 0 {
		stepSize = 0.1 // Default step size
	}
	return &Optimizer{
		maxIterations: maxIterations,
		stepSize:      stepSize,
		convergence:   NewCombinedStrategy(nil),
		bestScore:     math.MaxFloat64,
		history:       make([]OptimizationStep, 0),
	}
}

// WithConvergence sets a custom convergence strategy
func (o *Optimizer) WithConvergence(strategy ConvergenceStrategy) *Optimizer {
	o.convergence = strategy
	return o
}

// WithProbe sets a cheaper value-only evaluation for line-search trials
func (o *Optimizer) WithProbe(probe ProbeFunc) *Optimizer {
	o.probe = probe
	return o
}

// WithProgressReporter sets a callback invoked after every recorded step
func (o *Optimizer) WithProgressReporter(reporter ProgressReporter) *Optimizer {
	o.reporter = reporter
	return o
}

// Optimize runs projected gradient descent from the initial design.
func (o *Optimizer) Optimize(ctx context.Context, initial []float64, evaluate EvaluateFunc) (*OptimizationResult, error) {
	if len(initial) == 0 {
		return nil, fmt.Errorf("initial design is required")
	}
	if evaluate == nil {
		return nil, fmt.Errorf("evaluation function is required")
	}

	current := append([]float64(nil), initial...)
	utils.ClampSlice(current, 0, 1)

	o.mu.Lock()
	o.bestDesign = append([]float64(nil), current...)
	o.iteration = 0
	o.history = make([]OptimizationStep, 0)
	o.mu.Unlock()

	score, grad, err := evaluate(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate initial design: %w", err)
	}
	if len(grad) != len(current) {
		return nil, fmt.Errorf("gradient length %d does not match design length %d", len(grad), len(current))
	}

	o.record(OptimizationStep{Iteration: 0, Score: score, GradNorm: norm2(grad), Design: current})
	o.mu.Lock()
	o.bestScore = score
	o.mu.Unlock()

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		o.mu.Lock()
		o.iteration = iteration
		o.mu.Unlock()

		next, nextScore, stepNorm, ok, err := o.lineSearch(ctx, current, score, grad, evaluate)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}
		if !ok {
			return o.buildResult(true, "line search found no descent direction"), nil
		}

		current = next
		score = nextScore

		// Gradient at the accepted point drives the next iteration.
		_, grad, err = evaluate(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}

		step := OptimizationStep{
			Iteration: iteration,
			Score:     score,
			GradNorm:  norm2(grad),
			StepNorm:  stepNorm,
			Design:    current,
		}
		o.record(step)

		o.mu.Lock()
		if score < o.bestScore {
			o.bestScore = score
			o.bestDesign = append([]float64(nil), current...)
		}
		history := o.history
		o.mu.Unlock()

		if converged, reason := o.convergence.CheckConvergence(history); converged {
			return o.buildResult(true, reason), nil
		}
	}

	return o.buildResult(false, "max iterations reached"), nil
}

// lineSearch backtracks from the nominal step until the projected trial
// point satisfies the Armijo sufficient-decrease condition.
func (o *Optimizer) lineSearch(ctx context.Context, current []float64, score float64, grad []float64, evaluate EvaluateFunc) (next []float64, nextScore, stepNorm float64, ok bool, err error) {
	probe := o.probe
	if probe == nil {
		probe = func(ctx context.Context, design []float64) (float64, error) {
			v, _, err := evaluate(ctx, design)
			return v, err
		}
	}

	t := o.stepSize
	for backtrack := 0; backtrack <= maxBacktracks; backtrack++ {
		trial := make([]float64, len(current))
		for i := range trial {
			trial[i] = utils.ClampFloat64(current[i]-t*grad[i], 0, 1)
		}

		// Projected decrease: grad . (current - trial).
		decrease := 0.0
		stepNorm = 0.0
		for i := range trial {
			d := current[i] - trial[i]
			decrease += grad[i] * d
			stepNorm += d * d
		}
		stepNorm = math.Sqrt(stepNorm)
		if stepNorm == 0 {
			// Every component is pinned at its bound.
			return nil, 0, 0, false, nil
		}

		trialScore, err := probe(ctx, trial)
		if err != nil {
			return nil, 0, 0, false, err
		}
		if trialScore <= score-armijoC1*decrease {
			return trial, trialScore, stepNorm, true, nil
		}
		t /= 2
	}
	return nil, 0, 0, false, nil
}

func (o *Optimizer) record(step OptimizationStep) {
	step.Design = append([]float64(nil), step.Design...)

	o.mu.Lock()
	o.history = append(o.history, step)
	o.mu.Unlock()

	if o.reporter != nil {
		o.reporter(step)
	}
}

// buildResult constructs the optimization result
func (o *Optimizer) buildResult(converged bool, reason string) *OptimizationResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return &OptimizationResult{
		BestDesign:        append([]float64(nil), o.bestDesign...),
		BestScore:         o.bestScore,
		Iterations:        o.iteration,
		History:           o.history,
		Converged:         converged,
		ConvergenceReason: reason,
	}
}

func norm2(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}
