package optimize

import (
	"fmt"
	"math"
)

// ConvergenceStrategy defines how to detect convergence
type ConvergenceStrategy interface {
	// CheckConvergence checks if optimization has converged based on history
	CheckConvergence(history []OptimizationStep) (bool, string)
	// Name returns the name of the convergence strategy
	Name() string
}

// ConvergenceConfig holds configuration for convergence detection
type ConvergenceConfig struct {
	// NoImprovementIterations is the number of iterations without improvement before stopping
	NoImprovementIterations int
	// ScoreTolerance is the absolute tolerance for score changes to be considered equal
	ScoreTolerance float64
	// StepTolerance is the design-step norm below which the iterate is stationary
	StepTolerance float64
	// MinIterations is the minimum number of iterations before convergence can be detected
	MinIterations int
	// PlateauIterations is the number of iterations with similar scores (plateau) before stopping
	PlateauIterations int
}

// DefaultConvergenceConfig returns a default convergence configuration
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		NoImprovementIterations: 5,
		ScoreTolerance:          1e-6,
		StepTolerance:           1e-5,
		MinIterations:           3,
		PlateauIterations:       5,
	}
}

// NoImprovementStrategy detects convergence when there's no improvement for N iterations
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

// NewNoImprovementStrategy creates a new no-improvement convergence strategy
func NewNoImprovementStrategy(config *ConvergenceConfig) *NoImprovementStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &NoImprovementStrategy{config: config}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) CheckConvergence(history []OptimizationStep) (converged bool, reason string) {
	if len(history) < s.config.MinIterations {
		return false, ""
	}

	bestScore := math.MaxFloat64
	bestIteration := -1
	for i, step := range history {
		if step.Score < bestScore {
			bestScore = step.Score
			bestIteration = i
		}
	}
	if bestIteration < 0 {
		return false, ""
	}

	iterationsSinceBest := len(history) - 1 - bestIteration
	if iterationsSinceBest >= s.config.NoImprovementIterations {
		return true, fmt.Sprintf("no improvement for %d iterations (best at iteration %d)", iterationsSinceBest, bestIteration)
	}
	return false, ""
}

// PlateauStrategy detects convergence when scores have plateaued (similar scores)
type PlateauStrategy struct {
	config *ConvergenceConfig
}

// NewPlateauStrategy creates a new plateau convergence strategy
func NewPlateauStrategy(config *ConvergenceConfig) *PlateauStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &PlateauStrategy{config: config}
}

func (s *PlateauStrategy) Name() string {
	return "plateau"
}

func (s *PlateauStrategy) CheckConvergence(history []OptimizationStep) (converged bool, reason string) {
	if len(history) < s.config.MinIterations || len(history) < s.config.PlateauIterations {
		return false, ""
	}

	recent := history[len(history)-s.config.PlateauIterations:]
	minScore, maxScore := recent[0].Score, recent[0].Score
	for _, step := range recent {
		minScore = math.Min(minScore, step.Score)
		maxScore = math.Max(maxScore, step.Score)
	}

	if scoreRange := maxScore - minScore; scoreRange <= s.config.ScoreTolerance {
		return true, fmt.Sprintf("score plateaued for %d iterations (range: %.6g)", s.config.PlateauIterations, scoreRange)
	}
	return false, ""
}

// StepNormStrategy detects convergence when the projected design step has
// shrunk below tolerance, i.e. the iterate is stationary against its bounds.
type StepNormStrategy struct {
	config *ConvergenceConfig
}

// NewStepNormStrategy creates a new step-norm convergence strategy
func NewStepNormStrategy(config *ConvergenceConfig) *StepNormStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &StepNormStrategy{config: config}
}

func (s *StepNormStrategy) Name() string {
	return "step_norm"
}

func (s *StepNormStrategy) CheckConvergence(history []OptimizationStep) (converged bool, reason string) {
	if len(history) < s.config.MinIterations {
		return false, ""
	}

	last := history[len(history)-1]
	if last.StepNorm > 0 && last.StepNorm <= s.config.StepTolerance {
		return true, fmt.Sprintf("design step norm %.3g below tolerance %.3g", last.StepNorm, s.config.StepTolerance)
	}
	return false, ""
}

// CombinedStrategy uses multiple strategies and converges if any strategy detects convergence
type CombinedStrategy struct {
	strategies []ConvergenceStrategy
}

// NewCombinedStrategy creates a new combined convergence strategy
func NewCombinedStrategy(config *ConvergenceConfig) *CombinedStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &CombinedStrategy{
		strategies: []ConvergenceStrategy{
			NewNoImprovementStrategy(config),
			NewPlateauStrategy(config),
			NewStepNormStrategy(config),
		},
	}
}

func (s *CombinedStrategy) Name() string {
	return "combined"
}

func (s *CombinedStrategy) CheckConvergence(history []OptimizationStep) (converged bool, reason string) {
	for _, strategy := range s.strategies {
		if converged, reason := strategy.CheckConvergence(history); converged {
			return true, fmt.Sprintf("%s: %s", strategy.Name(), reason)
		}
	}
	return false, ""
}

// AddStrategy adds a custom strategy to the combined strategy
func (s *CombinedStrategy) AddStrategy(strategy ConvergenceStrategy) {
	s.strategies = append(s.strategies, strategy)
}
