package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseProblemYAML parses, defaults and validates a problem description.
func ParseProblemYAML(data []byte) (*Problem, error) {
	var p Problem
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	applyDefaults(&p)
	if err := validateProblem(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseProblemYAMLString is a convenience wrapper around ParseProblemYAML.
func ParseProblemYAMLString(s string) (*Problem, error) {
	return ParseProblemYAML([]byte(s))
}

// MarshalProblemYAML serializes a problem back to YAML.
func MarshalProblemYAML(p *Problem) (string, error) {
	if p == nil {
		return "", fmt.Errorf("problem is nil")
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal problem: %w", err)
	}
	return string(data), nil
}

// applyDefaults fills optional fields with their documented defaults.
func applyDefaults(p *Problem) {
	if p.LogLevel == "" {
		p.LogLevel = "info"
	}
	if p.Domain.Courant == 0 {
		p.Domain.Courant = 0.5
	}
	if p.Source.PulsePeriods == 0 {
		p.Source.PulsePeriods = 8
	}
	if p.Source.OffsetUM == 0 {
		p.Source.OffsetUM = 0.5
	}
	if p.Objective == "" {
		p.Objective = "splitter_match"
	}
	if p.Mapping.Eta == 0 {
		p.Mapping.Eta = 0.5
	}
	if len(p.Continuation.Betas) == 0 {
		if p.Continuation.BetaStart == 0 {
			p.Continuation.BetaStart = 8
		}
		if p.Continuation.BetaFactor == 0 {
			p.Continuation.BetaFactor = 2
		}
		if p.Continuation.Rounds == 0 {
			p.Continuation.Rounds = 3
		}
	}
	if p.Optimizer.MaxIterations == 0 {
		p.Optimizer.MaxIterations = 20
	}
	if p.Optimizer.StepSize == 0 {
		p.Optimizer.StepSize = 0.1
	}
	if p.Optimizer.StepTolerance == 0 {
		p.Optimizer.StepTolerance = 1e-5
	}
	if p.Optimizer.NoImprovementIterations == 0 {
		p.Optimizer.NoImprovementIterations = 5
	}
	if p.Init.Value == 0 {
		p.Init.Value = 0.5
	}
	if p.Outputs.Dir == "" {
		p.Outputs.Dir = "artifacts"
	}
	if p.Outputs.EveryN == 0 {
		p.Outputs.EveryN = 1
	}

	// Design region defaults to the domain center.
	if p.Geometry.DesignRegion.CenterXUM == 0 {
		p.Geometry.DesignRegion.CenterXUM = p.Domain.WidthUM / 2
	}
	if p.Geometry.DesignRegion.CenterYUM == 0 {
		p.Geometry.DesignRegion.CenterYUM = p.Domain.HeightUM / 2
	}
}

// BetaSchedule returns the effective, strictly increasing sharpness schedule.
func (c *Continuation) BetaSchedule() []float64 {
	if len(c.Betas) > 0 {
		out := make([]float64, len(c.Betas))
		copy(out, c.Betas)
		return out
	}
	out := make([]float64, c.Rounds)
	beta := c.BetaStart
	for i := range out {
		out[i] = beta
		beta *= c.BetaFactor
	}
	return out
}
