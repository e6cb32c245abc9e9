package config

import (
	"fmt"
	"os"
)

// LoadProblem loads, parses and validates a problem file.
func LoadProblem(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file %s: %w", path, err)
	}
	p, err := ParseProblemYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse problem file %s: %w", path, err)
	}
	return p, nil
}

// validateProblem performs validation on the full problem description.
func validateProblem(p *Problem) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[p.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", p.LogLevel)
	}

	if err := validateDomain(&p.Domain); err != nil {
		return fmt.Errorf("domain validation failed: %w", err)
	}
	if err := validateGeometry(&p.Geometry, &p.Domain); err != nil {
		return fmt.Errorf("geometry validation failed: %w", err)
	}
	if err := validateSource(&p.Source); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}
	if err := validateMonitors(p.Monitors, &p.Domain); err != nil {
		return fmt.Errorf("monitors validation failed: %w", err)
	}
	if err := validateMapping(&p.Mapping); err != nil {
		return fmt.Errorf("mapping validation failed: %w", err)
	}
	if err := validateContinuation(&p.Continuation); err != nil {
		return fmt.Errorf("continuation validation failed: %w", err)
	}
	if err := validateOptimizer(&p.Optimizer); err != nil {
		return fmt.Errorf("optimizer validation failed: %w", err)
	}
	if p.Init.Value < 0 || p.Init.Value > 1 {
		return fmt.Errorf("init value must be in [0,1], got %f", p.Init.Value)
	}
	if p.Init.JitterAmplitude < 0 || p.Init.JitterAmplitude > 0.5 {
		return fmt.Errorf("init jitter_amplitude must be in [0,0.5], got %f", p.Init.JitterAmplitude)
	}
	return nil
}

func validateDomain(d *Domain) error {
	if d.WidthUM <= 0 {
		return fmt.Errorf("width_um must be positive, got %f", d.WidthUM)
	}
	if d.HeightUM <= 0 {
		return fmt.Errorf("height_um must be positive, got %f", d.HeightUM)
	}
	if d.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %d", d.Resolution)
	}
	if d.AbsorberUM <= 0 {
		return fmt.Errorf("absorber_um must be positive, got %f", d.AbsorberUM)
	}
	if 2*d.AbsorberUM >= d.WidthUM || 2*d.AbsorberUM >= d.HeightUM {
		return fmt.Errorf("absorber layers (%f um each) do not fit inside the %fx%f um domain",
			d.AbsorberUM, d.WidthUM, d.HeightUM)
	}
	if d.Courant <= 0 || d.Courant > 1 {
		return fmt.Errorf("courant must be in (0,1], got %f", d.Courant)
	}
	if d.RunTimeUM < 0 {
		return fmt.Errorf("run_time_um cannot be negative, got %f", d.RunTimeUM)
	}
	return nil
}

func validateGeometry(g *Geometry, d *Domain) error {
	if g.EpsBackground < 1 {
		return fmt.Errorf("eps_background must be >= 1, got %f", g.EpsBackground)
	}
	if g.EpsWaveguide <= g.EpsBackground {
		return fmt.Errorf("eps_waveguide (%f) must exceed eps_background (%f)",
			g.EpsWaveguide, g.EpsBackground)
	}
	if g.Input.WidthUM <= 0 {
		return fmt.Errorf("input waveguide width_um must be positive, got %f", g.Input.WidthUM)
	}
	if len(g.Outputs) == 0 {
		return fmt.Errorf("at least one output waveguide must be defined")
	}
	for i, wg := range g.Outputs {
		if wg.WidthUM <= 0 {
			return fmt.Errorf("output waveguide %d: width_um must be positive, got %f", i, wg.WidthUM)
		}
		if wg.CenterYUM < 0 || wg.CenterYUM > d.HeightUM {
			return fmt.Errorf("output waveguide %d: center_y_um %f outside domain height %f",
				i, wg.CenterYUM, d.HeightUM)
		}
	}

	dr := &g.DesignRegion
	if dr.WidthUM <= 0 || dr.HeightUM <= 0 {
		return fmt.Errorf("design_region dimensions must be positive, got %fx%f",
			dr.WidthUM, dr.HeightUM)
	}
	// The design region must lie strictly inside the non-absorbing interior.
	left := dr.CenterXUM - dr.WidthUM/2
	right := dr.CenterXUM + dr.WidthUM/2
	bottom := dr.CenterYUM - dr.HeightUM/2
	top := dr.CenterYUM + dr.HeightUM/2
	if left <= d.AbsorberUM || right >= d.WidthUM-d.AbsorberUM ||
		bottom <= d.AbsorberUM || top >= d.HeightUM-d.AbsorberUM {
		return fmt.Errorf("design_region [%f,%f]x[%f,%f] overlaps the absorber layers",
			left, right, bottom, top)
	}
	return nil
}

func validateSource(s *Source) error {
	if s.WavelengthUM <= 0 {
		return fmt.Errorf("wavelength_um must be positive, got %f", s.WavelengthUM)
	}
	if s.PulsePeriods <= 0 {
		return fmt.Errorf("pulse_periods must be positive, got %f", s.PulsePeriods)
	}
	if s.OffsetUM <= 0 {
		return fmt.Errorf("offset_um must be positive, got %f", s.OffsetUM)
	}
	return nil
}

func validateMonitors(monitors []Monitor, d *Domain) error {
	if len(monitors) == 0 {
		return fmt.Errorf("at least one monitor must be defined")
	}
	names := make(map[string]bool)
	targetSum := 0.0
	for i, m := range monitors {
		if m.Name == "" {
			return fmt.Errorf("monitor %d: name cannot be empty", i)
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate monitor name: %s", m.Name)
		}
		names[m.Name] = true
		if m.XUM <= d.AbsorberUM || m.XUM >= d.WidthUM-d.AbsorberUM {
			return fmt.Errorf("monitor %s: x_um %f inside the absorber", m.Name, m.XUM)
		}
		if m.WidthUM <= 0 {
			return fmt.Errorf("monitor %s: width_um must be positive, got %f", m.Name, m.WidthUM)
		}
		if m.TargetPower < 0 || m.TargetPower > 1 {
			return fmt.Errorf("monitor %s: target_power must be in [0,1], got %f", m.Name, m.TargetPower)
		}
		targetSum += m.TargetPower
	}
	if targetSum > 1+1e-9 {
		return fmt.Errorf("monitor target powers sum to %f, cannot exceed 1", targetSum)
	}
	return nil
}

func validateMapping(m *Mapping) error {
	if m.FilterRadiusUM <= 0 {
		return fmt.Errorf("filter_radius_um must be positive, got %f", m.FilterRadiusUM)
	}
	if m.Eta <= 0 || m.Eta >= 1 {
		return fmt.Errorf("eta must be in (0,1), got %f", m.Eta)
	}
	return nil
}

func validateContinuation(c *Continuation) error {
	betas := c.BetaSchedule()
	if len(betas) == 0 {
		return fmt.Errorf("beta schedule is empty")
	}
	prev := 0.0
	for i, b := range betas {
		if b <= prev {
			return fmt.Errorf("beta schedule must be strictly increasing, got %f at round %d", b, i)
		}
		prev = b
	}
	if c.PlateauTolerance < 0 {
		return fmt.Errorf("plateau_tolerance cannot be negative, got %f", c.PlateauTolerance)
	}
	return nil
}

func validateOptimizer(o *Optimizer) error {
	if o.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", o.MaxIterations)
	}
	if o.StepSize <= 0 {
		return fmt.Errorf("step_size must be positive, got %f", o.StepSize)
	}
	if o.StepTolerance <= 0 {
		return fmt.Errorf("step_tolerance must be positive, got %f", o.StepTolerance)
	}
	if o.NoImprovementIterations <= 0 {
		return fmt.Errorf("no_improvement_iterations must be positive, got %d", o.NoImprovementIterations)
	}
	return nil
}
