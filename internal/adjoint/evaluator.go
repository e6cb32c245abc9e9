// Package adjoint evaluates the design objective and its gradient. Each
// evaluation is one forward FDTD run; each gradient adds one adjoint run
// driven from the monitors, so the cost per iteration is two simulations
// regardless of the number of design variables.
package adjoint

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/waveforge/photonics-core/internal/fdtd"
	"github.com/waveforge/photonics-core/internal/grid"
	"github.com/waveforge/photonics-core/internal/objective"
	"github.com/waveforge/photonics-core/internal/topology"
	"github.com/waveforge/photonics-core/pkg/config"
	"github.com/waveforge/photonics-core/pkg/logger"
)

// modeWindowPadUM widens the transverse mode-solve window beyond the
// waveguide core so the evanescent tails fit.
const modeWindowPadUM = 1.0

// Result is one objective evaluation with its design gradient.
type Result struct {
	// Value is the scalar objective (minimization convention).
	Value float64
	// Grad is the gradient with respect to the raw design variables.
	Grad []float64
	// Powers are the normalized output-arm powers.
	Powers []float64
	// Binarization measures how binary the projected density is.
	Binarization float64
}

type monitorPlan struct {
	cfg     config.Monitor
	i, j0   int
	profile []float64
}

// Evaluator compiles a problem into reusable simulation plans: grid layout,
// mode profiles, source placement, and the input-power calibration.
type Evaluator struct {
	cfg     *config.Problem
	spec    grid.Spec
	layout  *grid.Layout
	mapping *topology.Mapping
	obj     objective.ObjectiveFunction

	freq     float64
	waveform fdtd.Waveform
	runTime  float64

	srcI, srcJ0 int
	srcProfile  []float64

	monitors []monitorPlan
	targets  []float64

	normOnce   sync.Once
	normErr    error
	inputPower float64
}

// NewEvaluator validates the problem and precomputes everything that does
// not depend on the design density.
func NewEvaluator(cfg *config.Problem) (*Evaluator, error) {
	spec, err := grid.NewSpec(&cfg.Domain)
	if err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}

	obj, err := objective.NewObjectiveFunction(cfg.Objective)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		cfg:    cfg,
		spec:   spec,
		layout: grid.BuildLayout(spec, &cfg.Geometry),
		obj:    obj,
		freq:   1 / cfg.Source.WavelengthUM,
	}

	radiusCells := cfg.Mapping.FilterRadiusUM * float64(cfg.Domain.Resolution)
	e.mapping, err = topology.NewMapping(e.layout.Design.Width(), e.layout.Design.Height(), radiusCells, cfg.Mapping.Eta)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}

	e.waveform = fdtd.NewWaveform(e.freq, cfg.Source.PulsePeriods)
	e.runTime = cfg.Domain.RunTimeUM
	if e.runTime <= 0 {
		// Default: the pulse plus a few domain crossings to ring down.
		e.runTime = e.waveform.Duration() + 3*cfg.Domain.WidthUM
	}

	// Source line in the input waveguide, just inside the absorber.
	e.srcI = spec.CellX(cfg.Domain.AbsorberUM + cfg.Source.OffsetUM)
	e.srcJ0, e.srcProfile, err = e.solveWindowMode(e.layout.Eps, e.srcI, cfg.Geometry.Input.CenterYUM, cfg.Geometry.Input.WidthUM)
	if err != nil {
		return nil, fmt.Errorf("input mode: %w", err)
	}

	for _, m := range cfg.Monitors {
		mi := spec.CellX(m.XUM)
		j0, profile, err := e.solveWindowMode(e.layout.Eps, mi, m.CenterYUM, m.WidthUM)
		if err != nil {
			return nil, fmt.Errorf("monitor %s mode: %w", m.Name, err)
		}
		e.monitors = append(e.monitors, monitorPlan{cfg: m, i: mi, j0: j0, profile: profile})
		e.targets = append(e.targets, m.TargetPower)
	}
	if len(e.monitors) == 0 {
		return nil, fmt.Errorf("at least one monitor is required")
	}

	return e, nil
}

// solveWindowMode solves the slab mode on a column window around a
// waveguide core and returns the window start row with the profile.
func (e *Evaluator) solveWindowMode(eps *grid.Field, i int, centerY, width float64) (int, []float64, error) {
	half := width/2 + modeWindowPadUM
	j0 := e.spec.CellY(centerY - half)
	j1 := e.spec.CellY(centerY+half) + 1

	// Keep the window out of the absorber.
	j0 = max(j0, e.spec.AbsorberCells)
	j1 = min(j1, e.spec.Ny-e.spec.AbsorberCells)

	mode, err := fdtd.SolveSlabMode(fdtd.ColumnEps(eps, i, j0, j1), e.spec.Delta, e.freq)
	if err != nil {
		return 0, nil, err
	}
	return j0, mode.Profile, nil
}

// DesignSize returns the number of design variables.
func (e *Evaluator) DesignSize() int {
	return e.layout.Design.Count()
}

// Mapping exposes the density mapping for rendering and binarization.
func (e *Evaluator) Mapping() *topology.Mapping {
	return e.mapping
}

// Layout exposes the discretized geometry.
func (e *Evaluator) Layout() *grid.Layout {
	return e.layout
}

// InputPower runs the straight-waveguide calibration once and caches the
// launched mode power that normalizes all arm transmissions.
func (e *Evaluator) InputPower(ctx context.Context) (float64, error) {
	e.normOnce.Do(func() {
		e.inputPower, e.normErr = e.calibrate(ctx)
	})
	return e.inputPower, e.normErr
}

func (e *Evaluator) calibrate(ctx context.Context) (float64, error) {
	norm := grid.BuildNormalizationLayout(e.spec, &e.cfg.Geometry)

	// Pick up the mode where the output monitors sit, mirrored onto the
	// straight-through waveguide.
	monI := e.spec.CellX(e.cfg.Domain.WidthUM - e.cfg.Domain.AbsorberUM - e.cfg.Source.OffsetUM)
	j0, profile, err := e.solveWindowMode(norm.Eps, monI, e.cfg.Geometry.Input.CenterYUM, e.cfg.Geometry.Input.WidthUM)
	if err != nil {
		return 0, fmt.Errorf("calibration mode: %w", err)
	}

	sim, err := fdtd.NewSimulation(e.spec, norm.Eps, e.cfg.Domain.Courant)
	if err != nil {
		return 0, err
	}
	src := fdtd.NewLineSource(e.srcI, e.srcJ0, e.srcProfile, e.waveform)
	sim.AddSource(src)
	mon := fdtd.NewDFTMonitor("calibration", monI, j0, profile, e.freq)
	sim.AddMonitor(mon)

	if err := sim.Run(ctx, e.runTime); err != nil {
		return 0, fmt.Errorf("calibration run: %w", err)
	}

	spectrum, err := sourceSpectrum(src)
	if err != nil {
		return 0, err
	}
	a := mon.Coefficient(e.spec.Delta) / spectrum
	power := real(a)*real(a) + imag(a)*imag(a)
	if power <= 0 || math.IsNaN(power) {
		return 0, fmt.Errorf("calibration produced no input power")
	}
	logger.Debug("input power calibrated", "power", power)
	return power, nil
}

// forward runs one simulation over the given permittivity and returns the
// monitor coefficients, plus the design-region DFT when requested. All
// measurements are deconvolved by the source pulse's spectral factor, so
// they are the response to a continuous unit source.
func (e *Evaluator) forward(ctx context.Context, eps *grid.Field, withRegion bool) ([]complex128, []complex128, error) {
	sim, err := fdtd.NewSimulation(e.spec, eps, e.cfg.Domain.Courant)
	if err != nil {
		return nil, nil, err
	}
	src := fdtd.NewLineSource(e.srcI, e.srcJ0, e.srcProfile, e.waveform)
	sim.AddSource(src)

	mons := make([]*fdtd.DFTMonitor, len(e.monitors))
	for k, m := range e.monitors {
		mons[k] = fdtd.NewDFTMonitor(m.cfg.Name, m.i, m.j0, m.profile, e.freq)
		sim.AddMonitor(mons[k])
	}

	var region *fdtd.RegionDFT
	if withRegion {
		region = fdtd.NewRegionDFT(e.layout.Design, e.freq)
		sim.AddRegionDFT(region)
	}

	if err := sim.Run(ctx, e.runTime); err != nil {
		return nil, nil, err
	}

	spectrum, err := sourceSpectrum(src)
	if err != nil {
		return nil, nil, err
	}

	coeffs := make([]complex128, len(mons))
	for k, m := range mons {
		coeffs[k] = m.Coefficient(e.spec.Delta) / spectrum
	}
	var fields []complex128
	if withRegion {
		fields = region.Fields()
		for k := range fields {
			fields[k] /= spectrum
		}
	}
	return coeffs, fields, nil
}

// sourceSpectrum guards against deconvolving by a vanishing pulse spectrum,
// which happens when the run time does not cover the pulse.
func sourceSpectrum(src *fdtd.LineSource) (complex128, error) {
	s := src.Spectrum()
	if s == 0 {
		return 0, fmt.Errorf("source spectrum is zero; run time does not cover the pulse")
	}
	return s, nil
}

// adjointRun drives the monitors with the objective weights (conjugated, so
// the adjoint field propagates backward) and returns the design-region DFT.
func (e *Evaluator) adjointRun(ctx context.Context, eps *grid.Field, weights []complex128) ([]complex128, error) {
	sim, err := fdtd.NewSimulation(e.spec, eps, e.cfg.Domain.Courant)
	if err != nil {
		return nil, err
	}

	var srcs []*fdtd.LineSource
	for k, m := range e.monitors {
		w := weights[k]
		if w == 0 {
			continue
		}
		src := fdtd.NewLineSource(m.i, m.j0, m.profile, e.waveform)
		src.Amplitude = complex(real(w), -imag(w))
		sim.AddSource(src)
		srcs = append(srcs, src)
	}

	region := fdtd.NewRegionDFT(e.layout.Design, e.freq)
	sim.AddRegionDFT(region)

	if err := sim.Run(ctx, e.runTime); err != nil {
		return nil, err
	}

	fields := region.Fields()
	if len(srcs) == 0 {
		// All weights vanished; the adjoint field is identically zero.
		return fields, nil
	}
	// Every adjoint source shares the waveform, so the unit spectra agree.
	spectrum, err := sourceSpectrum(srcs[0])
	if err != nil {
		return nil, err
	}
	for k := range fields {
		fields[k] /= spectrum
	}
	return fields, nil
}

// Probe computes only the objective value for a design at sharpness beta.
func (e *Evaluator) Probe(ctx context.Context, beta float64, rho []float64) (float64, error) {
	inputPower, err := e.InputPower(ctx)
	if err != nil {
		return 0, err
	}

	density := e.mapping.Forward(rho, beta)
	coeffs, _, err := e.forward(ctx, e.layout.ApplyDensity(density), false)
	if err != nil {
		return 0, err
	}

	ev, err := e.obj.Evaluate(coeffs, inputPower, e.targets)
	if err != nil {
		return 0, err
	}
	return ev.Value, nil
}

// Objective computes the objective and its gradient for a design at
// sharpness beta: forward run, adjoint run, then the chain rule back
// through the density mapping.
func (e *Evaluator) Objective(ctx context.Context, beta float64, rho []float64) (*Result, error) {
	if len(rho) != e.DesignSize() {
		return nil, fmt.Errorf("design has %d variables, want %d", len(rho), e.DesignSize())
	}
	inputPower, err := e.InputPower(ctx)
	if err != nil {
		return nil, err
	}

	density := e.mapping.Forward(rho, beta)
	eps := e.layout.ApplyDensity(density)

	coeffs, fwdFields, err := e.forward(ctx, eps, true)
	if err != nil {
		return nil, fmt.Errorf("forward run: %w", err)
	}

	ev, err := e.obj.Evaluate(coeffs, inputPower, e.targets)
	if err != nil {
		return nil, err
	}

	adjFields, err := e.adjointRun(ctx, eps, ev.Weights)
	if err != nil {
		return nil, fmt.Errorf("adjoint run: %w", err)
	}

	// dJ/deps per design cell: Re(i*omega*E_fwd*E_adj) * cell area, then
	// the material contrast maps permittivity back to density.
	omega := 2 * math.Pi * e.freq
	area := e.spec.Delta * e.spec.Delta
	contrast := e.layout.EpsWaveguide - e.layout.EpsBackground
	gradDensity := make([]float64, len(fwdFields))
	for k := range fwdFields {
		prod := complex(0, omega) * fwdFields[k] * adjFields[k]
		gradDensity[k] = real(prod) * area * contrast
	}

	return &Result{
		Value:        ev.Value,
		Grad:         e.mapping.Backward(rho, beta, gradDensity),
		Powers:       ev.Powers,
		Binarization: topology.Binarization(density),
	}, nil
}
