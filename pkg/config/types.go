package config

// Problem is the top-level description of an inverse-design problem.
type Problem struct {
	LogLevel     string        `yaml:"log_level,omitempty"`
	Domain       Domain        `yaml:"domain"`
	Geometry     Geometry      `yaml:"geometry"`
	Source       Source        `yaml:"source"`
	Monitors     []Monitor     `yaml:"monitors"`
	Objective    string        `yaml:"objective,omitempty"`
	Mapping      Mapping       `yaml:"mapping"`
	Continuation Continuation  `yaml:"continuation"`
	Optimizer    Optimizer     `yaml:"optimizer"`
	Init         InitialDesign `yaml:"init,omitempty"`
	Outputs      Outputs       `yaml:"outputs,omitempty"`
}

// Domain describes the simulation cell. All lengths are in micrometers.
type Domain struct {
	WidthUM  float64 `yaml:"width_um"`
	HeightUM float64 `yaml:"height_um"`
	// Resolution is the number of grid cells per micrometer.
	Resolution int `yaml:"resolution"`
	// AbsorberUM is the thickness of the lossy layer on each edge.
	AbsorberUM float64 `yaml:"absorber_um"`
	// Courant is the time-step fraction of the 2D stability limit (0,1].
	Courant float64 `yaml:"courant,omitempty"`
	// RunTimeUM is the simulated time per forward run, in units of
	// c=1 optical path length. Zero selects a default based on the domain
	// size and pulse width.
	RunTimeUM float64 `yaml:"run_time_um,omitempty"`
}

// Geometry describes waveguides, the design region and the two materials.
type Geometry struct {
	Input         Waveguide    `yaml:"input"`
	Outputs       []Waveguide  `yaml:"outputs"`
	DesignRegion  DesignRegion `yaml:"design_region"`
	EpsBackground float64      `yaml:"eps_background"`
	EpsWaveguide  float64      `yaml:"eps_waveguide"`
}

// Waveguide is a horizontal strip waveguide.
type Waveguide struct {
	WidthUM   float64 `yaml:"width_um"`
	CenterYUM float64 `yaml:"center_y_um"`
}

// DesignRegion is the optimizable rectangle, centered in the domain
// unless a center is given.
type DesignRegion struct {
	WidthUM   float64 `yaml:"width_um"`
	HeightUM  float64 `yaml:"height_um"`
	CenterXUM float64 `yaml:"center_x_um,omitempty"`
	CenterYUM float64 `yaml:"center_y_um,omitempty"`
}

// Source describes the excitation pulse launched into the input waveguide.
type Source struct {
	WavelengthUM float64 `yaml:"wavelength_um"`
	// PulsePeriods is the gaussian envelope width in optical periods.
	PulsePeriods float64 `yaml:"pulse_periods,omitempty"`
	// OffsetUM is the distance of the source line from the left absorber.
	OffsetUM float64 `yaml:"offset_um,omitempty"`
}

// Monitor is a vertical line where mode coefficients are extracted.
type Monitor struct {
	Name string  `yaml:"name"`
	XUM  float64 `yaml:"x_um"`
	// CenterYUM / WidthUM bound the transverse mode-solve window.
	CenterYUM float64 `yaml:"center_y_um"`
	WidthUM   float64 `yaml:"width_um"`
	// TargetPower is the desired fraction of input power in this arm.
	TargetPower float64 `yaml:"target_power"`
}

// Mapping configures the density filter and projection.
type Mapping struct {
	// FilterRadiusUM is the conic filter radius.
	FilterRadiusUM float64 `yaml:"filter_radius_um"`
	// Eta is the projection midpoint in (0,1).
	Eta float64 `yaml:"eta,omitempty"`
}

// Continuation configures the projection-sharpness schedule.
type Continuation struct {
	// Betas lists explicit sharpness values, strictly increasing.
	Betas []float64 `yaml:"betas,omitempty"`
	// BetaStart/BetaFactor/Rounds generate a geometric schedule when
	// Betas is empty.
	BetaStart  float64 `yaml:"beta_start,omitempty"`
	BetaFactor float64 `yaml:"beta_factor,omitempty"`
	Rounds     int     `yaml:"rounds,omitempty"`
	// PlateauTolerance stops the outer loop early when the best objective
	// improves by less than this fraction between rounds.
	PlateauTolerance float64 `yaml:"plateau_tolerance,omitempty"`
}

// Optimizer configures the bound-constrained inner loop.
type Optimizer struct {
	MaxIterations int     `yaml:"max_iterations"`
	StepSize      float64 `yaml:"step_size,omitempty"`
	// StepTolerance stops an inner round when the clamped step norm falls
	// below this value.
	StepTolerance float64 `yaml:"step_tolerance,omitempty"`
	// NoImprovementIterations stops an inner round after this many
	// iterations without objective improvement.
	NoImprovementIterations int `yaml:"no_improvement_iterations,omitempty"`
}

// InitialDesign configures the starting density field.
type InitialDesign struct {
	// Value is the uniform starting density in [0,1].
	Value float64 `yaml:"value,omitempty"`
	// JitterAmplitude adds uniform noise to break symmetry.
	JitterAmplitude float64 `yaml:"jitter_amplitude,omitempty"`
}

// Outputs configures run artifacts.
type Outputs struct {
	Dir     string `yaml:"dir,omitempty"`
	SavePNG bool   `yaml:"save_png,omitempty"`
	// EveryN saves a density image every N iterations (default 1).
	EveryN int `yaml:"every_n,omitempty"`
}
