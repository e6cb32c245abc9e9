package grid

import (
	"github.com/waveforge/photonics-core/pkg/config"
)

// Layout holds the discretized geometry of a design problem.
type Layout struct {
	Spec   Spec
	Design Region
	// Eps is the permittivity with waveguides stamped in and the design
	// region at background; ApplyDensity overlays the design material.
	Eps *Field
	// EpsBackground / EpsWaveguide are the two-material bounds.
	EpsBackground float64
	EpsWaveguide  float64
}

// BuildLayout discretizes the geometry: background permittivity everywhere,
// waveguide strips feeding into and out of the design region.
func BuildLayout(s Spec, g *config.Geometry) *Layout {
	l := &Layout{
		Spec:          s,
		EpsBackground: g.EpsBackground,
		EpsWaveguide:  g.EpsWaveguide,
	}

	dr := g.DesignRegion
	l.Design = RegionFromRect(s, dr.CenterXUM, dr.CenterYUM, dr.WidthUM, dr.HeightUM)

	eps := NewField(s)
	eps.Fill(g.EpsBackground)

	width := float64(s.Nx) * s.Delta
	designLeft := dr.CenterXUM - dr.WidthUM/2
	designRight := dr.CenterXUM + dr.WidthUM/2

	// Input waveguide: left edge up to the design region.
	stamp(eps, StripMask(s, g.Input.CenterYUM, g.Input.WidthUM, 0, designLeft), g.EpsWaveguide)

	// Output waveguides: design region to the right edge.
	for _, wg := range g.Outputs {
		stamp(eps, StripMask(s, wg.CenterYUM, wg.WidthUM, designRight, width), g.EpsWaveguide)
	}

	l.Eps = eps
	return l
}

// BuildNormalizationLayout discretizes the geometry with the input waveguide
// running straight through the whole domain and no design region. A forward
// run on it calibrates the input power for transmission normalization.
func BuildNormalizationLayout(s Spec, g *config.Geometry) *Layout {
	l := &Layout{
		Spec:          s,
		EpsBackground: g.EpsBackground,
		EpsWaveguide:  g.EpsWaveguide,
	}

	eps := NewField(s)
	eps.Fill(g.EpsBackground)
	width := float64(s.Nx) * s.Delta
	stamp(eps, StripMask(s, g.Input.CenterYUM, g.Input.WidthUM, 0, width), g.EpsWaveguide)

	l.Eps = eps
	return l
}

// ApplyDensity returns a copy of the layout permittivity with the design
// region linearly interpolated between the two materials:
// eps = eps_bg + d*(eps_wg - eps_bg).
func (l *Layout) ApplyDensity(density []float64) *Field {
	eps := l.Eps.Clone()
	r := l.Design
	contrast := l.EpsWaveguide - l.EpsBackground
	k := 0
	for j := r.J0; j < r.J1; j++ {
		for i := r.I0; i < r.I1; i++ {
			eps.Data[l.Spec.Index(i, j)] = l.EpsBackground + density[k]*contrast
			k++
		}
	}
	return eps
}

func stamp(eps *Field, m Mask, value float64) {
	for i, set := range m {
		if set {
			eps.Data[i] = value
		}
	}
}
