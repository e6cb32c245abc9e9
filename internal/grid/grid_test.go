package grid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waveforge/photonics-core/pkg/config"
)

func testDomain() *config.Domain {
	return &config.Domain{
		WidthUM:    8,
		HeightUM:   6,
		Resolution: 10,
		AbsorberUM: 1,
		Courant:    0.5,
	}
}

func TestNewSpec(t *testing.T) {
	s, err := NewSpec(testDomain())
	require.NoError(t, err)
	require.Equal(t, 80, s.Nx)
	require.Equal(t, 60, s.Ny)
	require.Equal(t, 10, s.AbsorberCells)
	require.InDelta(t, 0.1, s.Delta, 1e-12)
}

func TestNewSpecRejectsOversizedAbsorber(t *testing.T) {
	d := testDomain()
	d.AbsorberUM = 4
	_, err := NewSpec(d)
	require.Error(t, err)
}

func TestFieldAccessOutOfRange(t *testing.T) {
	s, err := NewSpec(testDomain())
	require.NoError(t, err)

	f := NewField(s)
	f.Set(3, 4, 1.5)
	require.Equal(t, 1.5, f.At(3, 4))

	// Out-of-range reads are zero, writes are dropped.
	require.Equal(t, 0.0, f.At(-1, 0))
	require.Equal(t, 0.0, f.At(0, s.Ny))
	f.Set(-1, 0, 9)
	f.Set(s.Nx, 0, 9)
	require.Equal(t, 0.0, f.At(0, 0))
}

func TestRegionFromRect(t *testing.T) {
	s, err := NewSpec(testDomain())
	require.NoError(t, err)

	// 2x2 um rectangle centered at (4,3): 20x20 cells.
	r := RegionFromRect(s, 4, 3, 2, 2)
	require.Equal(t, 20, r.Width())
	require.Equal(t, 20, r.Height())
	require.Equal(t, 400, r.Count())
	require.True(t, r.Contains(r.I0, r.J0))
	require.False(t, r.Contains(r.I1, r.J0))
}

func TestAbsorberMask(t *testing.T) {
	s, err := NewSpec(testDomain())
	require.NoError(t, err)

	m := AbsorberMask(s)

	// Corners and edges are absorbing, the center is not.
	require.True(t, m[s.Index(0, 0)])
	require.True(t, m[s.Index(s.Nx-1, s.Ny-1)])
	require.True(t, m[s.Index(0, s.Ny/2)])
	require.False(t, m[s.Index(s.Nx/2, s.Ny/2)])

	// Frame area: total minus interior.
	interior := (s.Nx - 2*s.AbsorberCells) * (s.Ny - 2*s.AbsorberCells)
	require.Equal(t, s.Cells()-interior, m.Count())
}

func TestDesignMaskDisjointFromAbsorber(t *testing.T) {
	s, err := NewSpec(testDomain())
	require.NoError(t, err)

	design := RegionMask(s, RegionFromRect(s, 4, 3, 2, 2))
	absorber := AbsorberMask(s)
	require.False(t, design.Intersects(absorber))
}

func TestBuildLayoutStampsWaveguides(t *testing.T) {
	s, err := NewSpec(testDomain())
	require.NoError(t, err)

	g := &config.Geometry{
		Input:         config.Waveguide{WidthUM: 0.5, CenterYUM: 3},
		Outputs:       []config.Waveguide{{WidthUM: 0.5, CenterYUM: 2}, {WidthUM: 0.5, CenterYUM: 4}},
		DesignRegion:  config.DesignRegion{WidthUM: 2, HeightUM: 2, CenterXUM: 4, CenterYUM: 3},
		EpsBackground: 2.25,
		EpsWaveguide:  12.25,
	}
	l := BuildLayout(s, g)

	// Input core left of the design region.
	require.Equal(t, 12.25, l.Eps.At(s.CellX(1.0), s.CellY(3.0)))
	// Output cores right of the design region.
	require.Equal(t, 12.25, l.Eps.At(s.CellX(7.0), s.CellY(2.0)))
	require.Equal(t, 12.25, l.Eps.At(s.CellX(7.0), s.CellY(4.0)))
	// Cladding far from any core.
	require.Equal(t, 2.25, l.Eps.At(s.CellX(1.0), s.CellY(5.0)))
	// Design region starts at background.
	require.Equal(t, 2.25, l.Eps.At(s.CellX(4.0), s.CellY(3.0)))
}

func TestApplyDensity(t *testing.T) {
	s, err := NewSpec(testDomain())
	require.NoError(t, err)

	g := &config.Geometry{
		Input:         config.Waveguide{WidthUM: 0.5, CenterYUM: 3},
		Outputs:       []config.Waveguide{{WidthUM: 0.5, CenterYUM: 3}},
		DesignRegion:  config.DesignRegion{WidthUM: 2, HeightUM: 2, CenterXUM: 4, CenterYUM: 3},
		EpsBackground: 2.25,
		EpsWaveguide:  12.25,
	}
	l := BuildLayout(s, g)

	density := make([]float64, l.Design.Count())
	for i := range density {
		density[i] = 1
	}
	eps := l.ApplyDensity(density)
	require.Equal(t, 12.25, eps.At(l.Design.I0, l.Design.J0))

	for i := range density {
		density[i] = 0.5
	}
	eps = l.ApplyDensity(density)
	require.InDelta(t, 7.25, eps.At(l.Design.I0+1, l.Design.J0+1), 1e-12)

	// The original layout permittivity is untouched.
	require.Equal(t, 2.25, l.Eps.At(l.Design.I0, l.Design.J0))
}

func TestBuildNormalizationLayout(t *testing.T) {
	s, err := NewSpec(testDomain())
	require.NoError(t, err)

	g := &config.Geometry{
		Input:         config.Waveguide{WidthUM: 0.5, CenterYUM: 3},
		Outputs:       []config.Waveguide{{WidthUM: 0.5, CenterYUM: 3}},
		DesignRegion:  config.DesignRegion{WidthUM: 2, HeightUM: 2, CenterXUM: 4, CenterYUM: 3},
		EpsBackground: 2.25,
		EpsWaveguide:  12.25,
	}
	l := BuildNormalizationLayout(s, g)

	// Core runs the full width.
	require.Equal(t, 12.25, l.Eps.At(0, s.CellY(3.0)))
	require.Equal(t, 12.25, l.Eps.At(s.Nx-1, s.CellY(3.0)))
	// No design-region material.
	require.Equal(t, 2.25, l.Eps.At(s.CellX(4.0), s.CellY(4.5)))
}
