// Package grid provides the 2D simulation grid: cell bookkeeping, scalar
// fields stored as flat slices, region rectangles, and the coordinate-derived
// cell masks used by the solver and the design mapping.
package grid

import (
	"fmt"

	"github.com/waveforge/photonics-core/pkg/config"
)

// Spec describes the discretized simulation cell.
type Spec struct {
	Nx, Ny int
	// Delta is the cell size in micrometers (uniform in x and y).
	Delta float64
	// AbsorberCells is the thickness of the lossy boundary layer in cells.
	AbsorberCells int
}

// NewSpec discretizes a domain description.
func NewSpec(d *config.Domain) (Spec, error) {
	if d.Resolution <= 0 {
		return Spec{}, fmt.Errorf("resolution must be positive, got %d", d.Resolution)
	}
	delta := 1.0 / float64(d.Resolution)
	s := Spec{
		Nx:            int(d.WidthUM * float64(d.Resolution)),
		Ny:            int(d.HeightUM * float64(d.Resolution)),
		Delta:         delta,
		AbsorberCells: int(d.AbsorberUM * float64(d.Resolution)),
	}
	if s.Nx < 4 || s.Ny < 4 {
		return Spec{}, fmt.Errorf("domain too small: %dx%d cells", s.Nx, s.Ny)
	}
	if 2*s.AbsorberCells >= s.Nx || 2*s.AbsorberCells >= s.Ny {
		return Spec{}, fmt.Errorf("absorber (%d cells) does not fit in %dx%d grid",
			s.AbsorberCells, s.Nx, s.Ny)
	}
	return s, nil
}

// Cells returns the total number of grid cells.
func (s Spec) Cells() int {
	return s.Nx * s.Ny
}

// Index maps a cell coordinate to its flat-slice offset.
func (s Spec) Index(i, j int) int {
	return j*s.Nx + i
}

// X returns the physical x coordinate of cell center i.
func (s Spec) X(i int) float64 {
	return (float64(i) + 0.5) * s.Delta
}

// Y returns the physical y coordinate of cell center j.
func (s Spec) Y(j int) float64 {
	return (float64(j) + 0.5) * s.Delta
}

// CellX returns the cell index containing physical coordinate x, clamped to
// the grid.
func (s Spec) CellX(x float64) int {
	i := int(x / s.Delta)
	if i < 0 {
		return 0
	}
	if i >= s.Nx {
		return s.Nx - 1
	}
	return i
}

// CellY returns the cell index containing physical coordinate y, clamped to
// the grid.
func (s Spec) CellY(y float64) int {
	j := int(y / s.Delta)
	if j < 0 {
		return 0
	}
	if j >= s.Ny {
		return s.Ny - 1
	}
	return j
}

// Field is a scalar quantity sampled on the grid, stored row-major.
type Field struct {
	Nx, Ny int
	Data   []float64
}

// NewField allocates a zero field on the given spec.
func NewField(s Spec) *Field {
	return &Field{Nx: s.Nx, Ny: s.Ny, Data: make([]float64, s.Cells())}
}

// At returns the value at cell (i,j). Out-of-range coordinates read as zero,
// which gives the update stencils their boundary condition.
func (f *Field) At(i, j int) float64 {
	if i < 0 || i >= f.Nx || j < 0 || j >= f.Ny {
		return 0
	}
	return f.Data[j*f.Nx+i]
}

// Set writes the value at cell (i,j), ignoring out-of-range coordinates.
func (f *Field) Set(i, j int, v float64) {
	if i < 0 || i >= f.Nx || j < 0 || j >= f.Ny {
		return
	}
	f.Data[j*f.Nx+i] = v
}

// Fill sets every cell to v.
func (f *Field) Fill(v float64) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	out := &Field{Nx: f.Nx, Ny: f.Ny, Data: make([]float64, len(f.Data))}
	copy(out.Data, f.Data)
	return out
}

// Region is a half-open rectangle of cells [I0,I1) x [J0,J1).
type Region struct {
	I0, I1, J0, J1 int
}

// RegionFromRect converts a physical rectangle (center + size in um) to a
// cell region clipped to the grid.
func RegionFromRect(s Spec, cxUM, cyUM, wUM, hUM float64) Region {
	i0 := s.CellX(cxUM - wUM/2)
	i1 := s.CellX(cxUM+wUM/2-s.Delta/2) + 1
	j0 := s.CellY(cyUM - hUM/2)
	j1 := s.CellY(cyUM+hUM/2-s.Delta/2) + 1
	return Region{I0: i0, I1: i1, J0: j0, J1: j1}
}

// Width returns the region width in cells.
func (r Region) Width() int { return r.I1 - r.I0 }

// Height returns the region height in cells.
func (r Region) Height() int { return r.J1 - r.J0 }

// Count returns the number of cells in the region.
func (r Region) Count() int { return r.Width() * r.Height() }

// Contains reports whether cell (i,j) lies in the region.
func (r Region) Contains(i, j int) bool {
	return i >= r.I0 && i < r.I1 && j >= r.J0 && j < r.J1
}
