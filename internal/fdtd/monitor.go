package fdtd

import (
	"math"
	"math/cmplx"

	"github.com/waveforge/photonics-core/internal/grid"
)

// DFTMonitor accumulates the discrete Fourier transform of Ez along a grid
// column at a single frequency, and projects it onto a mode profile to
// obtain the eigenmode coefficient.
type DFTMonitor struct {
	Name string
	// I is the monitor column; the line spans rows [J0, J0+len(Profile)).
	I, J0 int
	// Profile is the L2-normalized transverse mode profile.
	Profile []float64
	// Freq is the analysis frequency.
	Freq float64

	dft []complex128
}

// NewDFTMonitor builds a monitor over a column segment.
func NewDFTMonitor(name string, i, j0 int, profile []float64, freq float64) *DFTMonitor {
	return &DFTMonitor{
		Name:    name,
		I:       i,
		J0:      j0,
		Profile: profile,
		Freq:    freq,
		dft:     make([]complex128, len(profile)),
	}
}

func (m *DFTMonitor) accumulate(ez []float64, nx int, t, dt float64) {
	ph := cmplx.Exp(complex(0, 2*math.Pi*m.Freq*t)) * complex(dt, 0)
	for k := range m.dft {
		m.dft[k] += complex(ez[(m.J0+k)*nx+m.I], 0) * ph
	}
}

// Coefficient is the overlap of the accumulated field with the mode
// profile: a = sum_j phi_j * F_j * delta.
func (m *DFTMonitor) Coefficient(delta float64) complex128 {
	var a complex128
	for k, p := range m.Profile {
		a += complex(p*delta, 0) * m.dft[k]
	}
	return a
}

// Fields returns a copy of the accumulated DFT line.
func (m *DFTMonitor) Fields() []complex128 {
	out := make([]complex128, len(m.dft))
	copy(out, m.dft)
	return out
}

// Reset clears the accumulator for reuse.
func (m *DFTMonitor) Reset() {
	for k := range m.dft {
		m.dft[k] = 0
	}
}

// RegionDFT accumulates the single-frequency DFT of Ez over a rectangular
// region, in the same row-major order the design density uses. The adjoint
// gradient is assembled from the forward and adjoint region fields.
type RegionDFT struct {
	Region grid.Region
	Freq   float64

	dft []complex128
}

// NewRegionDFT builds an accumulator over a region.
func NewRegionDFT(r grid.Region, freq float64) *RegionDFT {
	return &RegionDFT{Region: r, Freq: freq, dft: make([]complex128, r.Count())}
}

func (r *RegionDFT) accumulate(ez []float64, nx int, t, dt float64) {
	ph := cmplx.Exp(complex(0, 2*math.Pi*r.Freq*t)) * complex(dt, 0)
	k := 0
	for j := r.Region.J0; j < r.Region.J1; j++ {
		row := j * nx
		for i := r.Region.I0; i < r.Region.I1; i++ {
			r.dft[k] += complex(ez[row+i], 0) * ph
			k++
		}
	}
}

// Fields returns a copy of the accumulated region DFT, row-major.
func (r *RegionDFT) Fields() []complex128 {
	out := make([]complex128, len(r.dft))
	copy(out, r.dft)
	return out
}
