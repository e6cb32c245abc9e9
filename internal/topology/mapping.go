// Package topology implements the mapping from raw design variables to
// material density: a conic smoothing filter followed by a smooth tanh
// projection with a sharpness parameter, plus the vector-Jacobian products
// needed to pull objective gradients back to the raw variables.
package topology

import (
	"fmt"
	"math"
)

// Mapping applies filter and projection over a W x H design grid
// (row-major, matching grid.Region ordering).
type Mapping struct {
	W, H int
	// RadiusCells is the conic filter radius in cells.
	RadiusCells float64
	// Eta is the projection midpoint in (0,1).
	Eta float64

	// Precomputed kernel taps and per-cell normalization.
	taps []tap
	norm []float64
}

type tap struct {
	di, dj int
	w      float64
}

// NewMapping precomputes the filter kernel for a design grid.
func NewMapping(w, h int, radiusCells, eta float64) (*Mapping, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("design grid must be non-empty, got %dx%d", w, h)
	}
	if radiusCells <= 0 {
		return nil, fmt.Errorf("filter radius must be positive, got %f cells", radiusCells)
	}
	if eta <= 0 || eta >= 1 {
		return nil, fmt.Errorf("eta must be in (0,1), got %f", eta)
	}

	m := &Mapping{W: w, H: h, RadiusCells: radiusCells, Eta: eta}

	r := int(math.Ceil(radiusCells))
	for dj := -r; dj <= r; dj++ {
		for di := -r; di <= r; di++ {
			d := math.Sqrt(float64(di*di + dj*dj))
			if weight := 1 - d/radiusCells; weight > 0 {
				m.taps = append(m.taps, tap{di: di, dj: dj, w: weight})
			}
		}
	}

	// Boundary-aware normalization: each cell divides by the kernel mass
	// that actually falls inside the grid.
	m.norm = make([]float64, w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			sum := 0.0
			for _, t := range m.taps {
				si, sj := i+t.di, j+t.dj
				if si >= 0 && si < w && sj >= 0 && sj < h {
					sum += t.w
				}
			}
			m.norm[j*w+i] = sum
		}
	}
	return m, nil
}

// Filter applies the normalized conic filter to a raw density field.
func (m *Mapping) Filter(rho []float64) []float64 {
	out := make([]float64, len(rho))
	for j := 0; j < m.H; j++ {
		for i := 0; i < m.W; i++ {
			sum := 0.0
			for _, t := range m.taps {
				si, sj := i+t.di, j+t.dj
				if si >= 0 && si < m.W && sj >= 0 && sj < m.H {
					sum += t.w * rho[sj*m.W+si]
				}
			}
			out[j*m.W+i] = sum / m.norm[j*m.W+i]
		}
	}
	return out
}

// FilterVJP applies the transpose of the filter Jacobian: each output cell
// scatters its cotangent back through the kernel with that cell's
// normalization.
func (m *Mapping) FilterVJP(v []float64) []float64 {
	out := make([]float64, len(v))
	for j := 0; j < m.H; j++ {
		for i := 0; i < m.W; i++ {
			scaled := v[j*m.W+i] / m.norm[j*m.W+i]
			for _, t := range m.taps {
				si, sj := i+t.di, j+t.dj
				if si >= 0 && si < m.W && sj >= 0 && sj < m.H {
					out[sj*m.W+si] += t.w * scaled
				}
			}
		}
	}
	return out
}

// Project applies the smooth tanh threshold with sharpness beta and
// midpoint eta. It maps [0,1] onto [0,1] and approaches a hard step at eta
// as beta grows.
func Project(f []float64, beta, eta float64) []float64 {
	out := make([]float64, len(f))
	denom := math.Tanh(beta*eta) + math.Tanh(beta*(1-eta))
	for i, v := range f {
		out[i] = (math.Tanh(beta*eta) + math.Tanh(beta*(v-eta))) / denom
	}
	return out
}

// ProjectDeriv returns the elementwise derivative of Project at f.
func ProjectDeriv(f []float64, beta, eta float64) []float64 {
	out := make([]float64, len(f))
	denom := math.Tanh(beta*eta) + math.Tanh(beta*(1-eta))
	for i, v := range f {
		c := math.Cosh(beta * (v - eta))
		out[i] = beta / (c * c * denom)
	}
	return out
}

// Forward maps raw design variables to projected material density.
func (m *Mapping) Forward(rho []float64, beta float64) []float64 {
	return Project(m.Filter(rho), beta, m.Eta)
}

// Backward pulls a gradient with respect to the projected density back to
// the raw design variables via the projection derivative and the filter
// transpose.
func (m *Mapping) Backward(rho []float64, beta float64, grad []float64) []float64 {
	filtered := m.Filter(rho)
	deriv := ProjectDeriv(filtered, beta, m.Eta)
	chain := make([]float64, len(grad))
	for i := range chain {
		chain[i] = grad[i] * deriv[i]
	}
	return m.FilterVJP(chain)
}

// Binarization measures how binary a projected density is:
// 1 - 4*mean(p*(1-p)), which is 1 when every cell is 0 or 1 and 0 for a
// uniform 0.5 field.
func Binarization(p []float64) float64 {
	if len(p) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range p {
		sum += v * (1 - v)
	}
	return 1 - 4*sum/float64(len(p))
}
