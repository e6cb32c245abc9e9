package fdtd

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/waveforge/photonics-core/internal/grid"
)

// SlabMode is a guided mode of a 1D permittivity slice.
type SlabMode struct {
	// Profile is the L2-normalized transverse field, sum(phi^2)*delta = 1.
	Profile []float64
	// Neff is the effective index beta/k0.
	Neff float64
}

// SolveSlabMode solves the 1D Helmholtz eigenproblem
//
//	phi'' + k0^2 eps(y) phi = beta^2 phi
//
// on the given permittivity slice with zero boundary conditions and returns
// the fundamental mode (largest beta^2).
func SolveSlabMode(eps []float64, delta, freq float64) (*SlabMode, error) {
	n := len(eps)
	if n < 3 {
		return nil, fmt.Errorf("mode window too small: %d cells", n)
	}
	if delta <= 0 || freq <= 0 {
		return nil, fmt.Errorf("invalid discretization: delta=%f freq=%f", delta, freq)
	}

	k0 := 2 * math.Pi * freq
	inv2 := 1 / (delta * delta)

	a := mat.NewSymDense(n, nil)
	for j := 0; j < n; j++ {
		a.SetSym(j, j, -2*inv2+k0*k0*eps[j])
		if j+1 < n {
			a.SetSym(j, j+1, inv2)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(a, true) {
		return nil, fmt.Errorf("mode eigendecomposition failed")
	}

	// Eigenvalues come back ascending; the fundamental mode has the
	// largest propagation constant.
	values := eig.Values(nil)
	betaSq := values[n-1]
	if betaSq <= 0 {
		return nil, fmt.Errorf("no guided mode found (beta^2=%f)", betaSq)
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	profile := make([]float64, n)
	for j := 0; j < n; j++ {
		profile[j] = vecs.At(j, n-1)
	}

	// Fix the sign so the peak is positive, then L2-normalize.
	peak := 0
	for j, v := range profile {
		if math.Abs(v) > math.Abs(profile[peak]) {
			peak = j
		}
	}
	if profile[peak] < 0 {
		for j := range profile {
			profile[j] = -profile[j]
		}
	}
	norm := 0.0
	for _, v := range profile {
		norm += v * v * delta
	}
	norm = math.Sqrt(norm)
	for j := range profile {
		profile[j] /= norm
	}

	return &SlabMode{Profile: profile, Neff: math.Sqrt(betaSq) / k0}, nil
}

// ColumnEps extracts the permittivity along column i for rows [j0, j1).
func ColumnEps(eps *grid.Field, i, j0, j1 int) []float64 {
	out := make([]float64, j1-j0)
	for j := j0; j < j1; j++ {
		out[j-j0] = eps.At(i, j)
	}
	return out
}
