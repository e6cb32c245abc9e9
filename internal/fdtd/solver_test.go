package fdtd

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waveforge/photonics-core/internal/grid"
	"github.com/waveforge/photonics-core/pkg/config"
)

func testSpec(t *testing.T) grid.Spec {
	t.Helper()
	s, err := grid.NewSpec(&config.Domain{
		WidthUM:    4,
		HeightUM:   3,
		Resolution: 10,
		AbsorberUM: 0.5,
		Courant:    0.5,
	})
	require.NoError(t, err)
	return s
}

func vacuum(s grid.Spec) *grid.Field {
	f := grid.NewField(s)
	f.Fill(1)
	return f
}

func TestNewSimulationValidation(t *testing.T) {
	s := testSpec(t)

	_, err := NewSimulation(s, vacuum(s), 0)
	require.Error(t, err)
	_, err = NewSimulation(s, vacuum(s), 1.5)
	require.Error(t, err)
	_, err = NewSimulation(s, nil, 0.5)
	require.Error(t, err)

	bad := vacuum(s)
	bad.Data[0] = 0.5
	_, err = NewSimulation(s, bad, 0.5)
	require.Error(t, err)
}

func TestPulsePropagatesAndStaysFinite(t *testing.T) {
	s := testSpec(t)
	sim, err := NewSimulation(s, vacuum(s), 0.5)
	require.NoError(t, err)

	w := NewWaveform(1/1.55, 3)
	profile := []float64{0.5, 1, 1, 0.5}
	sim.AddSource(NewLineSource(s.Nx/2, s.Ny/2-2, profile, w))

	require.NoError(t, sim.Run(context.Background(), w.Delay+1))
	require.Greater(t, sim.FieldEnergy(), 0.0)
}

func TestInteriorEnergyConserved(t *testing.T) {
	s, err := grid.NewSpec(&config.Domain{
		WidthUM:    4,
		HeightUM:   4,
		Resolution: 10,
		AbsorberUM: 0.5,
		Courant:    0.5,
	})
	require.NoError(t, err)

	sim, err := NewSimulation(s, vacuum(s), 0.5)
	require.NoError(t, err)

	// Gaussian Ez blob centered in the interior; the tails are negligible
	// at the absorber so no energy should leave during a short run.
	const cx, cy, sigma = 2.0, 2.0, 0.25
	for j := 0; j < s.Ny; j++ {
		for i := 0; i < s.Nx; i++ {
			dx := s.X(i) - cx
			dy := s.Y(j) - cy
			sim.ez[s.Index(i, j)] = math.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
		}
	}

	energy := func() float64 {
		sum := 0.0
		for k := range sim.ez {
			sum += sim.eps[k]*sim.ez[k]*sim.ez[k] + sim.hx[k]*sim.hx[k] + sim.hy[k]*sim.hy[k]
		}
		return sum
	}

	// One step settles the staggered H fields before the reference reading.
	sim.Step()
	ref := energy()
	require.Greater(t, ref, 0.0)

	// Half a micron of travel keeps the field clear of the absorber. The
	// E/H samples are offset by half a time step, so the instantaneous sum
	// rings slightly around the conserved value.
	steps := int(0.5 / sim.Dt())
	for n := 0; n < steps; n++ {
		sim.Step()
		require.InEpsilon(t, ref, energy(), 0.05)
	}
}

func TestAbsorberDrainsEnergy(t *testing.T) {
	s := testSpec(t)
	sim, err := NewSimulation(s, vacuum(s), 0.5)
	require.NoError(t, err)

	w := NewWaveform(1/1.55, 3)
	profile := []float64{0.5, 1, 1, 0.5}
	sim.AddSource(NewLineSource(s.Nx/2, s.Ny/2-2, profile, w))

	// Run until the pulse has fully launched, then let it hit the walls.
	require.NoError(t, sim.Run(context.Background(), w.Duration()))
	launched := sim.FieldEnergy()
	require.Greater(t, launched, 0.0)

	require.NoError(t, sim.Run(context.Background(), 25))
	require.Less(t, sim.FieldEnergy(), 0.05*launched)
}

func TestRunHonorsCancellation(t *testing.T) {
	s := testSpec(t)
	sim, err := NewSimulation(s, vacuum(s), 0.5)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sim.Run(ctx, 10), context.Canceled)
}

func TestMonitorAccumulatesSignal(t *testing.T) {
	s := testSpec(t)
	sim, err := NewSimulation(s, vacuum(s), 0.5)
	require.NoError(t, err)

	freq := 1 / 1.55
	w := NewWaveform(freq, 3)
	profile := []float64{0.5, 1, 1, 0.5}
	sim.AddSource(NewLineSource(10, s.Ny/2-2, profile, w))

	mon := NewDFTMonitor("out", 25, s.Ny/2-2, []float64{0.5, 1, 1, 0.5}, freq)
	sim.AddMonitor(mon)

	require.NoError(t, sim.Run(context.Background(), w.Duration()+4))
	a := mon.Coefficient(s.Delta)
	require.Greater(t, realAbs(a), 0.0)

	mon.Reset()
	require.Equal(t, complex(0, 0), mon.Coefficient(s.Delta))
}

func realAbs(a complex128) float64 {
	return math.Hypot(real(a), imag(a))
}

func TestSourceSpectrumMatchesEnvelopeTransform(t *testing.T) {
	s := testSpec(t)
	sim, err := NewSimulation(s, vacuum(s), 0.5)
	require.NoError(t, err)

	w := NewWaveform(1/1.55, 3)
	src := NewLineSource(s.Nx/2, s.Ny/2, []float64{1}, w)
	sim.AddSource(src)

	require.NoError(t, sim.Run(context.Background(), w.Duration()))

	// cos(wt)*exp(iwt) averages to 1/2, so the accumulated spectrum
	// approaches half the gaussian envelope integral, with no phase.
	want := 0.5 * math.Sqrt(2*math.Pi) * w.Width
	require.InEpsilon(t, want, real(src.Spectrum()), 0.02)
	require.Less(t, math.Abs(imag(src.Spectrum())), 0.02*want)
}

func TestWaveformEnvelope(t *testing.T) {
	w := NewWaveform(1/1.55, 4)

	require.InDelta(t, 1.0, w.Envelope(w.Delay), 1e-12)
	require.Less(t, w.Envelope(0), 1e-3)
	require.Less(t, w.Envelope(w.Duration()), 1e-3)
}
