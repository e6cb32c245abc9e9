package adjoint

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waveforge/photonics-core/pkg/config"
	"github.com/waveforge/photonics-core/pkg/utils"
)

const testProblemYAML = `
domain:
  width_um: 6
  height_um: 4
  resolution: 10
  absorber_um: 0.6
  run_time_um: 18
geometry:
  input:
    width_um: 0.5
    center_y_um: 2
  outputs:
    - width_um: 0.5
      center_y_um: 1.4
    - width_um: 0.5
      center_y_um: 2.6
  design_region:
    width_um: 1.6
    height_um: 1.6
    center_x_um: 3
    center_y_um: 2
  eps_background: 2.25
  eps_waveguide: 6.25
source:
  wavelength_um: 1.55
  pulse_periods: 5
monitors:
  - name: top
    x_um: 5.0
    center_y_um: 2.6
    width_um: 0.5
    target_power: 0.5
  - name: bottom
    x_um: 5.0
    center_y_um: 1.4
    width_um: 0.5
    target_power: 0.5
mapping:
  filter_radius_um: 0.15
`

func testEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	cfg, err := config.ParseProblemYAMLString(testProblemYAML)
	require.NoError(t, err)
	e, err := NewEvaluator(cfg)
	require.NoError(t, err)
	return e
}

func TestNewEvaluatorRejectsUnknownObjective(t *testing.T) {
	cfg, err := config.ParseProblemYAMLString(testProblemYAML)
	require.NoError(t, err)
	cfg.Objective = "bogus"
	_, err = NewEvaluator(cfg)
	require.Error(t, err)
}

func TestNewEvaluatorRejectsMissingMonitors(t *testing.T) {
	cfg, err := config.ParseProblemYAMLString(testProblemYAML)
	require.NoError(t, err)
	cfg.Monitors = nil
	_, err = NewEvaluator(cfg)
	require.Error(t, err)
}

func TestDesignSizeMatchesRegion(t *testing.T) {
	e := testEvaluator(t)
	require.Equal(t, e.Layout().Design.Count(), e.DesignSize())
	require.Equal(t, 16*16, e.DesignSize())
}

func TestInputPowerIsPositiveAndCached(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()

	p1, err := e.InputPower(ctx)
	require.NoError(t, err)
	require.Greater(t, p1, 0.0)

	p2, err := e.InputPower(ctx)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestObjectiveReturnsFiniteGradient(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()

	rho := make([]float64, e.DesignSize())
	for i := range rho {
		rho[i] = 0.5
	}

	res, err := e.Objective(ctx, 8, rho)
	require.NoError(t, err)
	require.Len(t, res.Grad, e.DesignSize())
	require.Len(t, res.Powers, 2)
	require.True(t, utils.AllFinite(res.Grad))
	require.True(t, utils.AllFinite([]float64{res.Value, res.Binarization}))

	// A uniform 0.5 design projected at beta=8 is far from binary.
	require.Less(t, res.Binarization, 0.5)
}

func TestGradientMatchesFiniteDifference(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()
	const beta = 4.0
	const h = 1e-3

	rho := make([]float64, e.DesignSize())
	for i := range rho {
		rho[i] = 0.5
	}

	res, err := e.Objective(ctx, beta, rho)
	require.NoError(t, err)

	indices := []int{0, e.DesignSize() / 2, e.DesignSize() - 1}
	fd := make([]float64, len(indices))
	adj := make([]float64, len(indices))
	fdMax := 0.0
	for n, idx := range indices {
		rho[idx] = 0.5 + h
		plus, err := e.Probe(ctx, beta, rho)
		require.NoError(t, err)

		rho[idx] = 0.5 - h
		minus, err := e.Probe(ctx, beta, rho)
		require.NoError(t, err)
		rho[idx] = 0.5

		fd[n] = (plus - minus) / (2 * h)
		adj[n] = res.Grad[idx]
		fdMax = math.Max(fdMax, math.Abs(fd[n]))
	}
	require.Greater(t, fdMax, 0.0)

	// Component-wise agreement, with an absolute floor for small entries.
	for n, idx := range indices {
		tol := 0.2 * math.Max(math.Abs(fd[n]), 0.25*fdMax)
		require.InDeltaf(t, fd[n], adj[n], tol, "gradient component %d", idx)
	}

	// The least-squares slope of the adjoint gradient against central
	// differences must be near one. A constant complex phase error in the
	// field products shows up here before anywhere else.
	num, den := 0.0, 0.0
	for n := range fd {
		num += adj[n] * fd[n]
		den += fd[n] * fd[n]
	}
	require.InDelta(t, 1.0, num/den, 0.15)
}

func TestProbeMatchesObjectiveValue(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()

	rho := make([]float64, e.DesignSize())
	for i := range rho {
		rho[i] = 0.4
	}

	res, err := e.Objective(ctx, 8, rho)
	require.NoError(t, err)

	probed, err := e.Probe(ctx, 8, rho)
	require.NoError(t, err)
	require.InDelta(t, res.Value, probed, 1e-12)
}

func TestObjectiveRejectsWrongDesignLength(t *testing.T) {
	e := testEvaluator(t)
	_, err := e.Objective(context.Background(), 8, []float64{0.5})
	require.Error(t, err)
}
