package continuation

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waveforge/photonics-core/internal/adjoint"
	"github.com/waveforge/photonics-core/internal/topology"
	"github.com/waveforge/photonics-core/pkg/config"
)

// stubEvaluator scores designs against a fixed target density with a
// quadratic objective, cheap enough to drive full schedules in tests.
type stubEvaluator struct {
	mapping *topology.Mapping
	target  float64
	flat    bool
}

func newStubEvaluator(t *testing.T) *stubEvaluator {
	t.Helper()
	m, err := topology.NewMapping(4, 4, 1.5, 0.5)
	require.NoError(t, err)
	return &stubEvaluator{mapping: m, target: 0.8}
}

func (s *stubEvaluator) DesignSize() int            { return s.mapping.W * s.mapping.H }
func (s *stubEvaluator) Mapping() *topology.Mapping { return s.mapping }

func (s *stubEvaluator) Objective(_ context.Context, beta float64, rho []float64) (*adjoint.Result, error) {
	res := &adjoint.Result{
		Grad:         make([]float64, len(rho)),
		Powers:       []float64{0.5, 0.5},
		Binarization: topology.Binarization(s.mapping.Forward(rho, beta)),
	}
	if s.flat {
		res.Value = 1
		return res, nil
	}
	for i, v := range rho {
		d := v - s.target
		res.Value += d * d
		res.Grad[i] = 2 * d
	}
	return res, nil
}

func (s *stubEvaluator) Probe(ctx context.Context, beta float64, rho []float64) (float64, error) {
	res, err := s.Objective(ctx, beta, rho)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

func testProblem() *config.Problem {
	return &config.Problem{
		Continuation: config.Continuation{Betas: []float64{4, 8}},
		Optimizer:    config.Optimizer{MaxIterations: 30, StepSize: 0.2},
		Init:         config.InitialDesign{Value: 0.5},
	}
}

func TestDriverRunsFullSchedule(t *testing.T) {
	stub := newStubEvaluator(t)
	var steps []Progress
	d := NewDriver(testProblem(), stub).WithProgress(func(p Progress) {
		steps = append(steps, p)
	})

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rounds, 2)
	require.Equal(t, 8.0, res.FinalBeta)
	require.Less(t, res.BestObjective, 1e-4)
	require.Len(t, res.BestDesign, stub.DesignSize())
	require.Equal(t, []float64{0.5, 0.5}, res.ArmPowers)

	// Global iteration numbers never repeat or go backward.
	require.NotEmpty(t, steps)
	for i := 1; i < len(steps); i++ {
		require.Greater(t, steps[i].Iteration, steps[i-1].Iteration)
	}
	// Later rounds continue with larger beta.
	require.Equal(t, 4.0, steps[0].Beta)
	require.Equal(t, 8.0, steps[len(steps)-1].Beta)
}

func TestDriverStopsOnRoundPlateau(t *testing.T) {
	stub := newStubEvaluator(t)
	stub.flat = true

	cfg := testProblem()
	cfg.Continuation.Betas = []float64{2, 4, 8}
	cfg.Continuation.PlateauTolerance = 0.01

	res, err := NewDriver(cfg, stub).Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Converged)
	require.Contains(t, res.ConvergenceReason, "plateau")
	require.Len(t, res.Rounds, 2)
}

func TestDriverHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDriver(testProblem(), newStubEvaluator(t)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDriverWritesSnapshots(t *testing.T) {
	cfg := testProblem()
	cfg.Optimizer.MaxIterations = 3
	cfg.Outputs.SavePNG = true
	cfg.Outputs.EveryN = 1

	dir := t.TempDir()
	_, err := NewDriver(cfg, newStubEvaluator(t)).WithArtifactDir(dir).Run(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.Contains(t, entries[0].Name(), "iter-")
}

func TestDriverRejectsEmptySchedule(t *testing.T) {
	cfg := testProblem()
	cfg.Continuation = config.Continuation{}
	_, err := NewDriver(cfg, newStubEvaluator(t)).Run(context.Background())
	require.Error(t, err)
}
