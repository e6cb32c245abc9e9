package metrics

import (
	"testing"

	"github.com/waveforge/photonics-core/pkg/models"
)

func samplePoints() []models.IterationPoint {
	return []models.IterationPoint{
		{Iteration: 0, Round: 0, Beta: 8, Objective: 0.5, ArmPowers: []float64{0.2, 0.2}, GradNorm: 1.0},
		{Iteration: 1, Round: 0, Beta: 8, Objective: 0.2, ArmPowers: []float64{0.3, 0.3}, GradNorm: 0.5},
		{Iteration: 2, Round: 1, Beta: 16, Objective: 0.3, ArmPowers: []float64{0.4, 0.4}, GradNorm: 0.4},
		{Iteration: 3, Round: 1, Beta: 16, Objective: 0.1, ArmPowers: []float64{0.45, 0.45}, GradNorm: 0.2},
	}
}

func populatedCollector() *Collector {
	c := NewCollector()
	for _, p := range samplePoints() {
		c.RecordIteration(p)
	}
	return c
}

func TestRecordAndPoints(t *testing.T) {
	c := populatedCollector()

	if c.Len() != 4 {
		t.Fatalf("expected 4 points, got %d", c.Len())
	}

	points := c.Points()
	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}
	if points[0].ElapsedMs < 0 {
		t.Fatalf("elapsed time should be stamped")
	}

	// Returned slices are copies.
	points[1].ArmPowers[0] = 99
	if c.Points()[1].ArmPowers[0] == 99 {
		t.Fatalf("Points must not share backing arrays with the collector")
	}
}

func TestPointsSince(t *testing.T) {
	c := populatedCollector()

	tail := c.PointsSince(2)
	if len(tail) != 2 {
		t.Fatalf("expected 2 points, got %d", len(tail))
	}
	if tail[0].Iteration != 2 {
		t.Fatalf("expected iteration 2 first, got %d", tail[0].Iteration)
	}

	if got := c.PointsSince(100); len(got) != 0 {
		t.Fatalf("expected no points, got %d", len(got))
	}
}

func TestRunMetrics(t *testing.T) {
	c := populatedCollector()
	c.Stop()

	m := c.RunMetrics()
	if m.BestObjective != 0.1 {
		t.Fatalf("best objective = %g, want 0.1", m.BestObjective)
	}
	if m.BestIteration != 3 {
		t.Fatalf("best iteration = %d, want 3", m.BestIteration)
	}
	if m.Iterations != 4 {
		t.Fatalf("iterations = %d, want 4", m.Iterations)
	}
	if m.Rounds != 2 {
		t.Fatalf("rounds = %d, want 2", m.Rounds)
	}
	if m.FinalBeta != 16 {
		t.Fatalf("final beta = %g, want 16", m.FinalBeta)
	}
	if m.TotalTransmission != 0.9 {
		t.Fatalf("total transmission = %g, want 0.9", m.TotalTransmission)
	}
	if m.DurationMs < 0 {
		t.Fatalf("duration must be non-negative")
	}
}

func TestRunMetricsArmPowersTrackLastIterate(t *testing.T) {
	c := NewCollector()
	c.RecordIteration(models.IterationPoint{Iteration: 0, Objective: 0.1, ArmPowers: []float64{0.48, 0.48}})
	c.RecordIteration(models.IterationPoint{Iteration: 1, Objective: 0.4, ArmPowers: []float64{0.2, 0.2}})

	m := c.RunMetrics()
	if m.BestIteration != 0 {
		t.Fatalf("best iteration = %d, want 0", m.BestIteration)
	}
	// ArmPowers and TotalTransmission reflect the final iterate even when
	// an earlier one scored better.
	if m.TotalTransmission != 0.4 {
		t.Fatalf("total transmission = %g, want 0.4", m.TotalTransmission)
	}
	if len(m.ArmPowers) != 2 || m.ArmPowers[0] != 0.2 {
		t.Fatalf("arm powers = %v, want the last iterate's", m.ArmPowers)
	}
}

func TestRunMetricsEmpty(t *testing.T) {
	m := NewCollector().RunMetrics()
	if m.Iterations != 0 || m.BestIteration != -1 {
		t.Fatalf("empty collector should produce empty metrics, got %+v", m)
	}
}

func TestSeries(t *testing.T) {
	c := populatedCollector()

	obj, err := c.Series(SeriesObjective)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obj) != 4 || obj[1] != 0.2 {
		t.Fatalf("unexpected objective series: %v", obj)
	}

	arm, err := c.Series("arm_power_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arm[3] != 0.45 {
		t.Fatalf("unexpected arm power series: %v", arm)
	}

	if _, err := c.Series("bogus"); err == nil {
		t.Fatalf("expected error for unknown series")
	}
	if _, err := c.Series("arm_power_9"); err == nil {
		t.Fatalf("expected error for out-of-range arm")
	}
}

func TestSeriesNames(t *testing.T) {
	names := populatedCollector().SeriesNames()

	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	for _, n := range []string{"objective", "grad_norm", "beta", "arm_power_0", "arm_power_1"} {
		if !want[n] {
			t.Fatalf("missing series %q in %v", n, names)
		}
	}
}

func TestAggregate(t *testing.T) {
	c := populatedCollector()

	agg, err := c.Aggregate(SeriesObjective)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.Count != 4 || agg.Min != 0.1 || agg.Max != 0.5 || agg.Last != 0.1 {
		t.Fatalf("unexpected aggregation: %+v", agg)
	}
	if agg.Mean < 0.27 || agg.Mean > 0.28 {
		t.Fatalf("mean = %g, want 0.275", agg.Mean)
	}
}
