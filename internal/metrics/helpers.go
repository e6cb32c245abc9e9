package metrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Series names derived from the iteration history
const (
	SeriesObjective = "objective"
	SeriesGradNorm  = "grad_norm"
	SeriesBeta      = "beta"
	// SeriesArmPowerPrefix selects one output arm, e.g. "arm_power_0".
	SeriesArmPowerPrefix = "arm_power_"
)

// Aggregation holds summary statistics of one series
type Aggregation struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Last  float64 `json:"last"`
}

// SeriesNames lists the series available from the recorded history.
func (c *Collector) SeriesNames() []string {
	names := []string{SeriesObjective, SeriesGradNorm, SeriesBeta}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.points) > 0 {
		for k := range c.points[len(c.points)-1].ArmPowers {
			names = append(names, fmt.Sprintf("%s%d", SeriesArmPowerPrefix, k))
		}
	}
	return names
}

// Series extracts one named series from the iteration history.
func (c *Collector) Series(name string) ([]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]float64, 0, len(c.points))
	switch {
	case name == SeriesObjective:
		for _, p := range c.points {
			out = append(out, p.Objective)
		}
	case name == SeriesGradNorm:
		for _, p := range c.points {
			out = append(out, p.GradNorm)
		}
	case name == SeriesBeta:
		for _, p := range c.points {
			out = append(out, p.Beta)
		}
	case strings.HasPrefix(name, SeriesArmPowerPrefix):
		arm, err := strconv.Atoi(strings.TrimPrefix(name, SeriesArmPowerPrefix))
		if err != nil || arm < 0 {
			return nil, fmt.Errorf("bad arm power series %q", name)
		}
		for _, p := range c.points {
			if arm >= len(p.ArmPowers) {
				return nil, fmt.Errorf("series %q: run has %d arms", name, len(p.ArmPowers))
			}
			out = append(out, p.ArmPowers[arm])
		}
	default:
		return nil, fmt.Errorf("unknown series %q", name)
	}
	return out, nil
}

// Aggregate computes summary statistics for one named series.
func (c *Collector) Aggregate(name string) (*Aggregation, error) {
	values, err := c.Series(name)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return &Aggregation{}, nil
	}

	agg := &Aggregation{
		Count: len(values),
		Min:   math.MaxFloat64,
		Max:   -math.MaxFloat64,
		Last:  values[len(values)-1],
	}
	sum := 0.0
	for _, v := range values {
		agg.Min = math.Min(agg.Min, v)
		agg.Max = math.Max(agg.Max, v)
		sum += v
	}
	agg.Mean = sum / float64(len(values))
	return agg, nil
}
