// Package metrics collects the per-iteration time series of an optimization
// run and aggregates it into run-level summary metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/waveforge/photonics-core/pkg/models"
)

// Collector collects iteration points during an optimization run
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time

	points []models.IterationPoint
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
	}
}

// Start marks the start of metric collection
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Stop marks the end of metric collection
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// RecordIteration appends one iteration point. A zero ElapsedMs is stamped
// from the collection start time.
func (c *Collector) RecordIteration(p models.IterationPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.ElapsedMs == 0 {
		p.ElapsedMs = time.Since(c.startTime).Milliseconds()
	}
	p.ArmPowers = append([]float64(nil), p.ArmPowers...)
	c.points = append(c.points, p)
}

// Len returns the number of recorded iterations.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}

// Points returns a copy of the recorded iteration history.
func (c *Collector) Points() []models.IterationPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.IterationPoint, len(c.points))
	copy(out, c.points)
	for i := range out {
		out[i].ArmPowers = append([]float64(nil), c.points[i].ArmPowers...)
	}
	return out
}

// PointsSince returns the iteration points with Iteration >= from.
func (c *Collector) PointsSince(from int) []models.IterationPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.IterationPoint
	for _, p := range c.points {
		if p.Iteration >= from {
			q := p
			q.ArmPowers = append([]float64(nil), p.ArmPowers...)
			out = append(out, q)
		}
	}
	return out
}

// Duration returns the collection duration, up to now while still running.
func (c *Collector) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.durationUnsafe()
}

// RunMetrics aggregates the recorded history into run-level metrics.
// Convergence fields are filled in by the caller, which owns that state.
func (c *Collector) RunMetrics() *models.RunMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := &models.RunMetrics{
		BestIteration: -1,
		DurationMs:    c.durationUnsafe().Milliseconds(),
	}
	if len(c.points) == 0 {
		return m
	}

	best := 0
	rounds := 0
	for i, p := range c.points {
		if p.Objective < c.points[best].Objective {
			best = i
		}
		if p.Round+1 > rounds {
			rounds = p.Round + 1
		}
	}
	last := c.points[len(c.points)-1]

	m.BestObjective = c.points[best].Objective
	m.BestIteration = c.points[best].Iteration
	m.Iterations = len(c.points)
	m.Rounds = rounds
	m.FinalBeta = last.Beta
	m.ArmPowers = append([]float64(nil), last.ArmPowers...)
	for _, p := range last.ArmPowers {
		m.TotalTransmission += p
	}
	return m
}

func (c *Collector) durationUnsafe() time.Duration {
	if c.endTime.IsZero() {
		return time.Since(c.startTime)
	}
	return c.endTime.Sub(c.startTime)
}
