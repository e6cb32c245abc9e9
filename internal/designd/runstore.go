// Package designd is the design daemon: an in-memory run store, an
// asynchronous run executor, and the HTTP API that drives them.
package designd

import (
	"fmt"
	"sync"
	"time"

	"github.com/waveforge/photonics-core/internal/metrics"
	"github.com/waveforge/photonics-core/pkg/models"
	"github.com/waveforge/photonics-core/pkg/utils"
)

// RunRecord bundles a run's state, its input, and its results.
type RunRecord struct {
	Run       *models.Run
	Input     *models.RunInput
	Metrics   *models.RunMetrics
	Collector *metrics.Collector
	// BestDesign is the final design vector of a completed run.
	BestDesign []float64
}

type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
	// order preserves creation order for stable listings.
	order []string
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func (s *RunStore) Create(runID string, input *models.RunInput) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if err := utils.ValidateRunID(runID); err != nil {
		return nil, err
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("run already exists: %s", runID)
	}

	rec := &RunRecord{
		Run: &models.Run{
			ID:              runID,
			Status:          models.RunStatusPending,
			CreatedAtUnixMs: nowUnixMs(),
		},
		Input: input,
	}
	s.runs[runID] = rec
	s.order = append(s.order, runID)
	return rec, nil
}

func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	return rec, ok
}

// List returns up to limit runs in creation order, newest first.
func (s *RunStore) List(limit int) []*RunRecord {
	return s.ListFiltered(limit, 0, models.RunStatusUnspecified)
}

// ListFiltered returns runs in creation order, newest first, optionally
// filtered by status and paginated.
func (s *RunStore) ListFiltered(limit, offset int, status models.RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	out := make([]*RunRecord, 0, limit)
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.runs[s.order[i]]
		if status != models.RunStatusUnspecified && rec.Run.Status != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	rec.Run.Status = status
	if errMsg != "" {
		rec.Run.Error = errMsg
	}

	switch status {
	case models.RunStatusRunning:
		if rec.Run.StartedAtUnixMs == 0 {
			rec.Run.StartedAtUnixMs = nowUnixMs()
		}
	case models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
		rec.Run.EndedAtUnixMs = nowUnixMs()
	}

	return rec, nil
}

// SetProgress updates the live continuation counters on a run.
func (s *RunStore) SetProgress(runID string, round, iteration int, beta, objective float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Run.Round = round
	rec.Run.Iteration = iteration
	rec.Run.Beta = beta
	rec.Run.Objective = objective
	return nil
}

func (s *RunStore) SetCollector(runID string, c *metrics.Collector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Collector = c
	return nil
}

func (s *RunStore) GetCollector(runID string) (*metrics.Collector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok || rec.Collector == nil {
		return nil, false
	}
	return rec.Collector, true
}

func (s *RunStore) SetMetrics(runID string, m *models.RunMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Metrics = m
	return nil
}

// SetBestDesign stores the final design vector of a finished run.
func (s *RunStore) SetBestDesign(runID string, design []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.BestDesign = append([]float64(nil), design...)
	return nil
}
