package designd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/waveforge/photonics-core/pkg/logger"
	"github.com/waveforge/photonics-core/pkg/models"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(store *RunStore, executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs endpoint
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id} and related endpoints
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	// Parse path: /v1/runs/{id}, /v1/runs/{id}:start, /v1/runs/{id}:stop,
	// or /v1/runs/{id}/metrics...
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	type route struct {
		suffix string
		method string
		handle func(http.ResponseWriter, *http.Request, string)
	}
	routes := []route{
		{suffix: ":start", method: http.MethodPost, handle: s.handleStartRun},
		{suffix: ":stop", method: http.MethodPost, handle: s.handleStopRun},
		{suffix: "/export", method: http.MethodGet, handle: s.handleExportRun},
		{suffix: "/design", method: http.MethodGet, handle: s.handleGetDesign},
		{suffix: "/metrics/stream", method: http.MethodGet, handle: s.handleMetricsStream},
		{suffix: "/metrics/timeseries", method: http.MethodGet, handle: s.handleTimeSeries},
		{suffix: "/metrics", method: http.MethodGet, handle: s.handleGetRunMetrics},
	}
	for _, rt := range routes {
		if strings.HasSuffix(path, rt.suffix) {
			if r.Method != rt.method {
				s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			rt.handle(w, r, strings.TrimSuffix(path, rt.suffix))
			return
		}
	}

	// Otherwise it's GET /v1/runs/{id}
	if r.Method == http.MethodGet {
		s.handleGetRun(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID string           `json:"run_id,omitempty"`
		Input *models.RunInput `json:"input"`
		// Start launches the run immediately after creation.
		Start bool `json:"start,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Input == nil || req.Input.ProblemYAML == "" {
		s.writeError(w, http.StatusBadRequest, "input.problem_yaml is required")
		return
	}

	rec, err := s.store.Create(req.RunID, req.Input)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "already exists"):
			s.writeError(w, http.StatusConflict, err.Error())
		case strings.Contains(err.Error(), "cannot contain"):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if req.Start {
		if rec, err = s.Executor.Start(rec.Run.ID); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	logger.Info("run created", "run_id", rec.Run.ID, "started", req.Start)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": rec.Run,
	})
}

// handleListRuns handles GET /v1/runs with pagination and filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	statusFilter := models.RunStatusUnspecified
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		statusFilter = models.ParseRunStatus(strings.ToLower(statusStr))
		if statusFilter == models.RunStatusUnspecified {
			s.writeError(w, http.StatusBadRequest, "unknown status: "+statusStr)
			return
		}
	}

	records := s.store.ListFiltered(limit, offset, statusFilter)
	runs := make([]*models.Run, 0, len(records))
	for _, rec := range records {
		runs = append(runs, rec.Run)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": rec.Run,
	})
}

// handleStartRun handles POST /v1/runs/{id}:start
func (s *HTTPServer) handleStartRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Start(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}

	logger.Info("run started", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": updated.Run,
	})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}

	logger.Info("run cancelled", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": updated.Run,
	})
}

func (s *HTTPServer) writeExecutorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRunNotFound) || strings.Contains(err.Error(), "not found"):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRunTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleGetRunMetrics handles GET /v1/runs/{id}/metrics
func (s *HTTPServer) handleGetRunMetrics(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	if rec.Metrics == nil {
		s.writeError(w, http.StatusPreconditionFailed, "metrics not available")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"metrics": rec.Metrics,
	})
}

// handleGetDesign handles GET /v1/runs/{id}/design
func (s *HTTPServer) handleGetDesign(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.BestDesign == nil {
		s.writeError(w, http.StatusPreconditionFailed, "design not available")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"design": rec.BestDesign,
	})
}

// handleTimeSeries handles GET /v1/runs/{id}/metrics/timeseries
func (s *HTTPServer) handleTimeSeries(w http.ResponseWriter, r *http.Request, runID string) {
	if _, ok := s.store.Get(runID); !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	collector, ok := s.store.GetCollector(runID)
	if !ok {
		s.writeError(w, http.StatusPreconditionFailed, "time-series metrics not available")
		return
	}

	from := 0
	if fromStr := r.URL.Query().Get("from_iteration"); fromStr != "" {
		parsed, err := strconv.Atoi(fromStr)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid from_iteration")
			return
		}
		from = parsed
	}

	// An explicit series selection returns just the values.
	if name := r.URL.Query().Get("series"); name != "" {
		values, err := collector.Series(name)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"run_id": runID,
			"series": name,
			"values": values,
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"points": collector.PointsSince(from),
	})
}

// handleExportRun handles GET /v1/runs/{id}/export
func (s *HTTPServer) handleExportRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	export := map[string]any{
		"run": rec.Run,
	}
	if rec.Input != nil {
		export["input"] = rec.Input
	}
	if rec.Metrics != nil {
		export["metrics"] = rec.Metrics
	}
	if rec.BestDesign != nil {
		export["design"] = rec.BestDesign
	}
	if collector, ok := s.store.GetCollector(runID); ok {
		export["iterations"] = collector.Points()
	}

	s.writeJSON(w, http.StatusOK, export)
}

// handleMetricsStream handles GET /v1/runs/{id}/metrics/stream (SSE)
func (s *HTTPServer) handleMetricsStream(w http.ResponseWriter, r *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	previousStatus := rec.Run.Status
	s.sendSSEEvent(w, "status_change", map[string]any{
		"status": rec.Run.Status,
	})

	// Parse interval from query parameter (default: 1s)
	interval := 1 * time.Second
	if intervalStr := r.URL.Query().Get("interval_ms"); intervalStr != "" {
		if intervalMs, err := strconv.ParseInt(intervalStr, 10, 64); err == nil && intervalMs > 0 {
			interval = time.Duration(intervalMs) * time.Millisecond
		}
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	lastSentIteration := -1
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return
		case <-ticker.C:
			rec, ok := s.store.Get(runID)
			if !ok {
				s.sendSSEEvent(w, "error", map[string]any{"error": "run not found"})
				return
			}

			if rec.Run.Status != previousStatus {
				s.sendSSEEvent(w, "status_change", map[string]any{
					"status": rec.Run.Status,
				})
				previousStatus = rec.Run.Status
			}

			// Stream new iteration points since the last tick.
			if collector, ok := s.store.GetCollector(runID); ok {
				for _, p := range collector.PointsSince(lastSentIteration + 1) {
					s.sendSSEEvent(w, "iteration", p)
					if p.Iteration > lastSentIteration {
						lastSentIteration = p.Iteration
					}
				}
			}

			if rec.Run.Status.IsTerminal() {
				if rec.Metrics != nil {
					s.sendSSEEvent(w, "metrics_snapshot", map[string]any{
						"metrics": rec.Metrics,
					})
				}
				s.sendSSEEvent(w, "complete", map[string]any{
					"status": rec.Run.Status,
				})
				return
			}

			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// sendSSEEvent sends a Server-Sent Event
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, eventType string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal SSE event data", "error", err)
		return
	}

	// Errors are logged but not returned, SSE streams are best-effort.
	if _, err := w.Write([]byte("event: " + eventType + "\n")); err != nil {
		logger.Error("failed to write SSE event header", "error", err)
		return
	}
	if _, err := w.Write([]byte("data: " + string(jsonData) + "\n\n")); err != nil {
		logger.Error("failed to write SSE event data", "error", err)
	}
}

// Helper functions

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
