// Package models defines the JSON-facing types shared by the design daemon,
// the run executor, and the metrics collector.
package models

// RunStatus is the lifecycle state of a design run.
type RunStatus string

const (
	RunStatusUnspecified RunStatus = ""
	RunStatusPending     RunStatus = "pending"
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusCancelled   RunStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// ParseRunStatus maps a string to a RunStatus, returning RunStatusUnspecified
// for unknown values.
func ParseRunStatus(s string) RunStatus {
	switch RunStatus(s) {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted,
		RunStatusFailed, RunStatusCancelled:
		return RunStatus(s)
	}
	return RunStatusUnspecified
}

// Run is the externally visible state of a design run.
type Run struct {
	ID              string    `json:"id"`
	Status          RunStatus `json:"status"`
	Error           string    `json:"error,omitempty"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	StartedAtUnixMs int64     `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64     `json:"ended_at_unix_ms,omitempty"`

	// Progress of the continuation loop while the run is active.
	Round     int     `json:"round,omitempty"`
	Iteration int     `json:"iteration,omitempty"`
	Beta      float64 `json:"beta,omitempty"`
	Objective float64 `json:"objective,omitempty"`
}

// RunInput describes what a run should optimize.
type RunInput struct {
	// ProblemYAML is the full design-problem description (see pkg/config).
	ProblemYAML string `json:"problem_yaml"`
	// Seed for the initial-density jitter; 0 means time-seeded.
	Seed int64 `json:"seed,omitempty"`
	// ArtifactDir overrides the configured output directory for this run.
	ArtifactDir string `json:"artifact_dir,omitempty"`
	// CallbackURL receives a POST when the run reaches a terminal state.
	// A {run_id} placeholder is replaced with the run ID.
	CallbackURL string `json:"callback_url,omitempty"`
	// CallbackSecret is echoed back in the callback request header.
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// IterationPoint is one inner-loop optimization step of a run.
type IterationPoint struct {
	Iteration int     `json:"iteration"`
	Round     int     `json:"round"`
	Beta      float64 `json:"beta"`
	Objective float64 `json:"objective"`
	// ArmPowers are normalized transmissions into each output arm.
	ArmPowers []float64 `json:"arm_powers,omitempty"`
	// GradNorm is the norm of the design gradient at this step.
	GradNorm float64 `json:"grad_norm,omitempty"`
	// ElapsedMs is wall-clock time since the run started.
	ElapsedMs int64 `json:"elapsed_ms,omitempty"`
}

// RunMetrics is the final summary of a completed run.
type RunMetrics struct {
	BestObjective float64   `json:"best_objective"`
	BestIteration int       `json:"best_iteration"`
	Iterations    int       `json:"iterations"`
	Rounds        int       `json:"rounds"`
	FinalBeta     float64   `json:"final_beta"`
	ArmPowers     []float64 `json:"arm_powers,omitempty"`
	// TotalTransmission is the sum of all arm powers at the last recorded
	// iterate, matching ArmPowers.
	TotalTransmission float64 `json:"total_transmission"`
	// Binarization in [0,1]: 1 means every projected density is 0 or 1.
	Binarization float64 `json:"binarization"`
	Converged    bool    `json:"converged"`
	// ConvergenceReason explains why the continuation loop stopped.
	ConvergenceReason string `json:"convergence_reason,omitempty"`
	DurationMs        int64  `json:"duration_ms"`
}
