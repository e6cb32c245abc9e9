package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID returns a unique identifier for a design run.
func GenerateRunID() string {
	return fmt.Sprintf("run-%s", uuid.NewString())
}

// ValidateRunID checks that a caller-supplied run ID is usable as a map key
// and as a path segment of the HTTP API.
func ValidateRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("run_id is required")
	}
	if strings.ContainsAny(runID, "/:\\ \t\n") {
		return fmt.Errorf("run_id cannot contain path separators or whitespace: %q", runID)
	}
	return nil
}

// Timestamp returns the current UTC time in unix milliseconds.
func Timestamp() int64 {
	return time.Now().UTC().UnixMilli()
}
