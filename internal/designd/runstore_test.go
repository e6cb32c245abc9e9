package designd

import (
	"strings"
	"testing"

	"github.com/waveforge/photonics-core/internal/metrics"
	"github.com/waveforge/photonics-core/pkg/models"
)

func TestCreateGeneratesID(t *testing.T) {
	store := NewRunStore()

	rec, err := store.Create("", &models.RunInput{ProblemYAML: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(rec.Run.ID, "run-") {
		t.Fatalf("expected generated run ID, got %q", rec.Run.ID)
	}
	if rec.Run.Status != models.RunStatusPending {
		t.Fatalf("new runs must be pending, got %s", rec.Run.Status)
	}
	if rec.Run.CreatedAtUnixMs == 0 {
		t.Fatalf("creation time must be stamped")
	}
}

func TestCreateRejectsDuplicateAndBadIDs(t *testing.T) {
	store := NewRunStore()

	if _, err := store.Create("run-a", &models.RunInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Create("run-a", &models.RunInput{}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := store.Create("bad/id", &models.RunInput{}); err == nil {
		t.Fatalf("expected invalid ID error")
	}
}

func TestSetStatusStampsTimes(t *testing.T) {
	store := NewRunStore()
	if _, err := store.Create("run-a", &models.RunInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := store.SetStatus("run-a", models.RunStatusRunning, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Run.StartedAtUnixMs == 0 {
		t.Fatalf("start time must be stamped")
	}

	rec, err = store.SetStatus("run-a", models.RunStatusFailed, "boom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Run.EndedAtUnixMs == 0 {
		t.Fatalf("end time must be stamped")
	}
	if rec.Run.Error != "boom" {
		t.Fatalf("error message must be recorded")
	}

	if _, err := store.SetStatus("missing", models.RunStatusRunning, ""); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

func TestListFiltered(t *testing.T) {
	store := NewRunStore()
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if _, err := store.Create(id, &models.RunInput{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := store.SetStatus("run-2", models.RunStatusRunning, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Newest first.
	all := store.List(10)
	if len(all) != 3 || all[0].Run.ID != "run-3" {
		t.Fatalf("unexpected listing: %+v", all)
	}

	running := store.ListFiltered(10, 0, models.RunStatusRunning)
	if len(running) != 1 || running[0].Run.ID != "run-2" {
		t.Fatalf("unexpected filtered listing")
	}

	page := store.ListFiltered(1, 1, models.RunStatusUnspecified)
	if len(page) != 1 || page[0].Run.ID != "run-2" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestProgressMetricsAndDesign(t *testing.T) {
	store := NewRunStore()
	if _, err := store.Create("run-a", &models.RunInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.SetProgress("run-a", 1, 7, 16, 0.25); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, _ := store.Get("run-a")
	if rec.Run.Round != 1 || rec.Run.Iteration != 7 || rec.Run.Beta != 16 || rec.Run.Objective != 0.25 {
		t.Fatalf("progress not recorded: %+v", rec.Run)
	}

	if err := store.SetCollector("run-a", metrics.NewCollector()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.GetCollector("run-a"); !ok {
		t.Fatalf("collector must be retrievable")
	}

	if err := store.SetMetrics("run-a", &models.RunMetrics{BestObjective: 0.1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.SetBestDesign("run-a", []float64{0.1, 0.9}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, _ = store.Get("run-a")
	if rec.Metrics == nil || len(rec.BestDesign) != 2 {
		t.Fatalf("results not stored")
	}

	for _, err := range []error{
		store.SetProgress("missing", 0, 0, 0, 0),
		store.SetCollector("missing", nil),
		store.SetMetrics("missing", nil),
		store.SetBestDesign("missing", nil),
	} {
		if err == nil {
			t.Fatalf("expected error for unknown run")
		}
	}
}
