package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finledger/internal/core"
)

func TestMemoryStoreAppendAndList(t *testing.T) {
	s := New([]string{"A", "B", "A", " "})
	cats, err := s.ListCategories(context.Background())
	if err != nil || len(cats) != 2 {
		t.Fatalf("unexpected list: cats=%v err=%v", cats, err)
	}

	ref, err := s.AppendAlert(context.Background(), core.Alert{
		ID:          4,
		UserID:      1,
		Message:     "Budget #1 exceeded",
		Type:        core.AlertBudget,
		TriggerDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if got := s.Alerts(); len(got) != 1 || got[0].ID != 4 {
		t.Fatalf("unexpected alerts: %v", got)
	}

	if _, err := s.AppendAlert(context.Background(), core.Alert{UserID: 1}); err == nil {
		t.Fatal("expected validation error for incomplete alert")
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	// No file -> defaults
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background())
	if len(cats) == 0 {
		t.Fatalf("expected defaults when file missing")
	}

	content := "# header\nRent\nFood\nRent\n\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(context.Background())
	if len(cats) != 2 || cats[0] != "Rent" || cats[1] != "Food" {
		t.Fatalf("unexpected cats: %v", cats)
	}
}
