package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"finledger/internal/core"
)

// Store is an in-process alert sink and category source, used when no
// spreadsheet is configured.
type Store struct {
	mu     sync.Mutex
	cats   []string
	alerts []core.Alert
}

func New(cats []string) *Store {
	return &Store{cats: dedupe(cats)}
}

// NewFromFiles seeds categories from seed_categories.txt under base.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []string{"Groceries", "Housing", "Transport", "Utilities"}
	}
	return New(cats)
}

// AppendAlert stores the alert and returns a synthetic row reference.
func (s *Store) AppendAlert(_ context.Context, a core.Alert) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return fmt.Sprintf("mem:%d", len(s.alerts)), nil
}

func (s *Store) ListCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cats...), nil
}

// Alerts returns a copy of everything appended so far.
func (s *Store) Alerts() []core.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Alert(nil), s.alerts...)
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
