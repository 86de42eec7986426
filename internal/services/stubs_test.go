package services

import (
	"context"
	"fmt"
	"sync"

	"finledger/internal/core"
)

// stubGoalStore keeps goals in memory and can inject version conflicts.
type stubGoalStore struct {
	mu        sync.Mutex
	goals     map[int64]core.Goal
	nextID    int64
	conflicts int // UpdateGoal fails with ErrConflict this many times
	updates   int
}

func newStubGoalStore(goals ...core.Goal) *stubGoalStore {
	s := &stubGoalStore{goals: map[int64]core.Goal{}}
	for _, g := range goals {
		if g.Version == 0 {
			g.Version = 1
		}
		s.goals[g.ID] = g
		if g.ID > s.nextID {
			s.nextID = g.ID
		}
	}
	return s
}

func (s *stubGoalStore) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	g.ID, g.Version = s.nextID, 1
	s.goals[g.ID] = g
	return g, nil
}

func (s *stubGoalStore) GetGoal(_ context.Context, userID, id int64) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, fmt.Errorf("goal: %w", core.ErrNotFound)
	}
	return g, nil
}

func (s *stubGoalStore) ListGoals(_ context.Context, userID int64) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for id := int64(1); id <= s.nextID; id++ {
		if g, ok := s.goals[id]; ok && g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubGoalStore) UpdateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	stored, ok := s.goals[g.ID]
	if !ok {
		return core.Goal{}, fmt.Errorf("goal: %w", core.ErrNotFound)
	}
	if s.conflicts > 0 {
		s.conflicts--
		// Someone else wrote first.
		stored.Version++
		s.goals[g.ID] = stored
		return core.Goal{}, fmt.Errorf("goal: %w", core.ErrConflict)
	}
	if stored.Version != g.Version {
		return core.Goal{}, fmt.Errorf("goal: %w", core.ErrConflict)
	}
	g.Version++
	s.goals[g.ID] = g
	return g, nil
}

func (s *stubGoalStore) DeleteGoal(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.goals[id]; !ok || g.UserID != userID {
		return fmt.Errorf("goal: %w", core.ErrNotFound)
	}
	delete(s.goals, id)
	return nil
}

type goalChange struct {
	previous core.GoalStatus
	goal     core.Goal
}

type stubWatcher struct {
	changes []goalChange
	err     error
}

func (w *stubWatcher) GoalChanged(_ context.Context, previous core.GoalStatus, g core.Goal) error {
	w.changes = append(w.changes, goalChange{previous: previous, goal: g})
	return w.err
}

type published struct {
	alertID, userID int64
	alertType       string
}

type stubPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *stubPublisher) PublishAlert(_ context.Context, alertID, userID int64, alertType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{alertID: alertID, userID: userID, alertType: alertType})
	return nil
}
