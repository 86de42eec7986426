package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/engine"
	applog "finledger/internal/log"
)

// GoalService runs goal read-derive-write flows against the store.
type GoalService struct {
	store   GoalStore
	watcher GoalWatcher
	retries int
}

// NewGoalService wires a goal service. watcher may be nil.
func NewGoalService(store GoalStore, watcher GoalWatcher, retries int) *GoalService {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &GoalService{
		store:   store,
		watcher: watcher,
		retries: retries,
	}
}

// CreateGoal validates and stores a new goal. The initial status follows the
// amounts unless the caller asks for abandoned (or achieved, when funded).
func (s *GoalService) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	requested := g.Status
	g.Status = core.GoalInProgress
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if err := engine.ValidateGoalPeriod(g.StartDate, g.EndDate, g.TargetAmount, g.CurrentAmount); err != nil {
		return core.Goal{}, err
	}

	p, err := engine.DeriveGoalStatus(g, g.CurrentAmount)
	if err != nil {
		return core.Goal{}, err
	}
	g.Status = p.Status
	if requested != "" {
		if g.Status, err = engine.ResolveExplicitStatus(g, requested); err != nil {
			return core.Goal{}, err
		}
	}

	created, err := s.store.CreateGoal(ctx, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}

	fields := applog.NewFields().WithOperation(applog.OpCreate).WithGoal(created)
	applog.FromContext(ctx).InfoContext(ctx, "Goal created",
		append(fields.ToSlice(), "target", core.FormatAmount(created.TargetAmount))...)

	if created.Status == core.GoalAchieved {
		s.notify(ctx, "", created)
	}
	return created, nil
}

func (s *GoalService) GetGoal(ctx context.Context, userID, id int64) (core.Goal, error) {
	return s.store.GetGoal(ctx, userID, id)
}

// ListGoals returns the user's goals, optionally only those in status.
func (s *GoalService) ListGoals(ctx context.Context, userID int64, status *core.GoalStatus) ([]core.Goal, error) {
	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return goals, nil
	}
	filtered := goals[:0]
	for _, g := range goals {
		if g.Status == *status {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

// UpdateProgress sets the goal's current amount and re-derives its status.
func (s *GoalService) UpdateProgress(ctx context.Context, userID, id int64, amount decimal.Decimal) (core.Goal, error) {
	return s.mutate(ctx, userID, id, func(g core.Goal) (core.Goal, error) {
		p, err := engine.DeriveGoalStatus(g, amount)
		if err != nil {
			return core.Goal{}, err
		}
		g.CurrentAmount, g.Status = p.CurrentAmount, p.Status
		return g, nil
	})
}

// PatchGoal merges patch onto the stored goal and validates the candidate
// as a whole. A Status in the patch is an explicit status-set.
func (s *GoalService) PatchGoal(ctx context.Context, userID, id int64, patch core.GoalPatch) (core.Goal, error) {
	return s.mutate(ctx, userID, id, func(g core.Goal) (core.Goal, error) {
		fields := patch
		fields.Status = nil
		candidate := core.ApplyGoalPatch(g, fields)

		if err := candidate.Validate(); err != nil {
			return core.Goal{}, err
		}
		if err := engine.ValidateGoalPeriod(candidate.StartDate, candidate.EndDate, candidate.TargetAmount, candidate.CurrentAmount); err != nil {
			return core.Goal{}, err
		}

		switch {
		case patch.Status != nil:
			status, err := engine.ResolveExplicitStatus(candidate, *patch.Status)
			if err != nil {
				return core.Goal{}, err
			}
			candidate.Status = status
		case patch.AmountsChanged():
			p, err := engine.DeriveGoalStatus(candidate, candidate.CurrentAmount)
			if err != nil {
				return core.Goal{}, err
			}
			candidate.Status = p.Status
		}
		return candidate, nil
	})
}

// Abandon marks the goal abandoned. Amount updates will not move it.
func (s *GoalService) Abandon(ctx context.Context, userID, id int64) (core.Goal, error) {
	return s.PatchGoal(ctx, userID, id, core.GoalPatch{Status: core.Ptr(core.GoalAbandoned)})
}

// Resume reopens an abandoned goal; its status then follows its amounts.
func (s *GoalService) Resume(ctx context.Context, userID, id int64) (core.Goal, error) {
	return s.mutate(ctx, userID, id, func(g core.Goal) (core.Goal, error) {
		if g.Status != core.GoalAbandoned {
			return core.Goal{}, core.Invalid(core.ErrInvalidInput, "status", "only abandoned goals can be resumed")
		}
		status, err := engine.ResolveExplicitStatus(g, core.GoalInProgress)
		if err != nil {
			return core.Goal{}, err
		}
		g.Status = status
		return g, nil
	})
}

func (s *GoalService) DeleteGoal(ctx context.Context, userID, id int64) error {
	if err := s.store.DeleteGoal(ctx, userID, id); err != nil {
		return err
	}
	applog.FromContext(ctx).InfoContext(ctx, "Goal deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldGoalID, id,
		applog.FieldUserID, userID)
	return nil
}

// mutate runs one read-derive-write cycle, retrying the whole cycle when the
// versioned write loses a race.
func (s *GoalService) mutate(ctx context.Context, userID, id int64, change func(core.Goal) (core.Goal, error)) (core.Goal, error) {
	var (
		saved    core.Goal
		previous core.GoalStatus
	)
	err := retryOnConflict(ctx, s.retries, fmt.Sprintf("goal %d", id), func() error {
		current, err := s.store.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		next, err := change(current)
		if err != nil {
			return err
		}
		if saved, err = s.store.UpdateGoal(ctx, next); err != nil {
			return err
		}
		previous = current.Status
		return nil
	})
	if err != nil {
		return core.Goal{}, err
	}

	fields := applog.NewFields().WithOperation(applog.OpUpdate).WithGoal(saved)
	applog.FromContext(ctx).InfoContext(ctx, "Goal updated",
		append(fields.ToSlice(),
			applog.FieldPrevStatus, previous,
			"current", core.FormatAmount(saved.CurrentAmount),
			"version", saved.Version)...)

	if saved.Status != previous {
		s.notify(ctx, previous, saved)
	}
	return saved, nil
}

func (s *GoalService) notify(ctx context.Context, previous core.GoalStatus, g core.Goal) {
	if s.watcher == nil {
		return
	}
	// The goal is committed; a failed alert must not fail the update.
	if err := s.watcher.GoalChanged(ctx, previous, g); err != nil {
		applog.FromContext(ctx).LogError(ctx, "Failed to evaluate goal alert", err,
			append(applog.NewFields().WithGoal(g).ToSlice(), applog.FieldPrevStatus, previous)...)
	}
}
