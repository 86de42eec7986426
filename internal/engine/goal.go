// Package engine implements the goal and budget accounting rules.
//
// Every function here is pure: it reads only its arguments, performs no I/O,
// never logs and holds no state, so callers may use it concurrently without
// locking. Persistence and retries belong to the caller.
package engine

import (
	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

// GoalProgress is the (amount, status) pair a progress update resolves to.
type GoalProgress struct {
	CurrentAmount decimal.Decimal
	Status        core.GoalStatus
}

// DeriveGoalStatus resolves the status a goal takes when its current amount
// becomes proposed.
//
// Abandonment is sticky: amount updates never leave it. Otherwise the goal is
// achieved once proposed reaches the target and falls back to in progress
// when it drops below.
func DeriveGoalStatus(goal core.Goal, proposed decimal.Decimal) (GoalProgress, error) {
	if proposed.IsNegative() {
		return GoalProgress{}, core.Invalid(core.ErrInvalidAmount, "current_amount", "current amount cannot be negative")
	}
	if err := core.ValidateScale("current_amount", proposed); err != nil {
		return GoalProgress{}, err
	}
	if proposed.GreaterThan(goal.TargetAmount) {
		return GoalProgress{}, core.Invalid(core.ErrInvalidAmount, "current_amount", "current amount cannot exceed target amount")
	}

	status := core.GoalInProgress
	switch {
	case goal.Status == core.GoalAbandoned:
		status = core.GoalAbandoned
	case proposed.GreaterThanOrEqual(goal.TargetAmount):
		status = core.GoalAchieved
	}
	return GoalProgress{CurrentAmount: proposed, Status: status}, nil
}

// ValidateGoalPeriod checks the period and amount invariants of a goal.
func ValidateGoalPeriod(start, end core.Date, target, current decimal.Decimal) error {
	if err := validatePeriod(start, end); err != nil {
		return err
	}
	if err := core.ValidatePositive("target_amount", target); err != nil {
		return err
	}
	if current.IsNegative() {
		return core.Invalid(core.ErrInvalidAmount, "current_amount", "current amount cannot be negative")
	}
	if err := core.ValidateScale("current_amount", current); err != nil {
		return err
	}
	if current.GreaterThan(target) {
		return core.Invalid(core.ErrInvalidAmount, "current_amount", "current amount cannot exceed target amount")
	}
	return nil
}

// ResolveExplicitStatus applies an explicit status-set to a goal whose
// amounts are already valid. It is the only way out of abandoned.
func ResolveExplicitStatus(goal core.Goal, requested core.GoalStatus) (core.GoalStatus, error) {
	switch requested {
	case core.GoalAbandoned:
		return core.GoalAbandoned, nil
	case core.GoalAchieved:
		if goal.CurrentAmount.LessThan(goal.TargetAmount) {
			return "", core.Invalid(core.ErrInvalidInput, "status", "goal cannot be achieved below its target amount")
		}
		return core.GoalAchieved, nil
	case core.GoalInProgress:
		// Reopen, then let the amount decide.
		goal.Status = core.GoalInProgress
		p, err := DeriveGoalStatus(goal, goal.CurrentAmount)
		if err != nil {
			return "", err
		}
		return p.Status, nil
	default:
		return "", core.Invalid(core.ErrInvalidInput, "status", "unknown goal status")
	}
}

func validatePeriod(start, end core.Date) error {
	if start.IsZero() || end.IsZero() {
		return core.Invalid(core.ErrInvalidInput, "period", "start and end dates are required")
	}
	if end.Before(start) {
		return core.Invalid(core.ErrInvalidRange, "end_date", "end date must not be before start date")
	}
	return nil
}
