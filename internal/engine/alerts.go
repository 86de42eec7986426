package engine

import (
	"fmt"
	"time"

	"finledger/internal/core"
)

// BudgetSnapshot is a budget with its utilization at evaluation time.
// PreviouslyExceeded is nil when no prior state was ever recorded.
type BudgetSnapshot struct {
	Budget             core.Budget
	Utilization        Utilization
	PreviouslyExceeded *bool
}

// GoalSnapshot is a goal as currently stored together with the status it had
// at the last evaluation. An empty PreviousStatus means it was never seen.
type GoalSnapshot struct {
	Goal           core.Goal
	PreviousStatus core.GoalStatus
}

// BillSnapshot is a recurring transaction that may raise a bill reminder.
type BillSnapshot struct {
	Recurring    core.RecurringTransaction
	CategoryName string
}

// AlertContext bundles everything one user's evaluation needs. All three
// collections must be non-nil, even when empty.
type AlertContext struct {
	UserID        int64
	Now           time.Time
	LookaheadDays int
	Budgets       []BudgetSnapshot
	Goals         []GoalSnapshot
	Bills         []BillSnapshot
	// RecordedKeys holds dedupe keys of bill alerts already created.
	RecordedKeys map[string]struct{}
}

// AlertRequest is an alert the caller should persist.
type AlertRequest struct {
	UserID      int64
	Type        core.AlertType
	Message     string
	TriggerDate time.Time
	DedupeKey   string
	SubjectID   int64
}

// BillDedupeKey identifies one occurrence of a recurring transaction.
func BillDedupeKey(recurringID int64, occurrence core.Date) string {
	return fmt.Sprintf("bill:%d:%s", recurringID, occurrence)
}

// EvaluateAlertTriggers returns the alerts that the snapshot in ctx makes
// due. Rules are independent; the order of the result carries no meaning.
//
// Budget and goal alerts are edge-triggered. A budget without recorded prior
// state fires whenever it is exceeded. Bill alerts fire once per occurrence
// that falls within [today, today+LookaheadDays].
func EvaluateAlertTriggers(ctx AlertContext) ([]AlertRequest, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	var out []AlertRequest
	for _, b := range ctx.Budgets {
		if !b.Utilization.Exceeded {
			continue
		}
		if b.PreviouslyExceeded != nil && *b.PreviouslyExceeded {
			continue
		}
		out = append(out, AlertRequest{
			UserID: ctx.UserID,
			Type:   core.AlertBudget,
			Message: fmt.Sprintf("Budget #%d exceeded: spent %s of %s (%s%%)",
				b.Budget.ID,
				core.FormatAmount(b.Utilization.Spent),
				core.FormatAmount(b.Utilization.Limit),
				b.Utilization.Percent()),
			TriggerDate: ctx.Now,
			SubjectID:   b.Budget.ID,
		})
	}

	for _, g := range ctx.Goals {
		p, err := DeriveGoalStatus(g.Goal, g.Goal.CurrentAmount)
		if err != nil {
			// Stored goals that no longer satisfy the amount rules raise nothing.
			continue
		}
		if p.Status != core.GoalAchieved || g.PreviousStatus == core.GoalAchieved {
			continue
		}
		out = append(out, AlertRequest{
			UserID:      ctx.UserID,
			Type:        core.AlertGoal,
			Message:     fmt.Sprintf("Goal %q achieved: %s reached", g.Goal.Name, core.FormatAmount(g.Goal.TargetAmount)),
			TriggerDate: ctx.Now,
			SubjectID:   g.Goal.ID,
		})
	}

	today := core.DateOf(ctx.Now)
	horizon := today.AddDays(ctx.LookaheadDays)
	for _, b := range ctx.Bills {
		next, ok, err := NextOccurrence(b.Recurring, today)
		if err != nil || !ok || next.After(horizon) {
			continue
		}
		key := BillDedupeKey(b.Recurring.ID, next)
		if _, seen := ctx.RecordedKeys[key]; seen {
			continue
		}
		out = append(out, AlertRequest{
			UserID:      ctx.UserID,
			Type:        core.AlertBill,
			Message:     billMessage(b, next),
			TriggerDate: next.Time,
			DedupeKey:   key,
			SubjectID:   b.Recurring.ID,
		})
	}
	return out, nil
}

func (c AlertContext) validate() error {
	if c.UserID <= 0 {
		return core.Invalid(core.ErrInvalidInput, "user_id", "user is required")
	}
	if c.Now.IsZero() {
		return core.Invalid(core.ErrInvalidInput, "now", "evaluation time is required")
	}
	if c.LookaheadDays < 0 {
		return core.Invalid(core.ErrInvalidInput, "lookahead_days", "lookahead cannot be negative")
	}
	if c.Budgets == nil || c.Goals == nil || c.Bills == nil {
		return core.Invalid(core.ErrInvalidInput, "context", "budgets, goals and bills are required")
	}
	return nil
}

func billMessage(b BillSnapshot, due core.Date) string {
	label := b.Recurring.Description
	if label == "" {
		label = b.CategoryName
	}
	if label == "" {
		label = fmt.Sprintf("recurring transaction #%d", b.Recurring.ID)
	}
	return fmt.Sprintf("Bill due %s: %s (%s)", due, label, core.FormatAmount(b.Recurring.Amount))
}
