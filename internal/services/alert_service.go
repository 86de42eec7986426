package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"finledger/internal/core"
	"finledger/internal/engine"
	applog "finledger/internal/log"
	"finledger/internal/storage"
)

// Tracked budget states.
const (
	budgetExceeded = "exceeded"
	budgetWithin   = "within"
)

// DefaultLookaheadDays is how far ahead bill reminders look.
const DefaultLookaheadDays = 3

// AlertOptions tunes evaluation.
type AlertOptions struct {
	LookaheadDays int
	Clock         Clock
}

// AlertService evaluates alert conditions for users, stores what fires and
// hands new alerts to the publisher. It also serves the alert inbox.
type AlertService struct {
	alerts    AlertStore
	budgets   BudgetStore
	goals     GoalStore
	publisher AlertPublisher
	lookahead int
	now       Clock
}

// NewAlertService wires an alert service. publisher may be nil, in which
// case alerts are stored and left for the delivery sweep.
func NewAlertService(alerts AlertStore, budgets BudgetStore, goals GoalStore, publisher AlertPublisher, opts AlertOptions) *AlertService {
	if opts.LookaheadDays < 0 {
		opts.LookaheadDays = DefaultLookaheadDays
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &AlertService{
		alerts:    alerts,
		budgets:   budgets,
		goals:     goals,
		publisher: publisher,
		lookahead: opts.LookaheadDays,
		now:       opts.Clock,
	}
}

// Evaluate checks every monitored condition of one user at now and records
// the alerts that fire. It returns the alerts actually created. When tracked
// state moves underneath the evaluation it starts over from a fresh snapshot.
func (s *AlertService) Evaluate(ctx context.Context, userID int64, now time.Time) ([]core.Alert, error) {
	var (
		evalCtx engine.AlertContext
		reqs    []engine.AlertRequest
		created []core.Alert
	)
	err := retryOnConflict(ctx, DefaultRetries, fmt.Sprintf("alert evaluation for user %d", userID), func() error {
		var (
			states []storage.AlertState
			err    error
		)
		evalCtx, states, err = s.snapshot(ctx, userID, now)
		if err != nil {
			return err
		}
		reqs, err = engine.EvaluateAlertTriggers(evalCtx)
		if err != nil {
			return fmt.Errorf("evaluate alerts for user %d: %w", userID, err)
		}
		created, err = s.alerts.RecordEvaluation(ctx, toAlerts(reqs), states)
		if err != nil {
			return fmt.Errorf("record evaluation for user %d: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	applog.FromContext(ctx).InfoContext(ctx, "Alert evaluation completed",
		applog.FieldOperation, applog.OpEvaluate,
		applog.FieldUserID, userID,
		"budgets", len(evalCtx.Budgets),
		"goals", len(evalCtx.Goals),
		"bills", len(evalCtx.Bills),
		"triggered", len(reqs),
		"created", len(created))

	s.publish(ctx, created)
	return created, nil
}

// snapshot gathers everything the engine needs for one user, together with
// the states to record once the evaluation is stored.
func (s *AlertService) snapshot(ctx context.Context, userID int64, now time.Time) (engine.AlertContext, []storage.AlertState, error) {
	today := core.DateOf(now)
	evalCtx := engine.AlertContext{
		UserID:        userID,
		Now:           now,
		LookaheadDays: s.lookahead,
		Budgets:       []engine.BudgetSnapshot{},
		Goals:         []engine.GoalSnapshot{},
		Bills:         []engine.BillSnapshot{},
	}
	var states []storage.AlertState

	budgets, err := s.budgets.ListActiveBudgets(ctx, userID, today)
	if err != nil {
		return evalCtx, nil, fmt.Errorf("list budgets: %w", err)
	}
	budgetStates, err := s.alerts.AlertStates(ctx, userID, storage.SubjectBudget)
	if err != nil {
		return evalCtx, nil, err
	}
	for _, b := range budgets {
		usage, err := budgetUsage(ctx, s.budgets, b)
		if err != nil {
			return evalCtx, nil, fmt.Errorf("budget %d utilization: %w", b.ID, err)
		}
		snap := engine.BudgetSnapshot{Budget: b, Utilization: usage.Utilization}
		state := storage.AlertState{UserID: userID, SubjectType: storage.SubjectBudget, SubjectID: b.ID, State: budgetWithin}
		if prev, ok := budgetStates[b.ID]; ok {
			snap.PreviouslyExceeded = core.Ptr(prev == budgetExceeded)
			state.Previous = core.Ptr(prev)
		}
		evalCtx.Budgets = append(evalCtx.Budgets, snap)

		if usage.Utilization.Exceeded {
			state.State = budgetExceeded
		}
		states = append(states, state)
	}

	goals, err := s.goals.ListGoals(ctx, userID)
	if err != nil {
		return evalCtx, nil, fmt.Errorf("list goals: %w", err)
	}
	goalStates, err := s.alerts.AlertStates(ctx, userID, storage.SubjectGoal)
	if err != nil {
		return evalCtx, nil, err
	}
	for _, g := range goals {
		evalCtx.Goals = append(evalCtx.Goals, engine.GoalSnapshot{
			Goal:           g,
			PreviousStatus: core.GoalStatus(goalStates[g.ID]),
		})
		states = append(states, goalState(g, goalStates))
	}

	bills, err := s.alerts.ListRecurringTransactions(ctx, userID)
	if err != nil {
		return evalCtx, nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	for _, b := range bills {
		evalCtx.Bills = append(evalCtx.Bills, engine.BillSnapshot{Recurring: b.Recurring, CategoryName: b.CategoryName})
	}
	if evalCtx.RecordedKeys, err = s.alerts.RecordedDedupeKeys(ctx, userID); err != nil {
		return evalCtx, nil, err
	}

	return evalCtx, states, nil
}

// GoalChanged runs the goal rule for a single committed goal change. The
// tracked state wins over previous when one was recorded.
func (s *AlertService) GoalChanged(ctx context.Context, previous core.GoalStatus, g core.Goal) error {
	var created []core.Alert
	err := retryOnConflict(ctx, DefaultRetries, fmt.Sprintf("goal %d transition", g.ID), func() error {
		goalStates, err := s.alerts.AlertStates(ctx, g.UserID, storage.SubjectGoal)
		if err != nil {
			return err
		}
		prev := previous
		if tracked, ok := goalStates[g.ID]; ok {
			prev = core.GoalStatus(tracked)
		}

		reqs, err := engine.EvaluateAlertTriggers(engine.AlertContext{
			UserID:  g.UserID,
			Now:     s.now(),
			Budgets: []engine.BudgetSnapshot{},
			Goals:   []engine.GoalSnapshot{{Goal: g, PreviousStatus: prev}},
			Bills:   []engine.BillSnapshot{},
		})
		if err != nil {
			return err
		}

		created, err = s.alerts.RecordEvaluation(ctx, toAlerts(reqs), []storage.AlertState{goalState(g, goalStates)})
		if err != nil {
			return fmt.Errorf("record goal %d transition: %w", g.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, created)
	return nil
}

func goalState(g core.Goal, tracked map[int64]string) storage.AlertState {
	state := storage.AlertState{UserID: g.UserID, SubjectType: storage.SubjectGoal, SubjectID: g.ID, State: string(g.Status)}
	if prev, ok := tracked[g.ID]; ok {
		state.Previous = core.Ptr(prev)
	}
	return state
}

// CreateAlert stores a manually created alert.
func (s *AlertService) CreateAlert(ctx context.Context, a core.Alert) (core.Alert, error) {
	a.Message = strings.TrimSpace(a.Message)
	if a.TriggerDate.IsZero() {
		a.TriggerDate = s.now()
	}
	if err := a.Validate(); err != nil {
		return core.Alert{}, err
	}
	created, err := s.alerts.CreateAlert(ctx, a)
	if err != nil {
		return core.Alert{}, fmt.Errorf("create alert: %w", err)
	}
	s.publish(ctx, []core.Alert{created})
	return created, nil
}

func (s *AlertService) GetAlert(ctx context.Context, userID, id int64) (core.Alert, error) {
	return s.alerts.GetAlert(ctx, userID, id)
}

func (s *AlertService) ListAlerts(ctx context.Context, userID int64, unreadOnly bool) ([]core.Alert, error) {
	return s.alerts.ListAlerts(ctx, userID, unreadOnly)
}

// MarkRead flags an alert as read.
func (s *AlertService) MarkRead(ctx context.Context, userID, id int64) (core.Alert, error) {
	return s.PatchAlert(ctx, userID, id, core.AlertPatch{IsRead: core.Ptr(true)})
}

// PatchAlert merges patch onto the stored alert and validates the result.
func (s *AlertService) PatchAlert(ctx context.Context, userID, id int64, patch core.AlertPatch) (core.Alert, error) {
	current, err := s.alerts.GetAlert(ctx, userID, id)
	if err != nil {
		return core.Alert{}, err
	}
	candidate := core.ApplyAlertPatch(current, patch)
	if err := candidate.Validate(); err != nil {
		return core.Alert{}, err
	}
	return s.alerts.UpdateAlert(ctx, candidate)
}

func (s *AlertService) DeleteAlert(ctx context.Context, userID, id int64) error {
	return s.alerts.DeleteAlert(ctx, userID, id)
}

func (s *AlertService) publish(ctx context.Context, alerts []core.Alert) {
	if len(alerts) == 0 {
		return
	}
	if s.publisher == nil {
		applog.FromContext(ctx).WarnContext(ctx, "AMQP client not available, skipping alert messages", applog.FieldCount, len(alerts))
		return
	}
	for _, a := range alerts {
		if err := s.publisher.PublishAlert(ctx, a.ID, a.UserID, string(a.Type)); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			// Stored alerts stay undelivered and are picked up by the delivery sweep.
			fields := applog.NewFields().WithOperation(applog.OpPublish).WithAlert(a)
			applog.FromContext(ctx).LogError(ctx, "Failed to publish alert message", err, fields.ToSlice()...)
		}
	}
}

func toAlerts(reqs []engine.AlertRequest) []core.Alert {
	out := make([]core.Alert, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, core.Alert{
			UserID:      r.UserID,
			Message:     truncate(r.Message, 255),
			Type:        r.Type,
			TriggerDate: r.TriggerDate,
			DedupeKey:   r.DedupeKey,
		})
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
