package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/storage"
)

// GoalStore is the goal persistence the services need.
type GoalStore interface {
	CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	GetGoal(ctx context.Context, userID, id int64) (core.Goal, error)
	ListGoals(ctx context.Context, userID int64) ([]core.Goal, error)
	UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	DeleteGoal(ctx context.Context, userID, id int64) error
}

// SpendReader aggregates spend for a category and period.
type SpendReader interface {
	SpentInCategory(ctx context.Context, userID, categoryID int64, start, end core.Date) (decimal.Decimal, error)
}

// BudgetStore is the budget persistence the services need.
type BudgetStore interface {
	SpendReader
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, userID, id int64) (core.Budget, error)
	ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
	ListActiveBudgets(ctx context.Context, userID int64, day core.Date) ([]core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, userID, id int64) error
}

// AlertStore is the alert persistence plus the read side of evaluation.
type AlertStore interface {
	CreateAlert(ctx context.Context, a core.Alert) (core.Alert, error)
	GetAlert(ctx context.Context, userID, id int64) (core.Alert, error)
	ListAlerts(ctx context.Context, userID int64, unreadOnly bool) ([]core.Alert, error)
	UpdateAlert(ctx context.Context, a core.Alert) (core.Alert, error)
	DeleteAlert(ctx context.Context, userID, id int64) error

	RecordEvaluation(ctx context.Context, alerts []core.Alert, states []storage.AlertState) ([]core.Alert, error)
	AlertStates(ctx context.Context, userID int64, subjectType string) (map[int64]string, error)
	RecordedDedupeKeys(ctx context.Context, userID int64) (map[string]struct{}, error)
	ListRecurringTransactions(ctx context.Context, userID int64) ([]storage.RecurringBill, error)
}

// AlertPublisher announces recorded alerts to the delivery side.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alertID, userID int64, alertType string) error
}

// GoalWatcher is told about every committed goal change.
type GoalWatcher interface {
	GoalChanged(ctx context.Context, previous core.GoalStatus, goal core.Goal) error
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time
