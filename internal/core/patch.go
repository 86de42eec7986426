package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoalPatch is a sparse update. Nil fields are left untouched.
type GoalPatch struct {
	Name          *string
	Description   *string
	TargetAmount  *decimal.Decimal
	CurrentAmount *decimal.Decimal
	StartDate     *Date
	EndDate       *Date
	Status        *GoalStatus
}

// AmountsChanged reports whether the patch touches either amount.
func (p GoalPatch) AmountsChanged() bool {
	return p.TargetAmount != nil || p.CurrentAmount != nil
}

// ApplyGoalPatch returns the merged candidate; the input goal is not modified.
func ApplyGoalPatch(g Goal, p GoalPatch) Goal {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.CurrentAmount != nil {
		g.CurrentAmount = *p.CurrentAmount
	}
	if p.StartDate != nil {
		g.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		g.EndDate = *p.EndDate
	}
	if p.Status != nil {
		g.Status = *p.Status
	}
	return g
}

type BudgetPatch struct {
	CategoryID *int64
	Amount     *decimal.Decimal
	StartDate  *Date
	EndDate    *Date
}

func ApplyBudgetPatch(b Budget, p BudgetPatch) Budget {
	if p.CategoryID != nil {
		b.CategoryID = *p.CategoryID
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.StartDate != nil {
		b.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		b.EndDate = *p.EndDate
	}
	return b
}

type AlertPatch struct {
	Message     *string
	Type        *AlertType
	TriggerDate *time.Time
	IsRead      *bool
}

func ApplyAlertPatch(a Alert, p AlertPatch) Alert {
	if p.Message != nil {
		a.Message = *p.Message
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.TriggerDate != nil {
		a.TriggerDate = *p.TriggerDate
	}
	if p.IsRead != nil {
		a.IsRead = *p.IsRead
	}
	return a
}

// Ptr returns a pointer to the provided value.
func Ptr[T any](val T) *T {
	return &val
}
