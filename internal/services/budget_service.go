package services

import (
	"context"
	"fmt"

	"finledger/internal/core"
	"finledger/internal/engine"
	applog "finledger/internal/log"
)

// BudgetUsage pairs a budget with its utilization.
type BudgetUsage struct {
	Budget      core.Budget
	Utilization engine.Utilization
}

type BudgetService struct {
	store   BudgetStore
	retries int
}

func NewBudgetService(store BudgetStore, retries int) *BudgetService {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &BudgetService{store: store, retries: retries}
}

func (s *BudgetService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := validateBudget(b); err != nil {
		return core.Budget{}, err
	}
	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	applog.FromContext(ctx).InfoContext(ctx, "Budget created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldBudgetID, created.ID,
		applog.FieldUserID, created.UserID,
		"category_id", created.CategoryID,
		"amount", core.FormatAmount(created.Amount),
		"period", created.StartDate.String()+".."+created.EndDate.String())
	return created, nil
}

// PatchBudget merges patch onto the stored budget, validates the merged
// candidate and writes it with a version check.
func (s *BudgetService) PatchBudget(ctx context.Context, userID, id int64, patch core.BudgetPatch) (core.Budget, error) {
	var saved core.Budget
	err := retryOnConflict(ctx, s.retries, fmt.Sprintf("budget %d", id), func() error {
		current, err := s.store.GetBudget(ctx, userID, id)
		if err != nil {
			return err
		}
		candidate := core.ApplyBudgetPatch(current, patch)
		if err := validateBudget(candidate); err != nil {
			return err
		}
		saved, err = s.store.UpdateBudget(ctx, candidate)
		return err
	})
	if err != nil {
		return core.Budget{}, err
	}
	applog.FromContext(ctx).InfoContext(ctx, "Budget updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldBudgetID, saved.ID,
		"version", saved.Version)
	return saved, nil
}

func (s *BudgetService) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	return s.store.GetBudget(ctx, userID, id)
}

func (s *BudgetService) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, userID)
}

// ListCategoryBudgets returns the user's budgets for one category.
func (s *BudgetService) ListCategoryBudgets(ctx context.Context, userID, categoryID int64) ([]core.Budget, error) {
	budgets, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []core.Budget
	for _, b := range budgets {
		if b.CategoryID == categoryID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *BudgetService) DeleteBudget(ctx context.Context, userID, id int64) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	applog.FromContext(ctx).InfoContext(ctx, "Budget deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldBudgetID, id,
		applog.FieldUserID, userID)
	return nil
}

// Utilization computes the budget's spend over its own period.
func (s *BudgetService) Utilization(ctx context.Context, userID, id int64) (BudgetUsage, error) {
	b, err := s.store.GetBudget(ctx, userID, id)
	if err != nil {
		return BudgetUsage{}, err
	}
	return budgetUsage(ctx, s.store, b)
}

func budgetUsage(ctx context.Context, spend SpendReader, b core.Budget) (BudgetUsage, error) {
	spent, err := spend.SpentInCategory(ctx, b.UserID, b.CategoryID, b.StartDate, b.EndDate)
	if err != nil {
		return BudgetUsage{}, err
	}
	u, err := engine.ComputeBudgetUtilization(b, spent)
	if err != nil {
		return BudgetUsage{}, err
	}
	return BudgetUsage{Budget: b, Utilization: u}, nil
}

func validateBudget(b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return engine.ValidateBudgetPeriod(b.StartDate, b.EndDate, b.Amount)
}
