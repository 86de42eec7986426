package engine

import (
	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

// Utilization relates a budget's cap to the spend recorded in its period.
type Utilization struct {
	Spent     decimal.Decimal
	Limit     decimal.Decimal
	Ratio     decimal.Decimal
	Remaining decimal.Decimal
	Exceeded  bool
}

// ValidateBudgetPeriod checks the period and amount invariants of a budget.
func ValidateBudgetPeriod(start, end core.Date, amount decimal.Decimal) error {
	if err := validatePeriod(start, end); err != nil {
		return err
	}
	return core.ValidatePositive("amount", amount)
}

// ComputeBudgetUtilization compares spent against the budget amount.
// Exceeded is decided on the exact amounts, never on the ratio.
func ComputeBudgetUtilization(budget core.Budget, spent decimal.Decimal) (Utilization, error) {
	if !budget.Amount.IsPositive() {
		return Utilization{}, core.Invalid(core.ErrInvalidAmount, "amount", "budget amount must be greater than 0")
	}
	if spent.IsNegative() {
		return Utilization{}, core.Invalid(core.ErrInvalidAmount, "spent", "spent amount cannot be negative")
	}
	return Utilization{
		Spent:     spent,
		Limit:     budget.Amount,
		Ratio:     spent.Div(budget.Amount),
		Remaining: budget.Amount.Sub(spent),
		Exceeded:  spent.GreaterThan(budget.Amount),
	}, nil
}

// Percent renders the ratio as a whole-number percentage for messages.
func (u Utilization) Percent() string {
	return u.Ratio.Shift(2).Round(0).String()
}
