package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	GoalInProgress GoalStatus = "in_progress"
	GoalAchieved   GoalStatus = "achieved"
	GoalAbandoned  GoalStatus = "abandoned"
)

const (
	AlertBudget AlertType = "budget"
	AlertBill   AlertType = "bill"
	AlertGoal   AlertType = "goal"
)

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// DateLayout is the persisted and CLI representation of a calendar day.
const DateLayout = "2006-01-02"

const maxTextLen = 255

type (
	Frequency       string
	GoalStatus      string
	AlertType       string
	TransactionType string

	// Date is a calendar day, always normalized to UTC midnight.
	Date struct {
		time.Time
	}

	User struct {
		ID        int64
		Username  string
		Email     string
		CreatedAt time.Time
	}

	Currency struct {
		ID     int64
		Code   string
		Name   string
		Symbol string
	}

	Category struct {
		ID          int64
		Name        string
		Description string
	}

	Account struct {
		ID         int64
		UserID     int64
		Name       string
		Type       string
		Balance    decimal.Decimal
		CurrencyID int64
	}

	Transaction struct {
		ID          int64
		AccountID   int64
		CategoryID  int64
		Amount      decimal.Decimal
		Description string
		Date        Date
		Type        TransactionType
	}

	Expense struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		AccountID   int64
		Amount      decimal.Decimal
		Description string
		Date        Date
	}

	// RecurringTransaction is a template the external scheduler materializes
	// into concrete transactions. EndDate is zero when the series is open-ended.
	RecurringTransaction struct {
		ID          int64
		AccountID   int64
		CategoryID  int64
		Amount      decimal.Decimal
		Description string
		StartDate   Date
		EndDate     Date
		Frequency   Frequency
	}

	// Budget caps spending in one category over [StartDate, EndDate].
	// Spend is never stored; it is aggregated on demand.
	Budget struct {
		ID         int64
		UserID     int64
		CategoryID int64
		Amount     decimal.Decimal
		StartDate  Date
		EndDate    Date
		Version    int64
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	Goal struct {
		ID            int64
		UserID        int64
		Name          string
		Description   string
		TargetAmount  decimal.Decimal
		CurrentAmount decimal.Decimal
		StartDate     Date
		EndDate       Date
		Status        GoalStatus
		Version       int64
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	Alert struct {
		ID          int64
		UserID      int64
		Message     string
		Type        AlertType
		TriggerDate time.Time
		IsRead      bool
		DedupeKey   string
		DeliveredAt time.Time
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, Invalid(ErrInvalidInput, "date", fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return Invalid(ErrInvalidInput, "date", "date cannot be zero")
	}
	return nil
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalInProgress, GoalAchieved, GoalAbandoned:
		return true
	}
	return false
}

func (t AlertType) Valid() bool {
	switch t {
	case AlertBudget, AlertBill, AlertGoal:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

func (c Currency) Validate() error {
	if len(c.Code) != 3 || strings.ToUpper(c.Code) != c.Code {
		return Invalid(ErrInvalidInput, "code", "currency code must be 3 upper-case letters")
	}
	if err := requireText("name", c.Name); err != nil {
		return err
	}
	return requireText("symbol", c.Symbol)
}

func (e Expense) Validate() error {
	if e.UserID <= 0 || e.CategoryID <= 0 || e.AccountID <= 0 {
		return Invalid(ErrInvalidInput, "expense", "user, category and account are required")
	}
	if err := ValidatePositive("amount", e.Amount); err != nil {
		return err
	}
	if len(e.Description) > maxTextLen {
		return Invalid(ErrInvalidInput, "description", "description too long (max 255 characters)")
	}
	return e.Date.Validate()
}

func (t Transaction) Validate() error {
	if t.AccountID <= 0 || t.CategoryID <= 0 {
		return Invalid(ErrInvalidInput, "transaction", "account and category are required")
	}
	if !t.Type.Valid() {
		return Invalid(ErrInvalidInput, "type", fmt.Sprintf("invalid transaction type %q", t.Type))
	}
	if err := ValidatePositive("amount", t.Amount); err != nil {
		return err
	}
	return t.Date.Validate()
}

func (rt RecurringTransaction) Validate() error {
	if rt.AccountID <= 0 || rt.CategoryID <= 0 {
		return Invalid(ErrInvalidInput, "recurring_transaction", "account and category are required")
	}
	if err := rt.StartDate.Validate(); err != nil {
		return err
	}
	if !rt.EndDate.IsZero() && rt.EndDate.Before(rt.StartDate) {
		return Invalid(ErrInvalidRange, "end_date", "end date must not be before start date")
	}
	if !rt.Frequency.Valid() {
		return Invalid(ErrInvalidInput, "frequency", fmt.Sprintf("invalid frequency %q", rt.Frequency))
	}
	if len(rt.Description) > maxTextLen {
		return Invalid(ErrInvalidInput, "description", "description too long (max 255 characters)")
	}
	return ValidatePositive("amount", rt.Amount)
}

// Validate checks the descriptive fields of a goal. Amount and period rules
// live in the engine.
func (g Goal) Validate() error {
	if g.UserID <= 0 {
		return Invalid(ErrInvalidInput, "user_id", "user is required")
	}
	if err := requireText("name", g.Name); err != nil {
		return err
	}
	if len(g.Description) > maxTextLen {
		return Invalid(ErrInvalidInput, "description", "description too long (max 255 characters)")
	}
	if !g.Status.Valid() {
		return Invalid(ErrInvalidInput, "status", fmt.Sprintf("invalid goal status %q", g.Status))
	}
	return nil
}

func (b Budget) Validate() error {
	if b.UserID <= 0 || b.CategoryID <= 0 {
		return Invalid(ErrInvalidInput, "budget", "user and category are required")
	}
	return nil
}

func (a Alert) Validate() error {
	if a.UserID <= 0 {
		return Invalid(ErrInvalidInput, "user_id", "user is required")
	}
	if err := requireText("message", a.Message); err != nil {
		return err
	}
	if !a.Type.Valid() {
		return Invalid(ErrInvalidInput, "type", fmt.Sprintf("invalid alert type %q", a.Type))
	}
	if a.TriggerDate.IsZero() {
		return Invalid(ErrInvalidInput, "trigger_date", "trigger date is required")
	}
	return nil
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return Invalid(ErrInvalidInput, field, field+" cannot be empty")
	}
	if len(v) > maxTextLen {
		return Invalid(ErrInvalidInput, field, fmt.Sprintf("%s too long (max %d characters)", field, maxTextLen))
	}
	return nil
}
