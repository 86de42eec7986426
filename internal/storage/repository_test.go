package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/core"
)

type fixture struct {
	repo     *SQLiteRepository
	user     core.User
	category core.Category
	account  core.Account
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	user, err := repo.CreateUser(ctx, core.User{Username: "ada", Email: "ada@example.com"})
	require.NoError(t, err)
	currency, err := repo.CreateCurrency(ctx, core.Currency{Code: "EUR", Name: "Euro", Symbol: "€"})
	require.NoError(t, err)
	category, err := repo.CreateCategory(ctx, core.Category{Name: "Groceries"})
	require.NoError(t, err)
	account, err := repo.CreateAccount(ctx, core.Account{
		UserID: user.ID, Name: "Checking", Type: "bank", CurrencyID: currency.ID,
		Balance: decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	return fixture{repo: repo, user: user, category: category, account: account}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	// Reopening is a no-op migration.
	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())
}

func TestNewSQLiteRepositoryRequiresPath(t *testing.T) {
	_, err := NewSQLiteRepository("  ")
	assert.Error(t, err)
}

func TestGoalVersioning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.repo.CreateGoal(ctx, core.Goal{
		UserID:        f.user.ID,
		Name:          "Bike",
		TargetAmount:  amount("1000.00"),
		CurrentAmount: amount("12.34"),
		StartDate:     core.NewDate(2024, 1, 1),
		EndDate:       core.NewDate(2024, 12, 31),
		Status:        core.GoalInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.Version)

	loaded, err := f.repo.GetGoal(ctx, f.user.ID, g.ID)
	require.NoError(t, err)
	assert.True(t, loaded.CurrentAmount.Equal(amount("12.34")))
	assert.Equal(t, core.NewDate(2024, 12, 31), loaded.EndDate)

	first := loaded
	first.CurrentAmount = amount("500.00")
	updated, err := f.repo.UpdateGoal(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	stale := loaded
	stale.CurrentAmount = amount("600.00")
	_, err = f.repo.UpdateGoal(ctx, stale)
	assert.ErrorIs(t, err, core.ErrConflict)

	current, err := f.repo.GetGoal(ctx, f.user.ID, g.ID)
	require.NoError(t, err)
	assert.True(t, current.CurrentAmount.Equal(amount("500.00")), "stale write must not land")

	missing := current
	missing.ID = 9999
	_, err = f.repo.UpdateGoal(ctx, missing)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.repo.GetGoal(ctx, f.user.ID+1, g.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "goals are scoped to their owner")

	require.NoError(t, f.repo.DeleteGoal(ctx, f.user.ID, g.ID))
	assert.ErrorIs(t, f.repo.DeleteGoal(ctx, f.user.ID, g.ID), core.ErrNotFound)
}

func TestBudgetsAndSpend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.repo.CreateBudget(ctx, core.Budget{
		UserID:     f.user.ID,
		CategoryID: f.category.ID,
		Amount:     amount("500.00"),
		StartDate:  core.NewDate(2024, 3, 1),
		EndDate:    core.NewDate(2024, 3, 31),
	})
	require.NoError(t, err)

	for _, e := range []struct {
		amount string
		date   core.Date
	}{
		{"200.10", core.NewDate(2024, 3, 1)},
		{"99.90", core.NewDate(2024, 3, 31)},
		{"1000.00", core.NewDate(2024, 4, 1)},
	} {
		_, err := f.repo.CreateExpense(ctx, core.Expense{
			UserID: f.user.ID, CategoryID: f.category.ID, AccountID: f.account.ID,
			Amount: amount(e.amount), Date: e.date,
		})
		require.NoError(t, err)
	}
	_, err = f.repo.CreateTransaction(ctx, core.Transaction{
		AccountID: f.account.ID, CategoryID: f.category.ID, Amount: amount("300.00"),
		Date: core.NewDate(2024, 3, 15), Type: core.TransactionExpense,
	})
	require.NoError(t, err)
	_, err = f.repo.CreateTransaction(ctx, core.Transaction{
		AccountID: f.account.ID, CategoryID: f.category.ID, Amount: amount("50.00"),
		Date: core.NewDate(2024, 3, 16), Type: core.TransactionIncome,
	})
	require.NoError(t, err)

	spent, err := f.repo.SpentInCategory(ctx, f.user.ID, b.CategoryID, b.StartDate, b.EndDate)
	require.NoError(t, err)
	assert.True(t, spent.Equal(amount("600.00")), "spent = %s", spent)

	acct, err := f.repo.GetAccount(ctx, f.account.ID)
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(amount("-150.00")), "balance = %s", acct.Balance)

	active, err := f.repo.ListActiveBudgets(ctx, f.user.ID, core.NewDate(2024, 3, 20))
	require.NoError(t, err)
	assert.Len(t, active, 1)
	active, err = f.repo.ListActiveBudgets(ctx, f.user.ID, core.NewDate(2024, 4, 2))
	require.NoError(t, err)
	assert.Empty(t, active)

	b.Amount = amount("650.00")
	updated, err := f.repo.UpdateBudget(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	_, err = f.repo.UpdateBudget(ctx, b)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestCreateBudgetUnknownCategory(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.CreateBudget(context.Background(), core.Budget{
		UserID: f.user.ID, CategoryID: 404, Amount: amount("1.00"),
		StartDate: core.NewDate(2024, 1, 1), EndDate: core.NewDate(2024, 1, 2),
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestRecordEvaluationDedupesBills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trigger := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

	bill := core.Alert{UserID: f.user.ID, Message: "Rent due", Type: core.AlertBill, TriggerDate: trigger, DedupeKey: "bill:1:2024-03-12"}
	budget := core.Alert{UserID: f.user.ID, Message: "Budget exceeded", Type: core.AlertBudget, TriggerDate: trigger}
	states := []AlertState{{UserID: f.user.ID, SubjectType: SubjectBudget, SubjectID: 3, State: "exceeded"}}

	created, err := f.repo.RecordEvaluation(ctx, []core.Alert{bill, budget}, states)
	require.NoError(t, err)
	require.Len(t, created, 2)

	created, err = f.repo.RecordEvaluation(ctx, []core.Alert{bill, budget}, nil)
	require.NoError(t, err)
	require.Len(t, created, 1, "the bill occurrence is stored once, keyless alerts always insert")
	assert.Equal(t, core.AlertBudget, created[0].Type)

	keys, err := f.repo.RecordedDedupeKeys(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Contains(t, keys, "bill:1:2024-03-12")

	got, err := f.repo.AlertStates(ctx, f.user.ID, SubjectBudget)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{3: "exceeded"}, got)

	_, err = f.repo.RecordEvaluation(ctx, nil, []AlertState{{UserID: f.user.ID, SubjectType: SubjectBudget, SubjectID: 3, State: "within", Previous: core.Ptr("exceeded")}})
	require.NoError(t, err)
	got, err = f.repo.AlertStates(ctx, f.user.ID, SubjectBudget)
	require.NoError(t, err)
	assert.Equal(t, "within", got[3])

	_, err = f.repo.CreateAlert(ctx, bill)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestRecordEvaluationRejectsStaleState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alert := core.Alert{UserID: f.user.ID, Message: "Goal reached", Type: core.AlertGoal, TriggerDate: time.Now()}
	achieved := AlertState{UserID: f.user.ID, SubjectType: SubjectGoal, SubjectID: 9, State: "achieved"}

	_, err := f.repo.RecordEvaluation(ctx, []core.Alert{alert}, []AlertState{achieved})
	require.NoError(t, err)

	// A second writer that also saw no state loses, alerts included.
	_, err = f.repo.RecordEvaluation(ctx, []core.Alert{alert}, []AlertState{achieved})
	assert.ErrorIs(t, err, core.ErrConflict)

	// So does a writer that read a state which has since moved on.
	stale := achieved
	stale.State, stale.Previous = "achieved", core.Ptr("in_progress")
	_, err = f.repo.RecordEvaluation(ctx, []core.Alert{alert}, []AlertState{stale})
	assert.ErrorIs(t, err, core.ErrConflict)

	alerts, err := f.repo.ListAlerts(ctx, f.user.ID, false)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	current := achieved
	current.State, current.Previous = "in_progress", core.Ptr("achieved")
	_, err = f.repo.RecordEvaluation(ctx, nil, []AlertState{current})
	require.NoError(t, err)
	got, err := f.repo.AlertStates(ctx, f.user.ID, SubjectGoal)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", got[9])
}

func TestAlertInboxAndDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.repo.CreateAlert(ctx, core.Alert{
		UserID: f.user.ID, Message: "Goal reached", Type: core.AlertGoal,
		TriggerDate: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	unread, err := f.repo.ListAlerts(ctx, f.user.ID, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.False(t, unread[0].IsRead)
	assert.Empty(t, unread[0].DedupeKey)

	a.IsRead = true
	_, err = f.repo.UpdateAlert(ctx, a)
	require.NoError(t, err)
	unread, err = f.repo.ListAlerts(ctx, f.user.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	pending, err := f.repo.ListUndeliveredAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	first := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
	require.NoError(t, f.repo.MarkAlertDelivered(ctx, a.ID, first))
	require.NoError(t, f.repo.MarkAlertDelivered(ctx, a.ID, first.Add(time.Hour)))

	stored, err := f.repo.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first, stored.DeliveredAt)

	pending, err = f.repo.ListUndeliveredAlerts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, f.repo.MarkAlertDelivered(ctx, 999, first), core.ErrNotFound)
	require.NoError(t, f.repo.DeleteAlert(ctx, f.user.ID, a.ID))
	_, err = f.repo.GetAlert(ctx, f.user.ID, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestFailedDeliveriesQueueBehindNewAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []int64
	for _, msg := range []string{"stuck", "fresh one", "fresh two"} {
		a, err := f.repo.CreateAlert(ctx, core.Alert{
			UserID: f.user.ID, Message: msg, Type: core.AlertBudget,
			TriggerDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	require.NoError(t, f.repo.RecordDeliveryFailure(ctx, ids[0]))

	pending, err := f.repo.ListUndeliveredAlerts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[1], pending[0].ID)
	assert.Equal(t, ids[2], pending[1].ID)

	// Once the others fail as often, age decides again.
	require.NoError(t, f.repo.RecordDeliveryFailure(ctx, ids[1]))
	require.NoError(t, f.repo.RecordDeliveryFailure(ctx, ids[2]))
	pending, err = f.repo.ListUndeliveredAlerts(ctx, 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, ids[0], pending[0].ID)

	require.NoError(t, f.repo.MarkAlertDelivered(ctx, ids[0], time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)))
	assert.ErrorIs(t, f.repo.RecordDeliveryFailure(ctx, ids[0]), core.ErrNotFound)
	assert.ErrorIs(t, f.repo.RecordDeliveryFailure(ctx, 999), core.ErrNotFound)
}

func TestRecurringTransactionsAndCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.CreateRecurringTransaction(ctx, core.RecurringTransaction{
		AccountID: f.account.ID, CategoryID: f.category.ID, Amount: amount("850.00"),
		Description: "Rent", StartDate: core.NewDate(2024, 1, 12), Frequency: core.Monthly,
	})
	require.NoError(t, err)

	bills, err := f.repo.ListRecurringTransactions(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, "Groceries", bills[0].CategoryName)
	assert.True(t, bills[0].Recurring.EndDate.IsZero())
	assert.Equal(t, core.Monthly, bills[0].Recurring.Frequency)

	_, err = f.repo.CreateGoal(ctx, core.Goal{
		UserID: f.user.ID, Name: "Trip", TargetAmount: amount("10.00"),
		StartDate: core.NewDate(2024, 1, 1), EndDate: core.NewDate(2024, 2, 1), Status: core.GoalInProgress,
	})
	require.NoError(t, err)

	ids, err := f.repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.user.ID}, ids)

	require.NoError(t, f.repo.DeleteUser(ctx, f.user.ID))
	goals, err := f.repo.ListGoals(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, goals, "goals cascade with their owner")
}
