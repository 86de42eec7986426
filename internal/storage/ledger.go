package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	if u.Username == "" || u.Email == "" {
		return core.User{}, core.Invalid(core.ErrInvalidInput, "user", "username and email are required")
	}
	u.CreatedAt = r.now().UTC()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, created_at) VALUES (?, ?, ?)`,
		u.Username, u.Email, toMillis(u.CreatedAt))
	if err != nil {
		return core.User{}, writeError(err, "create user")
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	var (
		u       core.User
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Email, &created)
	if err != nil {
		return core.User{}, notFound(err, "user")
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

// ListUserIDs returns every user id in ascending order.
func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM users WHERE id = ?`, "user", id)
}

func (r *SQLiteRepository) CreateCurrency(ctx context.Context, c core.Currency) (core.Currency, error) {
	if err := c.Validate(); err != nil {
		return core.Currency{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO currencies (code, name, symbol) VALUES (?, ?, ?)`,
		c.Code, c.Name, c.Symbol)
	if err != nil {
		return core.Currency{}, writeError(err, "create currency")
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Currency{}, fmt.Errorf("create currency: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return core.Category{}, core.Invalid(core.ErrInvalidInput, "name", "category name cannot be empty")
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, description) VALUES (?, ?)`, c.Name, c.Description)
	if err != nil {
		return core.Category{}, writeError(err, "create category")
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// EnsureCategories inserts the named categories that do not exist yet and
// reports how many were added.
func (r *SQLiteRepository) EnsureCategories(ctx context.Context, names []string) (int, error) {
	added := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO categories (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
			if err != nil {
				return fmt.Errorf("insert category %q: %w", name, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		return core.Category{}, notFound(err, "category")
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.UserID <= 0 || a.CurrencyID <= 0 || strings.TrimSpace(a.Name) == "" {
		return core.Account{}, core.Invalid(core.ErrInvalidInput, "account", "user, currency and name are required")
	}
	if err := core.ValidateScale("balance", a.Balance); err != nil {
		return core.Account{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, type, balance_cents, currency_id) VALUES (?, ?, ?, ?, ?)`,
		a.UserID, a.Name, a.Type, core.Cents(a.Balance), a.CurrencyID)
	if err != nil {
		return core.Account{}, writeError(err, "create account")
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	var (
		a     core.Account
		cents int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, balance_cents, currency_id FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &cents, &a.CurrencyID)
	if err != nil {
		return core.Account{}, notFound(err, "account")
	}
	a.Balance = core.FromCents(cents)
	return a, nil
}

// CreateTransaction records a transaction and moves the account balance in
// the same database transaction.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	delta := core.Cents(t.Amount)
	if t.Type == core.TransactionExpense {
		delta = -delta
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (account_id, category_id, amount_cents, description, date, type)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.AccountID, t.CategoryID, core.Cents(t.Amount), t.Description, t.Date.String(), string(t.Type))
		if err != nil {
			return writeError(err, "create transaction")
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`, delta, t.AccountID); err != nil {
			return fmt.Errorf("update account balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.DebugContext(ctx, "Transaction recorded",
		"id", t.ID,
		"account_id", t.AccountID,
		"type", t.Type,
		"amount", core.FormatAmount(t.Amount))
	return t, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, category_id, account_id, amount_cents, description, date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.CategoryID, e.AccountID, core.Cents(e.Amount), e.Description, e.Date.String())
	if err != nil {
		return core.Expense{}, writeError(err, "create expense")
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"category_id", e.CategoryID,
		"amount", core.FormatAmount(e.Amount),
		"date", e.Date.String())
	return e, nil
}

// SpentInCategory sums a user's expenses and expense-type transactions in a
// category over the inclusive date range.
func (r *SQLiteRepository) SpentInCategory(ctx context.Context, userID, categoryID int64, start, end core.Date) (decimal.Decimal, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
SELECT
    COALESCE((SELECT SUM(e.amount_cents) FROM expenses e
              WHERE e.user_id = ? AND e.category_id = ? AND e.date BETWEEN ? AND ?), 0)
  + COALESCE((SELECT SUM(t.amount_cents) FROM transactions t
              JOIN accounts a ON a.id = t.account_id
              WHERE a.user_id = ? AND t.category_id = ? AND t.type = 'expense' AND t.date BETWEEN ? AND ?), 0)
`,
		userID, categoryID, start.String(), end.String(),
		userID, categoryID, start.String(), end.String()).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum spend for category %d: %w", categoryID, err)
	}
	return core.FromCents(cents), nil
}

func (r *SQLiteRepository) CreateRecurringTransaction(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if err := rt.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_transactions (account_id, category_id, amount_cents, description, start_date, end_date, frequency)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rt.AccountID, rt.CategoryID, core.Cents(rt.Amount), rt.Description,
		rt.StartDate.String(), nullableDate(rt.EndDate), string(rt.Frequency))
	if err != nil {
		return core.RecurringTransaction{}, writeError(err, "create recurring transaction")
	}
	if rt.ID, err = res.LastInsertId(); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("create recurring transaction: %w", err)
	}
	return rt, nil
}

// RecurringBill is a recurring transaction with its category name resolved.
type RecurringBill struct {
	Recurring    core.RecurringTransaction
	CategoryName string
}

// ListRecurringTransactions returns the recurring templates on the user's accounts.
func (r *SQLiteRepository) ListRecurringTransactions(ctx context.Context, userID int64) ([]RecurringBill, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT rt.id, rt.account_id, rt.category_id, rt.amount_cents, rt.description,
       rt.start_date, rt.end_date, rt.frequency, c.name
FROM recurring_transactions rt
JOIN accounts a ON a.id = rt.account_id
JOIN categories c ON c.id = rt.category_id
WHERE a.user_id = ?
ORDER BY rt.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []RecurringBill
	for rows.Next() {
		var (
			b         RecurringBill
			cents     int64
			start     string
			end       sql.NullString
			frequency string
		)
		if err := rows.Scan(&b.Recurring.ID, &b.Recurring.AccountID, &b.Recurring.CategoryID, &cents,
			&b.Recurring.Description, &start, &end, &frequency, &b.CategoryName); err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		b.Recurring.Amount = core.FromCents(cents)
		b.Recurring.Frequency = core.Frequency(frequency)
		if b.Recurring.StartDate, err = parseStoredDate(start); err != nil {
			return nil, err
		}
		if end.Valid {
			if b.Recurring.EndDate, err = parseStoredDate(end.String); err != nil {
				return nil, err
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) deleteByID(ctx context.Context, query, what string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}
