package storage

import (
	"context"
	"fmt"

	"finledger/internal/core"
)

const budgetColumns = `id, user_id, category_id, amount_cents, start_date, end_date, version, created_at, updated_at`

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := r.now().UTC()
	b.Version = 1
	b.CreatedAt, b.UpdatedAt = now, now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO budgets (user_id, category_id, amount_cents, start_date, end_date, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, core.Cents(b.Amount), b.StartDate.String(), b.EndDate.String(),
		b.Version, toMillis(now), toMillis(now))
	if err != nil {
		return core.Budget{}, writeError(err, "create budget")
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBudget(row.Scan)
	if err != nil {
		return core.Budget{}, notFound(err, "budget")
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListActiveBudgets returns the budgets whose period contains day.
func (r *SQLiteRepository) ListActiveBudgets(ctx context.Context, userID int64, day core.Date) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND ? BETWEEN start_date AND end_date ORDER BY id`,
		userID, day.String())
	if err != nil {
		return nil, fmt.Errorf("list active budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBudget writes b if its Version still matches the stored row.
func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE budgets
SET category_id = ?, amount_cents = ?, start_date = ?, end_date = ?, version = version + 1, updated_at = ?
WHERE id = ? AND user_id = ? AND version = ?`,
		b.CategoryID, core.Cents(b.Amount), b.StartDate.String(), b.EndDate.String(), toMillis(now),
		b.ID, b.UserID, b.Version)
	if err != nil {
		return core.Budget{}, writeError(err, "update budget")
	}
	if err := r.checkVersioned(ctx, res, `SELECT 1 FROM budgets WHERE id = ? AND user_id = ?`, "budget", b.ID, b.UserID); err != nil {
		return core.Budget{}, err
	}
	b.Version++
	b.UpdatedAt = now
	return b, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, "budget", id, userID)
}

func scanBudget(scan func(dest ...any) error) (core.Budget, error) {
	var (
		b                    core.Budget
		cents                int64
		start, end           string
		createdAt, updatedAt int64
	)
	if err := scan(&b.ID, &b.UserID, &b.CategoryID, &cents, &start, &end,
		&b.Version, &createdAt, &updatedAt); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.StartDate, err = parseStoredDate(start); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = parseStoredDate(end); err != nil {
		return core.Budget{}, err
	}
	b.Amount = core.FromCents(cents)
	b.CreatedAt = fromMillis(createdAt)
	b.UpdatedAt = fromMillis(updatedAt)
	return b, nil
}
