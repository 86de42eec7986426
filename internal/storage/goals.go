package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"finledger/internal/core"
)

const goalColumns = `id, user_id, name, description, target_amount_cents, current_amount_cents,
       start_date, end_date, status, version, created_at, updated_at`

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	now := r.now().UTC()
	g.Version = 1
	g.CreatedAt, g.UpdatedAt = now, now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO goals (user_id, name, description, target_amount_cents, current_amount_cents,
                   start_date, end_date, status, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Name, g.Description, core.Cents(g.TargetAmount), core.Cents(g.CurrentAmount),
		g.StartDate.String(), g.EndDate.String(), string(g.Status), g.Version,
		toMillis(now), toMillis(now))
	if err != nil {
		return core.Goal{}, writeError(err, "create goal")
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

// GetGoal loads a goal owned by userID.
func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, id int64) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row.Scan)
	if err != nil {
		return core.Goal{}, notFound(err, "goal")
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID int64) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpdateGoal writes g if its Version still matches the stored row. On
// success the returned goal carries the incremented version.
func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE goals
SET name = ?, description = ?, target_amount_cents = ?, current_amount_cents = ?,
    start_date = ?, end_date = ?, status = ?, version = version + 1, updated_at = ?
WHERE id = ? AND user_id = ? AND version = ?`,
		g.Name, g.Description, core.Cents(g.TargetAmount), core.Cents(g.CurrentAmount),
		g.StartDate.String(), g.EndDate.String(), string(g.Status), toMillis(now),
		g.ID, g.UserID, g.Version)
	if err != nil {
		return core.Goal{}, writeError(err, "update goal")
	}
	if err := r.checkVersioned(ctx, res, `SELECT 1 FROM goals WHERE id = ? AND user_id = ?`, "goal", g.ID, g.UserID); err != nil {
		slog.DebugContext(ctx, "Goal update rejected", "goal_id", g.ID, "version", g.Version, "error", err)
		return core.Goal{}, err
	}
	g.Version++
	g.UpdatedAt = now
	return g, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, "goal", id, userID)
}

// checkVersioned turns a zero-row versioned update into ErrNotFound or
// ErrConflict depending on whether the row still exists.
func (r *SQLiteRepository) checkVersioned(ctx context.Context, res sql.Result, existsQuery, what string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if n > 0 {
		return nil
	}
	var one int
	if err := r.db.QueryRowContext(ctx, existsQuery, args...).Scan(&one); err != nil {
		return notFound(err, what)
	}
	return fmt.Errorf("%s: %w", what, core.ErrConflict)
}

func scanGoal(scan func(dest ...any) error) (core.Goal, error) {
	var (
		g                    core.Goal
		target, current      int64
		start, end, status   string
		createdAt, updatedAt int64
	)
	if err := scan(&g.ID, &g.UserID, &g.Name, &g.Description, &target, &current,
		&start, &end, &status, &g.Version, &createdAt, &updatedAt); err != nil {
		return core.Goal{}, err
	}
	var err error
	if g.StartDate, err = parseStoredDate(start); err != nil {
		return core.Goal{}, err
	}
	if g.EndDate, err = parseStoredDate(end); err != nil {
		return core.Goal{}, err
	}
	g.TargetAmount = core.FromCents(target)
	g.CurrentAmount = core.FromCents(current)
	g.Status = core.GoalStatus(status)
	g.CreatedAt = fromMillis(createdAt)
	g.UpdatedAt = fromMillis(updatedAt)
	return g, nil
}
