package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/core"
)

// Subject types tracked in alert_state.
const (
	SubjectBudget = "budget"
	SubjectGoal   = "goal"
)

// AlertState is the last observed condition of one monitored record.
// Previous is the state the evaluation read, nil when none was recorded;
// the write only applies while the stored state still matches it.
type AlertState struct {
	UserID      int64
	SubjectType string
	SubjectID   int64
	State       string
	Previous    *string
}

const alertColumns = `id, user_id, message, type, trigger_date, is_read, dedupe_key, delivered_at, created_at, updated_at`

// CreateAlert stores a single alert. An alert whose dedupe key was already
// recorded for the user fails with core.ErrConflict.
func (r *SQLiteRepository) CreateAlert(ctx context.Context, a core.Alert) (core.Alert, error) {
	var created bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		a, created, err = r.insertAlert(ctx, tx, a)
		return err
	})
	if err != nil {
		return core.Alert{}, err
	}
	if !created {
		return core.Alert{}, fmt.Errorf("alert %q: %w", a.DedupeKey, core.ErrConflict)
	}
	return a, nil
}

// RecordEvaluation stores the alerts and alert states produced by one
// evaluation atomically. Alerts whose dedupe key already exists are skipped;
// only newly created alerts are returned. When a tracked state no longer
// matches its Previous value nothing is stored and core.ErrConflict is
// returned, so the caller can evaluate again from fresh state.
func (r *SQLiteRepository) RecordEvaluation(ctx context.Context, alerts []core.Alert, states []AlertState) ([]core.Alert, error) {
	var out []core.Alert
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range alerts {
			stored, created, err := r.insertAlert(ctx, tx, a)
			if err != nil {
				return err
			}
			if !created {
				slog.DebugContext(ctx, "Alert already recorded", "user_id", a.UserID, "dedupe_key", a.DedupeKey)
				continue
			}
			out = append(out, stored)
		}
		now := toMillis(r.now())
		for _, s := range states {
			if err := putAlertState(ctx, tx, s, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func putAlertState(ctx context.Context, tx *sql.Tx, s AlertState, now int64) error {
	var (
		res sql.Result
		err error
	)
	if s.Previous == nil {
		res, err = tx.ExecContext(ctx, `
INSERT INTO alert_state (user_id, subject_type, subject_id, state, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, subject_type, subject_id) DO NOTHING`,
			s.UserID, s.SubjectType, s.SubjectID, s.State, now)
	} else {
		res, err = tx.ExecContext(ctx, `
UPDATE alert_state SET state = ?, updated_at = ?
WHERE user_id = ? AND subject_type = ? AND subject_id = ? AND state = ?`,
			s.State, now, s.UserID, s.SubjectType, s.SubjectID, *s.Previous)
	}
	if err != nil {
		return writeError(err, "put alert state")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put alert state: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d state changed concurrently: %w", s.SubjectType, s.SubjectID, core.ErrConflict)
	}
	return nil
}

func (r *SQLiteRepository) insertAlert(ctx context.Context, tx *sql.Tx, a core.Alert) (core.Alert, bool, error) {
	now := r.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	res, err := tx.ExecContext(ctx, `
INSERT INTO alerts (user_id, message, type, trigger_date, is_read, dedupe_key, delivered_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)
ON CONFLICT (user_id, dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING`,
		a.UserID, a.Message, string(a.Type), toMillis(a.TriggerDate), a.IsRead,
		nullableText(a.DedupeKey), toMillis(now), toMillis(now))
	if err != nil {
		return core.Alert{}, false, writeError(err, "create alert")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Alert{}, false, fmt.Errorf("create alert: %w", err)
	}
	if n == 0 {
		return a, false, nil
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return core.Alert{}, false, fmt.Errorf("create alert: %w", err)
	}
	return a, true, nil
}

// AlertStates returns the recorded state of every subject of one type.
func (r *SQLiteRepository) AlertStates(ctx context.Context, userID int64, subjectType string) (map[int64]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT subject_id, state FROM alert_state WHERE user_id = ? AND subject_type = ?`, userID, subjectType)
	if err != nil {
		return nil, fmt.Errorf("list alert states: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var (
			id    int64
			state string
		)
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("scan alert state: %w", err)
		}
		out[id] = state
	}
	return out, rows.Err()
}

// RecordedDedupeKeys returns the dedupe keys of the user's alerts.
func (r *SQLiteRepository) RecordedDedupeKeys(ctx context.Context, userID int64) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT dedupe_key FROM alerts WHERE user_id = ? AND dedupe_key IS NOT NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("list dedupe keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan dedupe key: %w", err)
		}
		out[key] = struct{}{}
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetAlert(ctx context.Context, userID, id int64) (core.Alert, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = ? AND user_id = ?`, id, userID)
	a, err := scanAlert(row.Scan)
	if err != nil {
		return core.Alert{}, notFound(err, "alert")
	}
	return a, nil
}

// GetAlertByID loads an alert regardless of owner. Used by delivery.
func (r *SQLiteRepository) GetAlertByID(ctx context.Context, id int64) (core.Alert, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row.Scan)
	if err != nil {
		return core.Alert{}, notFound(err, "alert")
	}
	return a, nil
}

// ListAlerts returns the user's alerts newest first.
func (r *SQLiteRepository) ListAlerts(ctx context.Context, userID int64, unreadOnly bool) ([]core.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY trigger_date DESC, id DESC`
	return r.queryAlerts(ctx, query, userID)
}

// ListUndeliveredAlerts returns up to limit alerts not yet handed to a sink.
// Alerts with fewer failed deliveries come first, then the oldest, so an
// alert the sink keeps rejecting cannot hold back newer ones.
func (r *SQLiteRepository) ListUndeliveredAlerts(ctx context.Context, limit int) ([]core.Alert, error) {
	return r.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE delivered_at IS NULL ORDER BY delivery_attempts, id LIMIT ?`, limit)
}

// RecordDeliveryFailure counts a failed sink write against an undelivered alert.
func (r *SQLiteRepository) RecordDeliveryFailure(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET delivery_attempts = delivery_attempts + 1 WHERE id = ? AND delivered_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("record delivery failure: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record delivery failure: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("undelivered alert %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) queryAlerts(ctx context.Context, query string, args ...any) ([]core.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []core.Alert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAlert overwrites the mutable alert fields.
func (r *SQLiteRepository) UpdateAlert(ctx context.Context, a core.Alert) (core.Alert, error) {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE alerts SET message = ?, type = ?, trigger_date = ?, is_read = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		a.Message, string(a.Type), toMillis(a.TriggerDate), a.IsRead, toMillis(now), a.ID, a.UserID)
	if err != nil {
		return core.Alert{}, writeError(err, "update alert")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Alert{}, fmt.Errorf("update alert: %w", err)
	}
	if n == 0 {
		return core.Alert{}, fmt.Errorf("alert: %w", core.ErrNotFound)
	}
	a.UpdatedAt = now
	return a, nil
}

// MarkAlertDelivered stamps delivered_at. Already delivered alerts keep
// their first timestamp.
func (r *SQLiteRepository) MarkAlertDelivered(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET delivered_at = COALESCE(delivered_at, ?) WHERE id = ?`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("mark alert delivered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark alert delivered: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alert: %w", core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Alert marked as delivered", "id", id)
	return nil
}

func (r *SQLiteRepository) DeleteAlert(ctx context.Context, userID, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM alerts WHERE id = ? AND user_id = ?`, "alert", id, userID)
}

func scanAlert(scan func(dest ...any) error) (core.Alert, error) {
	var (
		a                    core.Alert
		typ                  string
		trigger              int64
		dedupe               sql.NullString
		delivered            sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := scan(&a.ID, &a.UserID, &a.Message, &typ, &trigger, &a.IsRead,
		&dedupe, &delivered, &createdAt, &updatedAt); err != nil {
		return core.Alert{}, err
	}
	a.Type = core.AlertType(typ)
	a.TriggerDate = fromMillis(trigger)
	a.DedupeKey = dedupe.String
	a.DeliveredAt = nullMillis(delivered)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}
