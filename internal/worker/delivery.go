package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/core"
	applog "finledger/internal/log"
	"finledger/internal/sheets"
)

// DeliveryStore is the alert state the delivery worker reads and updates.
type DeliveryStore interface {
	GetAlertByID(ctx context.Context, id int64) (core.Alert, error)
	ListUndeliveredAlerts(ctx context.Context, limit int) ([]core.Alert, error)
	MarkAlertDelivered(ctx context.Context, id int64, at time.Time) error
	RecordDeliveryFailure(ctx context.Context, id int64) error
}

// CategoryStore receives category names imported from the sheet.
type CategoryStore interface {
	EnsureCategories(ctx context.Context, names []string) (int, error)
}

// DeliveryWorker copies recorded alerts to the external sheet.
type DeliveryWorker struct {
	store      DeliveryStore
	categories CategoryStore
	writer     sheets.AlertWriter
	reader     sheets.CategoryReader
	batchSize  int
	now        func() time.Time
}

// NewDeliveryWorker wires a delivery worker. categories and reader may be nil
// when category import is not wanted.
func NewDeliveryWorker(store DeliveryStore, categories CategoryStore, writer sheets.AlertWriter, reader sheets.CategoryReader, batchSize int) *DeliveryWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &DeliveryWorker{
		store:      store,
		categories: categories,
		writer:     writer,
		reader:     reader,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// HandleAlertMessage delivers the alert named by an AMQP message.
func (w *DeliveryWorker) HandleAlertMessage(ctx context.Context, msg *amqp.AlertMessage) error {
	logger := applog.FromContext(ctx)
	logger.InfoContext(ctx, "Processing alert message",
		applog.FieldMessageID, msg.ID,
		applog.FieldAlertID, msg.AlertID,
		applog.FieldUserID, msg.UserID)

	alert, err := w.store.GetAlertByID(ctx, msg.AlertID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before delivery; nothing left to do.
		logger.WarnContext(ctx, "Alert no longer exists, dropping message", applog.FieldAlertID, msg.AlertID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get alert from storage: %w", err)
	}

	if err := w.deliver(ctx, alert); err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	return nil
}

// ProcessPendingDeliveries delivers alerts whose message was lost or whose
// publish failed. This is a backup mechanism for AMQP.
func (w *DeliveryWorker) ProcessPendingDeliveries(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupDeliveryCheck drains a larger backlog at worker startup.
func (w *DeliveryWorker) StartupDeliveryCheck(ctx context.Context) error {
	delivered, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup delivery check: %w", err)
	}
	logger := applog.FromContext(ctx)
	if delivered+failed == 0 {
		logger.InfoContext(ctx, "No pending alerts found on startup")
		return nil
	}
	logger.InfoContext(ctx, "Startup delivery completed",
		"delivered", delivered,
		"errors", failed)
	return nil
}

func (w *DeliveryWorker) processPending(ctx context.Context, limit int) (delivered, failed int, err error) {
	pending, err := w.store.ListUndeliveredAlerts(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending alerts: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	logger := applog.FromContext(ctx)
	logger.InfoContext(ctx, "Processing pending alerts", applog.FieldCount, len(pending))
	for _, a := range pending {
		if ctx.Err() != nil {
			return delivered, failed, ctx.Err()
		}
		if err := w.deliver(ctx, a); err != nil {
			logger.LogError(ctx, "Failed to deliver alert", err,
				applog.NewFields().WithOperation(applog.OpDeliver).WithAlert(a).ToSlice()...)
			failed++
			continue
		}
		delivered++
	}
	return delivered, failed, nil
}

func (w *DeliveryWorker) deliver(ctx context.Context, a core.Alert) error {
	logger := applog.FromContext(ctx)
	if !a.DeliveredAt.IsZero() {
		logger.DebugContext(ctx, "Alert already delivered", applog.FieldAlertID, a.ID)
		return nil
	}

	fields := applog.NewFields().WithOperation(applog.OpDeliver).WithAlert(a)
	ref, err := w.writer.AppendAlert(ctx, a)
	if err != nil {
		if rerr := w.store.RecordDeliveryFailure(ctx, a.ID); rerr != nil {
			logger.LogError(ctx, "Failed to record delivery failure", rerr, fields.ToSlice()...)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.store.MarkAlertDelivered(ctx, a.ID, w.now()); err != nil {
		// The row is written; a redelivery may duplicate it.
		logger.LogError(ctx, "Failed to mark alert delivered", err, fields.ToSlice()...)
	}

	logger.InfoContext(ctx, "Successfully delivered alert", append(fields.ToSlice(), "sheets_ref", ref)...)
	return nil
}

// SyncCategories imports category names from the sheet into the database.
func (w *DeliveryWorker) SyncCategories(ctx context.Context) error {
	if w.reader == nil || w.categories == nil {
		return nil
	}
	names, err := w.reader.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("load categories from sheet: %w", err)
	}
	added, err := w.categories.EnsureCategories(ctx, names)
	if err != nil {
		return fmt.Errorf("store categories: %w", err)
	}
	applog.FromContext(ctx).InfoContext(ctx, "Categories synchronized",
		"listed", len(names),
		"added", added)
	return nil
}
