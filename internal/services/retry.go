package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/core"
)

// DefaultRetries bounds read-derive-write attempts on version conflicts.
const DefaultRetries = 3

// retryOnConflict reruns fn while it fails with core.ErrConflict, up to
// attempts times. fn must re-read its record on every call.
func retryOnConflict(ctx context.Context, attempts int, what string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if !errors.Is(err, core.ErrConflict) {
			return err
		}
		slog.DebugContext(ctx, "Concurrent modification, retrying",
			"record", what,
			"attempt", attempt,
			"max_attempts", attempts)
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", what, attempts, err)
}
