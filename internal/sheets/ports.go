package sheets

import (
	"context"

	"finledger/internal/core"
)

// Ports for outbound adapters.
type (
	// AlertWriter records a delivered alert in an external ledger.
	AlertWriter interface {
		AppendAlert(ctx context.Context, a core.Alert) (rowRef string, err error)
	}

	// CategoryReader lists the category names kept outside the database.
	CategoryReader interface {
		ListCategories(ctx context.Context) ([]string, error)
	}
)
