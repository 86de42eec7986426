package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"finledger/internal/core"
	ports "finledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID      string
	AlertSheet         string // base name, the current year is prefixed
	CategoriesSheet    string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	alertSheet      string
	categoriesSheet string
}

// Ensure interface conformance
var (
	_ ports.AlertWriter    = (*Client)(nil)
	_ ports.CategoryReader = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	alerts := strings.TrimSpace(cfg.AlertSheet)
	if alerts == "" {
		alerts = "Alerts"
	}
	cats := strings.TrimSpace(cfg.CategoriesSheet)
	if cats == "" {
		cats = "Categories"
	}
	return &Client{
		svc:             svc,
		spreadsheetID:   strings.TrimSpace(cfg.SpreadsheetID),
		alertSheet:      yearPrefixedName(alerts, time.Now().Year()),
		categoriesSheet: cats,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over a credentials file.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// AppendAlert adds one row per alert:
// created, trigger date, type, message, alert id, user id.
func (c *Client) AppendAlert(ctx context.Context, a core.Alert) (string, error) {
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	row := []any{
		created.UTC().Format(time.DateTime),
		a.TriggerDate.UTC().Format(core.DateLayout),
		string(a.Type),
		a.Message,
		a.ID,
		a.UserID,
	}

	rng := fmt.Sprintf("%s!A:F", c.alertSheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to append alert to sheet %s: %w", c.alertSheet, err)
	}

	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// ListCategories reads category names from column A of the categories sheet.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	cats, err := c.readCol(ctx, c.categoriesSheet, "A2:A")
	if err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}
	return cats, nil
}

func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", sheetName, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return columnValues(resp.Values), nil
}

// columnValues takes the first cell of each row, skipping blanks and
// #-comments, and drops repeats while preserving order.
func columnValues(rows [][]any) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
