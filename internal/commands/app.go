package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"finledger/internal/amqp"
	"finledger/internal/cli"
	"finledger/internal/config"
	"finledger/internal/core"
	applog "finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/storage"
)

// app holds what a command needs; it is opened lazily so that commands
// which never touch the database stay cheap.
type app struct {
	dbPath string
	userID int64

	cfg       *config.Config
	logger    *applog.Logger
	repo      *storage.SQLiteRepository
	publisher *amqp.Client

	goals   *services.GoalService
	budgets *services.BudgetService
	alerts  *services.AlertService
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	if a.cfg != nil {
		return nil
	}
	cli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.SQLiteDBPath = a.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = applog.New(applog.Config{
		Level:     level,
		Component: applog.ComponentCLI,
		Output:    cmd.ErrOrStderr(),
	})
	applog.SetDefault(a.logger)
	a.cfg = cfg
	return nil
}

func (a *app) open(cmd *cobra.Command) error {
	if a.repo != nil {
		return nil
	}
	if err := a.loadConfig(cmd); err != nil {
		return err
	}

	repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.repo = repo

	a.publisher = cli.InitPublisher(a.logger, a.cfg)
	var publisher services.AlertPublisher
	if a.publisher != nil {
		publisher = a.publisher
	}

	a.alerts = services.NewAlertService(repo, repo, repo, publisher, services.AlertOptions{
		LookaheadDays: a.cfg.BillLookaheadDays,
	})
	a.goals = services.NewGoalService(repo, a.alerts, a.cfg.ProgressRetries)
	a.budgets = services.NewBudgetService(repo, a.cfg.ProgressRetries)
	return nil
}

func (a *app) close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
		a.publisher = nil
	}
	if a.repo != nil {
		_ = a.repo.Close()
		a.repo = nil
	}
}

func (a *app) user() (int64, error) {
	if a.userID <= 0 {
		return 0, core.Invalid(core.ErrInvalidInput, "user", "--user is required")
	}
	return a.userID, nil
}

func (a *app) ctx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.logger != nil {
		ctx = applog.ToContext(ctx, a.logger)
	}
	return ctx
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(core.ErrInvalidInput, "id", fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}

func parseOptionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func parseAmountFlag(cmd *cobra.Command, name string) (*decimal.Decimal, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	v, _ := cmd.Flags().GetString(name)
	d, err := core.ParseAmount(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDateFlag(cmd *cobra.Command, name string) (*core.Date, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	v, _ := cmd.Flags().GetString(name)
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func parseDayOrToday(s string) (core.Date, error) {
	if s == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(s)
}
