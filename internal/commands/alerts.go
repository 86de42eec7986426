package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"finledger/internal/cli"
	"finledger/internal/core"
	"finledger/internal/worker"
)

func newAlertsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate, inspect and deliver alerts",
	}
	cmd.AddCommand(
		newAlertsEvaluateCommand(a),
		newAlertsListCommand(a),
		newAlertsAddCommand(a),
		newAlertsPatchCommand(a),
		newAlertsReadCommand(a),
		newAlertsDeleteCommand(a),
		newAlertsDeliverCommand(a),
	)
	return cmd
}

func newAlertsEvaluateCommand(a *app) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Check budgets, goals and bills and record the alerts that fire",
		Long: "Evaluates --user, or every user when --user is omitted. " +
			"Alerts already raised for the same condition are not repeated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				d, err := core.ParseDate(at)
				if err != nil {
					return err
				}
				now = d.Time
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			ctx := a.ctx(cmd)
			out := cmd.OutOrStdout()

			if a.userID > 0 {
				created, err := a.alerts.Evaluate(ctx, a.userID, now)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d alert(s) raised\n", len(created))
				for _, al := range created {
					printAlert(out, al)
				}
				return nil
			}

			p := worker.NewEvaluationProcessor(a.repo, a.alerts, worker.EvaluationConfig{
				PollInterval: a.cfg.EvaluationInterval,
				Concurrency:  a.cfg.EvaluationConcurrency,
			})
			res, err := p.SweepOnce(ctx, now)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Evaluated %d user(s): %d alert(s) raised, %d failed\n", res.Users, res.Created, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("evaluation failed for %d user(s)", res.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this date (YYYY-MM-DD, default now)")
	return cmd
}

func newAlertsListCommand(a *app) *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the alert inbox of --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			alerts, err := a.alerts.ListAlerts(a.ctx(cmd), userID, unread)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tTYPE\tDATE\tREAD\tMESSAGE")
			for _, al := range alerts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", al.ID, al.Type,
					al.TriggerDate.Format(core.DateLayout), strconv.FormatBool(al.IsRead), al.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread alerts")
	return cmd
}

func newAlertsAddCommand(a *app) *cobra.Command {
	var (
		alertType string
		date      string
	)
	cmd := &cobra.Command{
		Use:   "add <message>",
		Short: "Record an alert by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			trigger, err := parseOptionalDate(date)
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			al, err := a.alerts.CreateAlert(a.ctx(cmd), core.Alert{
				UserID:      userID,
				Message:     args[0],
				Type:        core.AlertType(alertType),
				TriggerDate: trigger.Time,
			})
			if err != nil {
				return err
			}
			printAlert(cmd.OutOrStdout(), al)
			return nil
		},
	}
	cmd.Flags().StringVar(&alertType, "type", string(core.AlertBill), "budget, bill or goal")
	cmd.Flags().StringVar(&date, "date", "", "trigger date (YYYY-MM-DD, default now)")
	return cmd
}

func newAlertsPatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch <id>",
		Short: "Change selected fields of an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			patch := core.AlertPatch{Message: stringFlag(cmd, "message")}
			if t := stringFlag(cmd, "type"); t != nil {
				patch.Type = core.Ptr(core.AlertType(*t))
			}
			if cmd.Flags().Changed("read") {
				v, _ := cmd.Flags().GetBool("read")
				patch.IsRead = &v
			}
			d, err := parseDateFlag(cmd, "date")
			if err != nil {
				return err
			}
			if d != nil {
				patch.TriggerDate = &d.Time
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			al, err := a.alerts.PatchAlert(a.ctx(cmd), userID, id, patch)
			if err != nil {
				return err
			}
			printAlert(cmd.OutOrStdout(), al)
			return nil
		},
	}
	cmd.Flags().String("message", "", "new message")
	cmd.Flags().String("type", "", "new type")
	cmd.Flags().String("date", "", "new trigger date")
	cmd.Flags().Bool("read", false, "mark read (or unread with --read=false)")
	return cmd
}

func newAlertsReadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark an alert as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			al, err := a.alerts.MarkRead(a.ctx(cmd), userID, id)
			if err != nil {
				return err
			}
			printAlert(cmd.OutOrStdout(), al)
			return nil
		},
	}
}

func newAlertsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			if err := a.alerts.DeleteAlert(a.ctx(cmd), userID, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted alert %d\n", id)
			return nil
		},
	}
}

func newAlertsDeliverCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Write undelivered alerts to the configured sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			ctx := a.ctx(cmd)
			sinks, err := cli.InitSinks(ctx, a.logger, a.cfg)
			if err != nil {
				return err
			}
			w := worker.NewDeliveryWorker(a.repo, a.repo, sinks.Alerts, sinks.Categories, a.cfg.DeliveryBatchSize)
			if err := w.ProcessPendingDeliveries(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pending alerts processed")
			return nil
		},
	}
}

func printAlert(w io.Writer, al core.Alert) {
	read := ""
	if al.IsRead {
		read = " (read)"
	}
	fmt.Fprintf(w, "Alert %d [%s] %s: %s%s\n", al.ID, al.Type, al.TriggerDate.Format(core.DateLayout), al.Message, read)
}
