package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finledger/internal/core"
)

func newGoalCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Track savings goals",
	}
	cmd.AddCommand(
		newGoalCreateCommand(a),
		newGoalProgressCommand(a),
		newGoalPatchCommand(a),
		newGoalStatusCommand(a, "abandon", "Stop tracking a goal"),
		newGoalStatusCommand(a, "resume", "Resume an abandoned goal"),
		newGoalShowCommand(a),
		newGoalListCommand(a),
		newGoalDeleteCommand(a),
	)
	return cmd
}

func newGoalCreateCommand(a *app) *cobra.Command {
	var (
		description string
		target      string
		current     string
		start, end  string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a goal for --user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			targetAmount, err := core.ParseAmount(target)
			if err != nil {
				return err
			}
			currentAmount, err := core.ParseAmount(current)
			if err != nil {
				return err
			}
			startDate, err := parseDayOrToday(start)
			if err != nil {
				return err
			}
			endDate, err := core.ParseDate(end)
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			g, err := a.goals.CreateGoal(a.ctx(cmd), core.Goal{
				UserID:        userID,
				Name:          args[0],
				Description:   description,
				TargetAmount:  targetAmount,
				CurrentAmount: currentAmount,
				StartDate:     startDate,
				EndDate:       endDate,
			})
			if err != nil {
				return err
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&target, "target", "", "target amount")
	cmd.Flags().StringVar(&current, "current", "0", "amount already saved")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	return cmd
}

func newGoalProgressCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <amount>",
		Short: "Set the amount saved towards a goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			g, err := a.goals.UpdateProgress(a.ctx(cmd), userID, id, amount)
			if err != nil {
				return err
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		},
	}
}

func newGoalPatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch <id>",
		Short: "Change selected fields of a goal",
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
			patch := core.GoalPatch{
				Name:        stringFlag(cmd, "name"),
				Description: stringFlag(cmd, "description"),
			}
			if patch.TargetAmount, err = parseAmountFlag(cmd, "target"); err != nil {
				return err
			}
			if patch.CurrentAmount, err = parseAmountFlag(cmd, "current"); err != nil {
				return err
			}
			if patch.StartDate, err = parseDateFlag(cmd, "start"); err != nil {
				return err
			}
			if patch.EndDate, err = parseDateFlag(cmd, "end"); err != nil {
				return err
			}
			if s := stringFlag(cmd, "status"); s != nil {
				patch.Status = core.Ptr(core.GoalStatus(*s))
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			g, err := a.goals.PatchGoal(a.ctx(cmd), userID, id, patch)
			if err != nil {
				return err
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		},
	}
	cmd.Flags().String("name", "", "new name")
	cmd.Flags().String("description", "", "new description")
	cmd.Flags().String("target", "", "new target amount")
	cmd.Flags().String("current", "", "new saved amount")
	cmd.Flags().String("start", "", "new start date")
	cmd.Flags().String("end", "", "new end date")
	cmd.Flags().String("status", "", "in_progress or abandoned")
	return cmd
}

func newGoalStatusCommand(a *app, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
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
			change := a.goals.Abandon
			if use == "resume" {
				change = a.goals.Resume
			}
			g, err := change(a.ctx(cmd), userID, id)
			if err != nil {
				return err
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		},
	}
}

func newGoalShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one goal",
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
			g, err := a.goals.GetGoal(a.ctx(cmd), userID, id)
			if err != nil {
				return err
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		},
	}
}

func newGoalListCommand(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the goals of --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			var filter *core.GoalStatus
			if status != "" {
				filter = core.Ptr(core.GoalStatus(status))
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			goals, err := a.goals.ListGoals(a.ctx(cmd), userID, filter)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tSAVED\tTARGET\tSTATUS\tEND")
			for _, g := range goals {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name,
					core.FormatAmount(g.CurrentAmount), core.FormatAmount(g.TargetAmount), g.Status, g.EndDate)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only goals with this status")
	return cmd
}

func newGoalDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a goal",
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
			if err := a.goals.DeleteGoal(a.ctx(cmd), userID, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted goal %d\n", id)
			return nil
		},
	}
}

func printGoal(w io.Writer, g core.Goal) {
	fmt.Fprintf(w, "Goal %d %q: %s of %s [%s] %s..%s (v%d)\n",
		g.ID, g.Name, core.FormatAmount(g.CurrentAmount), core.FormatAmount(g.TargetAmount),
		g.Status, g.StartDate, g.EndDate, g.Version)
}
