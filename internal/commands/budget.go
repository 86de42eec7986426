package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finledger/internal/core"
	"finledger/internal/services"
)

func newBudgetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage category budgets",
	}
	cmd.AddCommand(
		newBudgetCreateCommand(a),
		newBudgetPatchCommand(a),
		newBudgetUsageCommand(a),
		newBudgetListCommand(a),
		newBudgetDeleteCommand(a),
	)
	return cmd
}

func newBudgetCreateCommand(a *app) *cobra.Command {
	var (
		categoryID int64
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "create <amount>",
		Short: "Cap spending in a category over a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return err
			}
			startDate, err := core.ParseDate(start)
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
			b, err := a.budgets.CreateBudget(a.ctx(cmd), core.Budget{
				UserID:     userID,
				CategoryID: categoryID,
				Amount:     amount,
				StartDate:  startDate,
				EndDate:    endDate,
			})
			if err != nil {
				return err
			}
			printBudget(cmd.OutOrStdout(), b)
			return nil
		},
	}
	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id")
	cmd.Flags().StringVar(&start, "start", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day (YYYY-MM-DD)")
	return cmd
}

func newBudgetPatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch <id>",
		Short: "Change selected fields of a budget",
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
			var patch core.BudgetPatch
			if cmd.Flags().Changed("category") {
				v, _ := cmd.Flags().GetInt64("category")
				patch.CategoryID = &v
			}
			if patch.Amount, err = parseAmountFlag(cmd, "amount"); err != nil {
				return err
			}
			if patch.StartDate, err = parseDateFlag(cmd, "start"); err != nil {
				return err
			}
			if patch.EndDate, err = parseDateFlag(cmd, "end"); err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			b, err := a.budgets.PatchBudget(a.ctx(cmd), userID, id, patch)
			if err != nil {
				return err
			}
			printBudget(cmd.OutOrStdout(), b)
			return nil
		},
	}
	cmd.Flags().Int64("category", 0, "new category id")
	cmd.Flags().String("amount", "", "new amount")
	cmd.Flags().String("start", "", "new first day")
	cmd.Flags().String("end", "", "new last day")
	return cmd
}

func newBudgetUsageCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <id>",
		Short: "Show how much of a budget has been spent",
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
			u, err := a.budgets.Utilization(a.ctx(cmd), userID, id)
			if err != nil {
				return err
			}
			printUsage(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func newBudgetListCommand(a *app) *cobra.Command {
	var categoryID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the budgets of --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			ctx := a.ctx(cmd)
			var budgets []core.Budget
			if categoryID > 0 {
				budgets, err = a.budgets.ListCategoryBudgets(ctx, userID, categoryID)
			} else {
				budgets, err = a.budgets.ListBudgets(ctx, userID)
			}
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tCATEGORY\tAMOUNT\tSTART\tEND")
			for _, b := range budgets {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", b.ID, b.CategoryID, core.FormatAmount(b.Amount), b.StartDate, b.EndDate)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&categoryID, "category", 0, "only budgets of this category")
	return cmd
}

func newBudgetDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a budget",
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
			if err := a.budgets.DeleteBudget(a.ctx(cmd), userID, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted budget %d\n", id)
			return nil
		},
	}
}

func printBudget(w io.Writer, b core.Budget) {
	fmt.Fprintf(w, "Budget %d: %s for category %d, %s..%s (v%d)\n",
		b.ID, core.FormatAmount(b.Amount), b.CategoryID, b.StartDate, b.EndDate, b.Version)
}

func printUsage(w io.Writer, u services.BudgetUsage) {
	state := "within limit"
	if u.Utilization.Exceeded {
		state = "EXCEEDED"
	}
	fmt.Fprintf(w, "Budget %d: spent %s of %s (%s%%), remaining %s, %s\n",
		u.Budget.ID,
		core.FormatAmount(u.Utilization.Spent),
		core.FormatAmount(u.Utilization.Limit),
		u.Utilization.Percent(),
		core.FormatAmount(u.Utilization.Remaining),
		state)
}
