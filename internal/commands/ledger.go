package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"finledger/internal/cli"
	"finledger/internal/core"
	"finledger/internal/worker"
)

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var username, email string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			u, err := a.repo.CreateUser(a.ctx(cmd), core.User{Username: username, Email: email})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s)\n", u.ID, u.Username)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "username")
	create.Flags().StringVar(&email, "email", "", "email address")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user and everything they own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			if err := a.repo.DeleteUser(a.ctx(cmd), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d\n", id)
			return nil
		},
	}

	cmd.AddCommand(create, del)
	return cmd
}

func newCurrencyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "currency",
		Short: "Manage currencies",
	}

	var name, symbol string
	add := &cobra.Command{
		Use:   "add <code>",
		Short: "Register a currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			c, err := a.repo.CreateCurrency(a.ctx(cmd), core.Currency{Code: args[0], Name: name, Symbol: symbol})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created currency %d (%s)\n", c.ID, c.Code)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&symbol, "symbol", "", "currency symbol")

	cmd.AddCommand(add)
	return cmd
}

func newCategoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage spending categories",
	}

	var description string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			c, err := a.repo.CreateCategory(a.ctx(cmd), core.Category{Name: args[0], Description: description})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created category %d (%s)\n", c.ID, c.Name)
			return nil
		},
	}
	add.Flags().StringVar(&description, "description", "", "free-form description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			cats, err := a.repo.ListCategories(a.ctx(cmd))
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
			for _, c := range cats {
				fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.Description)
			}
			return w.Flush()
		},
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Import categories from the configured sheet",
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
			if err := w.SyncCategories(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Categories synchronized")
			return nil
		},
	}

	cmd.AddCommand(add, list, sync)
	return cmd
}

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	var (
		accountType string
		balance     string
		currencyID  int64
	)
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Open an account for --user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			opening, err := core.ParseAmount(balance)
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			acc, err := a.repo.CreateAccount(a.ctx(cmd), core.Account{
				UserID:     userID,
				Name:       args[0],
				Type:       accountType,
				Balance:    opening,
				CurrencyID: currencyID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %d (%s, balance %s)\n", acc.ID, acc.Name, core.FormatAmount(acc.Balance))
			return nil
		},
	}
	add.Flags().StringVar(&accountType, "type", "checking", "account type")
	add.Flags().StringVar(&balance, "balance", "0", "opening balance")
	add.Flags().Int64Var(&currencyID, "currency", 0, "currency id")

	cmd.AddCommand(add)
	return cmd
}

func newExpenseCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record expenses",
	}

	var (
		categoryID  int64
		accountID   int64
		description string
		date        string
	)
	add := &cobra.Command{
		Use:   "add <amount>",
		Short: "Record an expense for --user",
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
			day, err := parseDayOrToday(date)
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			e, err := a.repo.CreateExpense(a.ctx(cmd), core.Expense{
				UserID:      userID,
				CategoryID:  categoryID,
				AccountID:   accountID,
				Amount:      amount,
				Description: description,
				Date:        day,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded expense %d: %s on %s\n", e.ID, core.FormatAmount(e.Amount), e.Date)
			return nil
		},
	}
	add.Flags().Int64Var(&categoryID, "category", 0, "category id")
	add.Flags().Int64Var(&accountID, "account", 0, "account id")
	add.Flags().StringVar(&description, "description", "", "description")
	add.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, default today)")

	cmd.AddCommand(add)
	return cmd
}

func newTransactionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transaction",
		Short: "Record account transactions",
	}

	var (
		categoryID  int64
		accountID   int64
		description string
		date        string
		income      bool
	)
	add := &cobra.Command{
		Use:   "add <amount>",
		Short: "Record a transaction and update the account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return err
			}
			day, err := parseDayOrToday(date)
			if err != nil {
				return err
			}
			kind := core.TransactionExpense
			if income {
				kind = core.TransactionIncome
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			t, err := a.repo.CreateTransaction(a.ctx(cmd), core.Transaction{
				AccountID:   accountID,
				CategoryID:  categoryID,
				Amount:      amount,
				Description: description,
				Date:        day,
				Type:        kind,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s transaction %d: %s on %s\n", t.Type, t.ID, core.FormatAmount(t.Amount), t.Date)
			return nil
		},
	}
	add.Flags().Int64Var(&categoryID, "category", 0, "category id")
	add.Flags().Int64Var(&accountID, "account", 0, "account id")
	add.Flags().StringVar(&description, "description", "", "description")
	add.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, default today)")
	add.Flags().BoolVar(&income, "income", false, "record as income instead of expense")

	cmd.AddCommand(add)
	return cmd
}

func newRecurringCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Manage recurring transactions (bills)",
	}

	var (
		categoryID  int64
		accountID   int64
		description string
		start, end  string
		frequency   string
	)
	add := &cobra.Command{
		Use:   "add <amount>",
		Short: "Register a recurring transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return err
			}
			startDate, err := core.ParseDate(start)
			if err != nil {
				return err
			}
			endDate, err := parseOptionalDate(end)
			if err != nil {
				return err
			}
			if err := a.open(cmd); err != nil {
				return err
			}
			rt, err := a.repo.CreateRecurringTransaction(a.ctx(cmd), core.RecurringTransaction{
				AccountID:   accountID,
				CategoryID:  categoryID,
				Amount:      amount,
				Description: description,
				StartDate:   startDate,
				EndDate:     endDate,
				Frequency:   core.Frequency(frequency),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created recurring transaction %d (%s from %s)\n", rt.ID, rt.Frequency, rt.StartDate)
			return nil
		},
	}
	add.Flags().Int64Var(&categoryID, "category", 0, "category id")
	add.Flags().Int64Var(&accountID, "account", 0, "account id")
	add.Flags().StringVar(&description, "description", "", "description")
	add.Flags().StringVar(&start, "start", "", "first occurrence (YYYY-MM-DD)")
	add.Flags().StringVar(&end, "end", "", "last possible occurrence (YYYY-MM-DD, optional)")
	add.Flags().StringVar(&frequency, "frequency", string(core.Monthly), "daily, weekly, monthly or yearly")

	cmd.AddCommand(add)
	return cmd
}
