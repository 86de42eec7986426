package commands

import (
	"github.com/spf13/cobra"

	"finledger/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "finledger",
		Short:   "Personal finance ledger with budget and goal alerts",
		Version: buildinfo.Current().String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().Int64Var(&a.userID, "user", 0, "acting user id")

	rootCmd.AddCommand(
		newMigrateCommand(a),
		newUserCommand(a),
		newCurrencyCommand(a),
		newCategoryCommand(a),
		newAccountCommand(a),
		newExpenseCommand(a),
		newTransactionCommand(a),
		newRecurringCommand(a),
		newGoalCommand(a),
		newBudgetCommand(a),
		newAlertsCommand(a),
	)
	closeAfter(rootCmd, a)

	return rootCmd
}

// closeAfter releases the app once a command finishes, including on error,
// where cobra skips the post-run hooks.
func closeAfter(c *cobra.Command, a *app) {
	for _, sub := range c.Commands() {
		closeAfter(sub, a)
	}
	if run := c.RunE; run != nil {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			defer a.close()
			return run(cmd, args)
		}
	}
}
