package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orderload",
	Short: "Load order rows from a CSV file into a database table",
	Long: `orderload reads a CSV file with the columns order_id, email and status and
inserts every row into the orders table of a PostgreSQL, MySQL or SQLite database.

All rows are written in one transaction. Either every row is committed or,
on any error, none is.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or parameters
  11 - Database connection failed
  12 - Truncate approval denied
  13 - CSV file unreadable or malformed
  14 - A row could not be inserted
  15 - Commit failed`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// -h belongs to --host, so help is long-form only.
	rootCmd.PersistentFlags().Bool("help", false, "Help for orderload")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
