package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vvka-141/orderload/internal/scaffold"
	"github.com/vvka-141/orderload/pkg/orderload"
)

var initCmd = &cobra.Command{
	Use:   "init [target_path]",
	Short: "Write a starter orderload.yaml, schema.sql and sample CSV",
	Long: `Initialize an orderload project in the specified directory (default: current).

The init command writes:
- orderload.yaml   connection, table and column mapping
- schema.sql       CREATE TABLE for the orders table in the chosen dialect
- orders.csv       a two-row sample input

Existing files are never overwritten.

Examples:
  orderload init
  orderload init ./shop --driver mysql
  orderload init ./local --driver sqlite`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initDriver string

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initDriver, "driver", string(orderload.DriverPostgres),
		"Database driver for the generated files: postgres|mysql|sqlite")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetPath := "."
	if len(args) == 1 {
		targetPath = args[0]
	}
	verbose := getVerboseFlag(cmd)

	driver, err := orderload.ParseDriver(initDriver)
	if err != nil {
		return err
	}

	written, err := scaffold.NewScaffolder(verbose).CreateProject(driver, targetPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Initialized %s project in %s\n", driver, targetPath)
	for _, path := range written {
		fmt.Fprintf(out, "  %s\n", path)
	}
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Create the table with schema.sql")
	fmt.Fprintln(out, "  2. orderload load orders.csv")
	return nil
}
