package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "detecter [flags] command [args...]",
	Short: "Run a command repeatedly and print its output when it changes",
	Long: `Run a command at a fixed interval and print its standard output only when
it differs from the previous run. The first run is always printed.

Flag parsing stops at the command name; everything after it is passed to the
command unchanged.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
	RunE:          runWatch,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
