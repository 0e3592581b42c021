package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "execore",
	Short: "Execution core: order lifecycle, position aggregation, and bar aggregation",
	Long: `execore runs the execution core service: a reactor engine that
serializes order commands and venue events against an execution database,
tracks position and account state across strategies, gates new order
submission on an equity circuit breaker, and aggregates incoming quote
ticks into tick and time bars.

Configuration is read entirely from the environment; a .env file in the
working directory is loaded first, if present.`,
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.
func Execute() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
