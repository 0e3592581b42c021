package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coriolis-trading/execore/internal/app"
	"github.com/coriolis-trading/execore/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the execution core",
	Long: `Starts the execution core process: the execution database, the
reactor engine with its simulated execution client, the bar manager, the
data subscription bus, and the reporting HTTP server. Blocks until
SIGINT/SIGTERM.`,
	RunE: runExecore,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
}

func runExecore(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	application, err := app.New(cfg, logger, &app.Options{})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	return application.Run()
}
