package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coriolis-trading/execore/internal/execdb"
	"github.com/coriolis-trading/execore/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var residualsCmd = &cobra.Command{
	Use:   "residuals",
	Short: "List residual open positions and working orders",
	Long: `Reports every order still working and every position still open
in the configured execution database — the check_residuals operation a
strategy runs before assuming it's flat and safe to tear down.`,
	RunE: runResiduals,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(residualsCmd)
}

func runResiduals(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	var db execdb.ExecutionDatabase
	switch cfg.StorageMode {
	case "postgres":
		db, err = execdb.NewPostgresDatabase(ctx, &execdb.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	case "sqlite":
		db, err = execdb.NewSQLiteDatabase(ctx, &execdb.SQLiteConfig{Path: cfg.SQLitePath, Logger: logger})
	default:
		db = execdb.NewMemoryDatabase()
	}
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	residuals := db.CheckResiduals()
	if len(residuals) == 0 {
		fmt.Println("no residual orders or positions")
		return nil
	}

	for _, line := range residuals {
		fmt.Println(line)
	}
	return nil
}
