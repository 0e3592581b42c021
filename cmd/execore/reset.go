package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/execdb"
	"github.com/coriolis-trading/execore/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the execution database",
	Long: `Runs the execution database's reset operation against the
configured backend. For the memory backend this clears every order,
position, strategy, and account held in the process. For postgres/sqlite
it clears only the process's in-memory cache; rows already stored in the
database are left intact. Refuses to run against postgres/sqlite
without --force.`,
	RunE: runReset,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().Bool("force", false, "confirm reset of a durable (postgres/sqlite) backend")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	force, _ := cmd.Flags().GetBool("force")
	if cfg.StorageMode != "memory" && !force {
		return fmt.Errorf("refusing to reset durable storage mode %q without --force", cfg.StorageMode)
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

	if err := db.Reset(); err != nil {
		return fmt.Errorf("reset database: %w", err)
	}

	logger.Info("execution-database-reset", zap.String("storage_mode", cfg.StorageMode))
	return nil
}
