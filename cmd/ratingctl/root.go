package main

import (
	"encoding/json"
	"fmt"
	"io"

	"hypothesis-rating/internal/config"
	"hypothesis-rating/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env is what every database command needs
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
}

func (e *env) Close() {
	e.db.Close()
	_ = e.logger.Sync()
}

type opener func() (*env, error)

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ratingctl",
		Short: "Operator tool for the hypothesis rating service",
		Long: `ratingctl manages the database behind the hypothesis rating service.

It migrates the schema, builds and rebuilds the frozen comparison pools,
fills in Chinese translations and inspects the raw hypothesis table.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", config.Path(), "Path to the YAML config file")

	open := func() (*env, error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		logger, err := cfg.NewLogger()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		db, err := repository.NewDB(cfg.Database.Type, cfg.Database.Path, logger)
		if err != nil {
			return nil, err
		}
		if err := repository.MigrateDB(db, logger); err != nil {
			db.Close()
			return nil, err
		}
		return &env{cfg: cfg, logger: logger, db: db}, nil
	}

	cmd.AddCommand(newMigrateCommand(open))
	cmd.AddCommand(newBuildPoolsCommand(open))
	cmd.AddCommand(newRebuildCommand(open))
	cmd.AddCommand(newTranslateCommand(open))
	cmd.AddCommand(newInspectCommand(open))
	cmd.AddCommand(newRepairContentCommand(open))
	cmd.AddCommand(newImportCommand(open))
	cmd.AddCommand(newHashPasswordCommand())

	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
