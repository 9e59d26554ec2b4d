package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate",
		Short:         "Create the database schema",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.setup()
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg, logger)
		},
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := storage.Migrate(ctx, d.db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	logger.Info("schema is up to date")
	return nil
}
