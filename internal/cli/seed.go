package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Force bool
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add the demo products to the catalog",
		Long: `Add the five demo products to the catalog of the configured app.

The catalog is left alone when it already has products, unless --force is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg, logger, opts.Force)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "seed even if the catalog is not empty")

	return cmd
}

func runSeed(ctx context.Context, cfg *config.Config, logger *slog.Logger, force bool) error {
	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := storage.Migrate(ctx, d.db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	existing, err := d.store.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	if len(existing) > 0 && !force {
		logger.Info("catalog already has products, skipping", "count", len(existing))
		return nil
	}

	if err := service.SeedCatalog(ctx, d.store); err != nil {
		return err
	}
	logger.Info("demo products added to catalog")
	return nil
}
