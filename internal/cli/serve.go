package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	sweepInterval      = time.Minute
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC storefront APIs",
		Long: `Run the storefront server.

The schema is migrated on start. The catalog mirror subscribes to the
product collection and seeds the demo products when it is empty.

Example:
  storefront serve --config ./storefront.yaml
  SQLITE_PATH=/tmp/shop.db storefront serve --log-level debug`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("failed to close connections", "error", err)
		}
		logger.Info("connections closed")
	}()

	if err := storage.Migrate(ctx, d.db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	sessions := handler.NewSessions(d.store, d.identity, logger)
	mirror := service.NewCatalogMirror(d.store, d.guard, sessions, logger)
	sessions.UseCatalog(mirror)

	if err := mirror.Start(ctx); err != nil {
		return fmt.Errorf("failed to start catalog mirror: %w", err)
	}
	defer mirror.Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(sessions, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	handler.RegisterStorefrontServer(grpcServer, handler.NewGRPCHandler(sessions))

	var lis net.Listener
	if cfg.GRPCAddr != "" {
		lis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if lis != nil {
		g.Go(func() error {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-mirror.Ready():
			logger.Info("catalog ready", "products", len(mirror.Products()))
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := sessions.Sweep(sessionIdleTimeout); n > 0 {
					logger.Debug("idle sessions dropped", "count", n, "live", sessions.Len())
				}
				n, err := d.identity.PurgeExpiredSessions(gctx)
				if err != nil {
					logger.Warn("failed to purge expired sessions", "error", err)
				} else if n > 0 {
					logger.Debug("expired sessions purged", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown", "error", err)
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
		return nil
	})

	return g.Wait()
}
