package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.AppID = "cli-test"
	cfg.Database.Path = filepath.Join(t.TempDir(), "cli.db")
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countProducts(t *testing.T, cfg *config.Config) int {
	t.Helper()
	d, err := openDeps(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer d.Close()

	products, err := d.store.ListProducts(context.Background())
	require.NoError(t, err)
	return len(products)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMigrateAndSeed(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	require.NoError(t, runMigrate(ctx, cfg, discardLogger()))
	require.NoError(t, runMigrate(ctx, cfg, discardLogger()), "migrate must be repeatable")

	require.NoError(t, runSeed(ctx, cfg, discardLogger(), false))
	assert.Equal(t, 5, countProducts(t, cfg))

	require.NoError(t, runSeed(ctx, cfg, discardLogger(), false))
	assert.Equal(t, 5, countProducts(t, cfg), "non-empty catalog is left alone")

	require.NoError(t, runSeed(ctx, cfg, discardLogger(), true))
	assert.Equal(t, 10, countProducts(t, cfg))
}

func TestSeedIsPerApp(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	require.NoError(t, runSeed(ctx, cfg, discardLogger(), false))

	other := *cfg
	other.AppID = "other-app"
	assert.Equal(t, 0, countProducts(t, &other))
}

func TestRootCommand_RejectsBadLogLevel(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"migrate", "--log-level", "loud"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRootCommand_Migrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "root.db")
	t.Setenv("STOREFRONT_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("REDIS_ADDR", "")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"migrate", "--log-level", "error"})

	require.NoError(t, cmd.Execute())
	assert.FileExists(t, path)
}
