package handler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type testServer struct {
	sessions *Sessions
	mirror   *service.CatalogMirror
	store    *storage.SQLStore
	products []domain.Product
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := storage.Open(ctx, storage.DriverSQLite, storage.SQLiteDSN(filepath.Join(t.TempDir(), "handler.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(ctx, db))

	appID := "handler-" + uuid.NewString()
	store := storage.NewSQLStore(db, appID, storage.NewLocalNotifier(), logger)
	identity := storage.NewSQLIdentityProvider(db, appID).WithHashCost(bcrypt.MinCost)

	sessions := NewSessions(store, identity, logger)
	mirror := service.NewCatalogMirror(store, storage.NewLocalGuard(), sessions, logger)
	sessions.UseCatalog(mirror)

	require.NoError(t, mirror.Start(ctx))
	t.Cleanup(mirror.Close)

	require.Eventually(t, func() bool {
		return len(mirror.Products()) == len(domain.DemoProducts())
	}, 5*time.Second, 10*time.Millisecond, "catalog was never seeded")

	return &testServer{
		sessions: sessions,
		mirror:   mirror,
		store:    store,
		products: mirror.Products(),
	}
}
