package services

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-sync-service/internal/cache"
	"storefront-sync-service/internal/images"
	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testEnv struct {
	store    *repository.MemoryStore
	catalog  *CatalogStore
	importer *CommerceMLImporter
}

func newTestEnv(t *testing.T, notifier CatalogSyncNotifier) *testEnv {
	t.Helper()
	logger := quietLogger()
	store := repository.NewMemoryStore(nil)
	catalog := NewCatalogStore(store, cache.NewProductCache(0, nil, logger), logger)
	return &testEnv{
		store:    store,
		catalog:  catalog,
		importer: NewCommerceMLImporter(catalog, images.NewResolver(nil, ""), notifier, logger),
	}
}

func (e *testEnv) mustCreate(t *testing.T, p *models.Product) *models.Product {
	t.Helper()
	require.NoError(t, e.store.CreateProduct(context.Background(), p))
	return p
}

// MockNotifier records catalog sync notifications
type MockNotifier struct {
	mock.Mock
}

var _ CatalogSyncNotifier = (*MockNotifier)(nil)

func (m *MockNotifier) PublishCatalogSynced(ctx context.Context, origin, file string, stats *models.ImportStats) error {
	args := m.Called(ctx, origin, file, stats)
	return args.Error(0)
}
