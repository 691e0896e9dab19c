package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-sync-service/internal/images"
	"storefront-sync-service/internal/models"
)

func newTestSync(t *testing.T, notifier CatalogSyncNotifier) (*SyncService, *testEnv) {
	t.Helper()
	env := newTestEnv(t, nil)
	return NewSyncService(env.catalog, images.NewResolver(nil, ""), notifier, quietLogger()), env
}

func TestSyncService_UpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	notifier := new(MockNotifier)
	notifier.On("PublishCatalogSynced", mock.Anything, OriginSyncAPI, "", mock.Anything).Return(nil).Twice()
	svc, env := newTestSync(t, notifier)

	item := models.SyncProduct{
		ExternalID: "E1",
		SKU:        models.Ptr("SW10"),
		Name:       "Свитшот базовый",
		Price:      450000,
		ImageURL:   "https://cdn.example.com/sw.webp",
		Sizes:      []string{"M"},
	}
	results, stats := svc.UpsertProducts(ctx, []models.SyncProduct{item})
	require.Len(t, results, 1)
	assert.Equal(t, models.SyncItemCreated, results[0].Status)
	assert.Equal(t, 1, stats.Created)

	p, err := env.catalog.GetProductByExternalID(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, "clothing", p.Category)
	assert.Equal(t, "Свитшоты", models.Deref(p.Subcategory))
	assert.Equal(t, "https://cdn.example.com/sw.webp", p.ImageURL)
	assert.True(t, p.IsNew)

	item.Price = 400000
	item.IsNew = models.Ptr(false)
	results, stats = svc.UpsertProducts(ctx, []models.SyncProduct{item})
	assert.Equal(t, models.SyncItemUpdated, results[0].Status)
	assert.Equal(t, p.ID, results[0].ID)
	assert.Equal(t, 1, stats.Updated)

	p, err = env.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MinorUnits(400000), p.Price)
	assert.False(t, p.IsNew)
	notifier.AssertExpectations(t)
}

func TestSyncService_UpsertFailuresDoNotStopBatch(t *testing.T) {
	ctx := context.Background()
	svc, env := newTestSync(t, nil)
	env.mustCreate(t, &models.Product{Name: "Taken", SKU: models.Ptr("DUP"), ExternalID: models.Ptr("OWNER")})
	env.mustCreate(t, &models.Product{Name: "Other", ExternalID: models.Ptr("E2")})

	results, stats := svc.UpsertProducts(ctx, []models.SyncProduct{
		{ExternalID: "", Name: "missing id"},
		{ExternalID: "E2", SKU: models.Ptr("DUP"), Name: "Кружка"},
		{ExternalID: "E3", Name: "Кружка новая", Price: 1000},
	})

	require.Len(t, results, 3)
	assert.Equal(t, models.SyncItemFailed, results[0].Status)
	assert.Equal(t, models.SyncItemFailed, results[1].Status)
	assert.Contains(t, results[1].Message, "already used")
	assert.Equal(t, models.SyncItemCreated, results[2].Status)
	assert.Equal(t, 2, stats.SkippedEntries)
}

func TestSyncService_KnownCategoryIsKept(t *testing.T) {
	ctx := context.Background()
	svc, env := newTestSync(t, nil)

	_, _ = svc.UpsertProducts(ctx, []models.SyncProduct{
		{ExternalID: "E1", Name: "Кружка JDM", Category: "merch"},
		{ExternalID: "E2", Name: "Кружка", Category: "unknown"},
	})

	merch, err := env.catalog.GetProductByExternalID(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, "merch", merch.Category)

	mug, err := env.catalog.GetProductByExternalID(ctx, "E2")
	require.NoError(t, err)
	assert.Equal(t, "accessories", mug.Category)
}

func TestSyncService_UpdateInventory(t *testing.T) {
	ctx := context.Background()
	svc, env := newTestSync(t, nil)
	p := env.mustCreate(t, &models.Product{Name: "Худи", ExternalID: models.Ptr("E1"), Price: 500000, Sizes: models.StringList{"M"}})

	sizes := []string{"S", "M", "L"}
	results := svc.UpdateInventory(ctx, []models.InventoryUpdate{
		{ExternalID: "E1", Price: models.Ptr(int64(450000)), Sizes: &sizes},
		{ExternalID: "NOPE", Price: models.Ptr(int64(1))},
		{ExternalID: "E1", Price: models.Ptr(int64(-5))},
	})

	require.Len(t, results, 3)
	assert.Equal(t, models.SyncItemUpdated, results[0].Status)
	assert.Equal(t, p.ID, results[0].ID)
	assert.Equal(t, models.SyncItemNotFound, results[1].Status)
	assert.Equal(t, models.SyncItemFailed, results[2].Status)

	got, err := env.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MinorUnits(450000), got.Price)
	assert.Equal(t, models.StringList{"S", "M", "L"}, got.Sizes)
}
