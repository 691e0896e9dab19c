package services

import (
	"bytes"
	"context"
	"encoding/xml"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
)

func placeTestOrder(t *testing.T, store *repository.MemoryStore, session string) *models.Order {
	t.Helper()
	ctx := context.Background()
	p := &models.Product{Name: "Носки", Price: 50050, SKU: models.Ptr("N1-" + session), ExternalID: models.Ptr("E-" + session)}
	require.NoError(t, store.CreateProduct(ctx, p))
	require.NoError(t, store.UpsertCartItem(ctx, &models.CartItem{
		SessionID: session, ProductID: p.ID, Size: "40-45", Color: models.DefaultCartColor, Quantity: 3,
	}))
	order := &models.Order{
		SessionID:     session,
		CustomerName:  "Иван Петров",
		CustomerEmail: "ivan@example.com",
		CustomerPhone: "+79990000000",
		Address:       "Тула, ул. Ленина 1",
	}
	require.NoError(t, store.PlaceOrder(ctx, order))
	return order
}

func decodeOrders(t *testing.T, data []byte) models.OrdersDocument {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, []byte(xml.Header)))
	var doc models.OrdersDocument
	require.NoError(t, xml.Unmarshal(data, &doc))
	return doc
}

func TestOrderExporter_PendingByDefault(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(nil)
	pending := placeTestOrder(t, store, "s1")
	shipped := placeTestOrder(t, store, "s2")
	_, err := store.UpdateOrderStatus(ctx, shipped.ID, models.OrderStatusShipped)
	require.NoError(t, err)

	data, err := NewOrderExporter(store, "", quietLogger()).Export(ctx)
	require.NoError(t, err)

	doc := decodeOrders(t, data)
	assert.Equal(t, models.CommerceMLSchemaVersion, doc.SchemaVersion)
	require.Len(t, doc.Documents, 1)

	d := doc.Documents[0]
	assert.Equal(t, "1501.50", d.Sum)
	assert.Equal(t, "RUB", d.Currency)
	require.Len(t, d.Counterparties, 1)
	assert.Equal(t, "ivan@example.com", d.Counterparties[0].ID)
	assert.Equal(t, "Тула, ул. Ленина 1", d.Counterparties[0].Address)
	require.Len(t, d.Items, 1)
	assert.Equal(t, "E-s1", d.Items[0].ID)
	assert.Equal(t, "500.50", d.Items[0].UnitPrice)
	assert.Equal(t, "3", d.Items[0].Quantity)
	assert.Equal(t, "Носки (40-45)", d.Items[0].Name)
	assert.Equal(t, pending.CreatedAt.Format("2006-01-02"), d.Date)
}

func TestOrderExporter_AllStatuses(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(nil)
	placeTestOrder(t, store, "s1")
	shipped := placeTestOrder(t, store, "s2")
	_, err := store.UpdateOrderStatus(ctx, shipped.ID, models.OrderStatusShipped)
	require.NoError(t, err)

	data, err := NewOrderExporter(store, ExportAllStatuses, quietLogger()).Export(ctx)
	require.NoError(t, err)
	assert.Len(t, decodeOrders(t, data).Documents, 2)
}

func TestOrderExporter_NoOrders(t *testing.T) {
	data, err := NewOrderExporter(repository.NewMemoryStore(nil), "", quietLogger()).Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, decodeOrders(t, data).Documents)
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "0.00", FormatMinorUnits(0))
	assert.Equal(t, "3500.00", FormatMinorUnits(350000))
	assert.Equal(t, "0.05", FormatMinorUnits(5))
}

func TestOrderExporter_ItemIDFallsBackToInternalID(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(nil)
	p := &models.Product{Name: "Кружка", Price: 70000}
	require.NoError(t, store.CreateProduct(ctx, p))
	require.NoError(t, store.UpsertCartItem(ctx, &models.CartItem{SessionID: "s1", ProductID: p.ID, Quantity: 1}))
	require.NoError(t, store.PlaceOrder(ctx, &models.Order{SessionID: "s1", CustomerName: "Анна", Address: "Тула"}))

	data, err := NewOrderExporter(store, "", quietLogger()).Export(ctx)
	require.NoError(t, err)

	doc := decodeOrders(t, data)
	require.Len(t, doc.Documents, 1)
	require.Len(t, doc.Documents[0].Items, 1)
	assert.Equal(t, strconv.FormatInt(p.ID, 10), doc.Documents[0].Items[0].ID)
}
