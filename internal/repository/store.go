package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-sync-service/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate key")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// ProductStore is the catalog backend
type ProductStore interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductByExternalID(ctx context.Context, externalID string) (*models.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error)
}

// CartStore keeps guest carts
type CartStore interface {
	GetCartItems(ctx context.Context, sessionID string) ([]models.CartItem, error)
	UpsertCartItem(ctx context.Context, item *models.CartItem) error
	RemoveCartItem(ctx context.Context, key models.CartKey) error
	ClearCart(ctx context.Context, sessionID string) error
}

// OrderStore keeps orders. PlaceOrder snapshots the session cart into the
// order and empties the cart atomically.
type OrderStore interface {
	PlaceOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, status *models.OrderStatus) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error)
}

// Store is the full backend used by the service
type Store interface {
	ProductStore
	CartStore
	OrderStore
}

// IDGenerator issues strictly increasing product ids derived from the
// current Unix time in milliseconds.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns a fresh id
func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe makes later ids exceed id, so ids issued after a restart never
// collide with rows created by an instance with a faster clock.
func (g *IDGenerator) Observe(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id > g.last {
		g.last = id
	}
}

// buildOrderItems snapshots cart lines against current product data
func buildOrderItems(items []models.CartItem, products map[int64]models.Product) ([]models.OrderItem, error) {
	lines := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d in cart: %w", item.ProductID, ErrNotFound)
		}
		lines = append(lines, models.OrderItem{
			ProductID:  product.ID,
			ExternalID: models.Deref(product.ExternalID),
			Name:       product.Name,
			SKU:        models.Deref(product.SKU),
			Price:      int64(product.Price),
			Quantity:   item.Quantity,
			Size:       item.Size,
			Color:      item.Color,
		})
	}
	return lines, nil
}

// GormStore is the postgres backed Store
type GormStore struct {
	*ProductsRepository
	*CartRepository
	*OrdersRepository
}

func NewGormStore(products *ProductsRepository, carts *CartRepository, orders *OrdersRepository) *GormStore {
	return &GormStore{
		ProductsRepository: products,
		CartRepository:     carts,
		OrdersRepository:   orders,
	}
}
