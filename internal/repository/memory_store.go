package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront-sync-service/internal/models"
)

// MemoryStore is an in-process Store for development and tests. It keeps
// the same uniqueness rules as the postgres schema.
type MemoryStore struct {
	mu        sync.RWMutex
	ids       *IDGenerator
	products  map[int64]models.Product
	carts     map[string][]models.CartItem
	orders    map[int64]models.Order
	nextOrder int64

	writes int
}

func NewMemoryStore(ids *IDGenerator) *MemoryStore {
	if ids == nil {
		ids = NewIDGenerator()
	}
	return &MemoryStore{
		ids:       ids,
		products:  make(map[int64]models.Product),
		carts:     make(map[string][]models.CartItem),
		orders:    make(map[int64]models.Order),
		nextOrder: 1,
	}
}

// Writes returns the number of successful mutations, for tests
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, copyProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyProduct(p)
	return &cp, nil
}

func (s *MemoryStore) GetProductByExternalID(ctx context.Context, externalID string) (*models.Product, error) {
	return s.findProduct(func(p models.Product) bool {
		return p.ExternalID != nil && *p.ExternalID == externalID
	})
}

func (s *MemoryStore) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	return s.findProduct(func(p models.Product) bool {
		return p.SKU != nil && *p.SKU == sku
	})
}

func (s *MemoryStore) CreateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == 0 {
		product.ID = s.ids.Next()
	} else {
		s.ids.Observe(product.ID)
	}
	if _, exists := s.products[product.ID]; exists {
		return fmt.Errorf("%w: id %d", ErrDuplicate, product.ID)
	}
	if err := s.checkUnique(product.ID, product.ExternalID, product.SKU); err != nil {
		return err
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	if product.Sizes == nil {
		product.Sizes = models.StringList{}
	}
	if product.Colors == nil {
		product.Colors = models.StringList{}
	}

	s.products[product.ID] = copyProduct(*product)
	s.writes++
	return nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := copyProduct(current)
	patch.ApplyTo(&updated)
	if err := s.checkUnique(id, updated.ExternalID, updated.SKU); err != nil {
		return nil, err
	}

	s.products[id] = updated
	if !patch.IsEmpty() {
		s.writes++
	}
	out := copyProduct(updated)
	return &out, nil
}

func (s *MemoryStore) GetCartItems(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CartItem{}, s.carts[sessionID]...), nil
}

func (s *MemoryStore) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	lines := s.carts[item.SessionID]
	for i := range lines {
		if sameLine(lines[i], *item) {
			lines[i].Quantity = item.Quantity
			s.writes++
			return nil
		}
	}
	s.carts[item.SessionID] = append(lines, *item)
	s.writes++
	return nil
}

func (s *MemoryStore) RemoveCartItem(ctx context.Context, key models.CartKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = key.Normalize()
	target := models.CartItem{SessionID: key.SessionID, ProductID: key.ProductID, Size: key.Size, Color: key.Color}
	lines := s.carts[key.SessionID]
	for i := range lines {
		if sameLine(lines[i], target) {
			s.carts[key.SessionID] = append(lines[:i:i], lines[i+1:]...)
			s.writes++
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ClearCart(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	s.writes++
	return nil
}

func (s *MemoryStore) PlaceOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[order.SessionID]
	if len(items) == 0 {
		return ErrEmptyCart
	}
	lines, err := buildOrderItems(items, s.products)
	if err != nil {
		return err
	}
	if err := order.SetLineItems(lines); err != nil {
		return err
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	now := time.Now()
	order.ID = s.nextOrder
	order.CreatedAt = now
	order.UpdatedAt = now
	s.nextOrder++

	s.orders[order.ID] = *order
	delete(s.carts, order.SessionID)
	s.writes++
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &order, nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, status *models.OrderStatus) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	s.orders[id] = order
	s.writes++
	return &order, nil
}

func (s *MemoryStore) findProduct(match func(models.Product) bool) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if match(p) {
			cp := copyProduct(p)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) checkUnique(id int64, externalID, sku *string) error {
	for otherID, p := range s.products {
		if otherID == id {
			continue
		}
		if externalID != nil && p.ExternalID != nil && *p.ExternalID == *externalID {
			return fmt.Errorf("%w: external_id %s", ErrDuplicate, *externalID)
		}
		if sku != nil && p.SKU != nil && *p.SKU == *sku {
			return fmt.Errorf("%w: sku %s", ErrDuplicate, *sku)
		}
	}
	return nil
}

func sameLine(a, b models.CartItem) bool {
	return a.SessionID == b.SessionID && a.ProductID == b.ProductID && a.Size == b.Size && a.Color == b.Color
}

func copyProduct(p models.Product) models.Product {
	if p.ExternalID != nil {
		p.ExternalID = models.Ptr(*p.ExternalID)
	}
	if p.SKU != nil {
		p.SKU = models.Ptr(*p.SKU)
	}
	if p.ThumbnailURL != nil {
		p.ThumbnailURL = models.Ptr(*p.ThumbnailURL)
	}
	if p.Subcategory != nil {
		p.Subcategory = models.Ptr(*p.Subcategory)
	}
	p.Sizes = append(models.StringList{}, p.Sizes...)
	p.Colors = append(models.StringList{}, p.Colors...)
	return p
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*GormStore)(nil)
