package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
)

var (
	ErrInvalidVariant = errors.New("product has no such size or color")
	ErrInvalidStatus  = errors.New("unknown order status")
)

// OrderNotifier is told about order lifecycle changes
type OrderNotifier interface {
	PublishOrderPlaced(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error
}

// CheckoutService owns guest carts and the orders placed from them
type CheckoutService struct {
	carts    repository.CartStore
	orders   repository.OrderStore
	catalog  *CatalogStore
	notifier OrderNotifier
	logger   *logrus.Entry
}

func NewCheckoutService(carts repository.CartStore, orders repository.OrderStore, catalog *CatalogStore, notifier OrderNotifier, logger *logrus.Logger) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		orders:   orders,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger.WithField("component", "checkout_service"),
	}
}

// GetCart returns the session cart joined with current product data.
// Lines whose product disappeared are returned without a product.
func (s *CheckoutService) GetCart(ctx context.Context, sessionID string) (*models.CartResponse, error) {
	items, err := s.carts.GetCartItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	resp := &models.CartResponse{SessionID: sessionID, Items: make([]models.CartLine, 0, len(items))}
	for _, item := range items {
		line := models.CartLine{CartItem: item}
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		switch {
		case err == nil:
			line.Product = product
			line.Total = int64(product.Price) * int64(item.Quantity)
		case errors.Is(err, repository.ErrNotFound):
			s.logger.WithField("product_id", item.ProductID).Debug("cart references missing product")
		default:
			return nil, err
		}
		resp.Total += line.Total
		resp.Items = append(resp.Items, line)
	}
	return resp, nil
}

// AddToCart sets the quantity of a cart line, replacing any previous value
func (s *CheckoutService) AddToCart(ctx context.Context, req *models.AddToCartRequest) (*models.CartResponse, error) {
	key := models.CartKey{
		SessionID: req.SessionID,
		ProductID: req.ProductID,
		Size:      strings.TrimSpace(req.Size),
		Color:     strings.TrimSpace(req.Color),
	}.Normalize()

	product, err := s.catalog.GetProduct(ctx, key.ProductID)
	if err != nil {
		return nil, err
	}
	if !offersVariant(product.Sizes, key.Size, models.DefaultCartSize) {
		return nil, fmt.Errorf("%w: size %q", ErrInvalidVariant, key.Size)
	}
	if !offersVariant(product.Colors, key.Color, models.DefaultCartColor) {
		return nil, fmt.Errorf("%w: color %q", ErrInvalidVariant, key.Color)
	}

	item := &models.CartItem{
		SessionID: key.SessionID,
		ProductID: key.ProductID,
		Size:      key.Size,
		Color:     key.Color,
		Quantity:  req.Quantity,
	}
	if err := s.carts.UpsertCartItem(ctx, item); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, key.SessionID)
}

func (s *CheckoutService) RemoveFromCart(ctx context.Context, key models.CartKey) error {
	return s.carts.RemoveCartItem(ctx, key.Normalize())
}

func (s *CheckoutService) ClearCart(ctx context.Context, sessionID string) error {
	return s.carts.ClearCart(ctx, sessionID)
}

// Checkout turns the session cart into a pending order
func (s *CheckoutService) Checkout(ctx context.Context, req *models.CheckoutRequest) (*models.Order, error) {
	order := &models.Order{
		SessionID:     req.SessionID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Address:       strings.TrimSpace(req.Address),
		Status:        models.OrderStatusPending,
	}
	if err := s.orders.PlaceOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"order_id": order.ID, "total": order.Total}).Info("order placed")
	if s.notifier != nil {
		if err := s.notifier.PublishOrderPlaced(ctx, order); err != nil {
			s.logger.WithError(err).Warn("failed to publish order placed event")
		}
	}
	return order, nil
}

func (s *CheckoutService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

func (s *CheckoutService) ListOrders(ctx context.Context, status *models.OrderStatus) ([]models.Order, error) {
	if status != nil && !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *status)
	}
	return s.orders.ListOrders(ctx, status)
}

// UpdateOrderStatus moves an order forward in its lifecycle
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	current, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.orders.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if current.Status != updated.Status {
		s.logger.WithFields(logrus.Fields{
			"order_id": id,
			"from":     current.Status,
			"to":       updated.Status,
		}).Info("order status changed")
		if s.notifier != nil {
			if err := s.notifier.PublishOrderStatusChanged(ctx, updated, current.Status); err != nil {
				s.logger.WithError(err).Warn("failed to publish order status event")
			}
		}
	}
	return updated, nil
}

// offersVariant accepts the default value, or any value when the product
// lists none.
func offersVariant(options models.StringList, value, fallback string) bool {
	if value == fallback || len(options) == 0 {
		return true
	}
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
