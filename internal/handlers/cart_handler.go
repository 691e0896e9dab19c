package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
	"storefront-sync-service/internal/services"
)

// CartHandler serves guest carts and checkout
type CartHandler struct {
	checkout *services.CheckoutService
	logger   *logrus.Entry
}

func NewCartHandler(checkout *services.CheckoutService, logger *logrus.Logger) *CartHandler {
	return &CartHandler{
		checkout: checkout,
		logger:   logger.WithField("component", "cart_handler"),
	}
}

// GetCart godoc
// @Summary Get cart
// @Tags Cart
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.SuccessResponse
// @Router /cart/{sessionId} [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.checkout.GetCart(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.logger.WithError(err).Error("failed to load cart")
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to retrieve cart")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: cart})
}

// AddToCart godoc
// @Summary Set cart line quantity
// @Description Adding an existing (product, size, color) line replaces its quantity
// @Tags Cart
// @Accept json
// @Produce json
// @Param item body models.AddToCartRequest true "Cart line"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /cart [post]
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	cart, err := h.checkout.AddToCart(c.Request.Context(), &req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: cart})
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
	case errors.Is(err, services.ErrInvalidVariant):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		h.logger.WithError(err).Error("failed to update cart")
		respondError(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update cart")
	}
}

// RemoveFromCart godoc
// @Summary Remove cart line
// @Tags Cart
// @Accept json
// @Param sessionId path string true "Session ID"
// @Param key body models.CartKey true "Line key"
// @Success 204
// @Router /cart/{sessionId}/items [delete]
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	var key models.CartKey
	if err := c.ShouldBindJSON(&key); err != nil {
		respondValidation(c, err)
		return
	}
	key.SessionID = c.Param("sessionId")

	err := h.checkout.RemoveFromCart(c.Request.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Cart item not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to remove cart item")
		respondError(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to remove cart item")
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCart godoc
// @Summary Clear cart
// @Tags Cart
// @Param sessionId path string true "Session ID"
// @Success 204
// @Router /cart/{sessionId} [delete]
func (h *CartHandler) ClearCart(c *gin.Context) {
	if err := h.checkout.ClearCart(c.Request.Context(), c.Param("sessionId")); err != nil {
		h.logger.WithError(err).Error("failed to clear cart")
		respondError(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to clear cart")
		return
	}
	c.Status(http.StatusNoContent)
}

// Checkout godoc
// @Summary Place order
// @Description Snapshots the session cart into a pending order and empties the cart
// @Tags Orders
// @Accept json
// @Produce json
// @Param order body models.CheckoutRequest true "Customer details"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /orders [post]
func (h *CartHandler) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	order, err := h.checkout.Checkout(c.Request.Context(), &req)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, models.SuccessResponse{Success: true, Data: order})
	case errors.Is(err, repository.ErrEmptyCart):
		respondError(c, http.StatusBadRequest, "EMPTY_CART", "Cart is empty")
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusConflict, "CART_STALE", "Cart references a product that no longer exists")
	default:
		h.logger.WithError(err).Error("checkout failed")
		respondError(c, http.StatusInternalServerError, "CHECKOUT_FAILED", "Failed to place order")
	}
}

// GetOrder godoc
// @Summary Get order
// @Tags Orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /orders/{id} [get]
func (h *CartHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := h.checkout.GetOrder(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to load order")
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to retrieve order")
		return
	}
	// orders are visible only to the session that placed them
	if session := strings.TrimSpace(c.Query("sessionId")); session == "" || session != order.SessionID {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: order})
}
