package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
	"storefront-sync-service/internal/services"
)

const maxSyncBatch = 1000

// SyncHandler serves the JSON sync API used by ERP integrations
type SyncHandler struct {
	sync     *services.SyncService
	checkout *services.CheckoutService
	logger   *logrus.Entry
}

func NewSyncHandler(sync *services.SyncService, checkout *services.CheckoutService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		sync:     sync,
		checkout: checkout,
		logger:   logger.WithField("component", "sync_handler"),
	}
}

// SyncProducts godoc
// @Summary Bulk upsert products
// @Tags Sync
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param products body []models.SyncProduct true "Products"
// @Success 200 {object} models.SyncResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /sync/products [post]
func (h *SyncHandler) SyncProducts(c *gin.Context) {
	var items []models.SyncProduct
	if err := c.ShouldBindJSON(&items); err != nil {
		respondValidation(c, err)
		return
	}
	if len(items) > maxSyncBatch {
		respondError(c, http.StatusBadRequest, "BATCH_TOO_LARGE", "At most 1000 products per request")
		return
	}

	results, _ := h.sync.UpsertProducts(c.Request.Context(), items)
	c.JSON(http.StatusOK, models.SyncResponse{Success: true, Results: results})
}

// SyncInventory godoc
// @Summary Update prices and sizes
// @Tags Sync
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param updates body []models.InventoryUpdate true "Inventory updates"
// @Success 200 {object} models.SyncResponse
// @Router /sync/inventory [post]
func (h *SyncHandler) SyncInventory(c *gin.Context) {
	var updates []models.InventoryUpdate
	if err := c.ShouldBindJSON(&updates); err != nil {
		respondValidation(c, err)
		return
	}
	if len(updates) > maxSyncBatch {
		respondError(c, http.StatusBadRequest, "BATCH_TOO_LARGE", "At most 1000 updates per request")
		return
	}

	results := h.sync.UpdateInventory(c.Request.Context(), updates)
	c.JSON(http.StatusOK, models.SyncResponse{Success: true, Results: results})
}

// GetOrders godoc
// @Summary List orders for the ERP
// @Tags Sync
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "pending (default), confirmed, shipped or all"
// @Success 200 {object} models.SuccessResponse
// @Router /sync/orders [get]
func (h *SyncHandler) GetOrders(c *gin.Context) {
	var filter *models.OrderStatus
	if status := c.DefaultQuery("status", string(models.OrderStatusPending)); status != services.ExportAllStatuses {
		s := models.OrderStatus(status)
		filter = &s
	}

	orders, err := h.checkout.ListOrders(c.Request.Context(), filter)
	if errors.Is(err, services.ErrInvalidStatus) {
		respondError(c, http.StatusBadRequest, "INVALID_STATUS", "Unknown order status")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to list orders")
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to retrieve orders")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: orders})
}

// UpdateOrderStatus godoc
// @Summary Move an order forward
// @Tags Sync
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Order ID"
// @Param status body models.UpdateOrderStatusRequest true "New status"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /sync/orders/{id} [patch]
func (h *SyncHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	order, err := h.checkout.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: order})
	case errors.Is(err, services.ErrInvalidStatus):
		respondFieldError(c, http.StatusBadRequest, models.Error{Code: "VALIDATION_ERROR", Message: "Unknown order status", Field: "status"})
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Order not found")
	case errors.Is(err, repository.ErrInvalidTransition):
		respondError(c, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	default:
		h.logger.WithError(err).Error("failed to update order status")
		respondError(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update order")
	}
}
