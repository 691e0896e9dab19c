package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/services"
	"storefront-sync-service/internal/workers"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler exposes operator maintenance batches
type AdminHandler struct {
	maintenance *services.MaintenanceService
	reconciler  *workers.ReconciliationWorker
	logger      *logrus.Entry
}

func NewAdminHandler(maintenance *services.MaintenanceService, reconciler *workers.ReconciliationWorker, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		maintenance: maintenance,
		reconciler:  reconciler,
		logger:      logger.WithField("component", "admin_handler"),
	}
}

// ConvertImages godoc
// @Summary Convert legacy images to WebP
// @Tags Admin
// @Produce json
// @Param limit query int false "Batch size" default(50)
// @Success 200 {object} models.BatchResult
// @Router /admin/images/convert [post]
func (h *AdminHandler) ConvertImages(c *gin.Context) {
	result, err := h.maintenance.ConvertImages(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.logger.WithError(err).Error("image conversion failed")
		respondError(c, http.StatusInternalServerError, "BATCH_FAILED", "Image conversion failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateThumbnails godoc
// @Summary Generate thumbnails
// @Tags Admin
// @Produce json
// @Param limit query int false "Batch size" default(50)
// @Success 200 {object} models.BatchResult
// @Router /admin/images/thumbnails [post]
func (h *AdminHandler) GenerateThumbnails(c *gin.Context) {
	result, err := h.maintenance.GenerateThumbnails(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.logger.WithError(err).Error("thumbnail generation failed")
		respondError(c, http.StatusInternalServerError, "BATCH_FAILED", "Thumbnail generation failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Backfill godoc
// @Summary Re-classify the catalog
// @Tags Admin
// @Produce json
// @Success 200 {object} models.BackfillResult
// @Router /admin/catalog/backfill [post]
func (h *AdminHandler) Backfill(c *gin.Context) {
	result, err := h.maintenance.Backfill(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("backfill failed")
		respondError(c, http.StatusInternalServerError, "BACKFILL_FAILED", "Catalog backfill failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Resync godoc
// @Summary Re-apply exchange files from object storage
// @Tags Admin
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/catalog/resync [post]
func (h *AdminHandler) Resync(c *gin.Context) {
	ran, err := h.reconciler.ResyncFromStorage(c.Request.Context())
	if errors.Is(err, workers.ErrNoObjectStore) {
		respondError(c, http.StatusConflict, "STORAGE_NOT_CONFIGURED", "Object storage is not configured")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("resync failed")
		respondError(c, http.StatusInternalServerError, "RESYNC_FAILED", "Resync failed")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: gin.H{
		"skipped": !ran,
		"stats":   h.reconciler.Stats(),
	}})
}

// Reconcile godoc
// @Summary Run a reconciliation pass now
// @Tags Admin
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /admin/catalog/reconcile [post]
func (h *AdminHandler) Reconcile(c *gin.Context) {
	ran := h.reconciler.RunOnce(c.Request.Context())
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: gin.H{
		"skipped": !ran,
		"stats":   h.reconciler.Stats(),
	}})
}

// ReconcileStatus godoc
// @Summary Reconciliation worker statistics
// @Tags Admin
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /admin/catalog/reconcile [get]
func (h *AdminHandler) ReconcileStatus(c *gin.Context) {
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: gin.H{
		"running": h.reconciler.IsRunning(),
		"busy":    h.reconciler.IsBusy(),
		"stats":   h.reconciler.Stats(),
	}})
}

// ExportCatalog godoc
// @Summary Download the catalog as XLSX
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /admin/catalog/export [get]
func (h *AdminHandler) ExportCatalog(c *gin.Context) {
	data, err := h.maintenance.ExportCatalog(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("catalog export failed")
		respondError(c, http.StatusInternalServerError, "EXPORT_FAILED", "Catalog export failed")
		return
	}
	filename := fmt.Sprintf("catalog_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ClearCache godoc
// @Summary Drop cached catalog data
// @Tags Admin
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /admin/cache/clear [post]
func (h *AdminHandler) ClearCache(c *gin.Context) {
	h.maintenance.ClearCache(c.Request.Context())
	msg := "Cache cleared"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &msg})
}
