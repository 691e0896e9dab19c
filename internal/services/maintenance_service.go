package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"storefront-sync-service/internal/classifier"
	"storefront-sync-service/internal/clients"
	"storefront-sync-service/internal/images"
	"storefront-sync-service/internal/models"
)

const catalogSheet = "Catalog"

var catalogColumns = []string{
	"ID", "External ID", "SKU", "Name", "Category", "Subcategory",
	"Price", "On Sale", "New", "Sizes", "Colors", "Image URL", "Thumbnail URL",
}

// ImageBatcher is the part of the image pipeline used by maintenance
type ImageBatcher interface {
	ConvertBatch(ctx context.Context, limit int) (models.BatchResult, error)
	GenerateThumbnails(ctx context.Context, limit int) (models.BatchResult, error)
	ThumbnailKeys(ctx context.Context) (map[string]bool, error)
}

// MaintenanceService runs operator triggered catalog and image batches
type MaintenanceService struct {
	catalog  *CatalogStore
	pipeline ImageBatcher
	logger   *logrus.Entry
}

func NewMaintenanceService(catalog *CatalogStore, pipeline ImageBatcher, logger *logrus.Logger) *MaintenanceService {
	return &MaintenanceService{
		catalog:  catalog,
		pipeline: pipeline,
		logger:   logger.WithField("component", "maintenance_service"),
	}
}

// Backfill re-classifies every product. A sale marker in the name turns the
// flag on; price based sale status is left to the next offer import.
func (s *MaintenanceService) Backfill(ctx context.Context) (*models.BackfillResult, error) {
	s.catalog.ClearCache(ctx)
	products, err := s.catalog.GetProducts(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.BackfillResult{Categories: make(map[string]int)}
	for _, p := range products {
		result.Processed++
		class := classifier.Classify(models.Deref(p.SKU), p.Name)
		result.Categories[class.Category]++

		var patch models.ProductPatch
		if p.Category != class.Category {
			patch.Category = models.Ptr(class.Category)
		}
		if models.Deref(p.Subcategory) != class.Subcategory {
			patch.Subcategory = models.Ptr(class.Subcategory)
		}
		if !p.OnSale && classifier.IsOnSale(p.Name, 0, 0) {
			patch.OnSale = models.Ptr(true)
		}
		if patch.IsEmpty() {
			continue
		}

		if _, err := s.catalog.UpdateProduct(ctx, p.ID, patch); err != nil {
			s.catalog.ClearCache(ctx)
			return result, fmt.Errorf("failed to reclassify product %d: %w", p.ID, err)
		}
		result.Changed++
	}

	s.catalog.ClearCache(ctx)
	s.logger.WithFields(logrus.Fields{
		"processed": result.Processed,
		"changed":   result.Changed,
	}).Info("catalog backfill finished")
	return result, nil
}

func (s *MaintenanceService) ConvertImages(ctx context.Context, limit int) (models.BatchResult, error) {
	return s.pipeline.ConvertBatch(ctx, limit)
}

// GenerateThumbnails runs one thumbnail batch, then points products at every
// thumbnail that exists for their image.
func (s *MaintenanceService) GenerateThumbnails(ctx context.Context, limit int) (models.BatchResult, error) {
	result, err := s.pipeline.GenerateThumbnails(ctx, limit)
	if err != nil {
		return result, err
	}

	patched, err := s.linkThumbnails(ctx)
	if err != nil {
		return result, err
	}
	if patched > 0 {
		s.logger.WithField("products", patched).Info("thumbnail urls updated")
	}
	return result, nil
}

func (s *MaintenanceService) linkThumbnails(ctx context.Context) (int, error) {
	keys, err := s.pipeline.ThumbnailKeys(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	s.catalog.ClearCache(ctx)
	products, err := s.catalog.GetProducts(ctx)
	if err != nil {
		return 0, err
	}

	patched := 0
	for _, p := range products {
		thumbURL := images.ThumbnailURL(p.ImageURL)
		if thumbURL == "" || models.Deref(p.ThumbnailURL) == thumbURL {
			continue
		}
		if !keys[clients.ImagePrefix+path.Base(thumbURL)] {
			continue
		}
		if _, err := s.catalog.UpdateProduct(ctx, p.ID, models.ProductPatch{ThumbnailURL: models.Ptr(thumbURL)}); err != nil {
			s.catalog.ClearCache(ctx)
			return patched, fmt.Errorf("failed to set thumbnail of product %d: %w", p.ID, err)
		}
		patched++
	}

	if patched > 0 {
		s.catalog.ClearCache(ctx)
	}
	return patched, nil
}

// ExportCatalog renders the catalog as an XLSX workbook
func (s *MaintenanceService) ExportCatalog(ctx context.Context) ([]byte, error) {
	products, err := s.catalog.GetProducts(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", catalogSheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, name := range catalogColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(catalogSheet, cell, name)
		f.SetCellStyle(catalogSheet, cell, cell, headerStyle)
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(catalogSheet, col, col, 20)
	}

	for i, p := range products {
		row := []interface{}{
			p.ID,
			models.Deref(p.ExternalID),
			models.Deref(p.SKU),
			p.Name,
			p.Category,
			models.Deref(p.Subcategory),
			FormatMinorUnits(int64(p.Price)),
			yesNo(p.OnSale),
			yesNo(p.IsNew),
			strings.Join(p.Sizes, ", "),
			strings.Join(p.Colors, ", "),
			p.ImageURL,
			models.Deref(p.ThumbnailURL),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(catalogSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ClearCache drops cached catalog data
func (s *MaintenanceService) ClearCache(ctx context.Context) {
	s.catalog.ClearCache(ctx)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
