package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/classifier"
	"storefront-sync-service/internal/images"
	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
)

// SyncService applies the JSON sync API pushed by the ERP. Products are
// resolved the same way as CommerceML entries.
type SyncService struct {
	catalog  *CatalogStore
	resolver *images.Resolver
	notifier CatalogSyncNotifier
	logger   *logrus.Entry
}

func NewSyncService(catalog *CatalogStore, resolver *images.Resolver, notifier CatalogSyncNotifier, logger *logrus.Logger) *SyncService {
	return &SyncService{
		catalog:  catalog,
		resolver: resolver,
		notifier: notifier,
		logger:   logger.WithField("component", "sync_service"),
	}
}

// UpsertProducts creates or updates each item. A failing item does not
// stop the batch.
func (s *SyncService) UpsertProducts(ctx context.Context, items []models.SyncProduct) ([]models.SyncItemResult, *models.ImportStats) {
	results := make([]models.SyncItemResult, 0, len(items))
	stats := &models.ImportStats{}

	for _, item := range items {
		result := s.upsert(ctx, item)
		switch result.Status {
		case models.SyncItemCreated:
			stats.Created++
		case models.SyncItemUpdated:
			stats.Updated++
		default:
			stats.SkippedEntries++
		}
		results = append(results, result)
	}

	if len(items) > 0 {
		s.catalog.ClearCache(ctx)
		if s.notifier != nil {
			if err := s.notifier.PublishCatalogSynced(ctx, OriginSyncAPI, "", stats); err != nil {
				s.logger.WithError(err).Warn("failed to publish catalog sync event")
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"created": stats.Created,
		"updated": stats.Updated,
		"failed":  stats.SkippedEntries,
	}).Info("product sync applied")
	return results, stats
}

func (s *SyncService) upsert(ctx context.Context, item models.SyncProduct) models.SyncItemResult {
	externalID := strings.TrimSpace(item.ExternalID)
	result := models.SyncItemResult{ExternalID: externalID}
	if externalID == "" || strings.TrimSpace(item.Name) == "" {
		result.Status = models.SyncItemFailed
		result.Message = "externalId and name are required"
		return result
	}
	if item.Price < 0 {
		result.Status = models.SyncItemFailed
		result.Message = "price must be non-negative"
		return result
	}

	sku := ""
	if item.SKU != nil {
		sku = strings.TrimSpace(*item.SKU)
	}
	category, subcategory := s.categorize(sku, item.Name, item.Category)
	onSale := classifier.IsOnSale(item.Name, item.Price, 0)

	existing, err := s.resolve(ctx, externalID, sku)
	if err != nil && !errors.Is(err, ErrMissingIdentity) {
		return failed(result, s.logger, err)
	}

	if existing == nil {
		product := &models.Product{
			ExternalID:  models.Ptr(externalID),
			Name:        item.Name,
			Description: item.Description,
			Price:       models.MinorUnits(item.Price),
			ImageURL:    s.resolver.Resolve(item.ImageURL),
			Category:    category,
			Sizes:       models.StringList(item.Sizes),
			Colors:      models.StringList(item.Colors),
			IsNew:       true,
			OnSale:      onSale,
		}
		if sku != "" {
			product.SKU = models.Ptr(sku)
		}
		if subcategory != "" {
			product.Subcategory = models.Ptr(subcategory)
		}
		if item.IsNew != nil {
			product.IsNew = *item.IsNew
		}
		if err := s.catalog.CreateProduct(ctx, product); err != nil {
			return failed(result, s.logger, err)
		}
		result.ID = product.ID
		result.Status = models.SyncItemCreated
		return result
	}

	patch := models.ProductPatch{
		ExternalID:  models.Ptr(externalID),
		Name:        models.Ptr(item.Name),
		Description: models.Ptr(item.Description),
		Price:       models.Ptr(item.Price),
		ImageURL:    models.Ptr(s.resolver.Resolve(item.ImageURL)),
		Category:    models.Ptr(category),
		Subcategory: models.Ptr(subcategory),
		OnSale:      models.Ptr(onSale),
		IsNew:       item.IsNew,
	}
	if sku != "" {
		patch.SKU = models.Ptr(sku)
	}
	if item.Sizes != nil {
		patch.Sizes = &item.Sizes
	}
	if item.Colors != nil {
		patch.Colors = &item.Colors
	}

	updated, err := s.catalog.UpdateProduct(ctx, existing.ID, patch)
	if err != nil {
		return failed(result, s.logger, err)
	}
	result.ID = updated.ID
	result.Status = models.SyncItemUpdated
	return result
}

// UpdateInventory patches price and sizes of known products
func (s *SyncService) UpdateInventory(ctx context.Context, updates []models.InventoryUpdate) []models.SyncItemResult {
	results := make([]models.SyncItemResult, 0, len(updates))
	changed := false

	for _, u := range updates {
		result := models.SyncItemResult{ExternalID: u.ExternalID}

		existing, err := s.catalog.GetProductByExternalID(ctx, strings.TrimSpace(u.ExternalID))
		if errors.Is(err, repository.ErrNotFound) {
			result.Status = models.SyncItemNotFound
			results = append(results, result)
			continue
		}
		if err != nil {
			results = append(results, failed(result, s.logger, err))
			continue
		}

		patch := models.ProductPatch{Sizes: u.Sizes}
		if u.Price != nil {
			if *u.Price < 0 {
				result.Status = models.SyncItemFailed
				result.Message = "price must be non-negative"
				results = append(results, result)
				continue
			}
			patch.Price = u.Price
			patch.OnSale = models.Ptr(classifier.IsOnSale(existing.Name, *u.Price, 0))
		}
		if patch.IsEmpty() {
			result.ID = existing.ID
			result.Status = models.SyncItemUpdated
			results = append(results, result)
			continue
		}

		updated, err := s.catalog.UpdateProduct(ctx, existing.ID, patch)
		if err != nil {
			results = append(results, failed(result, s.logger, err))
			continue
		}
		changed = true
		result.ID = updated.ID
		result.Status = models.SyncItemUpdated
		results = append(results, result)
	}

	if changed {
		s.catalog.ClearCache(ctx)
	}
	return results
}

func (s *SyncService) resolve(ctx context.Context, externalID, sku string) (*models.Product, error) {
	product, err := s.catalog.GetProductByExternalID(ctx, externalID)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if sku != "" {
		product, err = s.catalog.GetProductBySKU(ctx, sku)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrMissingIdentity
}

// categorize trusts a known category sent by the ERP and falls back to the
// classifier otherwise.
func (s *SyncService) categorize(sku, name, requested string) (string, string) {
	class := classifier.Classify(sku, name)
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == classifier.CategorySale || !classifier.IsKnownCategory(requested) {
		return class.Category, class.Subcategory
	}
	if requested == class.Category {
		return requested, class.Subcategory
	}
	return requested, ""
}

func failed(result models.SyncItemResult, logger *logrus.Entry, err error) models.SyncItemResult {
	logger.WithError(err).WithField("external_id", result.ExternalID).Warn("sync item failed")
	result.Status = models.SyncItemFailed
	if errors.Is(err, repository.ErrDuplicate) {
		result.Message = "sku or externalId already used by another product"
	} else {
		result.Message = "storage error"
	}
	return result
}
