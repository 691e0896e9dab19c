package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/cache"
	"storefront-sync-service/internal/classifier"
	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// CatalogStore serves product reads through the cache and writes straight
// to the backend. Writes do not invalidate the cache; batch writers call
// ClearCache once they are done.
type CatalogStore struct {
	backend repository.ProductStore
	cache   *cache.ProductCache
	logger  *logrus.Entry
}

func NewCatalogStore(backend repository.ProductStore, productCache *cache.ProductCache, logger *logrus.Logger) *CatalogStore {
	return &CatalogStore{
		backend: backend,
		cache:   productCache,
		logger:  logger.WithField("component", "catalog_store"),
	}
}

// GetProducts returns the full catalog
func (s *CatalogStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	if products, ok := s.cache.GetAll(ctx); ok {
		return products, nil
	}

	products, err := s.backend.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetAll(ctx, products)
	return products, nil
}

// GetProduct returns a product by internal id
func (s *CatalogStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if product, ok := s.cache.Get(ctx, id); ok {
		return product, nil
	}

	product, err := s.backend.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, product)
	return product, nil
}

// GetProductByExternalID always reads the backend
func (s *CatalogStore) GetProductByExternalID(ctx context.Context, externalID string) (*models.Product, error) {
	return s.backend.GetProductByExternalID(ctx, externalID)
}

// GetProductBySKU always reads the backend
func (s *CatalogStore) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	return s.backend.GetProductBySKU(ctx, sku)
}

func (s *CatalogStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.Price < 0 {
		return fmt.Errorf("negative price %d", product.Price)
	}
	return s.backend.CreateProduct(ctx, product)
}

func (s *CatalogStore) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	if patch.Price != nil && *patch.Price < 0 {
		return nil, fmt.Errorf("negative price %d", *patch.Price)
	}
	return s.backend.UpdateProduct(ctx, id, patch)
}

// ClearCache drops every cached entry
func (s *CatalogStore) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
	s.logger.Debug("catalog cache cleared")
}

// ListProducts filters and paginates the cached catalog
func (s *CatalogStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, *models.PaginationInfo, error) {
	all, err := s.GetProducts(ctx)
	if err != nil {
		return nil, nil, err
	}

	saleOnly := filter.SaleOnly || filter.Category == classifier.CategorySale
	matched := make([]models.Product, 0, len(all))
	for _, p := range all {
		if saleOnly && !p.OnSale {
			continue
		}
		if filter.Category != "" && filter.Category != classifier.CategorySale && p.Category != filter.Category {
			continue
		}
		if filter.Subcategory != "" && models.Deref(p.Subcategory) != filter.Subcategory {
			continue
		}
		matched = append(matched, p)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	total := len(matched)
	totalPages := (total + limit - 1) / limit

	// page is bounded by totalPages before multiplying; pages past the end are empty
	start := total
	if page <= totalPages {
		start = (page - 1) * limit
	}
	end := start + limit
	if end > total {
		end = total
	}

	pagination := &models.PaginationInfo{
		Page:        page,
		Limit:       limit,
		Total:       int64(total),
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
	return matched[start:end], pagination, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
