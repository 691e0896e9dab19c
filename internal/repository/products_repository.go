package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storefront-sync-service/internal/models"
)

type ProductsRepository struct {
	db  *gorm.DB
	ids *IDGenerator
}

func NewProductsRepository(db *gorm.DB, ids *IDGenerator) *ProductsRepository {
	if ids == nil {
		ids = NewIDGenerator()
	}
	return &ProductsRepository{db: db, ids: ids}
}

// SeedIDs advances the id generator past the largest stored id
func (r *ProductsRepository) SeedIDs(ctx context.Context) error {
	var maxID *int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Select("MAX(id)").Scan(&maxID).Error; err != nil {
		return fmt.Errorf("failed to read max product id: %w", err)
	}
	if maxID != nil {
		r.ids.Observe(*maxID)
	}
	return nil
}

// ListProducts returns the whole catalog, newest first
func (r *ProductsRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (r *ProductsRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ProductsRepository) GetProductByExternalID(ctx context.Context, externalID string) (*models.Product, error) {
	return r.first(ctx, "external_id = ?", externalID)
}

func (r *ProductsRepository) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	return r.first(ctx, "sku = ?", sku)
}

// CreateProduct inserts product, assigning an id and creation time when unset
func (r *ProductsRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == 0 {
		product.ID = r.ids.Next()
	} else {
		r.ids.Observe(product.ID)
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

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// UpdateProduct applies only the fields present in patch
func (r *ProductsRepository) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	set := patch.Assignments()
	if len(set) == 0 {
		return r.GetProductByID(ctx, id)
	}

	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Updates(set)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.GetProductByID(ctx, id)
}

func (r *ProductsRepository) first(ctx context.Context, query string, arg interface{}) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where(query, arg).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
