package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-sync-service/internal/models"
)

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) GetCartItems(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return items, nil
}

// UpsertCartItem inserts the line or replaces the quantity of an existing one
func (r *CartRepository) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "session_id"}, {Name: "product_id"}, {Name: "size"}, {Name: "color"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
	}).Create(item).Error
}

func (r *CartRepository) RemoveCartItem(ctx context.Context, key models.CartKey) error {
	key = key.Normalize()
	result := r.db.WithContext(ctx).
		Where("session_id = ? AND product_id = ? AND size = ? AND color = ?", key.SessionID, key.ProductID, key.Size, key.Color).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CartRepository) ClearCart(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&models.CartItem{}).Error
}
