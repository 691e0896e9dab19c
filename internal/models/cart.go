package models

import "time"

const (
	DefaultCartSize  = "One Size"
	DefaultCartColor = "Default"
)

// CartItem is one line of a shopping session. A line is identified by
// (session, product, size, color); adding the same key again replaces the
// quantity.
type CartItem struct {
	SessionID string    `json:"sessionId" gorm:"primaryKey;column:session_id"`
	ProductID int64     `json:"productId" gorm:"primaryKey;column:product_id"`
	Size      string    `json:"size" gorm:"primaryKey"`
	Color     string    `json:"color" gorm:"primaryKey"`
	Quantity  int       `json:"quantity" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"createdAt"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// CartKey addresses a single cart line
type CartKey struct {
	SessionID string `json:"sessionId"`
	ProductID int64  `json:"productId" binding:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Normalize fills the default size and color the storefront uses when a
// product has no variants.
func (k CartKey) Normalize() CartKey {
	if k.Size == "" {
		k.Size = DefaultCartSize
	}
	if k.Color == "" {
		k.Color = DefaultCartColor
	}
	return k
}

type AddToCartRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	ProductID int64  `json:"productId" binding:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=99"`
}

// CartLine is a cart item joined with its product for display
type CartLine struct {
	CartItem
	Product *Product `json:"product,omitempty"`
	Total   int64    `json:"total"`
}

type CartResponse struct {
	SessionID string     `json:"sessionId"`
	Items     []CartLine `json:"items"`
	Total     int64      `json:"total"`
}
