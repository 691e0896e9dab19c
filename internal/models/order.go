package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusConfirmed: 1,
	OrderStatusShipped:   2,
}

// IsValid reports whether s is a known status
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusRank[s]
	return ok
}

// CanTransitionTo allows forward moves only. Re-applying the current status
// is accepted so that the ERP can retry acknowledgements.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// OrderItem is a product snapshot taken at checkout
type OrderItem struct {
	ProductID  int64  `json:"productId"`
	ExternalID string `json:"externalId,omitempty"`
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	Price      int64  `json:"price"`
	Quantity   int    `json:"quantity"`
	Size       string `json:"size"`
	Color      string `json:"color"`
}

type Order struct {
	ID            int64          `json:"id" gorm:"primaryKey"`
	SessionID     string         `json:"sessionId" gorm:"column:session_id;index"`
	CustomerName  string         `json:"customerName" gorm:"column:customer_name;not null"`
	CustomerEmail string         `json:"customerEmail" gorm:"column:customer_email;not null"`
	CustomerPhone string         `json:"customerPhone" gorm:"column:customer_phone"`
	Address       string         `json:"address" gorm:"not null"`
	Total         int64          `json:"total" gorm:"not null"`
	Items         datatypes.JSON `json:"items" gorm:"type:jsonb;not null"`
	Status        OrderStatus    `json:"status" gorm:"type:varchar(32);not null;default:'pending';index"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}

// LineItems decodes the stored item snapshot
func (o *Order) LineItems() ([]OrderItem, error) {
	if len(o.Items) == 0 {
		return nil, nil
	}
	var items []OrderItem
	if err := json.Unmarshal(o.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetLineItems stores the snapshot and recomputes the total
func (o *Order) SetLineItems(items []OrderItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	o.Items = datatypes.JSON(data)
	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}
	o.Total = total
	return nil
}

type CheckoutRequest struct {
	SessionID     string `json:"sessionId" binding:"required"`
	CustomerName  string `json:"customerName" binding:"required,max=200"`
	CustomerEmail string `json:"customerEmail" binding:"required,email"`
	CustomerPhone string `json:"customerPhone" binding:"max=50"`
	Address       string `json:"address" binding:"required,max=1000"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}
