package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Product is a catalog entry. It is addressable by internal ID, and by
// ExternalID (ERP identity) and SKU when those are present.
type Product struct {
	ID           int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ExternalID   *string    `json:"externalId" gorm:"column:external_id;uniqueIndex"`
	SKU          *string    `json:"sku" gorm:"column:sku;uniqueIndex"`
	Name         string     `json:"name" gorm:"not null"`
	Description  string     `json:"description" gorm:"not null;default:''"`
	Price        MinorUnits `json:"price" gorm:"type:bigint;not null;default:0"` // kopeks
	ImageURL     string     `json:"imageUrl" gorm:"column:image_url;not null;default:''"`
	ThumbnailURL *string    `json:"thumbnailUrl" gorm:"column:thumbnail_url"`
	Category     string     `json:"category" gorm:"not null;index"`
	Subcategory  *string    `json:"subcategory" gorm:"index"`
	Sizes        StringList `json:"sizes" gorm:"type:jsonb;not null;default:'[]'"`
	Colors       StringList `json:"colors" gorm:"type:jsonb;not null;default:'[]'"`
	IsNew        bool       `json:"isNew" gorm:"column:is_new;default:false"`
	OnSale       bool       `json:"onSale" gorm:"column:on_sale;default:false"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// StringList is a list column stored as JSONB. Rows written by older
// clients may hold the array as JSON text, or NULL; anything unreadable
// decodes to an empty list.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value interface{}) error {
	*l = decodeStringList(value)
	return nil
}

func decodeStringList(value interface{}) StringList {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return StringList{}
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case []string:
		return append(StringList{}, v...)
	default:
		return StringList{}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return StringList{}
	}
	return StringList(list)
}

// MinorUnits is an integer amount in minor currency units. The backend may
// hand it back as an integer, a double, or numeric text; NULL and garbage
// decode to zero.
type MinorUnits int64

func (m MinorUnits) Value() (driver.Value, error) {
	return int64(m), nil
}

func (m *MinorUnits) Scan(value interface{}) error {
	*m = decodeMinorUnits(value)
	return nil
}

func decodeMinorUnits(value interface{}) MinorUnits {
	switch v := value.(type) {
	case nil:
		return 0
	case int64:
		return MinorUnits(v)
	case int32:
		return MinorUnits(v)
	case int:
		return MinorUnits(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return MinorUnits(math.Round(v))
	case float32:
		return decodeMinorUnits(float64(v))
	case []byte:
		return parseMinorUnits(string(v))
	case string:
		return parseMinorUnits(v)
	default:
		return 0
	}
}

func parseMinorUnits(s string) MinorUnits {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return MinorUnits(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return decodeMinorUnits(f)
	}
	return 0
}

// ProductPatch carries one optional field per mutable attribute. Nil fields
// are left untouched on update.
type ProductPatch struct {
	ExternalID   *string
	SKU          *string
	Name         *string
	Description  *string
	Price        *int64
	ImageURL     *string
	ThumbnailURL *string
	Category     *string
	Subcategory  *string
	Sizes        *[]string
	Colors       *[]string
	IsNew        *bool
	OnSale       *bool
}

// IsEmpty reports whether the patch would not change anything
func (p ProductPatch) IsEmpty() bool {
	return len(p.Assignments()) == 0
}

// Assignments returns the column assignments for the present fields only
func (p ProductPatch) Assignments() map[string]interface{} {
	set := make(map[string]interface{})
	if p.ExternalID != nil {
		set["external_id"] = *p.ExternalID
	}
	if p.SKU != nil {
		set["sku"] = *p.SKU
	}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Price != nil {
		set["price"] = MinorUnits(*p.Price)
	}
	if p.ImageURL != nil {
		set["image_url"] = *p.ImageURL
	}
	if p.ThumbnailURL != nil {
		set["thumbnail_url"] = *p.ThumbnailURL
	}
	if p.Category != nil {
		set["category"] = *p.Category
	}
	if p.Subcategory != nil {
		set["subcategory"] = *p.Subcategory
	}
	if p.Sizes != nil {
		set["sizes"] = StringList(*p.Sizes)
	}
	if p.Colors != nil {
		set["colors"] = StringList(*p.Colors)
	}
	if p.IsNew != nil {
		set["is_new"] = *p.IsNew
	}
	if p.OnSale != nil {
		set["on_sale"] = *p.OnSale
	}
	return set
}

// ApplyTo copies the present fields onto product
func (p ProductPatch) ApplyTo(product *Product) {
	if p.ExternalID != nil {
		product.ExternalID = Ptr(*p.ExternalID)
	}
	if p.SKU != nil {
		product.SKU = Ptr(*p.SKU)
	}
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = MinorUnits(*p.Price)
	}
	if p.ImageURL != nil {
		product.ImageURL = *p.ImageURL
	}
	if p.ThumbnailURL != nil {
		product.ThumbnailURL = Ptr(*p.ThumbnailURL)
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Subcategory != nil {
		product.Subcategory = Ptr(*p.Subcategory)
	}
	if p.Sizes != nil {
		product.Sizes = append(StringList{}, (*p.Sizes)...)
	}
	if p.Colors != nil {
		product.Colors = append(StringList{}, (*p.Colors)...)
	}
	if p.IsNew != nil {
		product.IsNew = *p.IsNew
	}
	if p.OnSale != nil {
		product.OnSale = *p.OnSale
	}
}

// Ptr returns a pointer to a copy of v
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the pointed-to string or "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ProductFilter narrows the storefront listing
type ProductFilter struct {
	Category    string
	Subcategory string
	SaleOnly    bool
	Page        int
	Limit       int
}

// CreateProductRequest represents the request body for manual product creation
type CreateProductRequest struct {
	ExternalID  *string  `json:"externalId"`
	SKU         *string  `json:"sku"`
	Name        string   `json:"name" binding:"required,min=1,max=500"`
	Description string   `json:"description" binding:"max=10000"`
	Price       int64    `json:"price" binding:"min=0"`
	ImageURL    string   `json:"imageUrl" binding:"required"`
	Category    string   `json:"category"`
	Subcategory *string  `json:"subcategory"`
	Sizes       []string `json:"sizes"`
	Colors      []string `json:"colors"`
	IsNew       bool     `json:"isNew"`
	OnSale      bool     `json:"onSale"`
}

// Validate checks invariants that binding tags cannot express
func (r *CreateProductRequest) Validate() *Error {
	if r.ExternalID != nil && strings.TrimSpace(*r.ExternalID) == "" {
		return &Error{Code: "VALIDATION_ERROR", Message: "externalId must not be blank", Field: "externalId"}
	}
	if r.SKU != nil && strings.TrimSpace(*r.SKU) == "" {
		return &Error{Code: "VALIDATION_ERROR", Message: "sku must not be blank", Field: "sku"}
	}
	if r.Price < 0 {
		return &Error{Code: "VALIDATION_ERROR", Message: fmt.Sprintf("price must be non-negative, got %d", r.Price), Field: "price"}
	}
	return nil
}

// PaginationInfo describes a page of results
type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}
