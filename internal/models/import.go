package models

// ImportStats summarizes one CommerceML document application
type ImportStats struct {
	Created        int `json:"created"`
	Updated        int `json:"updated"`
	PricesUpdated  int `json:"pricesUpdated"`
	SkippedOffers  int `json:"skippedOffers"`
	SkippedEntries int `json:"skippedEntries"`
}

// Merge adds other into s
func (s *ImportStats) Merge(other *ImportStats) {
	if other == nil {
		return
	}
	s.Created += other.Created
	s.Updated += other.Updated
	s.PricesUpdated += other.PricesUpdated
	s.SkippedOffers += other.SkippedOffers
	s.SkippedEntries += other.SkippedEntries
}

// SyncProduct is one entry of the JSON bulk upsert pushed by the ERP
type SyncProduct struct {
	ExternalID  string   `json:"externalId" binding:"required"`
	SKU         *string  `json:"sku"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Price       int64    `json:"price" binding:"min=0"`
	ImageURL    string   `json:"imageUrl"`
	Category    string   `json:"category"`
	Sizes       []string `json:"sizes"`
	Colors      []string `json:"colors"`
	IsNew       *bool    `json:"isNew"`
}

// InventoryUpdate patches price and sizes of an existing product
type InventoryUpdate struct {
	ExternalID string    `json:"externalId" binding:"required"`
	Price      *int64    `json:"price"`
	Sizes      *[]string `json:"sizes"`
}

// SyncItemStatus is the per-entry outcome of a sync call
type SyncItemStatus string

const (
	SyncItemCreated  SyncItemStatus = "created"
	SyncItemUpdated  SyncItemStatus = "updated"
	SyncItemNotFound SyncItemStatus = "not_found"
	SyncItemFailed   SyncItemStatus = "failed"
)

type SyncItemResult struct {
	ID         int64          `json:"id,omitempty"`
	ExternalID string         `json:"externalId,omitempty"`
	Status     SyncItemStatus `json:"status"`
	Message    string         `json:"message,omitempty"`
}

type SyncResponse struct {
	Success bool             `json:"success"`
	Results []SyncItemResult `json:"results"`
}

// BatchResult reports progress of a bounded maintenance batch
type BatchResult struct {
	Converted int `json:"converted"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// BackfillResult reports a catalog re-classification pass
type BackfillResult struct {
	Processed  int            `json:"processed"`
	Changed    int            `json:"changed"`
	Categories map[string]int `json:"categories"`
}

// ImportColumn describes one column of the spreadsheet catalog import
type ImportColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Example     string `json:"example"`
}

type ImportTemplate struct {
	Columns []ImportColumn `json:"columns"`
}

// CatalogImportTemplate lists the columns accepted by the spreadsheet
// import. Headers of the catalog export are accepted too.
func CatalogImportTemplate() ImportTemplate {
	return ImportTemplate{Columns: []ImportColumn{
		{Name: "External ID", Description: "Product id in the ERP", Required: true, Example: "a1b2c3"},
		{Name: "Name", Description: "Display name", Required: true, Example: "Худи оверсайз"},
		{Name: "SKU", Description: "Article number", Example: "H100"},
		{Name: "Description", Description: "Plain text description", Example: "Хлопок 100%"},
		{Name: "Price", Description: "Price in rubles, comma or dot decimal separator", Required: true, Example: "3500,00"},
		{Name: "Category", Description: "Category slug, classified from name and SKU when empty", Example: "clothing"},
		{Name: "Sizes", Description: "Comma separated sizes", Example: "S, M, L"},
		{Name: "Colors", Description: "Comma separated colors", Example: "Black, White"},
		{Name: "Image URL", Description: "Image file name or URL", Example: "hoodie.jpg"},
		{Name: "New", Description: "yes or no", Example: "yes"},
	}}
}

// ImportRowError points at a spreadsheet cell that could not be used
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// ImportResult reports a spreadsheet catalog import
type ImportResult struct {
	TotalRows    int              `json:"totalRows"`
	Created      int              `json:"created"`
	Updated      int              `json:"updated"`
	Failed       int              `json:"failed"`
	ValidateOnly bool             `json:"validateOnly"`
	Errors       []ImportRowError `json:"errors,omitempty"`
	Results      []SyncItemResult `json:"results,omitempty"`
}
