package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
)

// ExportAllStatuses makes the exporter include every order
const ExportAllStatuses = "all"

const (
	exportCurrency  = "RUB"
	exportOperation = "Заказ товара"
	roleSeller      = "Продавец"
	roleBuyer       = "Покупатель"
)

// OrderExporter renders orders as a CommerceML document for sale/query
type OrderExporter struct {
	orders repository.OrderStore
	status string
	now    func() time.Time
	logger *logrus.Entry
}

// NewOrderExporter creates an exporter for orders in status. An empty status
// means pending, ExportAllStatuses disables filtering.
func NewOrderExporter(orders repository.OrderStore, status string, logger *logrus.Logger) *OrderExporter {
	status = strings.TrimSpace(status)
	if status == "" {
		status = string(models.OrderStatusPending)
	}
	return &OrderExporter{
		orders: orders,
		status: status,
		now:    time.Now,
		logger: logger.WithField("component", "order_exporter"),
	}
}

// Export returns the XML document including the declaration
func (e *OrderExporter) Export(ctx context.Context) ([]byte, error) {
	var filter *models.OrderStatus
	if e.status != ExportAllStatuses {
		s := models.OrderStatus(e.status)
		filter = &s
	}

	orders, err := e.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	doc := models.OrdersDocument{
		SchemaVersion: models.CommerceMLSchemaVersion,
		GeneratedAt:   e.now().UTC().Format(time.RFC3339),
		Documents:     make([]models.CMLOrderDocument, 0, len(orders)),
	}
	for i := range orders {
		d, err := orderDocument(&orders[i])
		if err != nil {
			e.logger.WithError(err).WithField("order_id", orders[i].ID).Warn("skipping order with unreadable items")
			continue
		}
		doc.Documents = append(doc.Documents, d)
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode orders: %w", err)
	}

	e.logger.WithFields(logrus.Fields{"status": e.status, "orders": len(doc.Documents)}).Info("orders exported")
	return append([]byte(xml.Header), body...), nil
}

func orderDocument(order *models.Order) (models.CMLOrderDocument, error) {
	items, err := order.LineItems()
	if err != nil {
		return models.CMLOrderDocument{}, err
	}

	id := strconv.FormatInt(order.ID, 10)
	buyer := models.CMLCounterparty{
		ID:       order.CustomerEmail,
		Name:     order.CustomerName,
		Role:     roleBuyer,
		FullName: order.CustomerName,
		Address:  order.Address,
	}
	if order.CustomerEmail != "" {
		buyer.Contacts = append(buyer.Contacts, models.CMLContact{Type: "Почта", Value: order.CustomerEmail})
	}
	if order.CustomerPhone != "" {
		buyer.Contacts = append(buyer.Contacts, models.CMLContact{Type: "Телефон рабочий", Value: order.CustomerPhone})
	}

	doc := models.CMLOrderDocument{
		ID:             id,
		Number:         id,
		Date:           order.CreatedAt.Format("2006-01-02"),
		Time:           order.CreatedAt.Format("15:04:05"),
		Operation:      exportOperation,
		Role:           roleSeller,
		Currency:       exportCurrency,
		Rate:           "1",
		Sum:            FormatMinorUnits(order.Total),
		Counterparties: []models.CMLCounterparty{buyer},
		Items:          make([]models.CMLOrderItem, 0, len(items)),
		Requisites: []models.CMLRequisite{
			{Name: "Статус заказа", Value: string(order.Status)},
		},
	}

	for _, item := range items {
		name := item.Name
		if variant := variantLabel(item); variant != "" {
			name += " (" + variant + ")"
		}
		doc.Items = append(doc.Items, models.CMLOrderItem{
			ID:        orderItemID(item),
			SKU:       item.SKU,
			Name:      name,
			UnitPrice: FormatMinorUnits(item.Price),
			Quantity:  strconv.Itoa(item.Quantity),
			Sum:       FormatMinorUnits(item.Price * int64(item.Quantity)),
		})
	}
	return doc, nil
}

// orderItemID is the ERP's own product id. Products created outside the
// ERP have none and fall back to the internal id.
func orderItemID(item models.OrderItem) string {
	if item.ExternalID != "" {
		return item.ExternalID
	}
	return strconv.FormatInt(item.ProductID, 10)
}

func variantLabel(item models.OrderItem) string {
	var parts []string
	if item.Size != "" && item.Size != models.DefaultCartSize {
		parts = append(parts, item.Size)
	}
	if item.Color != "" && item.Color != models.DefaultCartColor {
		parts = append(parts, item.Color)
	}
	return strings.Join(parts, ", ")
}

// FormatMinorUnits renders kopeks as a decimal amount with two places
func FormatMinorUnits(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}
