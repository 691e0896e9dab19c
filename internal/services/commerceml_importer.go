package services

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"storefront-sync-service/internal/classifier"
	"storefront-sync-service/internal/images"
	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
)

var (
	ErrMalformedFeed   = errors.New("malformed CommerceML document")
	ErrMissingIdentity = errors.New("no product matches the entry identity")
	ErrInvalidPrice    = errors.New("invalid price")
)

const (
	OriginExchange  = "exchange"
	OriginReconcile = "reconcile"
	OriginResync    = "resync"
	OriginSyncAPI   = "sync_api"
)

// CatalogSyncNotifier is told when an import finished
type CatalogSyncNotifier interface {
	PublishCatalogSynced(ctx context.Context, origin, file string, stats *models.ImportStats) error
}

// CommerceMLImporter applies catalog (import.xml) and offer package
// (offers.xml) documents to the catalog. Entries are upserted by external
// id, then by SKU, so replaying a document converges to the same state.
type CommerceMLImporter struct {
	catalog  *CatalogStore
	resolver *images.Resolver
	notifier CatalogSyncNotifier
	logger   *logrus.Entry
}

func NewCommerceMLImporter(catalog *CatalogStore, resolver *images.Resolver, notifier CatalogSyncNotifier, logger *logrus.Logger) *CommerceMLImporter {
	return &CommerceMLImporter{
		catalog:  catalog,
		resolver: resolver,
		notifier: notifier,
		logger:   logger.WithField("component", "commerceml_importer"),
	}
}

// ParseDocument decodes a CommerceML document. Encodings other than UTF-8
// (1C commonly emits windows-1251) are honoured via the XML declaration.
func ParseDocument(data []byte) (*models.CommerceInfo, error) {
	var doc models.CommerceInfo
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	return &doc, nil
}

// Import applies a document received through the exchange endpoint
func (i *CommerceMLImporter) Import(ctx context.Context, data []byte) (*models.ImportStats, error) {
	return i.ImportNamed(ctx, data, OriginExchange, "")
}

// ImportNamed parses the whole document before touching the catalog, then
// applies products in document order followed by offers.
func (i *CommerceMLImporter) ImportNamed(ctx context.Context, data []byte, origin, file string) (*models.ImportStats, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}

	log := i.logger.WithFields(logrus.Fields{"origin": origin, "file": file})
	stats := &models.ImportStats{}

	if doc.Catalog != nil {
		for _, entry := range doc.Catalog.Products {
			if err := i.applyProduct(ctx, entry, stats); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					stats.SkippedEntries++
					log.WithError(err).WithField("external_id", entry.ID).Warn("skipping conflicting product entry")
					continue
				}
				i.catalog.ClearCache(ctx)
				return stats, err
			}
		}
	}

	if doc.OfferPackage != nil {
		for _, offer := range doc.OfferPackage.Offers {
			err := i.applyOffer(ctx, offer, stats)
			switch {
			case err == nil:
			case errors.Is(err, ErrMissingIdentity):
				stats.SkippedOffers++
				log.WithField("offer_id", offer.ID).Debug("offer references unknown product, skipped")
			case errors.Is(err, ErrInvalidPrice):
				stats.SkippedOffers++
				log.WithError(err).WithField("offer_id", offer.ID).Warn("offer without usable price, skipped")
			default:
				i.catalog.ClearCache(ctx)
				return stats, err
			}
		}
	}

	i.catalog.ClearCache(ctx)

	log.WithFields(logrus.Fields{
		"created":         stats.Created,
		"updated":         stats.Updated,
		"prices_updated":  stats.PricesUpdated,
		"skipped_offers":  stats.SkippedOffers,
		"skipped_entries": stats.SkippedEntries,
	}).Info("CommerceML document applied")

	if i.notifier != nil {
		if err := i.notifier.PublishCatalogSynced(ctx, origin, file, stats); err != nil {
			log.WithError(err).Warn("failed to publish catalog sync event")
		}
	}
	return stats, nil
}

func (i *CommerceMLImporter) applyProduct(ctx context.Context, entry models.CMLProduct, stats *models.ImportStats) error {
	externalID := strings.TrimSpace(entry.ID)
	if externalID == "" {
		stats.SkippedEntries++
		return nil
	}
	sku := strings.TrimSpace(entry.SKU)
	name := strings.TrimSpace(entry.Name)
	sizes, colors := splitCharacteristics(entry.Characteristics)

	existing, err := i.resolveIdentity(ctx, externalID, sku)
	if err != nil && !errors.Is(err, ErrMissingIdentity) {
		return err
	}

	if existing == nil {
		class := classifier.Classify(sku, name)
		product := &models.Product{
			ExternalID:  models.Ptr(externalID),
			Name:        name,
			Description: models.Deref(entry.Description),
			ImageURL:    i.resolver.Resolve(firstNonEmpty(entry.Images)),
			Category:    class.Category,
			Subcategory: models.Ptr(class.Subcategory),
			Sizes:       models.StringList(sizes),
			Colors:      models.StringList(colors),
			IsNew:       true,
			OnSale:      classifier.IsOnSale(name, 0, 0),
		}
		if sku != "" {
			product.SKU = models.Ptr(sku)
		}
		if err := i.catalog.CreateProduct(ctx, product); err != nil {
			return fmt.Errorf("create product %s: %w", externalID, err)
		}
		stats.Created++
		return nil
	}

	if name == "" {
		name = existing.Name
	}
	if sku == "" {
		sku = models.Deref(existing.SKU)
	}
	class := classifier.Classify(sku, name)

	patch := models.ProductPatch{
		ExternalID:  models.Ptr(externalID),
		Name:        models.Ptr(name),
		Description: entry.Description,
		Category:    models.Ptr(class.Category),
		Subcategory: models.Ptr(class.Subcategory),
	}
	if sku != "" {
		patch.SKU = models.Ptr(sku)
	}
	if img := firstNonEmpty(entry.Images); img != "" {
		patch.ImageURL = models.Ptr(i.resolver.Resolve(img))
	}
	if len(sizes) > 0 {
		patch.Sizes = &sizes
	}
	if len(colors) > 0 {
		patch.Colors = &colors
	}
	// price-driven sale status is owned by offers
	if classifier.IsOnSale(name, 0, 0) {
		patch.OnSale = models.Ptr(true)
	}

	if _, err := i.catalog.UpdateProduct(ctx, existing.ID, patch); err != nil {
		return fmt.Errorf("update product %s: %w", externalID, err)
	}
	stats.Updated++
	return nil
}

func (i *CommerceMLImporter) applyOffer(ctx context.Context, offer models.CMLOffer, stats *models.ImportStats) error {
	externalID := offerProductID(offer.ID)
	if externalID == "" {
		return ErrMissingIdentity
	}

	price, original, err := offerPrices(offer.Prices)
	if err != nil {
		return err
	}

	existing, err := i.catalog.GetProductByExternalID(ctx, externalID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", externalID, ErrMissingIdentity)
	}
	if err != nil {
		return err
	}

	patch := models.ProductPatch{
		Price:  models.Ptr(price),
		OnSale: models.Ptr(classifier.IsOnSale(existing.Name, price, original)),
	}
	sizes, colors := splitCharacteristics(offer.Characteristics)
	if merged, changed := mergeValues(existing.Sizes, sizes); changed {
		patch.Sizes = &merged
	}
	if merged, changed := mergeValues(existing.Colors, colors); changed {
		patch.Colors = &merged
	}

	if _, err := i.catalog.UpdateProduct(ctx, existing.ID, patch); err != nil {
		return fmt.Errorf("update price %s: %w", externalID, err)
	}
	stats.PricesUpdated++
	return nil
}

// resolveIdentity finds the product by external id, then by SKU
func (i *CommerceMLImporter) resolveIdentity(ctx context.Context, externalID, sku string) (*models.Product, error) {
	product, err := i.catalog.GetProductByExternalID(ctx, externalID)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if sku != "" {
		product, err = i.catalog.GetProductBySKU(ctx, sku)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrMissingIdentity
}

// ParsePrice converts decimal text with comma or dot separator into minor
// units, rounding half away from zero.
func ParsePrice(raw string) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', ' ', '\t':
			return -1
		case ',':
			return '.'
		}
		return r
	}, raw)
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative %q", ErrInvalidPrice, raw)
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// offerPrices returns the selling price (lowest) and, when the offer lists
// a higher one, that as the original price.
func offerPrices(prices []models.CMLPrice) (int64, int64, error) {
	var parsed []int64
	var lastErr error
	for _, p := range prices {
		v, err := ParsePrice(p.UnitPrice)
		if err != nil {
			lastErr = err
			continue
		}
		parsed = append(parsed, v)
	}
	if len(parsed) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("%w: no price", ErrInvalidPrice)
		}
		return 0, 0, lastErr
	}

	low, high := parsed[0], parsed[0]
	for _, v := range parsed[1:] {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	if high > low {
		return low, high, nil
	}
	return low, 0, nil
}

// offerProductID strips the "#<variant>" suffix used by variant offers
func offerProductID(id string) string {
	id = strings.TrimSpace(id)
	if idx := strings.Index(id, "#"); idx >= 0 {
		id = id[:idx]
	}
	return id
}

func splitCharacteristics(chars []models.CMLCharacteristic) (sizes, colors []string) {
	for _, c := range chars {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		value := strings.TrimSpace(c.Value)
		if value == "" {
			continue
		}
		switch {
		case strings.Contains(name, "размер"), strings.Contains(name, "size"):
			sizes = appendUnique(sizes, value)
		case strings.Contains(name, "цвет"), strings.Contains(name, "color"):
			colors = appendUnique(colors, value)
		}
	}
	return sizes, colors
}

// mergeValues appends values missing from current, preserving order
func mergeValues(current models.StringList, values []string) ([]string, bool) {
	merged := append([]string{}, current...)
	changed := false
	for _, v := range values {
		before := len(merged)
		merged = appendUnique(merged, v)
		if len(merged) != before {
			changed = true
		}
	}
	return merged, changed
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
