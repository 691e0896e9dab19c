// Package classifier maps ERP products onto the storefront category tree
// using the SKU prefix and keywords in the product name. It performs no I/O.
package classifier

import (
	"strings"
	"unicode/utf8"
)

const (
	CategoryClothing    = "clothing"
	CategorySocks       = "socks"
	CategoryAccessories = "accessories"
	CategoryMerch       = "merch"
	CategorySale        = "sale"
)

const (
	SocksClassic4045 = "Классические (40-45)"
	SocksClassic3439 = "Классические (34-39)"
	SocksSport4045   = "На спорт Резинке (40-45)"
	SocksSport3439   = "На спорт Резинке (34-39)"
	SocksShort4045   = "Короткие (40-45)"
	SocksShort3439   = "Короткие (34-39)"
	SocksKids        = "Детские"
)

// Classification is the category placement of a product
type Classification struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// Result is a placement plus the computed sale flag
type Result struct {
	Classification
	OnSale bool `json:"onSale"`
}

type rule struct {
	token string
	Classification
}

var sockPrefixes = []string{"GR", "GK", "NK", "N", "№", "R", "G"}

var sockNameMarkers = []string{"носк", "sock", "№"}

// ordered longest first
var sockSubcategoryPrefixes = sortedByLength([]rule{
	{"GR", Classification{CategorySocks, SocksSport3439}},
	{"GK", Classification{CategorySocks, SocksShort3439}},
	{"NK", Classification{CategorySocks, SocksShort4045}},
	{"№", Classification{CategorySocks, SocksClassic4045}},
	{"N", Classification{CategorySocks, SocksClassic4045}},
	{"R", Classification{CategorySocks, SocksSport4045}},
	{"G", Classification{CategorySocks, SocksClassic3439}},
})

// first match wins, order matters
var nameKeywords = []rule{
	{"худи", Classification{CategoryClothing, "Толстовки"}},
	{"толстов", Classification{CategoryClothing, "Толстовки"}},
	{"свитшот", Classification{CategoryClothing, "Свитшоты"}},
	{"свитер", Classification{CategoryClothing, "Свитера"}},
	{"шорт", Classification{CategoryClothing, "Шорты"}},
	{"футболк", Classification{CategoryClothing, "Футболки"}},
	{"куртк", Classification{CategoryClothing, "Куртки"}},
	{"брюк", Classification{CategoryClothing, "Брюки"}},

	{"кружк", Classification{CategoryAccessories, "Кружки"}},
	{"ремен", Classification{CategoryAccessories, "Ремни"}},
	{"ремн", Classification{CategoryAccessories, "Ремни"}},
	{"сумк", Classification{CategoryAccessories, "Сумки"}},
	{"шапк", Classification{CategoryAccessories, "Шапки"}},

	{"jdm", Classification{CategoryMerch, "JDM"}},
	{"тульск", Classification{CategoryMerch, "Тульские Дизайнеры"}},
	{"дикая мята", Classification{CategoryMerch, "ДИКАЯ МЯТА"}},
	{"гудтаймс", Classification{CategoryMerch, "ГУДТАЙМС"}},
	{"goodtimes", Classification{CategoryMerch, "ГУДТАЙМС"}},
}

var skuPrefixes = sortedByLength([]rule{
	{"H", Classification{CategoryClothing, "Толстовки"}},
	{"SW", Classification{CategoryClothing, "Свитшоты"}},
	{"SV", Classification{CategoryClothing, "Свитера"}},
	{"SH", Classification{CategoryClothing, "Шорты"}},
	{"T", Classification{CategoryClothing, "Футболки"}},
	{"J", Classification{CategoryClothing, "Куртки"}},
	{"P", Classification{CategoryClothing, "Брюки"}},
	{"M", Classification{CategoryAccessories, "Кружки"}},
	{"B", Classification{CategoryAccessories, "Ремни"}},
	{"BG", Classification{CategoryAccessories, "Сумки"}},
	{"C", Classification{CategoryAccessories, "Шапки"}},
})

var saleKeywords = []string{"распродаж", "sale", "скидк"}

var defaultClassification = Classification{CategorySocks, SocksClassic4045}

// Classify places a product into the category tree. It is a pure function
// of its inputs.
func Classify(sku, name string) Classification {
	skuUpper := strings.ToUpper(strings.TrimSpace(sku))
	nameLower := strings.ToLower(name)

	if isSock(skuUpper, nameLower) {
		return Classification{Category: CategorySocks, Subcategory: socksSubcategory(skuUpper, nameLower)}
	}

	for _, r := range nameKeywords {
		if strings.Contains(nameLower, r.token) {
			return r.Classification
		}
	}

	for _, r := range skuPrefixes {
		if strings.HasPrefix(skuUpper, r.token) {
			return r.Classification
		}
	}

	return defaultClassification
}

// IsOnSale reports whether the name carries a sale marker, or the price is
// below 80% of a known original price. Prices are in minor units.
func IsOnSale(name string, price, originalPrice int64) bool {
	nameLower := strings.ToLower(name)
	for _, kw := range saleKeywords {
		if strings.Contains(nameLower, kw) {
			return true
		}
	}
	return originalPrice > 0 && price*5 < originalPrice*4
}

// ClassifyProduct combines Classify and IsOnSale
func ClassifyProduct(sku, name string, price, originalPrice int64) Result {
	return Result{
		Classification: Classify(sku, name),
		OnSale:         IsOnSale(name, price, originalPrice),
	}
}

func isSock(skuUpper, nameLower string) bool {
	for _, p := range sockPrefixes {
		if strings.HasPrefix(skuUpper, p) {
			return true
		}
	}
	for _, m := range sockNameMarkers {
		if strings.Contains(nameLower, m) {
			return true
		}
	}
	return false
}

func socksSubcategory(skuUpper, nameLower string) string {
	if strings.Contains(nameLower, "детск") {
		return SocksKids
	}

	for _, r := range sockSubcategoryPrefixes {
		if strings.HasPrefix(skuUpper, r.token) {
			return r.Subcategory
		}
	}

	kind := "classic"
	switch {
	case strings.Contains(nameLower, "спортивн"), strings.Contains(nameLower, "резинк"):
		kind = "sport"
	case strings.Contains(nameLower, "классическ"), strings.Contains(nameLower, "№"):
		kind = "classic"
	case strings.Contains(nameLower, "коротк"):
		kind = "short"
	}

	small := !containsAny(nameLower, "40-45", "40/45", "o/s", "one size") &&
		containsAny(nameLower, "34-39", "34/39")

	switch kind {
	case "sport":
		if small {
			return SocksSport3439
		}
		return SocksSport4045
	case "short":
		if small {
			return SocksShort3439
		}
		return SocksShort4045
	default:
		if small {
			return SocksClassic3439
		}
		return SocksClassic4045
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// sortedByLength orders rules by descending prefix length (in runes),
// keeping declaration order among equal lengths.
func sortedByLength(rules []rule) []rule {
	out := make([]rule, len(rules))
	copy(out, rules)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && utf8.RuneCountInString(out[j].token) > utf8.RuneCountInString(out[j-1].token); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
