package classifier

// Category is a navigation node of the storefront
type Category struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

var categories = []Category{
	{
		ID:   CategoryClothing,
		Name: "Одежда",
		Subcategories: []string{
			"Толстовки", "Свитшоты", "Свитера", "Шорты", "Футболки", "Куртки", "Брюки",
		},
	},
	{
		ID:   CategorySocks,
		Name: "Носки",
		Subcategories: []string{
			SocksClassic4045, SocksClassic3439,
			SocksSport4045, SocksSport3439,
			SocksShort4045, SocksShort3439,
			SocksKids,
		},
	},
	{
		ID:            CategoryAccessories,
		Name:          "Аксессуары",
		Subcategories: []string{"Кружки", "Ремни", "Сумки", "Шапки"},
	},
	{
		ID:            CategoryMerch,
		Name:          "Мерч",
		Subcategories: []string{"JDM", "Тульские Дизайнеры", "ДИКАЯ МЯТА", "ГУДТАЙМС"},
	},
	{
		ID:            CategorySale,
		Name:          "Распродажа",
		Subcategories: []string{},
	},
}

// Categories returns a copy of the navigation tree
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		c.Subcategories = append([]string{}, c.Subcategories...)
		out[i] = c
	}
	return out
}

// IsKnownCategory reports whether id is a top-level category
func IsKnownCategory(id string) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}
