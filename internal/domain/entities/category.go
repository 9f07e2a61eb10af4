package entities

import "strings"

// Category is one of the fixed equipment families.
type Category string

const (
	CategoryAll        Category = "all"
	CategoryFurniture  Category = "Mobilier"
	CategoryPhotobooth Category = "Photobooth"
	CategorySound      Category = "Sonorisation"
	CategoryLighting   Category = "Lumière"
	CategoryCatering   Category = "Cuisine"
	CategoryOutdoor    Category = "Extérieur"
)

// Categories lists the selectable categories in display order.
var Categories = []Category{
	CategoryFurniture,
	CategoryPhotobooth,
	CategorySound,
	CategoryLighting,
	CategoryCatering,
	CategoryOutdoor,
}

// ParseCategory maps user input to a known category. Empty input and "all"
// select every category; unknown values are rejected.
func ParseCategory(value string) (Category, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, string(CategoryAll)) {
		return CategoryAll, true
	}
	for _, c := range Categories {
		if strings.EqualFold(trimmed, string(c)) {
			return c, true
		}
	}
	return "", false
}

// IsAll reports whether the category disables category filtering.
func (c Category) IsAll() bool {
	return c == "" || c == CategoryAll
}
