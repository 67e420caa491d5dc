package models

import (
	"strings"
	"time"
)

// DishCategory is the closed set of categories a dish can be mapped to.
// Unrecognized service values are folded to CategoryUnknown.
type DishCategory string

const (
	CategoryAppetizer DishCategory = "appetizer"
	CategoryMain      DishCategory = "mainCourse"
	CategoryDessert   DishCategory = "dessert"
	CategoryBeverage  DishCategory = "beverage"
	CategorySpecial   DishCategory = "special"
	CategoryUnknown   DishCategory = "unknown"
)

// DietaryTag is the closed set of dietary flags. Unrecognized tags from the
// service are dropped, never surfaced.
type DietaryTag string

const (
	DietaryVegetarian DietaryTag = "vegetarian"
	DietaryVegan      DietaryTag = "vegan"
	DietaryGlutenFree DietaryTag = "glutenFree"
	DietaryDairyFree  DietaryTag = "dairyFree"
	DietarySpicy      DietaryTag = "spicy"
	DietaryHealthy    DietaryTag = "healthy"
)

// KnownDietaryTags lists every accepted dietary tag.
var KnownDietaryTags = []DietaryTag{
	DietaryVegetarian,
	DietaryVegan,
	DietaryGlutenFree,
	DietaryDairyFree,
	DietarySpicy,
	DietaryHealthy,
}

// ParseDietaryTag matches a raw string against the closed dietary tag set.
func ParseDietaryTag(raw string) (DietaryTag, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	for _, tag := range KnownDietaryTags {
		if strings.ToLower(string(tag)) == normalized {
			return tag, true
		}
	}
	return "", false
}

// Dish is a single extracted menu item. Immutable once constructed; the
// optional ImageURL enrichment is attached separately and never mutates the
// extracted fields.
type Dish struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Price       string       `json:"price,omitempty"`
	Category    DishCategory `json:"category"`
	Allergens   []string     `json:"allergens,omitempty"`
	DietaryInfo []DietaryTag `json:"dietary_info,omitempty"`
	Confidence  float64      `json:"confidence"`

	// Optional AI-generated visualization, attached after extraction.
	ImageURL string `json:"image_url,omitempty"`
}

// Menu is the structured result of one analysis.
type Menu struct {
	RestaurantName string        `json:"restaurant_name,omitempty"`
	Dishes         []Dish        `json:"dishes"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime time.Duration `json:"processing_time"`
}
