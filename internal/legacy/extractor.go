// Package legacy is the rule-based fallback dish extractor, consumed only
// when the AI analysis path is unavailable. It takes already-recognized text
// blocks and emits dishes using the same closed vocabulary as the AI path.
package legacy

import (
	"regexp"
	"sort"
	"strings"

	"go-menu-analyzer/internal/parser"
	"go-menu-analyzer/pkg/models"
)

// fallbackConfidence is the extraction confidence assigned to rule-based
// results. Deliberately low: the AI path is authoritative.
const fallbackConfidence = 0.4

var (
	pricePattern = regexp.MustCompile(`(?:[$€£¥]\s?\d+(?:[.,]\d{2})?|\d+(?:[.,]\d{2})\s?[$€£¥])`)
	// A section header is a short line with no price, e.g. "DESSERTS".
	headerPattern = regexp.MustCompile(`^[A-ZÀ-Þ][A-ZÀ-Þ '&-]{2,30}$`)
)

// dietaryKeywords maps menu wording to dietary tags.
var dietaryKeywords = map[string]models.DietaryTag{
	"vegetarian":  models.DietaryVegetarian,
	"veggie":      models.DietaryVegetarian,
	"vegan":       models.DietaryVegan,
	"gluten free": models.DietaryGlutenFree,
	"gluten-free": models.DietaryGlutenFree,
	"dairy free":  models.DietaryDairyFree,
	"dairy-free":  models.DietaryDairyFree,
	"spicy":       models.DietarySpicy,
	"hot":         models.DietarySpicy,
	"healthy":     models.DietaryHealthy,
	"light":       models.DietaryHealthy,
}

// allergenKeywords are ingredient words that imply an allergen tag.
var allergenKeywords = map[string]string{
	"peanut":   "nuts",
	"almond":   "nuts",
	"walnut":   "nuts",
	"cashew":   "nuts",
	"cheese":   "dairy",
	"cream":    "dairy",
	"butter":   "dairy",
	"milk":     "dairy",
	"shrimp":   "shellfish",
	"crab":     "shellfish",
	"lobster":  "shellfish",
	"egg":      "egg",
	"wheat":    "gluten",
	"bread":    "gluten",
	"pasta":    "gluten",
	"soy":      "soy",
	"tofu":     "soy",
	"salmon":   "fish",
	"tuna":     "fish",
	"anchovy":  "fish",
}

// Keyword maps are scanned in sorted key order so identical input always
// yields identically ordered tags.
var (
	dietaryKeywordOrder  = sortedKeys(dietaryKeywords)
	allergenKeywordOrder = sortedKeys(allergenKeywords)
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExtractDishes converts recognized text blocks into dishes. A block is one
// line of recognized text in reading order; section headers set the category
// for the lines that follow.
func ExtractDishes(textBlocks []string) []models.Dish {
	var dishes []models.Dish
	currentCategory := models.CategoryUnknown

	for _, block := range textBlocks {
		line := strings.TrimSpace(block)
		if line == "" {
			continue
		}

		if price := pricePattern.FindString(line); price == "" && headerPattern.MatchString(line) {
			if category := parser.MapCategory(line); category != models.CategoryUnknown {
				currentCategory = category
			}
			continue
		}

		dish, ok := extractDish(line, currentCategory)
		if !ok {
			continue
		}
		dishes = append(dishes, dish)
	}

	return dishes
}

// extractDish splits a line into name and price, then classifies it.
func extractDish(line string, category models.DishCategory) (models.Dish, bool) {
	price := pricePattern.FindString(line)
	name := strings.TrimSpace(pricePattern.ReplaceAllString(line, ""))
	name = strings.Trim(name, ".-–—· \t")
	if name == "" || len(name) < 3 {
		return models.Dish{}, false
	}

	lower := strings.ToLower(name)

	var tags []models.DietaryTag
	seen := make(map[models.DietaryTag]struct{})
	for _, keyword := range dietaryKeywordOrder {
		tag := dietaryKeywords[keyword]
		if strings.Contains(lower, keyword) {
			if _, dup := seen[tag]; !dup {
				seen[tag] = struct{}{}
				tags = append(tags, tag)
			}
		}
	}

	var allergens []string
	seenAllergens := make(map[string]struct{})
	for _, keyword := range allergenKeywordOrder {
		allergen := allergenKeywords[keyword]
		if strings.Contains(lower, keyword) {
			if _, dup := seenAllergens[allergen]; !dup {
				seenAllergens[allergen] = struct{}{}
				allergens = append(allergens, allergen)
			}
		}
	}

	return models.Dish{
		Name:        name,
		Price:       price,
		Category:    category,
		Allergens:   allergens,
		DietaryInfo: tags,
		Confidence:  fallbackConfidence,
	}, true
}
