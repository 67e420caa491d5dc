package parser

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/arbovm/levenshtein"

	apperrors "go-menu-analyzer/internal/errors"
	"go-menu-analyzer/internal/logger"
	"go-menu-analyzer/pkg/models"
)

// categorySynonyms folds the vocabulary the service (and legacy menus) use
// onto the closed category enum.
var categorySynonyms = map[string]models.DishCategory{
	"appetizer":    models.CategoryAppetizer,
	"appetizers":   models.CategoryAppetizer,
	"starter":      models.CategoryAppetizer,
	"starters":     models.CategoryAppetizer,
	"small plates": models.CategoryAppetizer,
	"antipasti":    models.CategoryAppetizer,
	"tapas":        models.CategoryAppetizer,
	"maincourse":   models.CategoryMain,
	"main course":  models.CategoryMain,
	"main":         models.CategoryMain,
	"mains":        models.CategoryMain,
	"entree":       models.CategoryMain,
	"entrees":      models.CategoryMain,
	"entrée":       models.CategoryMain,
	"dessert":      models.CategoryDessert,
	"desserts":     models.CategoryDessert,
	"sweets":       models.CategoryDessert,
	"sweet":        models.CategoryDessert,
	"pastries":     models.CategoryDessert,
	"beverage":     models.CategoryBeverage,
	"beverages":    models.CategoryBeverage,
	"drink":        models.CategoryBeverage,
	"drinks":       models.CategoryBeverage,
	"cocktails":    models.CategoryBeverage,
	"special":      models.CategorySpecial,
	"specials":     models.CategorySpecial,
	"chef special": models.CategorySpecial,
}

// MapCategory folds a raw category string onto the closed enum: exact
// synonym lookup first, then a levenshtein match within distance 2 to absorb
// typos, defaulting to unknown.
func MapCategory(raw string) models.DishCategory {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	normalized = strings.ReplaceAll(normalized, "-", " ")
	if normalized == "" {
		return models.CategoryUnknown
	}

	if category, ok := categorySynonyms[normalized]; ok {
		return category
	}

	best := models.CategoryUnknown
	bestDistance := 3 // only accept distance <= 2
	for _, synonym := range sortedSynonyms {
		if d := levenshtein.Distance(normalized, synonym); d < bestDistance {
			bestDistance = d
			best = categorySynonyms[synonym]
		}
	}
	return best
}

// sortedSynonyms keeps the fuzzy match deterministic across runs.
var sortedSynonyms = func() []string {
	keys := make([]string, 0, len(categorySynonyms))
	for k := range categorySynonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// MapDietaryTags matches raw tag strings against the closed dietary set.
// Unrecognized tags are dropped silently.
func MapDietaryTags(raw []string) []models.DietaryTag {
	var tags []models.DietaryTag
	seen := make(map[models.DietaryTag]struct{})
	for _, r := range raw {
		tag, ok := models.ParseDietaryTag(r)
		if !ok {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// StripCodeFence removes a markdown code fence wrapping, if present, so the
// reply can be decoded as plain JSON.
func StripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	// Language tag (e.g. "json") on the opening fence line.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// ParseMenu decodes the service's textual reply into a Menu. The raw failing
// text is logged at debug level for local diagnostics but never propagated
// in the returned error.
func ParseMenu(raw []byte, processingTime time.Duration) (models.Menu, error) {
	cleaned := StripCodeFence(string(raw))

	var decoded models.MenuResponse
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		logger.ForComponent("parser").WithError(err).
			WithField("reply_length", len(cleaned)).
			Debug("Undecodable service reply")
		return models.Menu{}, apperrors.NewParsingError("service reply could not be decoded", err)
	}

	menu := models.Menu{
		Confidence:     decoded.Confidence,
		ProcessingTime: processingTime,
		Dishes:         make([]models.Dish, 0, len(decoded.Dishes)),
	}
	if decoded.RestaurantName != nil {
		menu.RestaurantName = strings.TrimSpace(*decoded.RestaurantName)
	}

	for _, d := range decoded.Dishes {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			continue
		}
		dish := models.Dish{
			Name:        name,
			Category:    MapCategory(d.Category),
			Allergens:   normalizeAllergens(d.Allergens),
			DietaryInfo: MapDietaryTags(d.DietaryInfo),
			// The service does not return per-dish confidence; each dish
			// inherits the menu-level value.
			Confidence: decoded.Confidence,
		}
		if d.Description != nil {
			dish.Description = strings.TrimSpace(*d.Description)
		}
		if d.Price != nil {
			dish.Price = strings.TrimSpace(*d.Price)
		}
		menu.Dishes = append(menu.Dishes, dish)
	}

	return menu, nil
}

func normalizeAllergens(raw []string) []string {
	var allergens []string
	seen := make(map[string]struct{})
	for _, a := range raw {
		normalized := strings.ToLower(strings.TrimSpace(a))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		allergens = append(allergens, normalized)
	}
	return allergens
}
