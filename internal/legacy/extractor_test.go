package legacy

import (
	"reflect"
	"testing"

	"go-menu-analyzer/pkg/models"
)

func TestExtractDishesFromRecognizedText(t *testing.T) {
	blocks := []string{
		"STARTERS",
		"Caesar Salad ........ $12.99",
		"Garlic Bread 6.50$",
		"",
		"MAINS",
		"Grilled Salmon with lemon butter $24.99",
		"Vegan Pasta Primavera $18.00",
		"DESSERTS",
		"Walnut Brownie $8.00",
	}

	dishes := ExtractDishes(blocks)
	if len(dishes) != 5 {
		t.Fatalf("dishes = %d, want 5: %+v", len(dishes), dishes)
	}

	salad := dishes[0]
	if salad.Name != "Caesar Salad" {
		t.Errorf("name = %q", salad.Name)
	}
	if salad.Price != "$12.99" {
		t.Errorf("price = %q", salad.Price)
	}
	if salad.Category != models.CategoryAppetizer {
		t.Errorf("category = %v, want appetizer from STARTERS header", salad.Category)
	}
	if salad.Confidence != fallbackConfidence {
		t.Errorf("confidence = %v, want %v", salad.Confidence, fallbackConfidence)
	}

	salmon := dishes[2]
	if salmon.Category != models.CategoryMain {
		t.Errorf("salmon category = %v", salmon.Category)
	}
	if !containsAllergen(salmon.Allergens, "fish") {
		t.Errorf("salmon allergens = %v, want fish", salmon.Allergens)
	}
	if !containsAllergen(salmon.Allergens, "dairy") {
		t.Errorf("salmon allergens = %v, want dairy from butter", salmon.Allergens)
	}

	pasta := dishes[3]
	if !containsTag(pasta.DietaryInfo, models.DietaryVegan) {
		t.Errorf("pasta dietary = %v, want vegan", pasta.DietaryInfo)
	}
	if !containsAllergen(pasta.Allergens, "gluten") {
		t.Errorf("pasta allergens = %v, want gluten", pasta.Allergens)
	}

	brownie := dishes[4]
	if brownie.Category != models.CategoryDessert {
		t.Errorf("brownie category = %v", brownie.Category)
	}
	if !containsAllergen(brownie.Allergens, "nuts") {
		t.Errorf("brownie allergens = %v, want nuts", brownie.Allergens)
	}
}

func TestExtractDishesIgnoresNoise(t *testing.T) {
	blocks := []string{
		"", "   ",
		"AB", // too short to be a dish
		"$5", // price with no name
	}
	if dishes := ExtractDishes(blocks); len(dishes) != 0 {
		t.Errorf("dishes = %+v, want none", dishes)
	}
}

func TestExtractDishesUnknownCategoryWithoutHeader(t *testing.T) {
	dishes := ExtractDishes([]string{"Mystery Plate $9.99"})
	if len(dishes) != 1 {
		t.Fatalf("dishes = %d, want 1", len(dishes))
	}
	if dishes[0].Category != models.CategoryUnknown {
		t.Errorf("category = %v, want unknown", dishes[0].Category)
	}
}

func TestExtractDishesDeterministicTagOrder(t *testing.T) {
	blocks := []string{"Salmon with butter and walnuts $20.00"}

	first := ExtractDishes(blocks)
	if len(first) != 1 {
		t.Fatalf("dishes = %d, want 1", len(first))
	}

	wantAllergens := []string{"dairy", "fish", "nuts"}
	if !reflect.DeepEqual(first[0].Allergens, wantAllergens) {
		t.Errorf("allergens = %v, want %v", first[0].Allergens, wantAllergens)
	}

	for i := 0; i < 10; i++ {
		again := ExtractDishes(blocks)
		if !reflect.DeepEqual(again[0].Allergens, first[0].Allergens) {
			t.Fatalf("allergen order varies across runs: %v != %v", again[0].Allergens, first[0].Allergens)
		}
	}

	dietary := ExtractDishes([]string{"Spicy Vegan Stew $10.00"})
	wantTags := []models.DietaryTag{models.DietarySpicy, models.DietaryVegan}
	if !reflect.DeepEqual(dietary[0].DietaryInfo, wantTags) {
		t.Errorf("dietary = %v, want %v", dietary[0].DietaryInfo, wantTags)
	}
}

func containsAllergen(allergens []string, want string) bool {
	for _, a := range allergens {
		if a == want {
			return true
		}
	}
	return false
}

func containsTag(tags []models.DietaryTag, want models.DietaryTag) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
