package parser

// Prompt builders for the inference call. Both variants demand a JSON-only
// reply matching the wire schema; the detailed variant asks the model to
// also infer allergens and dietary flags from dish composition.

const promptSchema = `{
  "restaurantName": "string|null",
  "dishes": [
    {
      "name": "string",
      "description": "string|null",
      "price": "string|null",
      "category": "appetizer|mainCourse|dessert|beverage|special|unknown",
      "allergens": ["string", ...],
      "dietaryInfo": ["vegetarian"|"vegan"|"glutenFree"|"dairyFree"|"spicy"|"healthy", ...]
    }
  ],
  "confidence": 0.0-1.0
}`

// ConcisePrompt returns the short prompt variant used by the fast and
// balanced presets.
func ConcisePrompt() string {
	return `Analyze this restaurant menu photo and extract every dish.

Reply with ONLY valid JSON in exactly this shape, no markdown, no extra text:
` + promptSchema + `

Keep prices exactly as printed. Use "unknown" for categories you cannot determine.`
}

// DetailedPrompt returns the thorough prompt variant used by the
// high-quality preset.
func DetailedPrompt() string {
	return `You are analyzing a photograph of a restaurant menu. Extract a complete,
structured list of every dish you can read, including partially visible ones
you are reasonably sure about.

For each dish:
- name: the dish name exactly as printed
- description: the printed description, or null if absent
- price: the price string exactly as printed (keep the currency symbol), or null
- category: one of appetizer, mainCourse, dessert, beverage, special, unknown
- allergens: likely allergens inferred from the dish composition (e.g. nuts, dairy, gluten, shellfish, soy, egg)
- dietaryInfo: applicable flags from vegetarian, vegan, glutenFree, dairyFree, spicy, healthy

Also extract the restaurant name if it appears anywhere in the photo.
Set confidence to your overall certainty in the extraction, between 0.0 and 1.0.

Reply with ONLY valid JSON in exactly this shape, no markdown, no extra text:
` + promptSchema
}

// PromptFor selects the prompt variant from the configuration's detail flag.
func PromptFor(detailed bool) string {
	if detailed {
		return DetailedPrompt()
	}
	return ConcisePrompt()
}
