package models

// MenuResponse mirrors the exact JSON shape the inference service is asked
// to reply with. Field names are part of the external contract.
type MenuResponse struct {
	RestaurantName *string        `json:"restaurantName"`
	Dishes         []DishResponse `json:"dishes"`
	Confidence     float64        `json:"confidence"`
}

// DishResponse is a single dish in the service reply.
type DishResponse struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Price       *string  `json:"price"`
	Category    string   `json:"category"`
	Allergens   []string `json:"allergens"`
	DietaryInfo []string `json:"dietaryInfo"`
}

// AnalysisRequest is the outgoing body submitted to the inference endpoint.
type AnalysisRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	ImageData string `json:"image_data"` // base64 of the optimized JPEG
	MimeType  string `json:"mime_type"`
	Detail    string `json:"detail"` // "low" or "high"
}

// OutgoingDishPayload is the minimal representation of a dish allowed to
// leave the device. Confidence scores, identifiers and timestamps are
// deliberately absent.
type OutgoingDishPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
}
