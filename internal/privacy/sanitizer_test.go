package privacy

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go-menu-analyzer/pkg/models"
)

func TestSanitizeRedactsPII(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name  string
		input string
		gone  string
	}{
		{"email", "Reservations: book@trattoria.example.com today", "book@trattoria.example.com"},
		{"phone", "Call 555-123-4567 for catering", "555-123-4567"},
		{"phone with country code", "Ring +1 (415) 555-0199 anytime", "415"},
		{"national id", "ID 123-45-6789 on file", "123-45-6789"},
		{"url", "Visit https://trattoria.example.com/menu now", "https://trattoria.example.com/menu"},
		{"street address", "Located at 42 Baker Street since 1987", "42 Baker Street"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Sanitize(tt.input)
			if strings.Contains(out, tt.gone) {
				t.Errorf("Sanitize(%q) = %q, still contains %q", tt.input, out, tt.gone)
			}
			if !strings.Contains(out, redactedToken) {
				t.Errorf("Sanitize(%q) = %q, missing redaction token", tt.input, out)
			}
		})
	}
}

func TestSanitizeLeavesNoPhoneDigits(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize("Call 555-123-4567 for catering")
	for _, r := range out {
		if r >= '0' && r <= '9' {
			t.Fatalf("Sanitize left digits behind: %q", out)
		}
	}
}

func TestSanitizeRemovesInjection(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name  string
		input string
		gone  string
	}{
		{"html", "Pasta <script>alert(1)</script> Carbonara", "<script>"},
		{"sql", "Soup; DROP TABLE dishes", "DROP TABLE"},
		{"shell", "Fries `rm -rf` special", "`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Sanitize(tt.input)
			if strings.Contains(strings.ToLower(out), strings.ToLower(tt.gone)) {
				t.Errorf("Sanitize(%q) = %q, still contains %q", tt.input, out, tt.gone)
			}
		})
	}
}

func TestSanitizeReassembledPII(t *testing.T) {
	s := NewSanitizer()

	// Stripping injection characters can join fragments into a complete
	// PII match; that match must not survive a single Sanitize call.
	tests := []struct {
		name  string
		input string
		gone  string
	}{
		{"phone split by shell char", "Call 555-123-$4567 for catering", "555-123-4567"},
		{"email split by markup", "Write to chef<b></b>@roma.example.com", "chef@roma.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Sanitize(tt.input)
			if strings.Contains(out, tt.gone) {
				t.Errorf("Sanitize(%q) = %q, still contains %q", tt.input, out, tt.gone)
			}
			if !strings.Contains(out, redactedToken) {
				t.Errorf("Sanitize(%q) = %q, missing redaction token", tt.input, out)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	s := NewSanitizer()

	inputs := []string{
		"Call 555-123-4567 or book@trattoria.example.com",
		"Pasta <b>fresca</b>; DROP TABLE menus",
		"Call 555-123-$4567 for catering",
		"chef<b></b>@roma.example.com",
		"A perfectly clean description of grilled salmon",
		"",
	}

	for _, input := range inputs {
		once := s.Sanitize(input)
		twice := s.Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestSanitizeCleanTextUnchanged(t *testing.T) {
	s := NewSanitizer()
	in := "Grilled salmon with lemon butter and seasonal vegetables"
	if out := s.Sanitize(in); out != in {
		t.Errorf("clean text altered: %q", out)
	}
	if s.Violations() != 0 {
		t.Errorf("Violations() = %d for clean text", s.Violations())
	}
}

func TestSanitizePayloadMinimal(t *testing.T) {
	s := NewSanitizer()
	dish := models.Dish{
		Name:        "Caesar Salad",
		Description: strings.Repeat("crisp romaine ", 30) + " call 555-123-4567",
		Price:       "$12.99",
		Category:    models.CategoryAppetizer,
		Confidence:  0.92,
	}

	payload := s.SanitizePayload(dish)

	if payload.Name != "Caesar Salad" {
		t.Errorf("name = %q", payload.Name)
	}
	if payload.Category != string(models.CategoryAppetizer) {
		t.Errorf("category = %q", payload.Category)
	}
	if len(payload.Description) > 200 {
		t.Errorf("description not capped: %d chars", len(payload.Description))
	}
	if strings.Contains(payload.Description, "555-123-4567") {
		t.Error("description still carries the phone number")
	}
}

func TestSanitizePayloadTruncatesOnRuneBoundary(t *testing.T) {
	s := NewSanitizer()
	dish := models.Dish{
		Name:        "Tasting Menu",
		Description: strings.Repeat("食", 100), // 300 bytes, cap falls mid-rune
		Category:    models.CategorySpecial,
	}

	payload := s.SanitizePayload(dish)

	if len(payload.Description) > 200 {
		t.Errorf("description not capped: %d bytes", len(payload.Description))
	}
	if !utf8.ValidString(payload.Description) {
		t.Errorf("truncation produced invalid UTF-8: %q", payload.Description)
	}
}

func TestAuditTrailIsRedacted(t *testing.T) {
	s := NewSanitizer()
	s.Sanitize("secret@example.com and 555-123-4567")

	trail := s.AuditTrail()
	if len(trail) == 0 {
		t.Fatal("expected audit entries")
	}
	for _, entry := range trail {
		if entry.ID == "" || entry.Kind == "" || entry.Timestamp.IsZero() {
			t.Errorf("incomplete audit entry: %+v", entry)
		}
		if strings.Contains(entry.Kind, "secret") || strings.Contains(entry.Kind, "555") {
			t.Errorf("audit entry leaks the matched value: %+v", entry)
		}
	}
	if s.Violations() != int64(len(trail)) {
		t.Errorf("Violations() = %d, trail length = %d", s.Violations(), len(trail))
	}
}

func TestContainsSensitiveData(t *testing.T) {
	s := NewSanitizer()

	if !s.ContainsSensitiveData("mail me at a@b.co") {
		t.Error("email not detected")
	}
	if s.ContainsSensitiveData("plain menu text") {
		t.Error("false positive on plain text")
	}
}
