package privacy

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-menu-analyzer/internal/logger"
	"go-menu-analyzer/pkg/models"
)

const (
	redactedToken     = "[REDACTED]"
	descriptionCap    = 200
	maxAuditEntries   = 256
	auditKindEmail    = "email"
	auditKindPhone    = "phone"
	auditKindID       = "national_id"
	auditKindURL      = "url"
	auditKindAddress  = "street_address"
	auditKindMarkup   = "markup"
	auditKindSQL      = "sql_keyword"
	auditKindShell    = "shell_metacharacter"
)

// sensitivePattern pairs a detector with its audit kind. The national ID
// pattern runs before the phone pattern so SSN-shaped sequences are
// attributed correctly.
type sensitivePattern struct {
	kind string
	re   *regexp.Regexp
}

var sensitivePatterns = []sensitivePattern{
	{auditKindEmail, regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{auditKindURL, regexp.MustCompile(`(https?://|www\.)[^\s<>"]+`)},
	{auditKindID, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{auditKindPhone, regexp.MustCompile(`(\+?\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)},
	{auditKindAddress, regexp.MustCompile(`\b\d{1,5}\s+[A-Za-z][A-Za-z ]{0,30}\s?(Street|Avenue|Boulevard|Lane|Drive|Court|Plaza|Square|Road|St|Ave|Blvd|Ln|Dr|Ct|Rd)\b\.?`)},
}

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	sqlPattern     = regexp.MustCompile(`(?i)\b(drop\s+table|delete\s+from|insert\s+into|union\s+select|truncate\s+table|alter\s+table|create\s+table|select\s+\*\s+from|exec(ute)?\s+sp_\w*)\b`)
	shellPattern   = regexp.MustCompile("[`$|;&<>\\\\]")
)

// AuditEntry is a redacted record of one detection. It carries the pattern
// kind and nothing of the matched value.
type AuditEntry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Sanitizer detects and strips personally-identifying or unsafe content
// from payloads in both directions.
type Sanitizer struct {
	mu         sync.Mutex
	violations int64
	audit      []AuditEntry
	log        *logrus.Entry
}

// NewSanitizer creates a sanitizer.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		log: logger.ForComponent("privacy"),
	}
}

// ContainsSensitiveData reports whether any PII or injection pattern matches.
func (s *Sanitizer) ContainsSensitiveData(text string) bool {
	for _, p := range sensitivePatterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return htmlTagPattern.MatchString(text) ||
		sqlPattern.MatchString(text) ||
		shellPattern.MatchString(text)
}

// maxSanitizePasses bounds the fixpoint loop. Two passes settle every
// realistic input; the cap guards against pathological ones.
const maxSanitizePasses = 4

// Sanitize replaces PII matches with a redaction token and removes markup,
// SQL keyword and shell metacharacter injection substrings, leaving the
// rest of the text intact. Passes repeat until the text stops changing:
// stripping injection characters can join fragments into a fresh PII match
// (e.g. a phone number split by a shell metacharacter), so a single pass is
// not enough. Sanitize is idempotent.
func (s *Sanitizer) Sanitize(text string) string {
	out := text
	for pass := 0; pass < maxSanitizePasses; pass++ {
		next := s.sanitizeOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func (s *Sanitizer) sanitizeOnce(text string) string {
	out := text
	for _, p := range sensitivePatterns {
		if p.re.MatchString(out) {
			s.recordViolation(p.kind)
			out = p.re.ReplaceAllString(out, redactedToken)
		}
	}
	if htmlTagPattern.MatchString(out) {
		s.recordViolation(auditKindMarkup)
		out = htmlTagPattern.ReplaceAllString(out, "")
	}
	if sqlPattern.MatchString(out) {
		s.recordViolation(auditKindSQL)
		out = sqlPattern.ReplaceAllString(out, "")
	}
	if shellPattern.MatchString(out) {
		s.recordViolation(auditKindShell)
		out = shellPattern.ReplaceAllString(out, "")
	}
	return strings.TrimSpace(out)
}

// SanitizePayload produces the minimal outgoing representation of a dish:
// name, capped description and category. Confidence scores, identifiers and
// timestamps never leave the device.
func (s *Sanitizer) SanitizePayload(dish models.Dish) models.OutgoingDishPayload {
	description := s.Sanitize(dish.Description)
	if len(description) > descriptionCap {
		cut := descriptionCap
		for cut > 0 && !utf8.RuneStart(description[cut]) {
			cut--
		}
		description = description[:cut]
	}
	return models.OutgoingDishPayload{
		Name:        s.Sanitize(dish.Name),
		Description: description,
		Category:    string(dish.Category),
	}
}

// Violations returns the number of detections so far.
func (s *Sanitizer) Violations() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations
}

// AuditTrail returns a copy of the redacted audit entries.
func (s *Sanitizer) AuditTrail() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	trail := make([]AuditEntry, len(s.audit))
	copy(trail, s.audit)
	return trail
}

// recordViolation bumps the counter and appends a redacted audit entry.
// The matched value itself is never stored or logged.
func (s *Sanitizer) recordViolation(kind string) {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.violations++
	s.audit = append(s.audit, entry)
	if len(s.audit) > maxAuditEntries {
		s.audit = s.audit[len(s.audit)-maxAuditEntries:]
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"audit_id": entry.ID,
		"kind":     kind,
	}).Warn("Sensitive content redacted")
}
