package validation

import (
	"net"
	"net/url"
	"strings"

	apperrors "go-menu-analyzer/internal/errors"
)

// PhotoURLValidator decides whether a caller-supplied photo URL may be
// fetched. Besides scheme and host checks it rejects loopback, private and
// link-local addresses so the fetcher cannot be pointed at internal services.
type PhotoURLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewPhotoURLValidator creates a validator with default settings.
func NewPhotoURLValidator() *PhotoURLValidator {
	return &PhotoURLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all public hosts allowed
	}
}

// NewPhotoURLValidatorWithOptions creates a validator with custom options.
func NewPhotoURLValidatorWithOptions(schemes, hosts []string) *PhotoURLValidator {
	return &PhotoURLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// Validate reports whether the URL is acceptable as a photo source.
func (v *PhotoURLValidator) Validate(photoURL string) error {
	if strings.TrimSpace(photoURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsed, err := url.Parse(photoURL)
	if err != nil {
		return apperrors.NewValidationError("invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsed.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsed.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if isInternalHost(parsed.Hostname()) {
		return apperrors.NewValidationError("URL resolves to an internal address", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsed.Host) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

func (v *PhotoURLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func (v *PhotoURLValidator) isHostAllowed(host string) bool {
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}

// isInternalHost flags hosts that must never be fetched: localhost names and
// literal IPs in loopback, private or link-local ranges. Hostnames that merely
// resolve to such addresses are caught by the fetcher's transport, not here.
func isInternalHost(hostname string) bool {
	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || lower == "metadata" {
		return true
	}

	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
