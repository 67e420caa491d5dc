package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	apperrors "go-menu-analyzer/internal/errors"
)

// maxRequestBodySize is the ceiling for outgoing payloads.
const maxRequestBodySize = 10 * 1024 * 1024

// Headers carried by every signed request.
const (
	HeaderAPIKey          = "X-API-Key"
	HeaderProtocolVersion = "X-Protocol-Version"
	HeaderSignature       = "X-Signature"
)

// SignedRequest is a fully validated, integrity-signed outbound request.
// It can only be produced by RequestBuilder; the sender accepts nothing else.
type SignedRequest struct {
	Method    string
	URL       *url.URL
	Headers   http.Header
	Body      []byte
	Signature string
}

// RequestBuilder validates and signs outbound requests against the single
// trusted inference endpoint. Every rule fails closed; there is no insecure
// fallback path.
type RequestBuilder struct {
	trustedHost       string
	allowedPathPrefix string
	apiKey            string
	signingKey        []byte
	protocolVersion   string
}

// NewRequestBuilder creates a request builder bound to one trusted endpoint.
func NewRequestBuilder(endpoint, allowedPathPrefix, apiKey, signingKey, protocolVersion string) (*RequestBuilder, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid inference endpoint", err)
	}
	if parsed.Scheme != "https" {
		return nil, apperrors.NewConfigurationError("inference endpoint must use https", nil)
	}
	if parsed.Host == "" {
		return nil, apperrors.NewConfigurationError("inference endpoint must have a host", nil)
	}
	return &RequestBuilder{
		trustedHost:       parsed.Host,
		allowedPathPrefix: allowedPathPrefix,
		apiKey:            apiKey,
		signingKey:        []byte(signingKey),
		protocolVersion:   protocolVersion,
	}, nil
}

// BuildRequest validates the target and produces a signed request.
func (b *RequestBuilder) BuildRequest(rawURL, method string, body []byte) (*SignedRequest, error) {
	if b.apiKey == "" {
		return nil, apperrors.NewConfigurationError("inference credential missing", nil)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.NewTransportError("invalid request URL", err)
	}
	if parsed.Scheme != "https" {
		return nil, apperrors.NewTransportError("insecure scheme rejected", nil)
	}
	if parsed.Host != b.trustedHost {
		return nil, apperrors.NewTransportError("untrusted host rejected", nil)
	}
	if !strings.HasPrefix(parsed.Path, b.allowedPathPrefix) {
		return nil, apperrors.NewTransportError("request path outside allowed prefix", nil)
	}
	if len(body) > maxRequestBodySize {
		return nil, apperrors.NewTransportError("request body exceeds size limit", nil)
	}

	signature := b.sign(method, parsed.Path, body)

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set(HeaderAPIKey, b.apiKey)
	headers.Set(HeaderProtocolVersion, b.protocolVersion)
	headers.Set(HeaderSignature, signature)
	// Analysis results must never land in any intermediary cache.
	headers.Set("Cache-Control", "no-store, no-cache")
	headers.Set("Pragma", "no-cache")

	return &SignedRequest{
		Method:    method,
		URL:       parsed,
		Headers:   headers,
		Body:      body,
		Signature: signature,
	}, nil
}

// sign computes the HMAC-SHA256 integrity signature over method, path and
// the body digest. The receiving side validates it against the shared key.
func (b *RequestBuilder) sign(method, path string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	mac := hmac.New(sha256.New, b.signingKey)
	mac.Write([]byte(method))
	mac.Write([]byte("\n"))
	mac.Write([]byte(path))
	mac.Write([]byte("\n"))
	mac.Write([]byte(hex.EncodeToString(bodyHash[:])))
	return hex.EncodeToString(mac.Sum(nil))
}
