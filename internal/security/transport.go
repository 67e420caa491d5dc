package security

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-menu-analyzer/internal/errors"
	"go-menu-analyzer/internal/logger"
)

// maxResponseBodySize is the ceiling for inbound payloads.
const maxResponseBodySize = 50 * 1024 * 1024

// Sender dispatches signed requests to the inference endpoint.
type Sender interface {
	Send(ctx context.Context, req *SignedRequest, maxRetries int) ([]byte, int, error)
}

// Client implements Sender with certificate pinning, rate limiting and
// retry with exponential backoff for recoverable statuses.
type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	log        *logrus.Entry
}

// NewClient creates a transport client. If pinnedCertHashes is non-empty,
// connections are rejected unless a presented certificate's SHA-256 matches
// one of the pins; an empty pin set is permissive (non-production builds).
func NewClient(pinnedCertHashes []string, limiter *RateLimiter) *Client {
	pins := make(map[string]struct{}, len(pinnedCertHashes))
	for _, h := range pinnedCertHashes {
		pins[strings.ToLower(h)] = struct{}{}
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:            tls.VersionTLS12,
			VerifyPeerCertificate: verifyPins(pins),
		},
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Redirects could move the request off the trusted host.
				return http.ErrUseLastResponse
			},
		},
		limiter: limiter,
		log:     logger.ForComponent("transport"),
	}
}

// verifyPins validates the presented chain against the pinned hash set,
// on top of standard verification.
func verifyPins(pins map[string]struct{}) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(pins) == 0 {
			return nil
		}
		for _, raw := range rawCerts {
			sum := sha256.Sum256(raw)
			if _, ok := pins[hex.EncodeToString(sum[:])]; ok {
				return nil
			}
		}
		return errors.New("no presented certificate matches the pinned set")
	}
}

// Send dispatches the request, retrying recoverable failures (429, 5xx,
// network timeout) with exponential backoff. Transport security violations
// and other 4xx statuses are never retried. Every attempt consumes a rate
// limiter slot, so retries cannot push outbound traffic past the window.
func (c *Client) Send(ctx context.Context, req *SignedRequest, maxRetries int) ([]byte, int, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if !c.limiter.Allow() {
			return nil, 0, apperrors.NewRateLimitError("request rate limit reached", nil)
		}

		body, status, err := c.sendOnce(ctx, req)
		if err == nil {
			return body, status, nil
		}
		lastErr = err

		if !isRecoverable(err) || attempt >= maxRetries {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		c.log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"backoff": backoff,
		}).WithError(err).Warn("Retrying inference request")

		select {
		case <-ctx.Done():
			return nil, 0, contextError(ctx.Err())
		case <-time.After(backoff):
		}
	}

	if isRecoverable(lastErr) {
		return nil, 0, apperrors.NewNetworkError(
			fmt.Sprintf("max retries exceeded after %d attempts", maxRetries+1), lastErr)
	}
	return nil, 0, lastErr
}

func (c *Client) sendOnce(ctx context.Context, req *SignedRequest) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, 0, apperrors.NewTransportError("failed to construct request", err)
	}
	httpReq.Header = req.Headers.Clone()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, contextError(ctxErr)
		}
		return nil, 0, classifyNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := validateResponse(resp); err != nil {
			return nil, resp.StatusCode, err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
		if err != nil {
			return nil, resp.StatusCode, apperrors.NewNetworkError("failed to read response body", err)
		}
		if len(body) > maxResponseBodySize {
			return nil, resp.StatusCode, apperrors.NewTransportError("response exceeds size limit", nil)
		}
		return body, resp.StatusCode, nil
	}

	// Drain so the connection can be reused; the content is irrelevant.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return nil, resp.StatusCode, statusError(resp.StatusCode)
}

func validateResponse(resp *http.Response) error {
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" &&
		!strings.HasPrefix(contentType, "application/json") &&
		!strings.HasPrefix(contentType, "text/") {
		return apperrors.NewTransportError(
			fmt.Sprintf("unexpected response content type %q", contentType), nil)
	}
	if resp.ContentLength > maxResponseBodySize {
		return apperrors.NewTransportError("response exceeds size limit", nil)
	}
	return nil
}

// statusError maps an HTTP status to the error taxonomy.
func statusError(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return apperrors.NewValidationError("service rejected the request", nil)
	case status == http.StatusUnauthorized:
		return apperrors.NewConfigurationError("authentication failed", nil)
	case status == http.StatusForbidden:
		return apperrors.NewTransportError("access forbidden", nil)
	case status == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError("service rate limit reached", nil)
	case status >= 500:
		return apperrors.NewNetworkError(fmt.Sprintf("server error: status %d", status), nil)
	default:
		return apperrors.NewInternalError(fmt.Sprintf("unexpected status %d", status), nil)
	}
}

func classifyNetworkError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError("request timed out", err)
	}
	if strings.Contains(err.Error(), "pinned") || strings.Contains(err.Error(), "certificate") {
		return apperrors.NewTransportError("certificate validation failed", err)
	}
	return apperrors.NewNetworkError("request failed", err)
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("request timed out", err)
	}
	return apperrors.NewCancelledError("request cancelled", err)
}

// isRecoverable reports whether the failure class may succeed on retry.
func isRecoverable(err error) bool {
	return apperrors.IsKind(err, apperrors.KindRateLimit) ||
		apperrors.IsKind(err, apperrors.KindNetwork) ||
		apperrors.IsKind(err, apperrors.KindTimeout)
}
