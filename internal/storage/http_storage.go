package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "go-menu-analyzer/internal/errors"
)

// maxPhotoSize bounds fetched menu photos before decoding.
const maxPhotoSize = 20 * 1024 * 1024

// PhotoFetcher retrieves a menu photo by URL and returns the raw encoded
// bytes. Decoding is the optimizer's job; the raw bytes are what gets
// content-hashed for the result cache.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, photoURL string) ([]byte, error)
}

// HTTPPhotoFetcher implements PhotoFetcher over plain HTTP(S).
type HTTPPhotoFetcher struct {
	client *http.Client
}

// NewHTTPPhotoFetcher creates an HTTP photo fetcher with a transport sized
// for single-image downloads.
func NewHTTPPhotoFetcher() *HTTPPhotoFetcher {
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &HTTPPhotoFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

// FetchPhoto downloads the photo, retrying transient failures up to three
// attempts. Client errors (4xx) are not retried.
func (h *HTTPPhotoFetcher) FetchPhoto(ctx context.Context, photoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid photo URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, */*")
	req.Header.Set("User-Agent", "menu-analyzer/1.0")

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewCancelledError("photo fetch cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		body, retryable, err := h.fetchOnce(req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, lastErr
		}
	}

	return nil, apperrors.NewNetworkError("failed to fetch photo after 3 attempts", lastErr)
}

func (h *HTTPPhotoFetcher) fetchOnce(req *http.Request) ([]byte, bool, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, true, apperrors.NewNetworkError("photo download failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, apperrors.NewValidationError(
			fmt.Sprintf("photo not retrievable: status %d", resp.StatusCode), nil)
	default:
		return nil, true, apperrors.NewNetworkError(
			fmt.Sprintf("photo server error: status %d", resp.StatusCode), nil)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, false, apperrors.NewValidationError(
			fmt.Sprintf("unexpected photo content type %q", ct), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize+1))
	if err != nil {
		return nil, true, apperrors.NewNetworkError("failed to read photo body", err)
	}
	if len(body) > maxPhotoSize {
		return nil, false, apperrors.NewValidationError("photo exceeds size limit", nil)
	}
	return body, true, nil
}
