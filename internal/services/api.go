// Page client for fetching Anghami web player pages
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/ang2spot/internal/shared"
	"golang.org/x/time/rate"
)

const (
	anghamiBaseURL   = "https://play.anghami.com"
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	maxPageSize      = 8 << 20
)

// APIService fetches pages from the Anghami web player.
//
// Requests carry the imported [shared.BrowserHeaders] when present and are paced by a [rate.Limiter].
type APIService struct {
	baseURL    string
	httpClient *http.Client
	headers    *shared.BrowserHeaders
	limiter    *rate.Limiter
}

// NewAPIService creates a page client for baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = anghamiBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
	}
}

// SetHeaders attaches browser headers imported with `setup anghami`. Nil clears them.
func (a *APIService) SetHeaders(h *shared.BrowserHeaders) {
	a.headers = h
}

// SetRateLimit changes request pacing. A non-positive limit disables it.
func (a *APIService) SetRateLimit(perSecond float64) {
	if perSecond <= 0 {
		a.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	a.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
}

// APIResponse is a fetched page.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	URL        string
}

// Get fetches path (or an absolute URL) and returns the page body.
//
// 404 responses wrap [shared.ErrNotFound]; transport failures and other non-2xx statuses wrap [shared.ErrExtraction].
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	fullURL := a.resolve(path)

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	a.headers.Apply(req)
	for k, v := range map[string]string{
		"User-Agent":      defaultUserAgent,
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "en-US,en;q=0.9,ar;q=0.8",
	} {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrExtraction, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrExtraction, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, fullURL)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s returned status %d", shared.ErrExtraction, fullURL, resp.StatusCode)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		URL:        fullURL,
	}, nil
}

func (a *APIService) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.baseURL + path
}
