package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quizoracle/quizoracle/internal/solver"
)

// cacheableStatus lists the response codes worth storing. Everything else
// is returned to the caller but never persisted.
func cacheableStatus(status int) bool {
	switch status {
	case http.StatusOK, http.StatusFound, http.StatusNotModified:
		return true
	}
	return false
}

// HTTPTransport is the live transport: it fetches over HTTP and writes
// every cacheable response through to the cache, so a live game leaves
// behind the documents its replay will need.
type HTTPTransport struct {
	client *http.Client
	cache  *Cache
}

// NewHTTPTransport creates a write-through live transport. The cache may be
// nil, in which case responses are not persisted.
func NewHTTPTransport(timeout time.Duration, c *Cache) *HTTPTransport {
	client := &http.Client{
		Timeout: timeout,
	}
	return &HTTPTransport{client: client, cache: c}
}

// Get serves the URL from the cache when possible and fetches it live
// otherwise, recording the redirect chain of the fetch.
func (t *HTTPTransport) Get(ctx context.Context, url string) (*solver.Document, error) {
	if t.cache != nil {
		doc, err := t.cache.Get(ctx, url)
		if err == nil {
			return doc, nil
		}
	}

	var history []string
	client := *t.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("stopped after 10 redirects")
		}
		history = append(history, via[len(via)-1].URL.String())
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	doc := &solver.Document{
		Status:       resp.StatusCode,
		Body:         string(body),
		EffectiveURL: resp.Request.URL.String(),
		History:      history,
	}

	if t.cache != nil && cacheableStatus(doc.Status) && !doc.RateLimited() {
		if err := t.cache.Put(ctx, url, doc); err != nil {
			return nil, fmt.Errorf("failed to cache response: %w", err)
		}
	}
	return doc, nil
}
