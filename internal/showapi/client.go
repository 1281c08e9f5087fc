// Package showapi provides a client for the trivia show directory API.
// It resolves the current or next show descriptor, including the live
// broadcast socket URL when a show is on air.
package showapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Show describes the current or next broadcast.
type Show struct {
	SocketURL     string
	NextShowTime  *time.Time
	NextShowPrize string
}

// Live reports whether a broadcast socket is currently available.
func (s *Show) Live() bool {
	return s.SocketURL != ""
}

// Client fetches show descriptors from the directory API.
type Client struct {
	baseURL     string
	userID      string
	bearerToken string
	httpClient  *http.Client

	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a show directory client.
func NewClient(baseURL, userID, bearerToken string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		baseURL:        baseURL,
		userID:         userID,
		bearerToken:    bearerToken,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

type showResponse struct {
	Broadcast *struct {
		SocketURL string `json:"socketUrl"`
	} `json:"broadcast"`
	NextShowTime  string `json:"nextShowTime"`
	NextShowPrize string `json:"nextShowPrize"`
}

// FetchShow retrieves the current/next show descriptor. A response without
// a broadcast socket is not an error; the returned Show simply is not live.
func (c *Client) FetchShow(ctx context.Context) (*Show, error) {
	url := fmt.Sprintf("%s/shows/now?type=hq&userId=%s", c.baseURL, c.userID)

	resp, err := c.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch show descriptor: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload showResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode show descriptor: %w", err)
	}

	show := &Show{NextShowPrize: payload.NextShowPrize}
	if payload.NextShowTime != "" {
		if parsed, err := time.Parse(time.RFC3339, payload.NextShowTime); err == nil {
			show.NextShowTime = &parsed
		}
	}
	if payload.Broadcast != nil && payload.Broadcast.SocketURL != "" {
		// The directory hands back an https URL for a websocket endpoint.
		show.SocketURL = strings.Replace(payload.Broadcast.SocketURL, "https", "wss", 1)
	}
	return show, nil
}

// Headers returns the request headers expected by the show API, including
// the configured bearer token when present.
func (c *Client) Headers() http.Header {
	headers := http.Header{}
	headers.Set("User-Agent", "hq-viewer/1.2.4 (iPhone; iOS 11.1.1; Scale/3.00)")
	headers.Set("x-hq-client", "Android/1.11.2")
	if c.bearerToken != "" {
		headers.Set("Authorization", "Bearer "+c.bearerToken)
	}
	return headers
}

// doRequest performs an HTTP request with retry on transport and server
// errors, backing off linearly between attempts.
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header = c.Headers()
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}
		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
