// Package kick fetches clip listings from the Kick public API.
package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clipdeck/kick-clips-go/internal/models"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a non-2xx body is kept for the error message.
const maxErrorBody = 512

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportError is a failure to obtain a page from the upstream: a network
// error, a non-2xx status, or an undecodable body.
type TransportError struct {
	Err        error
	Body       string
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PageRequest identifies one page of a channel's clip listing.
type PageRequest struct {
	Channel string
	Cursor  *string
	Sort    models.SortKey
	Time    models.TimeFilter
}

// Client performs one GET per FetchPage call. It never retries.
type Client struct {
	client    HTTPClient
	logger    *zap.Logger
	baseURL   string
	userAgent string
}

// NewClient creates a Client. A nil httpClient is replaced by an http.Client
// with the given timeout.
func NewClient(baseURL, userAgent string, timeout time.Duration, httpClient HTTPClient, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:    httpClient,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}
}

// FetchPage requests one page of clips. Every failure is a *TransportError.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*models.RawPage, error) {
	endpoint := c.pageURL(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("fetching clip page",
		zap.String("channel", req.Channel),
		zap.String("url", endpoint),
	)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("upstream rejected clip page request",
			zap.String("channel", req.Channel),
			zap.Int("statusCode", resp.StatusCode),
		)
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var page models.RawPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}

	return &page, nil
}

func (c *Client) pageURL(req PageRequest) string {
	query := url.Values{}
	query.Set("sort", string(req.Sort))
	query.Set("time", string(req.Time))
	if req.Cursor != nil {
		query.Set("cursor", *req.Cursor)
	}

	return fmt.Sprintf("%s/channels/%s/clips?%s", c.baseURL, url.PathEscape(req.Channel), query.Encode())
}
