// Package classify predicts expense categories through the ML service.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vittmoney/vitt/internal/cache"
	"github.com/vittmoney/vitt/internal/models"
)

// DefaultTimeout bounds a single classification request.
const DefaultTimeout = 8 * time.Second

// Labels are the categories the classifier chooses from.
var Labels = []string{"Food", "Transport", "Shopping", "Bills", "Health", "Entertainment", "Other"}

// Client calls POST {base}/classify {"text": ...} -> {"category", "confidence"}.
// Results are memoized in a ClassificationCache.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	cache      *cache.ClassificationCache
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a classifier client. cc may be shared with other components.
func NewClient(baseURL string, cc *cache.ClassificationCache, opts ...Option) *Client {
	if cc == nil {
		cc = cache.NewClassificationCache(0)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		cache:      cc,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the predicted category for text, or nil when the text is blank or the
// service fails. Failures are logged, never returned: categorisation is best effort.
func (c *Client) Classify(ctx context.Context, text string) *models.Classification {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if v, ok := c.cache.Get(text); ok {
		return &v
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.request(ctx, text)
	if err != nil {
		c.logger.Warn("Classification failed", zap.Error(err))
		return nil
	}
	c.cache.Set(text, *v)
	return v
}

func (c *Client) request(ctx context.Context, text string) (*models.Classification, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classify service returned %d", resp.StatusCode)
	}

	var out models.Classification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode classification: %w", err)
	}
	if out.Category == "" {
		return nil, fmt.Errorf("classification has no category")
	}
	return &out, nil
}

// CacheSize returns the number of memoized classifications.
func (c *Client) CacheSize() int {
	return c.cache.Size()
}
