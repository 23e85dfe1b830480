// Package catalog queries the remote scene catalog for newly published
// acquisitions.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SceneMetadata is one catalog entry describing an available scene.
type SceneMetadata struct {
	SceneID     string    `json:"scene_id"`
	ProductID   string    `json:"product_id"`
	Platform    string    `json:"platform"`
	Instrument  string    `json:"instrument"`
	AcquiredAt  time.Time `json:"acquired_at"`
	NorthLat    float64   `json:"north_lat"`
	SouthLat    float64   `json:"south_lat"`
	EastLon     float64   `json:"east_lon"`
	WestLon     float64   `json:"west_lon"`
	CloudCover  float64   `json:"cloud_cover"`
	DownloadURL string    `json:"download_url"`
	SizeBytes   int64     `json:"size_bytes"`
}

// Query filters a catalog search. Zero-valued fields are omitted from the
// request.
type Query struct {
	AcquiredAfter  time.Time
	AcquiredBefore time.Time
	Platforms      []string
	CloudCoverMax  float64
	// BBox is min_lon, min_lat, max_lon, max_lat; nil means no spatial filter.
	BBox       []float64
	MaxResults int
}

// Searcher defines the catalog operations discovery depends on.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]SceneMetadata, error)
}

// Client provides access to a scene catalog over HTTP.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a catalog client. The API key is optional; public catalogs
// accept anonymous queries.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("catalog base url required")
	}
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchResponse struct {
	Scenes []SceneMetadata `json:"scenes"`
	Total  int             `json:"total"`
}

// Search returns catalog entries matching the query, newest last.
func (c *Client) Search(ctx context.Context, q Query) ([]SceneMetadata, error) {
	endpoint, err := url.Parse(c.baseURL + "/scenes/search")
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}

	params := url.Values{}
	if !q.AcquiredAfter.IsZero() {
		params.Set("acquired_after", q.AcquiredAfter.UTC().Format(time.RFC3339))
	}
	if !q.AcquiredBefore.IsZero() {
		params.Set("acquired_before", q.AcquiredBefore.UTC().Format(time.RFC3339))
	}
	if len(q.Platforms) > 0 {
		params.Set("platforms", strings.Join(q.Platforms, ","))
	}
	if q.CloudCoverMax > 0 {
		params.Set("cloud_cover_max", strconv.FormatFloat(q.CloudCoverMax, 'f', -1, 64))
	}
	if len(q.BBox) == 4 {
		parts := make([]string, 4)
		for i, v := range q.BBox {
			parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		params.Set("bbox", strings.Join(parts, ","))
	}
	if q.MaxResults > 0 {
		params.Set("limit", strconv.Itoa(q.MaxResults))
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog search returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	return payload.Scenes, nil
}
