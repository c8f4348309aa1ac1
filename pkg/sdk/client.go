package airweave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	chitransport "github.com/AlejoJamC/airweave/internal/transport/chi"
	"github.com/AlejoJamC/airweave/internal/version"
)

// Client is the airweave search API client.
type Client struct {
	baseURL   *url.URL
	hc        *http.Client
	apiKey    string
	userAgent string
	obs       *observer
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("airweave: base URL required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("airweave: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("airweave: unsupported scheme %q", u.Scheme)
	}

	cfg := &clientConfig{
		timeout:   defaultTimeout,
		userAgent: "airweave-go/" + version.Version,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   u,
		hc:        hc,
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

// Search runs a query across the request's collections.
func (c *Client) Search(ctx context.Context, req SearchRequest) (_ *SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	var out SearchResponse
	if err = c.do(ctx, http.MethodPost, "/search", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchCollection runs a query against one collection.
func (c *Client) SearchCollection(ctx context.Context, collection string, req SearchRequest) (_ *SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_collection", start, err) }()

	if collection == "" {
		return nil, fmt.Errorf("airweave: collection is required: %w", ErrInvalidQuery)
	}

	var out SearchResponse
	path := "/collections/" + url.PathEscape(collection) + "/search"
	if err = c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Collections lists every searchable collection, following pagination cursors.
func (c *Client) Collections(ctx context.Context) (_ []Collection, err error) {
	start := time.Now()
	defer func() { c.obs.observe("collections", start, err) }()

	var (
		all    []Collection
		cursor string
	)
	for {
		q := url.Values{"limit": {strconv.Itoa(100)}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page chitransport.CollectionListResponse
		if err = c.do(ctx, http.MethodGet, "/collections?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if !page.HasMore || page.NextCursor == nil {
			return all, nil
		}
		cursor = *page.NextCursor
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("airweave: encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, r)
	if err != nil {
		return nil, fmt.Errorf("airweave: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("airweave: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("airweave: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: resp.Status}

	var body chitransport.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Code != "" {
		apiErr.Code = string(body.Error.Code)
		apiErr.Message = body.Error.Message
		apiErr.Stage = body.Error.Stage
	}
	return apiErr
}
