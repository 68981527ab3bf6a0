// Package notion is the only I/O boundary to the document database: an HTTP
// client for the Notion-compatible API and the query gateway built on it.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"
	pageSize       = 100
)

// Store is the set of raw API primitives the gateway needs.
// *Client implements it over HTTP; tests use an in-memory fake.
type Store interface {
	RetrieveDatabase(ctx context.Context, databaseID string) (*Schema, error)
	QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error)
	CreatePage(ctx context.Context, databaseID string, props Properties) (*Page, error)
	UpdatePage(ctx context.Context, pageID string, props Properties) (*Page, error)
	UpdateDatabase(ctx context.Context, databaseID string, props map[string]PropertySchema) error
}

// Verify *Client satisfies Store at compile time.
var _ Store = (*Client)(nil)

// QueryRequest is the body of a database query.
type QueryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
}

// QueryResponse is one page of query results.
type QueryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notion: http %d %s: %s", e.Status, e.Code, e.Message)
}

// Options configures a Client.
type Options struct {
	Token   string
	BaseURL string
	Version string
	Timeout time.Duration
	// HTTPClient overrides the transport. The bearer token is still applied.
	HTTPClient *http.Client
}

// Client talks to the document database over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	version string
}

// NewClient returns a client that authenticates every request with opts.Token.
func NewClient(ctx context.Context, opts Options) *Client {
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: opts.Token,
		TokenType:   "Bearer",
	}))
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}
	return &Client{http: hc, baseURL: base, version: version}
}

// RetrieveDatabase fetches a database's schema.
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Schema, error) {
	var db databaseObject
	if err := c.do(ctx, http.MethodGet, "/databases/"+url.PathEscape(databaseID), nil, &db); err != nil {
		return nil, err
	}
	return db.schema(), nil
}

// QueryDatabase runs one page of a filtered query.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

// CreatePage creates a record under a database.
func (c *Client) CreatePage(ctx context.Context, databaseID string, props Properties) (*Page, error) {
	body := struct {
		Parent     parent     `json:"parent"`
		Properties Properties `json:"properties"`
	}{Parent: parent{DatabaseID: databaseID}, Properties: props}
	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdatePage patches the given properties of a record.
func (c *Client) UpdatePage(ctx context.Context, pageID string, props Properties) (*Page, error) {
	body := struct {
		Properties Properties `json:"properties"`
	}{Properties: props}
	var page Page
	if err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(pageID), body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdateDatabase adds or changes columns of a database.
func (c *Client) UpdateDatabase(ctx context.Context, databaseID string, props map[string]PropertySchema) error {
	body := struct {
		Properties map[string]PropertySchema `json:"properties"`
	}{Properties: props}
	return c.do(ctx, http.MethodPatch, "/databases/"+url.PathEscape(databaseID), body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("notion: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("notion: build request: %w", err)
	}
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notion: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("notion: read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("notion: decode %s %s: %w", method, path, err)
	}
	return nil
}
