// Package summarize turns aggregation prompts into narrative text using an
// OpenAI-compatible chat-completions endpoint.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/starford/dayroll/internal/apperr"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 600
	DefaultTemperature = 0.2

	systemPrompt = "You are an execution coach. Summarize the key conclusions and concrete improvement suggestions."
)

// Summarizer produces narrative text from a prompt.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Disabled is used when no credentials are configured.
type Disabled struct{}

func (Disabled) Summarize(context.Context, string) (string, error) {
	return "", apperr.ErrSummarizerDisabled
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("summarize: http %d: %s", e.Status, e.Message)
}

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client calls the chat-completions endpoint.
type Client struct {
	http        *http.Client
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
}

var _ Summarizer = (*Client)(nil)

// New returns Disabled when opts has no API key, otherwise a Client.
func New(ctx context.Context, opts Options) Summarizer {
	if opts.APIKey == "" {
		return Disabled{}
	}
	return NewClient(ctx, opts)
}

// NewClient returns a client authenticated with opts.APIKey.
func NewClient(ctx context.Context, opts Options) *Client {
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: opts.APIKey,
		TokenType:   "Bearer",
	}))
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}
	c := &Client{
		http:        hc,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Summarize sends prompt with the coaching system message and returns the
// first choice, trimmed.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	data, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("summarize: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("summarize: read: %w", err)
	}
	var out completionResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("summarize: decode: %w", decodeErr)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("summarize: empty choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
