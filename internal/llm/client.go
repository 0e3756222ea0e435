// Package llm adapts chat-completion style vendor APIs to the
// rank.LLMScorer interface: a shared base Client built through a
// functional-options constructor, with each provider embedding it and
// pointing baseClient.hooks back at itself for dynamic dispatch over the
// few methods that differ per vendor (auth header, request body shape).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sentinel/internal/logging"
)

// AIClient is the hook surface each provider implements; Client calls
// through c.hooks so the embedding type's overrides take effect.
type AIClient interface {
	SetAPIKey(apiKey, customURL, customModel string)
	setAuthHeader(h http.Header)
	buildRequestBody(messages []Message) ([]byte, error)
}

// Message is one chat turn in the vendor-agnostic request shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the shared HTTP plumbing every provider embeds.
type Client struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string

	httpClient *http.Client
	logger     logging.Logger
	hooks      AIClient
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

func WithProvider(p string) ClientOption  { return func(c *Client) { c.Provider = p } }
func WithModel(m string) ClientOption     { return func(c *Client) { c.Model = m } }
func WithBaseURL(u string) ClientOption   { return func(c *Client) { c.BaseURL = u } }
func WithAPIKey(k string) ClientOption    { return func(c *Client) { c.APIKey = k } }
func WithLogger(l logging.Logger) ClientOption { return func(c *Client) { c.logger = l } }
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// NewClient builds the shared base: apply options, then fill any
// zero-value defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logging.NewConsole("llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) setAuthHeader(h http.Header) {
	if c.APIKey != "" {
		h.Set("Authorization", "Bearer "+c.APIKey)
	}
}

// buildRequestBody is the default OpenAI-compatible chat/completions body;
// providers with a different wire shape override it via hooks.
func (c *Client) buildRequestBody(messages []Message) ([]byte, error) {
	body := map[string]interface{}{
		"model":    c.Model,
		"messages": messages,
	}
	return json.Marshal(body)
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CallWithMessages sends messages to the configured provider and returns
// the first completion's text content.
func (c *Client) CallWithMessages(ctx context.Context, messages []Message) (string, error) {
	payload, err := c.hooks.buildRequestBody(messages)
	if err != nil {
		return "", fmt.Errorf("llm: build request body: %w", err)
	}

	url := c.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.hooks.setAuthHeader(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request to %s: %w", c.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warnf("llm %s returned status %d: %s", c.Provider, resp.StatusCode, string(body))
		return "", fmt.Errorf("llm: %s returned status %d", c.Provider, resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm: parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: %s returned no choices", c.Provider)
	}
	return parsed.Choices[0].Message.Content, nil
}
