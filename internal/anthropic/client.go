// Package anthropic is a minimal client for the Anthropic messages API,
// covering only what the reply pipeline needs: one-shot text and vision
// completions.
package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-3-5-haiku-20241022"
	defaultTimeout = 60 * time.Second
	apiVersion     = "2023-06-01"
)

// ErrUnavailable reports that no completion could be obtained: missing key,
// transport failure, non-2xx status, or empty content. Callers substitute a
// fallback instead of surfacing it.
var ErrUnavailable = errors.New("model unavailable")

// errTransport marks failures where the request may never have reached the
// API. Only these earn the vision retry; a deterministic rejection would
// just be rejected again.
var errTransport = fmt.Errorf("transport failure: %w", ErrUnavailable)

// Image is an inline screenshot attachment.
type Image struct {
	Data      []byte
	MediaType string
}

// Request is one completion request.
type Request struct {
	System    string
	User      string
	MaxTokens int
	Image     *Image
}

// Client talks to the messages endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a client with the given API key. An empty key is
// allowed; every call then fails with ErrUnavailable.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL points the client at an alternate endpoint so tests
// can stand in for the API with httptest.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// WithModel overrides the default model. An empty name keeps the default.
func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends one request and returns the text of the response. Vision
// requests get a single bounded retry on transport failure; text requests do
// not, their callers have canned fallbacks and a second round-trip only adds
// latency.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("no API key configured: %w", ErrUnavailable)
	}

	body, err := json.Marshal(buildMessageRequest(c.model, req))
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	text, err := c.doComplete(ctx, body)
	if err != nil && req.Image != nil && errors.Is(err, errTransport) && ctx.Err() == nil {
		text, err = c.doComplete(ctx, body)
	}
	return text, err
}

func buildMessageRequest(model string, req Request) messageRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}

	var blocks []contentBlock
	if req.Image != nil {
		blocks = append(blocks, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: req.Image.MediaType,
				Data:      base64.StdEncoding.EncodeToString(req.Image.Data),
			},
		})
	}
	blocks = append(blocks, contentBlock{Type: "text", Text: req.User})

	return messageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: blocks}},
	}
}

func (c *Client) doComplete(ctx context.Context, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("executing request: %v: %w", err, errTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status %d: %s: %w", resp.StatusCode, string(respBody), ErrUnavailable)
	}

	var mr messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return "", fmt.Errorf("decoding response: %w", ErrUnavailable)
	}

	var text strings.Builder
	for _, block := range mr.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty completion: %w", ErrUnavailable)
	}
	return text.String(), nil
}

// MIMEFromPath infers the image media type from the filename extension.
// Anything unrecognized is treated as JPEG, matching what phone keyboards
// actually upload.
func MIMEFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
