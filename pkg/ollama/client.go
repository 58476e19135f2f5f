// Package ollama provides a client for a local Ollama server's generate and
// tags endpoints, including image input for vision models.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is where a local Ollama server listens.
const DefaultBaseURL = "http://localhost:11434"

// Client defines the Ollama operations used for screenshot analysis.
type Client interface {
	// Generate runs a single non-streaming completion.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	// Tags lists the models installed on the server.
	Tags(ctx context.Context) (*TagsResponse, error)
}

// GenerateRequest is the body of POST /api/generate. Images are raw bytes
// and are base64-encoded on the wire.
type GenerateRequest struct {
	Model  string
	Prompt string
	Images [][]byte
}

type generateBody struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

// GenerateResponse is the parsed /api/generate response.
type GenerateResponse struct {
	Model         string `json:"model"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	TotalDuration int64  `json:"total_duration"`
	EvalCount     int    `json:"eval_count"`
}

// TagsResponse is the parsed /api/tags response.
type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo describes one installed model.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Has reports whether a model with the given name (with or without a tag)
// is installed.
func (t *TagsResponse) Has(name string) bool {
	for _, m := range t.Models {
		if m.Name == name || strings.TrimSuffix(m.Name, ":latest") == name {
			return true
		}
	}
	return false
}

// Option configures the Ollama client.
type Option func(*httpClient)

// WithBaseURL sets the server URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new Ollama client. Vision calls are slow, so the
// default HTTP timeout is 60 s.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request, retrying 429/502/503 with exponential
// backoff. body is resent on every attempt.
func (c *httpClient) retryDo(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, 0, eris.Wrap(err, "ollama: create request")
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, 0, err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "ollama: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("ollama: status %d: %s", resp.StatusCode, string(respBody))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return respBody, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	gb := generateBody{Model: req.Model, Prompt: req.Prompt}
	for _, img := range req.Images {
		gb.Images = append(gb.Images, base64.StdEncoding.EncodeToString(img))
	}
	payload, err := json.Marshal(gb)
	if err != nil {
		return nil, eris.Wrap(err, "ollama: marshal generate request")
	}

	body, statusCode, err := c.retryDo(ctx, http.MethodPost, "/api/generate", payload)
	if err != nil {
		return nil, eris.Wrap(err, "ollama: generate request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("ollama: generate unexpected status %d: %s", statusCode, string(body))
	}

	var result GenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "ollama: unmarshal generate response")
	}
	return &result, nil
}

func (c *httpClient) Tags(ctx context.Context) (*TagsResponse, error) {
	body, statusCode, err := c.retryDo(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, eris.Wrap(err, "ollama: tags request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("ollama: tags unexpected status %d: %s", statusCode, string(body))
	}

	var result TagsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "ollama: unmarshal tags response")
	}
	return &result, nil
}
