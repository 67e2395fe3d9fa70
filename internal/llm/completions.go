package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	OpenAIURL  = "https://api.openai.com/v1/chat/completions"
	MistralURL = "https://api.mistral.ai/v1/chat/completions"

	maxErrorBody = 2048
)

// CompletionsClient talks to an OpenAI-compatible chat completions endpoint.
// OpenAI and Mistral share the wire format.
type CompletionsClient struct {
	http    *http.Client
	backend string
	apiKey  string
	model   string
	baseURL string
}

type CompletionsOption func(*CompletionsClient)

// WithBaseURL points the client at another endpoint, e.g. an httptest server.
func WithBaseURL(url string) CompletionsOption {
	return func(c *CompletionsClient) { c.baseURL = url }
}

func WithHTTPClient(hc *http.Client) CompletionsOption {
	return func(c *CompletionsClient) { c.http = hc }
}

func NewOpenAIClient(apiKey, model string, timeout time.Duration, opts ...CompletionsOption) *CompletionsClient {
	return newCompletionsClient("OpenAI", OpenAIURL, apiKey, model, timeout, opts)
}

func NewMistralClient(apiKey, model string, timeout time.Duration, opts ...CompletionsOption) *CompletionsClient {
	return newCompletionsClient("Mistral", MistralURL, apiKey, model, timeout, opts)
}

func newCompletionsClient(backend, url, apiKey, model string, timeout time.Duration, opts []CompletionsOption) *CompletionsClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &CompletionsClient{
		http:    &http.Client{Timeout: timeout},
		backend: backend,
		apiKey:  apiKey,
		model:   model,
		baseURL: url,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CompletionsClient) Name() string { return c.backend + ":" + c.model }
func (c *CompletionsClient) Close() error { return nil }

type completionsRequest struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type completionsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *CompletionsClient) Send(ctx context.Context, messages []Message, format Format) (string, error) {
	body := completionsRequest{Model: c.model, Messages: messages}
	if format != "" {
		body.ResponseFormat = map[string]string{"type": string(format)}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s request: %w", c.backend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build %s request: %w", c.backend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &NetworkError{Backend: c.backend, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", classifyStatus(c.backend, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out completionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &NetworkError{Backend: c.backend, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s: %w", c.backend, ErrEmptyResponse)
	}
	return out.Choices[0].Message.Content, nil
}
