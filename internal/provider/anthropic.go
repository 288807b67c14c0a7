package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Anthropic Claude Models
// Full list: https://platform.claude.com/docs/en/about-claude/models/overview
//
//   - claude-sonnet-4-5  : Smart model for complex agents and coding
//   - claude-haiku-4-5   : Fastest with near-frontier intelligence
//   - claude-opus-4-5    : Maximum intelligence, premium performance

const anthropicDefaultMaxTokens = 4096

// Anthropic implements Provider for Anthropic's Claude API.
type Anthropic struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// AnthropicOption configures an Anthropic provider.
type AnthropicOption func(*Anthropic)

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(a *Anthropic) { a.baseURL = url }
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(c *http.Client) AnthropicOption {
	return func(a *Anthropic) { a.httpClient = c }
}

// WithAnthropicKey sets the API key instead of reading ANTHROPIC_API_KEY.
func WithAnthropicKey(key string) AnthropicOption {
	return func(a *Anthropic) { a.apiKey = key }
}

// NewAnthropic creates an Anthropic provider.
// Reads API key from ANTHROPIC_API_KEY environment variable.
func NewAnthropic(opts ...AnthropicOption) (*Anthropic, error) {
	a := &Anthropic{
		apiKey:     os.Getenv("ANTHROPIC_API_KEY"),
		baseURL:    "https://api.anthropic.com/v1",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable required")
	}

	return a, nil
}

// Query sends a prompt to a Claude model and returns the response.
func (a *Anthropic) Query(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	resp, err := a.post(ctx, a.payload(req, false))
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var anthropicResp anthropicResponse
	if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
		return Response{}, fmt.Errorf("parsing response: %w", err)
	}

	if len(anthropicResp.Content) == 0 {
		return Response{}, errors.New("no content in response")
	}

	return Response{
		Model:    req.Model,
		Content:  anthropicResp.Content[0].Text,
		Provider: "anthropic",
		Latency:  time.Since(start),
	}, nil
}

// QueryStream sends a prompt to a Claude model and streams the response.
func (a *Anthropic) QueryStream(ctx context.Context, req Request, callback StreamCallback) (Response, error) {
	start := time.Now()

	resp, err := a.post(ctx, a.payload(req, true))
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Response{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var fullContent strings.Builder
	err = scanSSE(resp.Body, func(data string) bool {
		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return true
		}
		if event.Type == "message_stop" {
			return false
		}
		if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" {
			chunk := event.Delta.Text
			fullContent.WriteString(chunk)
			if callback != nil {
				callback(chunk)
			}
		}
		return true
	})
	if err != nil {
		return Response{}, fmt.Errorf("reading stream: %w", err)
	}

	return Response{
		Model:    req.Model,
		Content:  fullContent.String(),
		Provider: "anthropic",
		Latency:  time.Since(start),
	}, nil
}

func (a *Anthropic) payload(req Request, stream bool) anthropicRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	return anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
		Stream: stream,
	}
}

func (a *Anthropic) post(ctx context.Context, payload anthropicRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
}
