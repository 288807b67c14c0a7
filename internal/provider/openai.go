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

// OpenAI Models used by the default panels
// Full list: https://platform.openai.com/docs/models
//
//   - gpt-4o-mini          : Fast, affordable for focused tasks (agent default)
//   - gpt-4o               : Fast, intelligent, flexible GPT model
//   - gpt-4.1-mini         : Smaller, faster version of GPT-4.1

// OpenAI implements Provider for OpenAI's chat completions API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*OpenAI)

// WithOpenAIBaseURL sets a custom base URL (useful for proxies or compatible APIs).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) { o.baseURL = url }
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAI) { o.httpClient = c }
}

// WithOpenAIKey sets the API key instead of reading OPENAI_API_KEY.
func WithOpenAIKey(key string) OpenAIOption {
	return func(o *OpenAI) { o.apiKey = key }
}

// NewOpenAI creates an OpenAI provider.
// Reads API key from OPENAI_API_KEY environment variable.
func NewOpenAI(opts ...OpenAIOption) (*OpenAI, error) {
	o := &OpenAI{
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable required")
	}

	return o, nil
}

// Query sends a prompt to an OpenAI model and returns the response.
func (o *OpenAI) Query(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	resp, err := o.post(ctx, o.payload(req, false))
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

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return Response{}, fmt.Errorf("parsing response: %w", err)
	}

	if len(openAIResp.Choices) == 0 {
		return Response{}, errors.New("no choices in response")
	}

	return Response{
		Model:    req.Model,
		Content:  openAIResp.Choices[0].Message.Content,
		Provider: "openai",
		Latency:  time.Since(start),
	}, nil
}

// QueryStream sends a prompt to an OpenAI model and streams the response.
func (o *OpenAI) QueryStream(ctx context.Context, req Request, callback StreamCallback) (Response, error) {
	start := time.Now()

	resp, err := o.post(ctx, o.payload(req, true))
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
		if data == "[DONE]" {
			return false
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return true
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			return true
		}
		text := chunk.Choices[0].Delta.Content
		fullContent.WriteString(text)
		if callback != nil {
			callback(text)
		}
		return true
	})
	if err != nil {
		return Response{}, fmt.Errorf("reading stream: %w", err)
	}

	return Response{
		Model:    req.Model,
		Content:  fullContent.String(),
		Provider: "openai",
		Latency:  time.Since(start),
	}, nil
}

func (o *OpenAI) payload(req Request, stream bool) openAIRequest {
	var messages []openAIMessage
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	return openAIRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

func (o *OpenAI) post(ctx context.Context, payload openAIRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}
