package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Ollama implements Provider for a local Ollama server's /api/chat endpoint.
// Models are addressed as "ollama/<name>" in the catalog; the prefix is
// stripped before the request is sent.
type Ollama struct {
	baseURL    string
	httpClient *http.Client
}

// OllamaOption configures an Ollama provider.
type OllamaOption func(*Ollama)

// WithOllamaBaseURL sets the server URL.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(o *Ollama) { o.baseURL = strings.TrimRight(url, "/") }
}

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(c *http.Client) OllamaOption {
	return func(o *Ollama) { o.httpClient = c }
}

// NewOllama creates an Ollama provider.
// Reads the server URL from OLLAMA_HOST, defaulting to http://localhost:11434.
func NewOllama(opts ...OllamaOption) *Ollama {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}

	o := &Ollama{
		baseURL:    strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Query sends a prompt to a local model and returns the response.
func (o *Ollama) Query(ctx context.Context, req Request) (Response, error) {
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

	var chat ollamaChatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return Response{}, fmt.Errorf("parsing response: %w", err)
	}
	if chat.Error != "" {
		return Response{}, fmt.Errorf("ollama: %s", chat.Error)
	}

	return Response{
		Model:    req.Model,
		Content:  chat.Message.Content,
		Provider: "ollama",
		Latency:  time.Since(start),
	}, nil
}

// QueryStream sends a prompt and streams newline-delimited chunks.
func (o *Ollama) QueryStream(ctx context.Context, req Request, callback StreamCallback) (Response, error) {
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
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var chunk ollamaChatResponse
		if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return Response{}, fmt.Errorf("ollama: %s", chunk.Error)
		}
		if text := chunk.Message.Content; text != "" {
			fullContent.WriteString(text)
			if callback != nil {
				callback(text)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return Response{}, fmt.Errorf("reading stream: %w", err)
	}

	return Response{
		Model:    req.Model,
		Content:  fullContent.String(),
		Provider: "ollama",
		Latency:  time.Since(start),
	}, nil
}

func (o *Ollama) payload(req Request, stream bool) ollamaChatRequest {
	var messages []ollamaMessage
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	payload := ollamaChatRequest{
		Model:    strings.TrimPrefix(req.Model, OllamaPrefix),
		Messages: messages,
		Stream:   stream,
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		payload.Options = &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}
	return payload
}

func (o *Ollama) post(ctx context.Context, payload ollamaChatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}
