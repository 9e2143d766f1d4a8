package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	completionMaxTokens   = 500
	completionTemperature = 0.7
)

// Completer produces a free-text reply from a system context and a user
// message. Implementations are fallible; callers own the fallback.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// HTTPCompleter talks to an OpenAI-compatible chat completions endpoint.
type HTTPCompleter struct {
	url    string
	key    string
	model  string
	client *http.Client
}

// NewHTTPCompleter creates a completer for the given endpoint.
func NewHTTPCompleter(url, key, model string) *HTTPCompleter {
	return &HTTPCompleter{
		url:   url,
		key:   key,
		model: model,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete submits the context and message and returns the reply text.
func (h *HTTPCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if h.key == "" {
		return "", fmt.Errorf("completion: no API key configured")
	}

	body, err := json.Marshal(completionRequest{
		Model: h.model,
		Messages: []completionMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   completionMaxTokens,
		Temperature: completionTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("completion: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("completion: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.key)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion: unexpected status %d", resp.StatusCode)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("completion: decode: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("completion: provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion: empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}
