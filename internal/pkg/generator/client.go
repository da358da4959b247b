package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/careerpilot/careerpilot/internal/pkg/env"
)

const (
	defaultGeneratorBaseURL = "https://api.openai.com/v1"
	defaultGeneratorModel   = "gpt-4o-mini"
)

// Message is one chat message sent to the completion API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the resume content generator collaborator: a thin chat-completion
// HTTP client. Prompt quality and output shape validation live with callers.
type Client struct {
	APIKey  string
	BaseURL string
	Model   string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from GENERATOR_* environment config.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:  strings.TrimSpace(env.GetEnv("GENERATOR_API_KEY", "")),
		BaseURL: strings.TrimRight(env.GetEnv("GENERATOR_BASE_URL", defaultGeneratorBaseURL), "/"),
		Model:   env.GetEnv("GENERATOR_MODEL", defaultGeneratorModel),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt messages and returns the raw completion text.
// Transient transport failures are retried with backoff.
func (c *Client) Generate(ctx context.Context, messages []Message) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("GENERATOR_API_KEY is not configured")
	}
	if len(messages) == 0 {
		return "", errors.New("at least one prompt message is required")
	}

	payload, err := json.Marshal(completionRequest{Model: c.Model, Messages: messages})
	if err != nil {
		return "", err
	}

	resp, err := c.doWithRetry(ctx, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("generator request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out completionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding generator response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("generator returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) doWithRetry(ctx context.Context, payload []byte) (*http.Response, error) {
	attempts := 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, err := c.HTTPClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if i < attempts-1 {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// ExtractJSON pulls a JSON object out of a completion that may wrap it in
// code fences or surrounding prose. Returns an error only when no parseable
// object can be found at all; callers validate the shape downstream.
func ExtractJSON(content string) (map[string]interface{}, error) {
	text := strings.TrimSpace(content)

	// Strip a ```json ... ``` fence if present.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	// Fall back to the outermost braces for completions with leading or
	// trailing prose.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil {
			return out, nil
		}
	}
	return nil, errors.New("completion contains no parseable JSON object")
}
