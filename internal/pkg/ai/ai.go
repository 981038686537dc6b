// Package ai is a minimal client for an OpenAI-compatible chat
// completion endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client calls a chat completion API.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	http         *http.Client
}

// NewClient creates a completion client. An empty apiKey produces a
// disabled client; callers check Enabled before use.
func NewClient(apiKey, baseURL, model, systemPrompt string) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		systemPrompt: systemPrompt,
		http:         &http.Client{Timeout: 60 * time.Second},
	}
}

// Enabled reports whether the client has credentials to work with.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete sends one user question and returns the model's answer.
func (c *Client) Complete(ctx context.Context, question string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("completion client is not configured")
	}

	payload := completionRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []message{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: question},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API returned status %d", resp.StatusCode)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
