package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dojihunter/internal/logger"
)

// ChatClient calls an OpenAI-compatible chat completions endpoint
// (/v1/chat/completions). It works against OpenAI, DeepSeek, Qwen and any
// gateway speaking the same protocol.
type ChatClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// MaxRetries bounds retries on 429/5xx. Zero means the default of 2.
	MaxRetries int
}

// Chat sends a system+user prompt pair and returns the assistant content.
func (c *ChatClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}

	// Normalize the base URL so a configured ".../chat/completions" does
	// not end up duplicated.
	endpoint := strings.TrimRight(c.BaseURL, "/")
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint = strings.TrimSuffix(endpoint, "/chat/completions")
	endpoint += "/chat/completions"

	messages := []map[string]string{}
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})
	payload := map[string]any{"model": c.Model, "messages": messages, "temperature": 0.2}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * 2 * time.Second
			logger.Debugf("[ai] retry %d after %s: %v", attempt, wait, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		resp, err := httpc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", fmt.Errorf("decoding chat response: %w", derr)
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("chat response contained no choices")
			}
			return r.Choices[0].Message.Content, nil
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		lastErr = fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode/100 != 5 {
			break
		}
	}
	return "", lastErr
}
