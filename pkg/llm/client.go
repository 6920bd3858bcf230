// Package llm provides a small multi-provider language-model client.
// OpenAI-compatible and Anthropic APIs are supported; OpenRouter and
// DeepSeek ride the OpenAI code path.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Completer is the single-call surface consumers depend on.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Config selects and tunes a provider.
type Config struct {
	Provider    string // "openai", "anthropic", "ollama", "deepseek", "openrouter"
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	RetryPolicy RetryPolicy
}

// RetryPolicy bounds the internal retry loop.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

var DefaultOpenAIConfig = Config{
	Provider:    "openai",
	Model:       "gpt-4o-mini",
	BaseURL:     "https://api.openai.com/v1",
	MaxTokens:   1024,
	Temperature: 0.1,
	Timeout:     30 * time.Second,
}

var DefaultAnthropicConfig = Config{
	Provider:    "anthropic",
	Model:       "claude-sonnet-4-20250514",
	BaseURL:     "https://api.anthropic.com/v1",
	MaxTokens:   1024,
	Temperature: 0.1,
	Timeout:     30 * time.Second,
}

var DefaultOllamaConfig = Config{
	Provider:    "ollama",
	Model:       "llama3.2",
	BaseURL:     "http://localhost:11434",
	MaxTokens:   1024,
	Temperature: 0.1,
	Timeout:     60 * time.Second,
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is a provider-backed Completer.
type Client struct {
	config Config
	client *http.Client
}

// NewClient builds a client with a pooled transport tuned for slow LLM APIs.
func NewClient(config Config) *Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
	}

	return &Client{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
}

// Complete sends one prompt and returns the model's text content.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	maxRetries := c.config.RetryPolicy.MaxRetries
	if maxRetries == 0 {
		maxRetries = 1
	}

	var content string
	var err error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.config.RetryPolicy.Backoff * time.Duration(i)):
			}
		}

		switch c.config.Provider {
		case "openai", "openrouter", "deepseek":
			content, err = c.callOpenAI(ctx, prompt, systemPrompt)
		case "anthropic":
			content, err = c.callAnthropic(ctx, prompt, systemPrompt)
		case "ollama":
			content, err = c.callOllama(ctx, prompt, systemPrompt)
		default:
			return "", fmt.Errorf("unknown provider: %s", c.config.Provider)
		}

		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", err
}

func (c *Client) callOpenAI(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := make([]message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, message{Role: "user", Content: prompt})

	body, _ := json.Marshal(map[string]any{
		"model":       c.config.Model,
		"messages":    messages,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
	})

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenAI API error %d: %s", resp.StatusCode, string(body))
	}

	var openaiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", err
	}
	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return openaiResp.Choices[0].Message.Content, nil
}

func (c *Client) callAnthropic(ctx context.Context, prompt, systemPrompt string) (string, error) {
	anthropicReq := map[string]any{
		"model":      c.config.Model,
		"max_tokens": c.config.MaxTokens,
		"messages":   []message{{Role: "user", Content: prompt}},
	}
	if systemPrompt != "" {
		anthropicReq["system"] = systemPrompt
	}

	body, _ := json.Marshal(anthropicReq)

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.config.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Anthropic API error %d: %s", resp.StatusCode, string(body))
	}

	var anthropicResp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return "", err
	}

	content := ""
	for _, part := range anthropicResp.Content {
		if part.Type == "text" {
			content += part.Text
		}
	}
	return content, nil
}

func (c *Client) callOllama(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := make([]message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, message{Role: "user", Content: prompt})

	body, _ := json.Marshal(map[string]any{
		"model":    c.config.Model,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"temperature": c.config.Temperature,
			"num_predict": c.config.MaxTokens,
		},
	})

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Ollama API error %d: %s", resp.StatusCode, string(body))
	}

	var ollamaResp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", err
	}
	return ollamaResp.Message.Content, nil
}
