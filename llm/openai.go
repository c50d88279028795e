package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatChoice struct {
	Message Message `json:"message"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *chatError   `json:"error,omitempty"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, Jetstream, llama.cpp servers).
type OpenAIClient struct {
	httpClient  *http.Client
	url         string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIClient builds a client. baseURL may be empty, a bare host, or a
// full /v1/chat/completions URL.
func NewOpenAIClient(baseURL, apiKey, model string, temperature float64, maxTokens int, timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{
		httpClient:  newHTTPClient(timeout),
		url:         normalizeOpenAIURL(baseURL),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func normalizeOpenAIURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return defaultOpenAIURL
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") || strings.HasSuffix(base, "/api") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// newHTTPClient mirrors the transport settings used for every provider: a
// dial timeout derived from the request timeout, capped at a minute.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	dialTimeout := 30 * time.Second
	if timeout > dialTimeout {
		dialTimeout = timeout / 2
		if dialTimeout > 60*time.Second {
			dialTimeout = 60 * time.Second
		}
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

func (c *OpenAIClient) Generate(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Printf("🌐 [LLM] POST %s model=%s messages=%d payload_bytes=%d", c.url, c.model, len(messages), len(payload))
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("❌ [LLM] HTTP request failed: %v", err)
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()
	log.Printf("⏱️ [LLM] Response %d in %v", resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("llm api error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	if out.Usage != nil {
		log.Printf("📊 [LLM] Token usage: prompt=%d completion=%d total=%d",
			out.Usage.PromptTokens, out.Usage.CompletionTokens, out.Usage.TotalTokens)
	}
	return out.Choices[0].Message.Content, nil
}
