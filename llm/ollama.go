package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaURL = "http://localhost:11434/api/chat"

// OllamaClient calls a local Ollama server through /api/chat.
type OllamaClient struct {
	httpClient *http.Client
	url        string
	model      string
}

func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		httpClient: newHTTPClient(timeout),
		url:        normalizeOllamaURL(baseURL),
		model:      model,
	}
}

func normalizeOllamaURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return defaultOllamaURL
	}
	if strings.HasSuffix(base, "/api/chat") {
		return base
	}
	return strings.TrimRight(base, "/") + "/api/chat"
}

type ollamaRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaResponse struct {
	Message         Message `json:"message"`
	Error           string  `json:"error,omitempty"`
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
}

func (c *OllamaClient) Generate(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(ollamaRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("🌐 [LLM] Using Ollama at %s model=%s", c.url, c.model)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ollamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	if out.Message.Content == "" {
		return "", ErrEmptyResponse
	}
	if out.PromptEvalCount+out.EvalCount > 0 {
		log.Printf("📊 [LLM] Token usage: prompt=%d completion=%d", out.PromptEvalCount, out.EvalCount)
	}
	return out.Message.Content, nil
}
