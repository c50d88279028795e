// Package llm is the code-generation capability: a conversation goes in, a
// single text completion comes out. Providers are selected once at
// construction time by New.
package llm

import (
	"context"
	"errors"
)

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator produces a completion for an ordered message history.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, messages []Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

var (
	ErrUnsupportedProvider = errors.New("llm: unsupported provider")
	ErrMissingAPIKey       = errors.New("llm: api key not set")
	ErrEmptyResponse       = errors.New("llm: empty response from model")
)
