package llm

import (
	"context"
	"regexp"
	"strings"
)

var thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// FilterThinking removes <think>...</think> reasoning blocks emitted by
// reasoning models and trims the remainder.
func FilterThinking(text string) string {
	return strings.TrimSpace(thinkPattern.ReplaceAllString(text, ""))
}

// thinkingFilter wraps a Generator and strips reasoning markup from its
// completions before they reach the code extractor.
type thinkingFilter struct {
	next Generator
}

// WithThinkingFilter wraps g so every completion goes through FilterThinking.
func WithThinkingFilter(g Generator) Generator {
	return &thinkingFilter{next: g}
}

func (f *thinkingFilter) Generate(ctx context.Context, messages []Message) (string, error) {
	out, err := f.next.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	return FilterThinking(out), nil
}
