package orchestrator

import (
	"regexp"
	"strings"
)

// fencePattern matches the first fenced block: an opening fence, an optional
// language tag, a newline, the body and a closing fence.
var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_+.-]*[ \t]*\r?\n(.*?)```")

// Extract returns the body of the first fenced code block in raw, trimmed.
// Text without a complete fence is returned trimmed and otherwise untouched.
func Extract(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}
