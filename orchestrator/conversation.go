package orchestrator

import (
	"errors"

	"github.com/cns-iu/dvl-llm/llm"
)

var (
	ErrSystemMessage        = errors.New("conversation: the system message is fixed at construction")
	ErrConsecutiveAssistant = errors.New("conversation: two consecutive assistant messages")
	ErrReplaceSystem        = errors.New("conversation: cannot replace the system message")
)

// Conversation is an append-only, role-tagged message log that starts with
// exactly one system message.
type Conversation struct {
	msgs []llm.Message
}

func NewConversation(system string) *Conversation {
	return &Conversation{msgs: []llm.Message{{Role: llm.RoleSystem, Content: system}}}
}

// restoreConversation rebuilds a live log from a snapshot copy.
func restoreConversation(msgs []llm.Message) *Conversation {
	return &Conversation{msgs: cloneMessages(msgs)}
}

func (c *Conversation) Append(role llm.Role, content string) error {
	switch {
	case role == llm.RoleSystem:
		return ErrSystemMessage
	case role == llm.RoleAssistant && c.Last().Role == llm.RoleAssistant:
		return ErrConsecutiveAssistant
	}
	c.msgs = append(c.msgs, llm.Message{Role: role, Content: content})
	return nil
}

// ReplaceLast swaps the content of the final message, keeping its role.
func (c *Conversation) ReplaceLast(content string) error {
	if len(c.msgs) == 1 {
		return ErrReplaceSystem
	}
	c.msgs[len(c.msgs)-1].Content = content
	return nil
}

// Snapshot returns a deep copy that later mutation cannot reach.
func (c *Conversation) Snapshot() []llm.Message {
	return cloneMessages(c.msgs)
}

func (c *Conversation) Last() llm.Message {
	return c.msgs[len(c.msgs)-1]
}

func (c *Conversation) Len() int { return len(c.msgs) }

// recordCode stores generated code as the latest assistant turn.
func (c *Conversation) recordCode(code string) error {
	if c.Last().Role == llm.RoleAssistant {
		return c.ReplaceLast(code)
	}
	return c.Append(llm.RoleAssistant, code)
}

// lastCode is the most recent assistant message, or "".
func lastCode(msgs []llm.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}

func cloneMessages(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out
}
