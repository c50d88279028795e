package orchestrator

import (
	"time"

	"github.com/cns-iu/dvl-llm/llm"
	"github.com/cns-iu/dvl-llm/sandbox"
)

// Snapshot is the engine state captured after an iteration completes.
// Values are copied in and never mutated afterwards.
type Snapshot struct {
	Iteration    int
	OutputName   string
	Code         string
	Outcome      sandbox.Outcome
	Conversation []llm.Message
	CreatedAt    time.Time
}

// Stack is the undo history, most recent last.
type Stack struct {
	items []Snapshot
}

func (s *Stack) Push(snap Snapshot) {
	snap.Conversation = cloneMessages(snap.Conversation)
	s.items = append(s.items, snap)
}

func (s *Stack) Pop() (Snapshot, bool) {
	if len(s.items) == 0 {
		return Snapshot{}, false
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return top, true
}

func (s *Stack) Top() (Snapshot, bool) {
	if len(s.items) == 0 {
		return Snapshot{}, false
	}
	return s.items[len(s.items)-1], true
}

func (s *Stack) Len() int { return len(s.items) }

func (s *Stack) Reset() { s.items = nil }

// All returns copies of every snapshot, oldest first.
func (s *Stack) All() []Snapshot {
	out := make([]Snapshot, len(s.items))
	for i, snap := range s.items {
		snap.Conversation = cloneMessages(snap.Conversation)
		out[i] = snap
	}
	return out
}
