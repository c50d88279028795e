package orchestrator

import (
	"log"
	"time"

	"github.com/cns-iu/dvl-llm/sandbox"
)

type EventType string

const (
	EventAttempt   EventType = "attempt"
	EventIteration EventType = "iteration"
	EventUndo      EventType = "undo"
)

// Event reports progress to listeners. Attempt events fire after every
// executor call, iteration events after each snapshot is committed.
type Event struct {
	Type       EventType
	Iteration  int
	Attempt    int
	OutputName string
	Code       string
	Outcome    sandbox.Outcome
	Retrying   bool
	Undone     string
	Time       time.Time
}

// Listener receives events synchronously on the orchestrator's goroutine.
type Listener func(Event)

func (o *Orchestrator) emit(e Event) {
	if len(o.listeners) == 0 {
		return
	}
	e.Time = time.Now().UTC()
	for _, l := range o.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("⚠️ [ORCH] Listener panicked on %s event: %v", e.Type, r)
				}
			}()
			l(e)
		}()
	}
}
