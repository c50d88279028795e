// Package eventbus publishes orchestration progress to NATS so dashboards
// and other services can follow sessions without polling the API.
package eventbus

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/cns-iu/dvl-llm/orchestrator"
)

// Event is the envelope published for every attempt, iteration and undo.
type Event struct {
	EventID      string    `json:"event_id"`
	Source       string    `json:"source"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
	Iteration    int       `json:"iteration"`
	Attempt      int       `json:"attempt"`
	OutputName   string    `json:"output_name,omitempty"`
	Status       string    `json:"status,omitempty"`
	ErrorKind    int       `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Retrying     bool      `json:"retrying,omitempty"`
	Undone       string    `json:"undone,omitempty"`
}

// NewEventID generates a compact unique event id with a date prefix.
func NewEventID(prefix string, t time.Time) string {
	// 8 random bytes -> 16 hex chars
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + t.UTC().Format("20060102") + "_" + hex.EncodeToString(b)
}

// Validate checks required fields.
func (e *Event) Validate() bool {
	return e.EventID != "" && e.Source != "" && e.Type != "" && e.SessionID != "" && !e.Timestamp.IsZero()
}

// FromOrchestrator wraps an engine event. Generated code is not included;
// it is available from the version history.
func FromOrchestrator(source, sessionID string, e orchestrator.Event) Event {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Event{
		EventID:      NewEventID("evt_", ts),
		Source:       source,
		Type:         string(e.Type),
		Timestamp:    ts,
		SessionID:    sessionID,
		Iteration:    e.Iteration,
		Attempt:      e.Attempt,
		OutputName:   e.OutputName,
		Status:       e.Outcome.Status,
		ErrorKind:    int(e.Outcome.ErrorKind),
		ErrorMessage: e.Outcome.ErrorMessage,
		ArtifactPath: e.Outcome.OutputArtifactPath,
		Retrying:     e.Retrying,
		Undone:       e.Undone,
	}
}
