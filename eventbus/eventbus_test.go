package eventbus

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cns-iu/dvl-llm/orchestrator"
	"github.com/cns-iu/dvl-llm/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	events []Event
	err    error
}

func (c *capturePublisher) Publish(ctx context.Context, evt Event) error {
	c.events = append(c.events, evt)
	return c.err
}

func TestNewEventID(t *testing.T) {
	ts := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	a := NewEventID("evt_", ts)
	b := NewEventID("evt_", ts)
	assert.True(t, strings.HasPrefix(a, "evt_20250309_"))
	assert.Len(t, a, len("evt_20250309_")+16)
	assert.NotEqual(t, a, b)
}

func TestValidate(t *testing.T) {
	e := Event{EventID: "x", Source: "dvl-api", Type: "attempt", SessionID: "s", Timestamp: time.Now()}
	assert.True(t, e.Validate())
	e.SessionID = ""
	assert.False(t, e.Validate())
}

func TestForwardPublishesEngineEvents(t *testing.T) {
	pub := &capturePublisher{}
	l := Forward(pub, "dvl-api", "sess-1")

	l(orchestrator.Event{
		Type:       orchestrator.EventAttempt,
		Iteration:  1,
		Attempt:    0,
		OutputName: "t_1",
		Outcome:    sandbox.Failure(sandbox.KindExecutionError, "boom", "", "Traceback"),
		Retrying:   true,
	})

	require.Len(t, pub.events, 1)
	evt := pub.events[0]
	assert.True(t, evt.Validate())
	assert.Equal(t, "attempt", evt.Type)
	assert.Equal(t, "sess-1", evt.SessionID)
	assert.Equal(t, 1000, evt.ErrorKind)
	assert.True(t, evt.Retrying)
	assert.Equal(t, "dvl.events.attempt", subjectFor(DefaultSubjectPrefix, evt.Type))
}

func TestForwardSwallowsPublishErrors(t *testing.T) {
	pub := &capturePublisher{err: errors.New("nats: connection closed")}
	assert.NotPanics(t, func() {
		Forward(pub, "dvl-api", "s")(orchestrator.Event{Type: orchestrator.EventUndo, Undone: "t_2"})
	})
	require.Len(t, pub.events, 1)
	assert.Equal(t, "t_2", pub.events[0].Undone)
}
