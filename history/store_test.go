package history

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/cns-iu/dvl-llm/orchestrator"
	"github.com/cns-iu/dvl-llm/sandbox"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	s := NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestPushAndList(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Push(ctx, Version{SessionID: "s1", Iteration: 1, OutputName: "t_1", Status: "success"}))
	require.NoError(t, s.Push(ctx, Version{SessionID: "s1", Iteration: 2, OutputName: "t_2", Status: "error", ErrorKind: 1000}))

	versions, err := s.Versions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "t_1", versions[0].OutputName)
	assert.Equal(t, 1000, versions[1].ErrorKind)
	assert.False(t, versions[0].CreatedAt.IsZero())

	assert.Equal(t, time.Hour, mr.TTL(versionsKey("s1")))

	sessions, err := s.Sessions(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sessions)
}

func TestPopMirrorsUndo(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Push(ctx, Version{SessionID: "s1", Iteration: 1}))
	require.NoError(t, s.Push(ctx, Version{SessionID: "s1", Iteration: 2}))

	v, err := s.Pop(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Iteration)

	versions, err := s.Versions(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestEmptySessionRejected(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	assert.ErrorIs(t, s.Push(ctx, Version{}), ErrEmptySession)
	_, err := s.Versions(ctx, "")
	assert.ErrorIs(t, err, ErrEmptySession)
	_, err = s.Pop(ctx, "")
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestRecorderFollowsOrchestrator(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)
	rec := s.Recorder("sess")
	ctx := context.Background()

	ok := sandbox.Success("/o/t_1.html")
	rec(orchestrator.Event{Type: orchestrator.EventAttempt, Iteration: 1, OutputName: "t_1"})
	rec(orchestrator.Event{Type: orchestrator.EventIteration, Iteration: 1, OutputName: "t_1", Code: "v1", Outcome: ok})
	rec(orchestrator.Event{Type: orchestrator.EventIteration, Iteration: 2, OutputName: "t_2", Code: "v2", Outcome: ok})

	versions, err := s.Versions(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", versions[1].Code)
	assert.Equal(t, "success", versions[1].Status)

	rec(orchestrator.Event{Type: orchestrator.EventUndo, Iteration: 1})
	versions, err = s.Versions(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "t_1", versions[0].OutputName)

	// A fresh run replaces the log.
	rec(orchestrator.Event{Type: orchestrator.EventIteration, Iteration: 1, OutputName: "u_1", Outcome: ok})
	versions, err = s.Versions(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "u_1", versions[0].OutputName)
}

func TestOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := Open(context.Background(), "redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer s.Close()

	s2, err := Open(context.Background(), mr.Addr(), time.Minute)
	require.NoError(t, err)
	s2.Close()
}
