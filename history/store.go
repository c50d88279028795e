// Package history persists the per-session version log in Redis so that
// past iterations survive a restart of the API service and can be listed.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cns-iu/dvl-llm/orchestrator"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dvl"

var ErrEmptySession = errors.New("history: session id is required")

// Version is one committed iteration as stored in Redis.
type Version struct {
	SessionID    string    `json:"session_id"`
	Iteration    int       `json:"iteration"`
	OutputName   string    `json:"output_name"`
	Code         string    `json:"code"`
	Status       string    `json:"status"`
	ErrorKind    int       `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store keeps one Redis list of versions per session plus a sorted set of
// sessions ordered by last activity.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Open connects to a redis:// URL (or bare host:port) and checks it.
func Open(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return NewStore(client, ttl), nil
}

func versionsKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:versions", keyPrefix, sessionID)
}

func sessionsKey() string { return keyPrefix + ":sessions" }

// Push appends v to its session's log.
func (s *Store) Push(ctx context.Context, v Version) error {
	if v.SessionID == "" {
		return ErrEmptySession
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal version: %w", err)
	}

	key := versionsKey(v.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.ZAdd(ctx, sessionsKey(), redis.Z{Score: float64(v.CreatedAt.Unix()), Member: v.SessionID})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store version in Redis: %w", err)
	}
	return nil
}

// Pop drops the newest version of a session, mirroring an undo.
func (s *Store) Pop(ctx context.Context, sessionID string) (Version, error) {
	if sessionID == "" {
		return Version{}, ErrEmptySession
	}
	data, err := s.client.RPop(ctx, versionsKey(sessionID)).Bytes()
	if err != nil {
		return Version{}, fmt.Errorf("pop version: %w", err)
	}
	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		return Version{}, fmt.Errorf("decode version: %w", err)
	}
	return v, nil
}

// Versions lists a session's versions, oldest first.
func (s *Store) Versions(ctx context.Context, sessionID string) ([]Version, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	raw, err := s.client.LRange(ctx, versionsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	out := make([]Version, 0, len(raw))
	for _, item := range raw {
		var v Version
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			log.Printf("⚠️ [HISTORY] Skipping corrupt version in %s: %v", sessionID, err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Sessions returns session ids, most recently active first.
func (s *Store) Sessions(ctx context.Context, limit int64) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	return s.client.ZRevRange(ctx, sessionsKey(), 0, stop).Result()
}

// Reset clears a session's log; Run starts every session from scratch.
func (s *Store) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, versionsKey(sessionID))
	pipe.ZRem(ctx, sessionsKey(), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Close() error { return s.client.Close() }

// VersionFromEvent converts an engine event into a stored version.
func VersionFromEvent(sessionID string, e orchestrator.Event) Version {
	return Version{
		SessionID:    sessionID,
		Iteration:    e.Iteration,
		OutputName:   e.OutputName,
		Code:         e.Code,
		Status:       e.Outcome.Status,
		ErrorKind:    int(e.Outcome.ErrorKind),
		ErrorMessage: e.Outcome.ErrorMessage,
		ArtifactPath: e.Outcome.OutputArtifactPath,
		CreatedAt:    e.Time,
	}
}

// Recorder returns a listener that mirrors a session's undo stack into the
// store. Storage failures are logged and never fail the iteration.
func (s *Store) Recorder(sessionID string) orchestrator.Listener {
	return func(e orchestrator.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var err error
		switch e.Type {
		case orchestrator.EventIteration:
			if e.Iteration == 1 {
				if err = s.Reset(ctx, sessionID); err != nil {
					break
				}
			}
			err = s.Push(ctx, VersionFromEvent(sessionID, e))
		case orchestrator.EventUndo:
			_, err = s.Pop(ctx, sessionID)
		default:
			return
		}
		if err != nil {
			log.Printf("⚠️ [HISTORY] Failed to record %s event for %s: %v", e.Type, sessionID, err)
		}
	}
}
