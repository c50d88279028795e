package llm

import (
	"context"
	"log"
	"time"
)

// DefaultMaxWorkers bounds concurrent model calls when no limit is set.
const DefaultMaxWorkers = 3

// Limiter is a worker pool shared by every session's generator so that a
// burst of sessions cannot overload the model backend.
type Limiter struct {
	slots chan struct{}
}

func NewLimiter(maxWorkers int) *Limiter {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	log.Printf("🚀 [LLM] Generation pool initialized with %d workers", maxWorkers)
	return &Limiter{slots: make(chan struct{}, maxWorkers)}
}

// Wrap returns g limited by the pool.
func (l *Limiter) Wrap(g Generator) Generator {
	return &limited{pool: l, next: g}
}

func (l *Limiter) acquire(ctx context.Context) (func(), error) {
	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, nil
	default:
	}

	start := time.Now()
	log.Printf("⏳ [LLM] All %d workers busy, waiting for a slot", cap(l.slots))
	select {
	case l.slots <- struct{}{}:
		log.Printf("✅ [LLM] Acquired worker after %v", time.Since(start))
		return func() { <-l.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type limited struct {
	pool *Limiter
	next Generator
}

func (g *limited) Generate(ctx context.Context, messages []Message) (string, error) {
	release, err := g.pool.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return g.next.Generate(ctx, messages)
}
