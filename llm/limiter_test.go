package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	slow := GeneratorFunc(func(ctx context.Context, _ []Message) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "ok", nil
	})

	g := NewLimiter(2).Wrap(slow)
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := g.Generate(context.Background(), nil)
			assert.NoError(t, err)
			assert.Equal(t, "ok", out)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestLimiterHonoursContext(t *testing.T) {
	block := make(chan struct{})
	held := GeneratorFunc(func(ctx context.Context, _ []Message) (string, error) {
		<-block
		return "done", nil
	})
	l := NewLimiter(1)
	g := l.Wrap(held)

	go g.Generate(context.Background(), nil)
	require.Eventually(t, func() bool { return len(l.slots) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}
