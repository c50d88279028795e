package artifact

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically deletes artifacts older than a maximum age.
type Sweeper struct {
	local  *Local
	maxAge time.Duration
	cron   *cron.Cron
	now    func() time.Time
}

func NewSweeper(local *Local, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		local:  local,
		maxAge: maxAge,
		cron:   cron.New(),
		now:    time.Now,
	}
}

// Sweep removes expired artifacts once and reports how many went.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	items, err := s.local.List()
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, it := range items {
		if it.ModTime.After(cutoff) {
			continue
		}
		if err := s.local.Remove(ctx, it.Path); err != nil {
			log.Printf("⚠️ [ARTIFACT] Sweep could not remove %s: %v", it.Path, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Start schedules Sweep with a standard five-field cron expression.
func (s *Sweeper) Start(schedule string) error {
	if s.maxAge <= 0 {
		return fmt.Errorf("sweeper max age must be positive")
	}
	_, err := s.cron.AddFunc(schedule, func() {
		n, err := s.Sweep(context.Background())
		if err != nil {
			log.Printf("❌ [ARTIFACT] Sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("🧹 [ARTIFACT] Swept %d artifacts older than %v", n, s.maxAge)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	log.Printf("🕒 [ARTIFACT] Sweeper scheduled %q (max age %v)", schedule, s.maxAge)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
