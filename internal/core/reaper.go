package core

// reaper.go periodically drops finished import sessions whose TTL expired,
// covering operators who never close the progress view.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultReapInterval is how often expired sessions are removed.
const DefaultReapInterval = 5 * time.Minute

// StartSessionReaper removes expired sessions every interval until ctx is
// cancelled. It blocks, so callers run it in its own goroutine.
func (s *Service) StartSessionReaper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultReapInterval
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), s.runReapJob); err != nil {
		return fmt.Errorf("schedule session reaper: %w", err)
	}

	slog.Info("session reaper started",
		"interval", interval.String(),
		"session_ttl", s.cfg.SessionTTL.String(),
	)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("session reaper stopped")
	return nil
}

// runReapJob performs one cleanup pass.
func (s *Service) runReapJob() {
	start := time.Now()
	removed := s.ReapExpired(start)
	if removed == 0 {
		slog.Debug("session reaper found nothing to remove")
		return
	}
	slog.Info("expired import sessions removed",
		"sessions_removed", removed,
		"sessions_left", s.SessionCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
