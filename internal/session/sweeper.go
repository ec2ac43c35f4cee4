package session

import (
	"context"
	"log/slog"
	"time"
)

const DefaultSweepInterval = 1 * time.Hour

type Sweeper struct {
	manager  *Manager
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(manager *Manager, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		manager:  manager,
		interval: interval,
		log:      log.With("component", "cleanup"),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info("starting refresh token sweeper", "interval", s.interval)

	s.runSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping refresh token sweeper")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Sweeper) runSweep(ctx context.Context) {
	deleted, err := s.manager.SweepExpired(ctx)
	if err != nil {
		s.log.Error("error deleting expired refresh tokens", "error", err)
	} else if deleted > 0 {
		s.log.Info("deleted expired refresh tokens", "count", deleted)
	}
}
