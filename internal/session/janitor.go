package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor sweeps idle sessions on a cron schedule.
type Janitor struct {
	manager *Manager
	ttl     time.Duration
	cron    *cron.Cron
	logger  *slog.Logger
}

func NewJanitor(m *Manager, ttl time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		manager: m,
		ttl:     ttl,
		cron:    cron.New(),
		logger:  logger.With("component", "session-janitor"),
	}
}

// Start registers the sweep at the given cron spec and begins the schedule.
func (j *Janitor) Start(spec string) error {
	_, err := j.cron.AddFunc(spec, j.sweep)
	if err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	j.cron.Start()
	j.logger.Info("janitor started", "schedule", spec, "ttl", j.ttl)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	if n := j.manager.ExpireIdle(j.ttl); n > 0 {
		j.logger.Info("expired idle sessions", "count", n)
	}
}
