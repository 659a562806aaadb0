// Package refresh periodically drops and refetches cached settings so that
// edits made directly on the settings backend become visible.
package refresh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	appLog "diskdash/internal/log"
)

// Refresher is what the scheduler drives; *settings.Cache satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (map[string]any, error)
}

// Scheduler runs Refresh on a cron schedule.
type Scheduler struct {
	c       *cron.Cron
	target  Refresher
	timeout time.Duration
}

// New parses expr (standard 5-field cron, or descriptors like "@hourly").
// An expr of "off" returns a nil Scheduler, whose Start and Stop are no-ops.
func New(expr string, target Refresher, loc *time.Location) (*Scheduler, error) {
	if strings.EqualFold(strings.TrimSpace(expr), "off") {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		c:       cron.New(cron.WithLocation(loc)),
		target:  target,
		timeout: 30 * time.Second,
	}
	if _, err := s.c.AddFunc(expr, s.run); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", expr, err)
	}
	return s, nil
}

// Start begins running in the background.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.c.Start()
	appLog.Info("settings refresh scheduler started", "next", s.Next().Format(time.RFC3339))
}

// Stop stops scheduling and waits for a running refresh, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("settings refresh still running at shutdown")
	}
}

// Next reports the next scheduled run.
func (s *Scheduler) Next() time.Time {
	if s == nil {
		return time.Time{}
	}
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}

// RunOnce performs one refresh immediately.
func (s *Scheduler) RunOnce() {
	if s == nil {
		return
	}
	s.run()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	t, err := s.target.Refresh(ctx)
	if err != nil {
		appLog.Error("settings refresh failed", err)
		return
	}
	appLog.Debug("settings refreshed", "keys", len(t), "took", time.Since(start))
}
