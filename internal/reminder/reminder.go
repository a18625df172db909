// Package reminder nudges users who have gone quiet.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/CopilotRelay/internal/messaging"
	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/BTreeMap/CopilotRelay/internal/scheduler"
	"github.com/BTreeMap/CopilotRelay/internal/session"
)

const (
	// DefaultIdleThreshold is how long a user must be inactive before a reminder is sent.
	DefaultIdleThreshold = 24 * time.Hour
	// DefaultSchedule runs the sweep once an hour.
	DefaultSchedule = "@every 60m"
)

// ReminderMessage is the re-engagement text sent to idle users.
const ReminderMessage = "Hello! It's been a while since we last chatted. Is there anything I can help you with today? Remember, I'm here to assist you with any questions or information you need."

// Opts holds configuration options for the Sweeper.
type Opts struct {
	IdleThreshold time.Duration
	Schedule      string
	Now           func() time.Time
}

// Option defines a configuration option for the Sweeper.
type Option func(*Opts)

// WithIdleThreshold overrides the inactivity threshold.
func WithIdleThreshold(d time.Duration) Option {
	return func(o *Opts) { o.IdleThreshold = d }
}

// WithSchedule overrides the cron schedule used by Register.
func WithSchedule(expr string) Option {
	return func(o *Opts) { o.Schedule = expr }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Sweeper sends a reminder to every session idle for at least the threshold.
type Sweeper struct {
	store     *session.Store
	messenger *messaging.Messenger
	threshold time.Duration
	schedule  string
	now       func() time.Time

	// afterSnapshot runs between taking the snapshot and claiming sessions; nil outside tests.
	afterSnapshot func()
}

// NewSweeper creates a Sweeper over the shared session store.
func NewSweeper(store *session.Store, messenger *messaging.Messenger, opts ...Option) *Sweeper {
	cfg := Opts{IdleThreshold: DefaultIdleThreshold, Schedule: DefaultSchedule, Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Sweeper{
		store:     store,
		messenger: messenger,
		threshold: cfg.IdleThreshold,
		schedule:  cfg.Schedule,
		now:       cfg.Now,
	}
}

// Sweep reminds every idle user once and resets their last interaction time so they are not
// reminded again until another threshold has passed. A user who wrote in after the snapshot was
// taken is left alone. A failed send does not stop the sweep.
// It returns the number of reminders attempted.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now()
	reminded := 0
	snapshot := s.store.Snapshot()
	if s.afterSnapshot != nil {
		s.afterSnapshot()
	}
	for _, sess := range snapshot {
		if sess.IdleFor(now) < s.threshold {
			continue
		}
		if !s.claim(sess, now) {
			slog.Debug("Sweeper.Sweep: user became active, skipping", "to", sess.ID)
			continue
		}
		res := s.messenger.Send(ctx, sess.ID, ReminderMessage)
		reminded++
		slog.Debug("Sweeper.Sweep: reminder attempted", "to", sess.ID, "ok", res.OK())
	}
	slog.Info("Sweeper.Sweep: sweep complete", "reminded", reminded, "sessions", s.store.Len())
	return reminded
}

// claim resets the session's last interaction time to now unless it moved since the snapshot.
func (s *Sweeper) claim(seen models.UserSession, now time.Time) bool {
	claimed := false
	s.store.Update(seen.ID, func(u *models.UserSession) {
		if u.LastInteractionAt.After(seen.LastInteractionAt) {
			return
		}
		u.LastInteractionAt = now
		claimed = true
	})
	return claimed
}

// Register schedules the sweep on sched. The context bounds outbound sends of scheduled runs.
func (s *Sweeper) Register(ctx context.Context, sched *scheduler.Scheduler) error {
	return sched.AddJob(s.schedule, func() {
		s.Sweep(ctx)
	})
}
