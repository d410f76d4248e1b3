// Package scheduler drives the unsolicited side of the engine: recurring
// daily and weekly digest sweeps over every known owner, and deferred
// one-shot reminders.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"duit/internal/core"
	"duit/internal/ledger"
	"duit/internal/log"
	"duit/internal/transport"
)

// ErrPartialSweep flags a digest sweep where at least one owner failed. The
// sweep still completed for every other owner.
var ErrPartialSweep = errors.New("digest sweep partially failed")

// DailyLimitPrompter lets the daily sweep interrupt an owner's dialog with a
// request to set a daily spending limit. Implementations return the prompt
// text, or "" when the owner already has a limit configured.
type DailyLimitPrompter interface {
	PromptDailyLimit(ctx context.Context, owner core.OwnerID) (string, error)
}

// Scheduler runs the digest jobs. Fire times are computed from the wall
// clock at startup and after every fire; missed fires during downtime are
// never replayed.
type Scheduler struct {
	store       ledger.Store
	sender      transport.Sender
	prompter    DailyLimitPrompter // optional
	now         func() time.Time
	logger      *log.Logger
	parallelism int
}

func New(store ledger.Store, sender transport.Sender, parallelism int, logger *log.Logger) *Scheduler {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Scheduler{
		store:       store,
		sender:      sender,
		now:         time.Now,
		logger:      logger.WithComponent(log.ComponentDigest),
		parallelism: parallelism,
	}
}

// WithPrompter attaches the dialog interrupt used by the daily sweep.
func (s *Scheduler) WithPrompter(p DailyLimitPrompter) *Scheduler {
	s.prompter = p
	return s
}

// WithClock overrides the scheduler's clock, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// NextDaily returns the next local 00:01 strictly after now.
func NextDaily(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 1, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextWeekly returns the next Monday 08:00 local strictly after now.
func NextWeekly(now time.Time) time.Time {
	offset := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, now.Location()).AddDate(0, 0, offset)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// Run blocks until ctx is done, firing the daily job at every local 00:01
// and the weekly job at every Monday 08:00.
func (s *Scheduler) Run(ctx context.Context) {
	go s.loop(ctx, NextDaily, "daily", s.RunDaily)
	go s.loop(ctx, NextWeekly, "weekly", s.RunWeekly)
	<-ctx.Done()
}

func (s *Scheduler) loop(ctx context.Context, nextFire func(time.Time) time.Time, name string, job func(context.Context, time.Time) error) {
	for {
		next := nextFire(s.now())
		s.logger.Info("digest job scheduled", "job", name, "next_fire", next.Format(time.RFC3339))
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := job(ctx, s.now()); err != nil {
			s.logger.Error("digest job finished with failures", "job", name, log.FieldError, err.Error())
		}
	}
}

// RunDaily sweeps every owner's ledger for yesterday's activity and sends a
// digest to owners who had any. One owner's failure is logged and counted
// without aborting the batch.
func (s *Scheduler) RunDaily(ctx context.Context, now time.Time) error {
	return s.sweep(ctx, "daily", func(ctx context.Context, owner core.OwnerID) error {
		return s.dailyDigest(ctx, owner, now)
	})
}

// RunWeekly sweeps every owner's ledger comparing this week's expenses with
// last week's, sending a warning only when the spike rule fires.
func (s *Scheduler) RunWeekly(ctx context.Context, now time.Time) error {
	return s.sweep(ctx, "weekly", func(ctx context.Context, owner core.OwnerID) error {
		return s.weeklyDigest(ctx, owner, now)
	})
}

func (s *Scheduler) sweep(ctx context.Context, name string, digest func(context.Context, core.OwnerID) error) error {
	owners, err := s.store.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	if len(owners) == 0 {
		return nil
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, owner := range owners {
		g.Go(func() error {
			if err := digest(gctx, owner); err != nil {
				failed.Add(1)
				s.logger.Error("owner digest failed",
					"job", name,
					log.FieldOwnerID, int64(owner),
					log.FieldError, err.Error())
			}
			// per-owner errors never cancel the sweep for other owners
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%w: %d of %d owners failed (%s)", ErrPartialSweep, n, len(owners), name)
	}
	s.logger.Info("digest sweep complete", "job", name, "owners", len(owners))
	return nil
}

func (s *Scheduler) dailyDigest(ctx context.Context, owner core.OwnerID, now time.Time) error {
	txs, err := s.store.ReadAll(ctx, owner)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	yesterday := core.Yesterday(now)
	if core.CountInWindow(txs, yesterday) == 0 {
		return nil // nothing to report
	}
	income := core.WindowSum(txs, core.Income, yesterday)
	expense := core.WindowSum(txs, core.Expense, yesterday)
	remainder := income - expense

	text := fmt.Sprintf("📊 Yesterday: income %d, expense %d, remainder %d.", income, expense, remainder)
	rules := core.EvaluateDaily(income, expense)
	switch {
	case core.HasRule(rules, core.RuleLowBalance):
		text += "\n⚠️ You kept less than 20% of what you earned. Watch your spending today."
	case core.HasRule(rules, core.RuleStable):
		text += "\n✅ You kept over half of what you earned. Solid day."
	}

	if err := s.sender.SendText(ctx, owner, text); err != nil {
		return fmt.Errorf("send daily digest: %w", err)
	}

	if s.prompter != nil {
		prompt, err := s.prompter.PromptDailyLimit(ctx, owner)
		if err != nil {
			return fmt.Errorf("daily limit prompt: %w", err)
		}
		if prompt != "" {
			if err := s.sender.SendText(ctx, owner, prompt); err != nil {
				return fmt.Errorf("send daily limit prompt: %w", err)
			}
		}
	}
	return nil
}

func (s *Scheduler) weeklyDigest(ctx context.Context, owner core.OwnerID, now time.Time) error {
	txs, err := s.store.ReadAll(ctx, owner)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	thisWeek := core.WindowSum(txs, core.Expense, core.CalendarWeek(now))
	lastWeek := core.WindowSum(txs, core.Expense, core.LastCalendarWeek(now))

	rules := core.EvaluateWeekly(thisWeek, lastWeek)
	if !core.HasRule(rules, core.RuleWeeklySpike) {
		return nil // silence unless triggered
	}

	text := fmt.Sprintf("📈 Spending spike: %d so far this week vs %d last week (more than 30%% over).", thisWeek, lastWeek)
	if err := s.sender.SendText(ctx, owner, text); err != nil {
		return fmt.Errorf("send weekly digest: %w", err)
	}
	return nil
}
