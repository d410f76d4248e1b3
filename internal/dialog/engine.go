// Package dialog implements the per-owner dialog state machine that
// sequences multi-step data entry. The menu is always live: a menu button or
// command pressed mid-flow overrides the pending flow immediately instead of
// being queued, matching how the bot has always behaved.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"duit/internal/core"
	"duit/internal/ledger"
	"duit/internal/log"
	"duit/internal/scheduler"
	"duit/internal/session"
)

// Menu buttons. The transport renders these as a reply keyboard; the engine
// only ever sees their text.
const (
	BtnIncome   = "Income"
	BtnExpense  = "Expense"
	BtnToday    = "Today"
	BtnSummary  = "Summary"
	BtnChart    = "Chart"
	BtnReminder = "Reminder"
	BtnSetLimit = "Set limit"
	BtnShare    = "Share sheet"
	BtnCancel   = "Cancel"
)

const (
	cmdStart  = "/start"
	cmdCancel = "/cancel"
)

const menuNudge = "Pick a menu option: Income, Expense, Today, Summary, Chart, Reminder, Set limit, Share sheet, Cancel."

// Engine advances one owner's dialog per inbound message and returns the
// reply text. Every input path produces a reply: an outcome, a validation
// message, or a surfaced failure. Silence is never an outcome.
type Engine struct {
	sessions  session.Store
	recorder  *ledger.Recorder
	store     ledger.Store
	sharer    ledger.Sharer
	reminders *scheduler.Registry
	now       func() time.Time
	logger    *log.Logger
}

func NewEngine(sessions session.Store, recorder *ledger.Recorder, store ledger.Store, sharer ledger.Sharer, reminders *scheduler.Registry, logger *log.Logger) *Engine {
	return &Engine{
		sessions:  sessions,
		recorder:  recorder,
		store:     store,
		sharer:    sharer,
		reminders: reminders,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentDialog),
	}
}

// WithClock overrides the engine's clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Handle advances the owner's session with one inbound text and returns the
// reply.
func (e *Engine) Handle(ctx context.Context, owner core.OwnerID, text string) (string, error) {
	text = strings.TrimSpace(text)
	sess, err := e.sessions.Get(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	// Menu always wins: a button press or command mid-flow overrides the
	// pending flow without an explicit cancel.
	if reply, handled, err := e.handleMenu(ctx, sess, text); handled || err != nil {
		return reply, err
	}

	switch sess.State {
	case session.AwaitAmount:
		return e.handleAmount(ctx, sess, text)
	case session.AwaitNote:
		return e.handleNote(ctx, sess, text)
	case session.AwaitDailyLimit:
		return e.handleDailyLimit(ctx, sess, text)
	case session.AwaitEmail:
		return e.handleEmail(ctx, sess, text)
	case session.AwaitReminder:
		return e.handleReminder(ctx, sess, text)
	default:
		return menuNudge, nil
	}
}

func (e *Engine) handleMenu(ctx context.Context, sess *session.Session, text string) (reply string, handled bool, err error) {
	switch text {
	case cmdStart:
		if err := e.sessions.Clear(ctx, sess.Owner); err != nil {
			return "", true, fmt.Errorf("clear session: %w", err)
		}
		if err := e.store.CreateIfAbsent(ctx, sess.Owner); err != nil {
			return "", true, fmt.Errorf("create ledger: %w", err)
		}
		return "👋 Hello! I track your income and expenses.\n" + menuNudge, true, nil

	case cmdCancel, BtnCancel:
		sess.Reset()
		if err := e.sessions.Put(ctx, sess); err != nil {
			return "", true, fmt.Errorf("save session: %w", err)
		}
		dropped := e.reminders.CancelOwner(sess.Owner)
		reply := "❌ Cancelled."
		if dropped > 0 {
			reply = fmt.Sprintf("❌ Cancelled, including %d pending reminder(s).", dropped)
		}
		return reply + "\n" + menuNudge, true, nil

	case BtnIncome, BtnExpense:
		sess.Reset()
		sess.State = session.AwaitAmount
		if text == BtnIncome {
			sess.PendingKind = core.Income
		} else {
			sess.PendingKind = core.Expense
		}
		if err := e.sessions.Put(ctx, sess); err != nil {
			return "", true, fmt.Errorf("save session: %w", err)
		}
		return fmt.Sprintf("Enter the %s amount (whole number):", sess.PendingKind), true, nil

	case BtnToday, BtnSummary, BtnChart:
		// view buttons also discard any pending flow
		if sess.State != session.Idle {
			sess.Reset()
			if err := e.sessions.Put(ctx, sess); err != nil {
				return "", true, fmt.Errorf("save session: %w", err)
			}
		}
		var reply string
		var err error
		switch text {
		case BtnToday:
			reply, err = e.todaySummary(ctx, sess.Owner)
		case BtnSummary:
			reply, err = e.weekSummary(ctx, sess.Owner)
		default:
			reply, err = e.chartSummary(ctx, sess.Owner)
		}
		return reply, true, err

	case BtnReminder:
		sess.Reset()
		sess.State = session.AwaitReminder
		if err := e.sessions.Put(ctx, sess); err != nil {
			return "", true, fmt.Errorf("save session: %w", err)
		}
		return "⏰ Send the reminder as HH:MM | message (for example 09:00 | pay rent):", true, nil

	case BtnSetLimit:
		sess.Reset()
		sess.State = session.AwaitDailyLimit
		if err := e.sessions.Put(ctx, sess); err != nil {
			return "", true, fmt.Errorf("save session: %w", err)
		}
		return "Enter your daily spending limit (whole number, 0 to remove):", true, nil

	case BtnShare:
		sess.Reset()
		sess.State = session.AwaitEmail
		if err := e.sessions.Put(ctx, sess); err != nil {
			return "", true, fmt.Errorf("save session: %w", err)
		}
		return "Enter the email address to share your spreadsheet with:", true, nil
	}
	return "", false, nil
}

func (e *Engine) handleAmount(ctx context.Context, sess *session.Session, text string) (string, error) {
	amount, err := core.ParseAmount(text)
	if err != nil {
		// validation failure: re-prompt, no transition
		return "That doesn't look like a number. Enter the amount as digits only:", nil
	}
	sess.PendingAmount = amount
	sess.State = session.AwaitNote
	if err := e.sessions.Put(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return "Add a note for this entry (what was it for?):", nil
}

func (e *Engine) handleNote(ctx context.Context, sess *session.Session, text string) (string, error) {
	res, err := e.recorder.Record(ctx, sess.Owner, sess.PendingKind, sess.PendingAmount, text, sess.DailyLimit)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrInvalidKind) {
			sess.Reset()
			if perr := e.sessions.Put(ctx, sess); perr != nil {
				return "", fmt.Errorf("save session: %w", perr)
			}
			return "That entry was invalid, so nothing was recorded. " + menuNudge, nil
		}
		// store failure: the session stays in AwaitNote so the user can retry
		e.logger.Error("record failed",
			log.FieldOwnerID, int64(sess.Owner), log.FieldError, err.Error())
		return "😥 Couldn't save that right now. Send the note again to retry.", nil
	}

	sess.Reset()
	if err := e.sessions.Put(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	reply := fmt.Sprintf("✅ Recorded.\nToday: income %d, expense %d.\nBalance: %d.",
		res.TodayIncome, res.TodayExpense, res.Balance)
	for _, rule := range res.Rules {
		switch rule {
		case core.RuleLeak:
			reply += "\n🚨 Leak: today's expenses exceed today's income."
		case core.RuleLimitExceeded:
			reply += "\n🚨 You're over your daily limit."
		case core.RuleNearLimit:
			reply += "\n⚠️ You've spent 80% or more of today's income."
		case core.RuleAboveRollingAvg:
			reply += "\n⚠️ Today's spending is above your recent daily average."
		}
	}
	return reply, nil
}

func (e *Engine) handleDailyLimit(ctx context.Context, sess *session.Session, text string) (string, error) {
	limit, err := core.ParseAmount(text)
	if err != nil {
		return "That doesn't look like a number. Enter the daily limit as digits only:", nil
	}
	sess.DailyLimit = limit
	sess.Reset()
	if err := e.sessions.Put(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	if limit == 0 {
		return "Daily limit removed.", nil
	}
	return fmt.Sprintf("Daily limit set to %d.", limit), nil
}

func (e *Engine) handleEmail(ctx context.Context, sess *session.Session, text string) (string, error) {
	if !strings.Contains(text, "@") {
		return "That doesn't look like an email address. Try again:", nil
	}
	sess.Reset()
	if err := e.sessions.Put(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	if err := e.sharer.Share(ctx, sess.Owner, text); err != nil {
		if errors.Is(err, ledger.ErrSharingUnavailable) {
			return "Your ledger isn't stored in a spreadsheet, so there is nothing to share.", nil
		}
		e.logger.Error("share failed",
			log.FieldOwnerID, int64(sess.Owner), log.FieldError, err.Error())
		return "😥 Couldn't share the spreadsheet right now. Pick Share sheet to try again.", nil
	}
	return fmt.Sprintf("📬 Shared the spreadsheet with %s.", text), nil
}

func (e *Engine) handleReminder(ctx context.Context, sess *session.Session, text string) (string, error) {
	at, message, err := parseReminder(text, e.now())
	if err != nil {
		return "Wrong format. Send HH:MM | message, with a time later today:", nil
	}
	if _, err := e.reminders.Schedule(sess.Owner, at, message); err != nil {
		if errors.Is(err, scheduler.ErrPastTime) {
			return "⛔ That time already passed today. Send a later HH:MM | message:", nil
		}
		return "", fmt.Errorf("schedule reminder: %w", err)
	}
	sess.Reset()
	if err := e.sessions.Put(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return fmt.Sprintf("⏳ Reminder set for %s.", at.Format("15:04")), nil
}

// ForceAwaitDailyLimit moves the owner's session into the daily-limit state
// regardless of any pending flow. Scheduler authority overrides dialog
// authority: whatever the owner was entering is discarded.
func (e *Engine) ForceAwaitDailyLimit(ctx context.Context, owner core.OwnerID) error {
	sess, err := e.sessions.Get(ctx, owner)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	sess.Reset()
	sess.State = session.AwaitDailyLimit
	if err := e.sessions.Put(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// PromptDailyLimit implements scheduler.DailyLimitPrompter. Returns "" when
// a limit is already configured; otherwise forces the daily-limit state and
// returns the prompt to send.
func (e *Engine) PromptDailyLimit(ctx context.Context, owner core.OwnerID) (string, error) {
	sess, err := e.sessions.Get(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if sess.DailyLimit > 0 {
		return "", nil
	}
	if err := e.ForceAwaitDailyLimit(ctx, owner); err != nil {
		return "", err
	}
	return "You have no daily spending limit set. Reply with a whole number to set one:", nil
}

func (e *Engine) todaySummary(ctx context.Context, owner core.OwnerID) (string, error) {
	txs, err := e.store.ReadAll(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("read ledger: %w", err)
	}
	now := e.now()
	today := core.Today(now)
	income := core.WindowSum(txs, core.Income, today)
	expense := core.WindowSum(txs, core.Expense, today)
	balance := int64(0)
	if len(txs) > 0 {
		balance = txs[len(txs)-1].BalanceAfter
	}
	return fmt.Sprintf("📅 %s\nToday: income %d, expense %d.\nBalance: %d.",
		now.Format("Monday, 02 January 2006"), income, expense, balance), nil
}

func (e *Engine) weekSummary(ctx context.Context, owner core.OwnerID) (string, error) {
	txs, err := e.store.ReadAll(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("read ledger: %w", err)
	}
	now := e.now()
	today := core.Today(now)
	week := core.CalendarWeek(now)
	return fmt.Sprintf("📊 Today: income %d, expense %d.\nThis week (Mon to Sun): income %d, expense %d.\nLast 7 days expense: %d.",
		core.WindowSum(txs, core.Income, today),
		core.WindowSum(txs, core.Expense, today),
		core.WindowSum(txs, core.Income, week),
		core.WindowSum(txs, core.Expense, week),
		core.WindowSum(txs, core.Expense, core.Rolling7(now))), nil
}

func (e *Engine) chartSummary(ctx context.Context, owner core.OwnerID) (string, error) {
	txs, err := e.store.ReadAll(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("read ledger: %w", err)
	}
	series := core.Trailing7Series(txs, e.now())
	if series == nil {
		return "Not enough data for a chart yet. Record a few entries first.", nil
	}
	var b strings.Builder
	b.WriteString("📈 Last 7 days:")
	for _, bucket := range series {
		fmt.Fprintf(&b, "\n%s  +%d / -%d", bucket.Day.Format("Mon 02"), bucket.Income, bucket.Expense)
	}
	if top := core.TopExpenseNotes(txs, 5); top != nil {
		b.WriteString("\n\nTop expense notes:")
		for _, nt := range top {
			label := nt.Note
			if label == "" {
				label = "(no note)"
			}
			fmt.Fprintf(&b, "\n%s: %d", label, nt.Total)
		}
	}
	return b.String(), nil
}

// parseReminder parses "HH:MM | message" into today's wall-clock time in the
// reference location.
func parseReminder(text string, now time.Time) (time.Time, string, error) {
	parts := strings.SplitN(text, "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("missing '|' separator")
	}
	clock, err := time.Parse("15:04", strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse time: %w", err)
	}
	message := strings.TrimSpace(parts[1])
	if message == "" {
		return time.Time{}, "", fmt.Errorf("empty message")
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
	return at, message, nil
}
