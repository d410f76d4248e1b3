package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duit/internal/core"
	"duit/internal/ledger"
	"duit/internal/ledger/memory"
	"duit/internal/log"
	"duit/internal/scheduler"
	"duit/internal/session"
)

const testOwner = core.OwnerID(42)

func testLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = slog.LevelError
	return log.New(cfg)
}

type nullSender struct{}

func (nullSender) SendText(context.Context, core.OwnerID, string) error  { return nil }
func (nullSender) SendImage(context.Context, core.OwnerID, []byte) error { return nil }

type recordingSharer struct {
	owner core.OwnerID
	email string
	err   error
}

func (s *recordingSharer) Share(_ context.Context, owner core.OwnerID, email string) error {
	if s.err != nil {
		return s.err
	}
	s.owner = owner
	s.email = email
	return nil
}

type fixture struct {
	engine    *Engine
	sessions  session.Store
	store     ledger.Store
	sharer    *recordingSharer
	reminders *scheduler.Registry
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	logger := testLogger()
	store := memory.New()
	sessions := session.NewMemoryStore()
	sharer := &recordingSharer{}
	recorder := ledger.NewRecorder(store, logger).WithClock(clock)
	reminders := scheduler.NewRegistry(nullSender{}, logger).WithClock(clock)
	t.Cleanup(reminders.Stop)
	engine := NewEngine(sessions, recorder, store, sharer, reminders, logger).WithClock(clock)
	return &fixture{engine: engine, sessions: sessions, store: store, sharer: sharer, reminders: reminders, now: now}
}

func (f *fixture) state(t *testing.T) session.State {
	t.Helper()
	sess, err := f.sessions.Get(context.Background(), testOwner)
	require.NoError(t, err)
	return sess.State
}

func (f *fixture) send(t *testing.T, text string) string {
	t.Helper()
	reply, err := f.engine.Handle(context.Background(), testOwner, text)
	require.NoError(t, err)
	return reply
}

func TestEngine_ExpenseFlow(t *testing.T) {
	f := newFixture(t)

	reply := f.send(t, "Expense")
	assert.Contains(t, reply, "amount")
	assert.Equal(t, session.AwaitAmount, f.state(t))

	reply = f.send(t, "15.000")
	assert.Contains(t, reply, "note")
	assert.Equal(t, session.AwaitNote, f.state(t))

	reply = f.send(t, "lunch")
	assert.Contains(t, reply, "Recorded")
	assert.Equal(t, session.Idle, f.state(t))

	txs, err := f.store.ReadAll(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, core.Expense, txs[0].Kind)
	assert.Equal(t, int64(15000), txs[0].Amount)
	assert.Equal(t, "lunch", txs[0].Note)
}

func TestEngine_NonNumericAmountReprompts(t *testing.T) {
	f := newFixture(t)

	f.send(t, "Income")
	reply := f.send(t, "a lot")
	assert.Contains(t, reply, "number")
	// no transition: still waiting for the amount
	assert.Equal(t, session.AwaitAmount, f.state(t))

	reply = f.send(t, "5000")
	assert.Equal(t, session.AwaitNote, f.state(t))
	assert.Contains(t, reply, "note")
}

func TestEngine_MenuAlwaysWins(t *testing.T) {
	f := newFixture(t)

	// start an expense flow, then press Income mid-flow
	f.send(t, "Expense")
	f.send(t, "100")
	require.Equal(t, session.AwaitNote, f.state(t))

	reply := f.send(t, "Income")
	assert.Contains(t, reply, "income")
	assert.Equal(t, session.AwaitAmount, f.state(t))

	// the abandoned expense was never recorded
	txs, err := f.store.ReadAll(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Empty(t, txs)

	// view buttons also abandon the pending flow
	f.send(t, "100")
	require.Equal(t, session.AwaitNote, f.state(t))
	f.send(t, "Today")
	assert.Equal(t, session.Idle, f.state(t))
}

func TestEngine_CancelResetsFlow(t *testing.T) {
	f := newFixture(t)

	f.send(t, "Expense")
	f.send(t, "100")
	reply := f.send(t, "/cancel")
	assert.Contains(t, reply, "Cancelled")
	assert.Equal(t, session.Idle, f.state(t))

	// Cancel button behaves like the command
	f.send(t, "Income")
	reply = f.send(t, "Cancel")
	assert.Contains(t, reply, "Cancelled")
	assert.Equal(t, session.Idle, f.state(t))
}

func TestEngine_CancelDropsPendingReminders(t *testing.T) {
	f := newFixture(t)

	_, err := f.reminders.Schedule(testOwner, f.now.Add(time.Hour), "stretch")
	require.NoError(t, err)
	require.Equal(t, 1, f.reminders.Pending(testOwner))

	reply := f.send(t, "/cancel")
	assert.Contains(t, reply, "1 pending reminder")
	assert.Equal(t, 0, f.reminders.Pending(testOwner))
}

func TestEngine_UnknownIdleTextGetsMenuNudge(t *testing.T) {
	f := newFixture(t)

	reply := f.send(t, "hello there")
	assert.Contains(t, reply, "menu")
	assert.Equal(t, session.Idle, f.state(t))
}

func TestEngine_DailyLimitFlow(t *testing.T) {
	f := newFixture(t)

	f.send(t, "Set limit")
	require.Equal(t, session.AwaitDailyLimit, f.state(t))

	reply := f.send(t, "50.000")
	assert.Contains(t, reply, "50000")
	assert.Equal(t, session.Idle, f.state(t))

	// the limit now applies to expense entries
	f.send(t, "Income")
	f.send(t, "100000")
	f.send(t, "salary")
	f.send(t, "Expense")
	f.send(t, "60000")
	reply = f.send(t, "shopping")
	assert.Contains(t, reply, "daily limit")

	// zero removes it
	f.send(t, "Set limit")
	reply = f.send(t, "0")
	assert.Contains(t, reply, "removed")
}

func TestEngine_ShareFlow(t *testing.T) {
	f := newFixture(t)

	f.send(t, "Share sheet")
	require.Equal(t, session.AwaitEmail, f.state(t))

	reply := f.send(t, "not-an-email")
	assert.Contains(t, reply, "email")
	assert.Equal(t, session.AwaitEmail, f.state(t))

	reply = f.send(t, "friend@example.com")
	assert.Contains(t, reply, "friend@example.com")
	assert.Equal(t, session.Idle, f.state(t))
	assert.Equal(t, testOwner, f.sharer.owner)
	assert.Equal(t, "friend@example.com", f.sharer.email)
}

func TestEngine_ShareUnsupportedBackend(t *testing.T) {
	f := newFixture(t)
	f.sharer.err = ledger.ErrSharingUnavailable

	f.send(t, "Share sheet")
	reply := f.send(t, "friend@example.com")
	assert.Contains(t, reply, "nothing to share")
	assert.Equal(t, session.Idle, f.state(t))
}

func TestEngine_ReminderFlow(t *testing.T) {
	f := newFixture(t)

	f.send(t, "Reminder")
	require.Equal(t, session.AwaitReminder, f.state(t))

	// clock is pinned to 12:00, so 09:00 already passed
	reply := f.send(t, "09:00 | pay rent")
	assert.Contains(t, reply, "already passed")
	assert.Equal(t, session.AwaitReminder, f.state(t))

	reply = f.send(t, "no pipe here")
	assert.Contains(t, reply, "HH:MM")
	assert.Equal(t, session.AwaitReminder, f.state(t))

	reply = f.send(t, "15:30 | pay rent")
	assert.Contains(t, reply, "15:30")
	assert.Equal(t, session.Idle, f.state(t))
	assert.Equal(t, 1, f.reminders.Pending(testOwner))
}

func TestEngine_TodaySummary(t *testing.T) {
	f := newFixture(t)

	f.send(t, "Income")
	f.send(t, "1000")
	f.send(t, "salary")
	f.send(t, "Expense")
	f.send(t, "300")
	f.send(t, "lunch")

	reply := f.send(t, "Today")
	assert.Contains(t, reply, "income 1000")
	assert.Contains(t, reply, "expense 300")
	assert.Contains(t, reply, "Balance: 700")
}

func TestEngine_SummaryCoversTodayAndWeek(t *testing.T) {
	f := newFixture(t)

	f.send(t, "Income")
	f.send(t, "2000")
	f.send(t, "salary")
	f.send(t, "Expense")
	f.send(t, "500")
	f.send(t, "groceries")

	reply := f.send(t, "Summary")
	assert.Contains(t, reply, "Today: income 2000, expense 500")
	assert.Contains(t, reply, "This week")
	assert.Contains(t, reply, "Last 7 days expense: 500")
}

func TestEngine_ForceAwaitDailyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, "Expense")
	require.Equal(t, session.AwaitAmount, f.state(t))

	require.NoError(t, f.engine.ForceAwaitDailyLimit(ctx, testOwner))
	assert.Equal(t, session.AwaitDailyLimit, f.state(t))

	reply := f.send(t, "10000")
	assert.Contains(t, reply, "10000")
	assert.Equal(t, session.Idle, f.state(t))
}

func TestEngine_ChartNeedsData(t *testing.T) {
	f := newFixture(t)

	reply := f.send(t, "Chart")
	assert.Contains(t, reply, "Not enough data")

	f.send(t, "Expense")
	f.send(t, "500")
	f.send(t, "coffee")

	reply = f.send(t, "Chart")
	assert.Contains(t, reply, "Last 7 days")
	assert.Contains(t, reply, "coffee")
}

func TestEngine_StartGreetsAndProvisions(t *testing.T) {
	f := newFixture(t)

	reply := f.send(t, "/start")
	assert.Contains(t, reply, "Hello")

	owners, err := f.store.Owners(context.Background())
	require.NoError(t, err)
	assert.Contains(t, owners, testOwner)
}

func TestEngine_RecordFailureKeepsStateForRetry(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	logger := testLogger()
	store := &flakyStore{Store: memory.New(), failNext: true}
	sessions := session.NewMemoryStore()
	recorder := ledger.NewRecorder(store, logger).WithClock(clock)
	reminders := scheduler.NewRegistry(nullSender{}, logger)
	t.Cleanup(reminders.Stop)
	engine := NewEngine(sessions, recorder, store, &recordingSharer{}, reminders, logger).WithClock(clock)
	ctx := context.Background()

	_, err := engine.Handle(ctx, testOwner, "Expense")
	require.NoError(t, err)
	_, err = engine.Handle(ctx, testOwner, "100")
	require.NoError(t, err)

	reply, err := engine.Handle(ctx, testOwner, "lunch")
	require.NoError(t, err)
	assert.Contains(t, reply, "retry")

	sess, err := sessions.Get(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, session.AwaitNote, sess.State)

	// stores recover, the retry succeeds with the pending fields intact
	reply, err = engine.Handle(ctx, testOwner, "lunch")
	require.NoError(t, err)
	assert.Contains(t, reply, "Recorded")

	txs, err := store.ReadAll(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(100), txs[0].Amount)
}

func TestEngine_PromptDailyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// no limit configured: the prompt interrupts whatever flow was pending
	f.send(t, "Expense")
	prompt, err := f.engine.PromptDailyLimit(ctx, testOwner)
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
	assert.Equal(t, session.AwaitDailyLimit, f.state(t))

	reply := f.send(t, "20000")
	assert.Contains(t, reply, "20000")

	// limit configured: no prompt, no state change
	prompt, err = f.engine.PromptDailyLimit(ctx, testOwner)
	require.NoError(t, err)
	assert.Empty(t, prompt)
	assert.Equal(t, session.Idle, f.state(t))
}

func TestEngine_LeakWarningInReply(t *testing.T) {
	f := newFixture(t)

	f.send(t, "Income")
	f.send(t, "100000")
	f.send(t, "salary")
	f.send(t, "Expense")
	f.send(t, "150000")
	reply := f.send(t, "rent")

	assert.Contains(t, reply, "Leak")
	assert.True(t, strings.Contains(reply, "-50000") || strings.Contains(reply, "Balance: -50000"))
}

// flakyStore fails the first Append and then behaves normally.
type flakyStore struct {
	ledger.Store
	failNext bool
}

func (f *flakyStore) Append(ctx context.Context, owner core.OwnerID, tx core.Transaction) error {
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("%w: transient", ledger.ErrStoreUnavailable)
	}
	return f.Store.Append(ctx, owner, tx)
}
