package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"duit/internal/core"
	"duit/internal/log"
)

// Result is the immediate feedback for a recorded transaction: the updated
// today totals, the running balance, the leak flag and any per-entry anomaly
// rules that fired.
type Result struct {
	TodayIncome  int64
	TodayExpense int64
	Balance      int64
	Leak         bool
	Rules        []core.Rule
}

// Recorder validates and appends new transactions. It holds a per-owner
// mutex around read-aggregate, decide and append so a concurrent append for
// the same owner cannot compute stale today totals or balance bases.
// Cross-owner records share nothing and proceed independently.
type Recorder struct {
	store  Store
	now    func() time.Time
	logger *log.Logger

	mu    sync.Mutex
	locks map[core.OwnerID]*sync.Mutex
}

func NewRecorder(store Store, logger *log.Logger) *Recorder {
	return &Recorder{
		store:  store,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentRecorder),
		locks:  make(map[core.OwnerID]*sync.Mutex),
	}
}

// WithClock overrides the recorder's clock. Tests use this to pin the
// calendar day.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

func (r *Recorder) ownerLock(owner core.OwnerID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[owner]
	if !ok {
		l = &sync.Mutex{}
		r.locks[owner] = l
	}
	return l
}

// Record appends a new transaction for the owner. dailyLimit is the owner's
// configured daily spending limit; zero or negative means no limit.
//
// Today totals are computed before the new entry; for an expense the leak
// flag compares the expense total including the entry against the income
// total excluding it, so income is never retroactively affected. The limit
// check is an independent leak trigger. Past entries are never revised.
func (r *Recorder) Record(ctx context.Context, owner core.OwnerID, kind core.Kind, amount int64, note string, dailyLimit int64) (Result, error) {
	if err := core.ValidateEntry(kind, amount); err != nil {
		return Result{}, err
	}
	note = strings.TrimSpace(note)

	l := r.ownerLock(owner)
	l.Lock()
	defer l.Unlock()

	if err := r.store.CreateIfAbsent(ctx, owner); err != nil {
		return Result{}, fmt.Errorf("create ledger: %w", err)
	}
	txs, err := r.store.ReadAll(ctx, owner)
	if err != nil {
		return Result{}, fmt.Errorf("read ledger: %w", err)
	}

	now := r.now()
	today := core.Today(now)
	incomeBefore := core.WindowSum(txs, core.Income, today)
	expenseBefore := core.WindowSum(txs, core.Expense, today)

	balance := int64(0)
	if len(txs) > 0 {
		balance = txs[len(txs)-1].BalanceAfter
	}

	res := Result{TodayIncome: incomeBefore, TodayExpense: expenseBefore}
	switch kind {
	case core.Income:
		res.TodayIncome += amount
		balance += amount
	case core.Expense:
		res.TodayExpense += amount
		balance -= amount
		trailingSum, trailingDays := core.TrailingExpenseStats(txs, now)
		res.Rules = core.EvaluateEntry(core.EntryStats{
			TodayIncome:  incomeBefore,
			TodayExpense: res.TodayExpense,
			DailyLimit:   dailyLimit,
			TrailingSum:  trailingSum,
			TrailingDays: trailingDays,
		})
		res.Leak = core.HasRule(res.Rules, core.RuleLeak) || core.HasRule(res.Rules, core.RuleLimitExceeded)
	}
	res.Balance = balance

	tx := core.Transaction{
		Timestamp:    now,
		Kind:         kind,
		Amount:       amount,
		Note:         note,
		Leak:         res.Leak,
		BalanceAfter: balance,
	}
	if err := r.store.Append(ctx, owner, tx); err != nil {
		return Result{}, fmt.Errorf("append transaction: %w", err)
	}

	r.logger.Info("transaction recorded",
		log.FieldOwnerID, int64(owner),
		log.FieldKind, string(kind),
		log.FieldAmount, amount,
		log.FieldBalance, balance,
		"leak", res.Leak)
	return res, nil
}
