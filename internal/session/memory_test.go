package session

import (
	"context"
	"testing"

	"duit/internal/core"
)

func TestMemoryStore_GetCreatesIdleSession(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Owner != core.OwnerID(42) {
		t.Errorf("Owner = %d, want 42", sess.Owner)
	}
	if sess.State != Idle {
		t.Errorf("State = %q, want %q", sess.State, Idle)
	}
}

func TestMemoryStore_PutRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, _ := store.Get(ctx, 1)
	sess.State = AwaitNote
	sess.PendingKind = core.Expense
	sess.PendingAmount = 1500
	sess.DailyLimit = 5000
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != AwaitNote || got.PendingKind != core.Expense || got.PendingAmount != 1500 || got.DailyLimit != 5000 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, _ := store.Get(ctx, 1)
	sess.State = AwaitAmount
	// not Put back: the store must not see the change
	again, _ := store.Get(ctx, 1)
	if again.State != Idle {
		t.Errorf("State = %q, want %q (unsaved mutation leaked)", again.State, Idle)
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, _ := store.Get(ctx, 1)
	sess.State = AwaitEmail
	sess.DailyLimit = 100
	_ = store.Put(ctx, sess)

	if err := store.Clear(ctx, 1); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, _ := store.Get(ctx, 1)
	if got.State != Idle || got.DailyLimit != 0 {
		t.Errorf("after Clear = %+v, want fresh Idle session", got)
	}
}

func TestSessionReset(t *testing.T) {
	sess := &Session{
		Owner:         7,
		State:         AwaitNote,
		PendingKind:   core.Expense,
		PendingAmount: 900,
		DailyLimit:    3000,
	}
	sess.Reset()
	if sess.State != Idle || sess.PendingKind != "" || sess.PendingAmount != 0 {
		t.Errorf("Reset left pending fields: %+v", sess)
	}
	if sess.DailyLimit != 3000 {
		t.Errorf("Reset dropped DailyLimit = %d, want 3000", sess.DailyLimit)
	}
}
