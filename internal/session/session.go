// Package session tracks per-owner dialog state: which step of a multi-turn
// input flow the owner is on, plus the pending fields collected so far.
package session

import (
	"context"
	"time"

	"duit/internal/core"
)

// State names the dialog FSM states. Idle is both the initial and the
// resting state; the machine has no terminal state.
type State string

const (
	Idle            State = "idle"
	AwaitAmount     State = "await_amount"
	AwaitNote       State = "await_note"
	AwaitDailyLimit State = "await_daily_limit"
	AwaitEmail      State = "await_email"
	AwaitReminder   State = "await_reminder"
)

// Session is the transient per-owner dialog state. DailyLimit is a setting
// rather than a pending field: it survives flow resets and cancels.
type Session struct {
	Owner         core.OwnerID `json:"owner_id"`
	State         State        `json:"state"`
	PendingKind   core.Kind    `json:"pending_kind,omitempty"`
	PendingAmount int64        `json:"pending_amount,omitempty"`
	DailyLimit    int64        `json:"daily_limit,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Reset returns the session to Idle and discards pending flow fields.
func (s *Session) Reset() {
	s.State = Idle
	s.PendingKind = ""
	s.PendingAmount = 0
}

// Store holds sessions keyed by owner, created on first touch and cleared on
// flow completion or cancel.
type Store interface {
	// Get returns the owner's session, creating an Idle one if absent.
	Get(ctx context.Context, owner core.OwnerID) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Clear(ctx context.Context, owner core.OwnerID) error
}
