package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"

	"duit/internal/core"
	"duit/internal/log"
	"duit/internal/transport"
)

// ErrPastTime rejects reminders scheduled for a time that already passed.
var ErrPastTime = errors.New("reminder time already passed")

// RequestID identifies one scheduled reminder for an owner.
type RequestID string

// Registry holds deferred one-shot reminders keyed by (owner, request id).
// Every entry is individually cancellable, so a cancel command can retract a
// pending reminder instead of letting a stale one fire later.
type Registry struct {
	sender transport.Sender
	now    func() time.Time
	logger *log.Logger

	mu     sync.Mutex
	timers map[core.OwnerID]map[RequestID]*time.Timer
}

func NewRegistry(sender transport.Sender, logger *log.Logger) *Registry {
	return &Registry{
		sender: sender,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentReminder),
		timers: make(map[core.OwnerID]map[RequestID]*time.Timer),
	}
}

// WithClock overrides the registry's clock, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Schedule defers a text reminder for the owner until at.
func (r *Registry) Schedule(owner core.OwnerID, at time.Time, message string) (RequestID, error) {
	delay := at.Sub(r.now())
	if delay < 0 {
		return "", ErrPastTime
	}
	id := RequestID(uuid.NewV4().String())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timers[owner] == nil {
		r.timers[owner] = make(map[RequestID]*time.Timer)
	}
	r.timers[owner][id] = time.AfterFunc(delay, func() {
		r.fire(owner, id, message)
	})

	r.logger.Info("reminder scheduled",
		log.FieldOwnerID, int64(owner),
		log.FieldRequestID, string(id),
		"at", at.Format(time.RFC3339))
	return id, nil
}

func (r *Registry) fire(owner core.OwnerID, id RequestID, message string) {
	r.mu.Lock()
	if owned := r.timers[owner]; owned != nil {
		delete(owned, id)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.sender.SendText(ctx, owner, "⏰ Reminder: "+message); err != nil {
		r.logger.Error("failed to deliver reminder",
			log.FieldOwnerID, int64(owner),
			log.FieldRequestID, string(id),
			log.FieldError, err.Error())
	}
}

// Cancel retracts one pending reminder. Returns false when it already fired
// or was never scheduled.
func (r *Registry) Cancel(owner core.OwnerID, id RequestID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned := r.timers[owner]
	timer, ok := owned[id]
	if !ok {
		return false
	}
	timer.Stop()
	delete(owned, id)
	r.logger.Info("reminder cancelled", log.FieldOwnerID, int64(owner), log.FieldRequestID, string(id))
	return true
}

// CancelOwner retracts every pending reminder for the owner and reports how
// many were dropped.
func (r *Registry) CancelOwner(owner core.OwnerID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned := r.timers[owner]
	dropped := len(owned)
	for id, timer := range owned {
		timer.Stop()
		delete(owned, id)
	}
	if dropped > 0 {
		r.logger.Info("pending reminders cancelled", log.FieldOwnerID, int64(owner), "count", dropped)
	}
	return dropped
}

// Pending reports how many reminders the owner still has scheduled.
func (r *Registry) Pending(owner core.OwnerID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers[owner])
}

// Stop cancels every pending reminder, for shutdown.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for owner, owned := range r.timers {
		for id, timer := range owned {
			timer.Stop()
			delete(owned, id)
		}
		delete(r.timers, owner)
	}
}
