// Package ledger defines the append-only ledger store port and the
// transaction recorder that computes running balances and leak flags.
package ledger

import (
	"context"
	"errors"

	"duit/internal/core"
)

// ErrStoreUnavailable marks a ledger read or append failure. Callers surface
// it as a retryable condition; the attempted transaction is never silently
// dropped.
var ErrStoreUnavailable = errors.New("ledger store unavailable")

type (
	// Store is the append-only row storage behind each owner's ledger. A
	// missing ledger is not an error: CreateIfAbsent provisions an empty one
	// on first touch, and implementations never update or delete rows.
	Store interface {
		CreateIfAbsent(ctx context.Context, owner core.OwnerID) error
		Append(ctx context.Context, owner core.OwnerID, tx core.Transaction) error
		// ReadAll returns the owner's full ledger in append order.
		ReadAll(ctx context.Context, owner core.OwnerID) ([]core.Transaction, error)
		// Owners lists every owner with a ledger, for digest sweeps.
		Owners(ctx context.Context) ([]core.OwnerID, error)
	}

	// Sharer grants a collaborator access to the storage behind an owner's
	// ledger (a spreadsheet, for the sheets backend).
	Sharer interface {
		Share(ctx context.Context, owner core.OwnerID, email string) error
	}
)

// ErrSharingUnavailable is returned by backends whose storage has no sharing
// concept.
var ErrSharingUnavailable = errors.New("sharing not supported by this ledger backend")
