// Package memory provides an in-memory ledger store, used as the default
// backend and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"duit/internal/core"
	"duit/internal/ledger"
)

type Store struct {
	mu      sync.Mutex
	ledgers map[core.OwnerID][]core.Transaction
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{ledgers: make(map[core.OwnerID][]core.Transaction)}
}

func (s *Store) CreateIfAbsent(_ context.Context, owner core.OwnerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[owner]; !ok {
		s.ledgers[owner] = nil
	}
	return nil
}

func (s *Store) Append(_ context.Context, owner core.OwnerID, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[owner] = append(s.ledgers[owner], tx)
	return nil
}

// ReadAll returns a copy of the owner's ledger in append order. An unknown
// owner yields an empty snapshot, not an error.
func (s *Store) ReadAll(_ context.Context, owner core.OwnerID) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.ledgers[owner]...), nil
}

func (s *Store) Owners(_ context.Context) ([]core.OwnerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.OwnerID, 0, len(s.ledgers))
	for owner := range s.ledgers {
		out = append(out, owner)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
