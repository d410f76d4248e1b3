// Package sqlite provides the SQLite-backed ledger store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"duit/internal/core"
	"duit/internal/ledger"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) CreateIfAbsent(ctx context.Context, owner core.OwnerID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owners (owner_id) VALUES (?) ON CONFLICT (owner_id) DO NOTHING`,
		int64(owner))
	if err != nil {
		return fmt.Errorf("%w: create owner %d: %v", ledger.ErrStoreUnavailable, owner, err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, owner core.OwnerID, tx core.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (owner_id, ts, kind, amount, note, leak, balance_after)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(owner),
		tx.Timestamp.Format(time.RFC3339Nano),
		string(tx.Kind),
		tx.Amount,
		tx.Note,
		boolToInt(tx.Leak),
		tx.BalanceAfter)
	if err != nil {
		return fmt.Errorf("%w: append for owner %d: %v", ledger.ErrStoreUnavailable, owner, err)
	}
	return nil
}

// ReadAll returns the ledger in append order (insertion id, not wall clock).
func (s *Store) ReadAll(ctx context.Context, owner core.OwnerID) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, kind, amount, note, leak, balance_after
		 FROM transactions WHERE owner_id = ? ORDER BY id`,
		int64(owner))
	if err != nil {
		return nil, fmt.Errorf("%w: read ledger for owner %d: %v", ledger.ErrStoreUnavailable, owner, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			ts   string
			kind string
			leak int
			tx   core.Transaction
		)
		if err := rows.Scan(&ts, &kind, &tx.Amount, &tx.Note, &leak, &tx.BalanceAfter); err != nil {
			return nil, fmt.Errorf("%w: scan transaction row: %v", ledger.ErrStoreUnavailable, err)
		}
		stamp, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: parse timestamp %q: %v", ledger.ErrStoreUnavailable, ts, err)
		}
		tx.Timestamp = stamp.In(time.Local)
		tx.Kind = core.Kind(kind)
		tx.Leak = leak != 0
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate ledger rows: %v", ledger.ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *Store) Owners(ctx context.Context) ([]core.OwnerID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT owner_id FROM owners ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list owners: %v", ledger.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []core.OwnerID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan owner row: %v", ledger.ErrStoreUnavailable, err)
		}
		out = append(out, core.OwnerID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate owner rows: %v", ledger.ErrStoreUnavailable, err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
