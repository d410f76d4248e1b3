// Package backend selects and wires a ledger store from configuration.
package backend

import (
	"context"
	"fmt"

	"duit/internal/config"
	"duit/internal/core"
	"duit/internal/ledger"
	"duit/internal/ledger/memory"
	lsheets "duit/internal/ledger/sheets"
	lsqlite "duit/internal/ledger/sqlite"
	"duit/internal/log"
)

// Result bundles the selected store with the matching sharer and an optional
// cleanup function.
type Result struct {
	Store   ledger.Store
	Sharer  ledger.Sharer
	Cleanup func() error
}

// New builds the ledger backend named by cfg.LedgerBackend.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Result, error) {
	l := logger.WithComponent(log.ComponentBackendCf)

	switch cfg.LedgerBackend {
	case "memory":
		l.Info("initialized memory ledger backend")
		return &Result{Store: memory.New(), Sharer: noopSharer{}}, nil

	case "sqlite":
		store, err := lsqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite ledger: %w", err)
		}
		l.Info("initialized sqlite ledger backend", "db_path", cfg.SQLiteDBPath)
		return &Result{Store: store, Sharer: noopSharer{}, Cleanup: store.Close}, nil

	case "sheets":
		client, err := lsheets.New(ctx, lsheets.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize sheets ledger: %w", err)
		}
		l.Info("initialized sheets ledger backend", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return &Result{Store: client, Sharer: client}, nil

	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.LedgerBackend)
	}
}

// noopSharer backs the stores whose storage has nothing to share.
type noopSharer struct{}

func (noopSharer) Share(context.Context, core.OwnerID, string) error {
	return ledger.ErrSharingUnavailable
}
