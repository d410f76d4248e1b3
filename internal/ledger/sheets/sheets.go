// Package sheets provides the Google Sheets ledger store. Each owner gets a
// dedicated tab in one spreadsheet, with one appended row per transaction.
// The spreadsheet can be shared with a collaborator via the Drive API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"duit/internal/core"
	"duit/internal/ledger"
	"duit/internal/log"

	gdrive "google.golang.org/api/drive/v3"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// ledgerSheetPrefix names owner tabs: "ledger_<owner id>".
const ledgerSheetPrefix = "ledger_"

type Client struct {
	svc           *gsheet.Service
	drive         *gdrive.Service
	spreadsheetID string
	logger        *log.Logger
}

var (
	_ ledger.Store  = (*Client)(nil)
	_ ledger.Sharer = (*Client)(nil)
)

// Config carries what the client needs beyond service-account credentials.
type Config struct {
	SpreadsheetID      string
	ServiceAccountFile string
	ServiceAccountJSON string
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var credentialsJSON []byte
	switch {
	case cfg.ServiceAccountJSON != "":
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case cfg.ServiceAccountFile != "":
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	driveSvc, err := gdrive.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gdrive.DriveScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Client{
		svc:           svc,
		drive:         driveSvc,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

func sheetName(owner core.OwnerID) string {
	return fmt.Sprintf("%s%d", ledgerSheetPrefix, owner)
}

func (c *Client) CreateIfAbsent(ctx context.Context, owner core.OwnerID) error {
	name := sheetName(owner)
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: get spreadsheet: %v", ledger.ErrStoreUnavailable, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: name},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: add sheet %s: %v", ledger.ErrStoreUnavailable, name, err)
	}
	c.logger.Info("ledger sheet created", log.FieldOwnerID, int64(owner))
	return nil
}

func (c *Client) Append(ctx context.Context, owner core.OwnerID, tx core.Transaction) error {
	rng := fmt.Sprintf("%s!A:F", sheetName(owner))
	vr := &gsheet.ValueRange{Values: [][]any{{
		tx.Timestamp.Format(time.RFC3339),
		string(tx.Kind),
		strconv.FormatInt(tx.Amount, 10),
		tx.Note,
		strconv.FormatBool(tx.Leak),
		strconv.FormatInt(tx.BalanceAfter, 10),
	}}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: append to %s: %v", ledger.ErrStoreUnavailable, rng, err)
	}
	return nil
}

// ReadAll reads the owner's tab top to bottom, which is append order since
// rows are only ever appended. Rows that fail to parse are skipped with a
// warning so one corrupt cell cannot take the ledger offline.
func (c *Client) ReadAll(ctx context.Context, owner core.OwnerID) ([]core.Transaction, error) {
	rng := fmt.Sprintf("%s!A:F", sheetName(owner))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ledger.ErrStoreUnavailable, rng, err)
	}
	var out []core.Transaction
	for i, row := range resp.Values {
		tx, err := parseRow(row)
		if err != nil {
			c.logger.Warn("skipping unparseable ledger row",
				log.FieldOwnerID, int64(owner), "row", i+1, log.FieldError, err.Error())
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (c *Client) Owners(ctx context.Context) ([]core.OwnerID, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: get spreadsheet: %v", ledger.ErrStoreUnavailable, err)
	}
	var out []core.OwnerID
	for _, sh := range ss.Sheets {
		if sh.Properties == nil || !strings.HasPrefix(sh.Properties.Title, ledgerSheetPrefix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(sh.Properties.Title, ledgerSheetPrefix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, core.OwnerID(id))
	}
	return out, nil
}

// Share grants the collaborator writer access to the whole spreadsheet. The
// owner argument only scopes logging: Sheets has no per-tab permissions.
func (c *Client) Share(ctx context.Context, owner core.OwnerID, email string) error {
	perm := &gdrive.Permission{
		Type:         "user",
		Role:         "writer",
		EmailAddress: email,
	}
	_, err := c.drive.Permissions.Create(c.spreadsheetID, perm).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("grant spreadsheet access to %s: %w", email, err)
	}
	c.logger.Info("spreadsheet shared", log.FieldOwnerID, int64(owner), "email", email)
	return nil
}

func parseRow(row []any) (core.Transaction, error) {
	if len(row) < 6 {
		return core.Transaction{}, fmt.Errorf("expected 6 columns, got %d", len(row))
	}
	cols := make([]string, 6)
	for i := range cols {
		cols[i] = strings.TrimSpace(fmt.Sprint(row[i]))
	}
	stamp, err := time.Parse(time.RFC3339, cols[0])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("timestamp: %w", err)
	}
	kind := core.Kind(cols[1])
	if !kind.Valid() {
		return core.Transaction{}, fmt.Errorf("kind %q", cols[1])
	}
	amount, err := strconv.ParseInt(cols[2], 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	leak, err := strconv.ParseBool(cols[4])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("leak: %w", err)
	}
	balance, err := strconv.ParseInt(cols[5], 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("balance: %w", err)
	}
	return core.Transaction{
		Timestamp:    stamp.In(time.Local),
		Kind:         kind,
		Amount:       amount,
		Note:         cols[3],
		Leak:         leak,
		BalanceAfter: balance,
	}, nil
}
