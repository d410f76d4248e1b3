package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	Kind string

	// OwnerID is the opaque per-user identifier every ledger and session is
	// scoped to.
	OwnerID int64

	// Transaction is a single ledger entry. Immutable once appended: Leak and
	// BalanceAfter are computed at append time and never revised.
	Transaction struct {
		Timestamp    time.Time
		Kind         Kind
		Amount       int64 // non-negative, whole currency units
		Note         string
		Leak         bool
		BalanceAfter int64
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidKind   = errors.New("invalid transaction kind")
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Signed returns the amount with the sign implied by the kind: positive for
// income, negative for expense.
func (t Transaction) Signed() int64 {
	if t.Kind == Expense {
		return -t.Amount
	}
	return t.Amount
}

// ParseAmount converts user-entered text to whole currency units. Thousands
// separators ("100.000", "100,000") and inner spaces are accepted; signs,
// decimals and any other characters are not.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	var digits strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '.' || r == ',' || r == ' ':
			// separator, skipped
		default:
			return 0, ErrInvalidAmount
		}
	}
	if digits.Len() == 0 {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ValidateEntry checks the preconditions for recording a new transaction.
func ValidateEntry(kind Kind, amount int64) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}
