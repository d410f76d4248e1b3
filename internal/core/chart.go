package core

import (
	"sort"
	"time"
)

type (
	// DayBucket is one point of a time-bucketed series: income and expense
	// totals for a single local calendar day.
	DayBucket struct {
		Day     time.Time // midnight, local
		Income  int64
		Expense int64
	}

	// NoteTotal is an expense total grouped by note text.
	NoteTotal struct {
		Note  string
		Total int64
	}
)

// Trailing7Series pivots the snapshot into one bucket per day for the 7
// calendar days ending with the day containing now, zero-filled so charts get
// a dense series. Returns nil when the window holds no entries at all, which
// callers treat as "insufficient data" rather than an error.
func Trailing7Series(txs []Transaction, now time.Time) []DayBucket {
	w := Rolling7(now)
	if CountInWindow(txs, w) == 0 {
		return nil
	}
	buckets := make([]DayBucket, 7)
	for i := range buckets {
		buckets[i].Day = w.From.AddDate(0, 0, i)
	}
	for _, t := range txs {
		if !w.Contains(t.Timestamp) {
			continue
		}
		i := daysBetween(w.From, dayStart(t.Timestamp))
		if i < 0 || i >= len(buckets) {
			continue
		}
		addToBucket(&buckets[i], t)
	}
	return buckets
}

// HistorySeries pivots the full snapshot into one bucket per calendar day
// that has at least one entry, ascending by day. Returns nil for an empty
// ledger.
func HistorySeries(txs []Transaction) []DayBucket {
	if len(txs) == 0 {
		return nil
	}
	byDay := make(map[time.Time]*DayBucket)
	for _, t := range txs {
		day := dayStart(t.Timestamp)
		b, ok := byDay[day]
		if !ok {
			b = &DayBucket{Day: day}
			byDay[day] = b
		}
		addToBucket(b, t)
	}
	out := make([]DayBucket, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// TopExpenseNotes ranks note groups by total expense amount, descending,
// returning at most n. Ties break lexicographically on the note so the
// ranking is deterministic. Returns nil when there are no expenses.
func TopExpenseNotes(txs []Transaction, n int) []NoteTotal {
	totals := make(map[string]int64)
	for _, t := range txs {
		if t.Kind == Expense {
			totals[t.Note] += t.Amount
		}
	}
	if len(totals) == 0 || n <= 0 {
		return nil
	}
	out := make([]NoteTotal, 0, len(totals))
	for note, total := range totals {
		out = append(out, NoteTotal{Note: note, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Note < out[j].Note
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func addToBucket(b *DayBucket, t Transaction) {
	switch t.Kind {
	case Income:
		b.Income += t.Amount
	case Expense:
		b.Expense += t.Amount
	}
}

func daysBetween(from, to time.Time) int {
	days := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days++
		if days > 7 {
			break
		}
	}
	return days
}
