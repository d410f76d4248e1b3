// Package core holds the pure parts of the transaction engine: the ledger
// data model, windowed aggregation, the anomaly rule set and the chart data
// builder. Nothing here performs I/O.
package core

import "time"

// Window is a half-open time range [From, To). All windows are built on local
// calendar-day boundaries in the location of the reference time.
type Window struct {
	From time.Time
	To   time.Time
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Today covers the local calendar day containing now.
func Today(now time.Time) Window {
	from := dayStart(now)
	return Window{From: from, To: from.AddDate(0, 0, 1)}
}

// Yesterday covers the local calendar day before the one containing now.
func Yesterday(now time.Time) Window {
	to := dayStart(now)
	return Window{From: to.AddDate(0, 0, -1), To: to}
}

// Rolling7 covers the 7 calendar days ending with the day containing d,
// inclusive: [d-6, d].
func Rolling7(d time.Time) Window {
	from := dayStart(d).AddDate(0, 0, -6)
	return Window{From: from, To: dayStart(d).AddDate(0, 0, 1)}
}

// CalendarWeek covers the ISO week containing d: Monday 00:00 through the
// following Monday 00:00.
func CalendarWeek(d time.Time) Window {
	// Monday = weekday 0
	offset := (int(d.Weekday()) + 6) % 7
	monday := dayStart(d).AddDate(0, 0, -offset)
	return Window{From: monday, To: monday.AddDate(0, 0, 7)}
}

// LastCalendarWeek covers the ISO week before the one containing d.
func LastCalendarWeek(d time.Time) Window {
	w := CalendarWeek(d)
	return Window{From: w.From.AddDate(0, 0, -7), To: w.From}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// WindowSum sums the amounts of the given kind whose timestamp falls inside
// the window. The snapshot may be empty and is filtered by timestamp value,
// never by position, so out-of-wall-clock-order ledgers aggregate correctly.
func WindowSum(txs []Transaction, kind Kind, w Window) int64 {
	var sum int64
	for _, t := range txs {
		if t.Kind == kind && w.Contains(t.Timestamp) {
			sum += t.Amount
		}
	}
	return sum
}

// CountInWindow reports how many entries of any kind fall inside the window.
func CountInWindow(txs []Transaction, w Window) int {
	n := 0
	for _, t := range txs {
		if w.Contains(t.Timestamp) {
			n++
		}
	}
	return n
}

// TrailingExpenseStats aggregates per-day expense totals over the 7 calendar
// days ending yesterday (today is excluded: the rolling-average rule compares
// today against history). It returns the sum of the daily totals and the
// number of days with a nonzero total; zero-expense days are excluded from
// the mean, so an all-zero trailing week yields (0, 0).
func TrailingExpenseStats(txs []Transaction, now time.Time) (sum int64, days int) {
	start := dayStart(now).AddDate(0, 0, -7)
	end := dayStart(now)
	perDay := make(map[string]int64, 7)
	for _, t := range txs {
		if t.Kind != Expense {
			continue
		}
		if t.Timestamp.Before(start) || !t.Timestamp.Before(end) {
			continue
		}
		perDay[dayStart(t.Timestamp).Format("2006-01-02")] += t.Amount
	}
	for _, total := range perDay {
		if total > 0 {
			sum += total
			days++
		}
	}
	return sum, days
}
