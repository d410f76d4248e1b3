package core

// Rule identifies one anomaly-detection rule. Rules are pure functions of
// aggregates; several may fire on the same entry.
type Rule string

const (
	RuleLeak            Rule = "LEAK"
	RuleLimitExceeded   Rule = "LIMIT_EXCEEDED"
	RuleNearLimit       Rule = "NEAR_LIMIT"
	RuleAboveRollingAvg Rule = "ABOVE_ROLLING_AVG"
	RuleLowBalance      Rule = "LOW_BALANCE"
	RuleStable          Rule = "STABLE"
	RuleWeeklySpike     Rule = "WEEKLY_SPIKE"
)

// EntryStats carries the aggregates for a just-recorded expense entry.
// TodayIncome is the total before the entry; TodayExpense includes it.
type EntryStats struct {
	TodayIncome  int64
	TodayExpense int64
	DailyLimit   int64 // 0 means no limit configured
	TrailingSum  int64 // sum of nonzero daily expense totals, 7 days ending yesterday
	TrailingDays int   // number of nonzero days behind TrailingSum
}

// EvaluateEntry runs the per-transaction rules. All comparisons use integer
// arithmetic; the fractional thresholds are cross-multiplied so there is no
// rounding tolerance.
func EvaluateEntry(s EntryStats) []Rule {
	var fired []Rule
	if s.TodayExpense > s.TodayIncome {
		fired = append(fired, RuleLeak)
	}
	if s.DailyLimit > 0 && s.TodayExpense > s.DailyLimit {
		fired = append(fired, RuleLimitExceeded)
	}
	// today_expense >= 0.8 * today_income
	if s.TodayIncome > 0 && 5*s.TodayExpense >= 4*s.TodayIncome {
		fired = append(fired, RuleNearLimit)
	}
	// today_expense > mean(nonzero daily totals); with no nonzero history the
	// mean is zero and any positive expense is above it.
	if s.TrailingDays == 0 {
		if s.TodayExpense > 0 {
			fired = append(fired, RuleAboveRollingAvg)
		}
	} else if s.TodayExpense*int64(s.TrailingDays) > s.TrailingSum {
		fired = append(fired, RuleAboveRollingAvg)
	}
	return fired
}

// EvaluateDaily runs the daily-digest rules over yesterday's totals.
// LOW_BALANCE and STABLE are mutually exclusive: STABLE is only considered
// when LOW_BALANCE did not fire.
func EvaluateDaily(yesterdayIncome, yesterdayExpense int64) []Rule {
	remainder := yesterdayIncome - yesterdayExpense
	// remainder < 0.2 * yesterday_income
	if yesterdayIncome > 0 && 5*remainder < yesterdayIncome {
		return []Rule{RuleLowBalance}
	}
	// remainder > 0.5 * yesterday_income
	if 2*remainder > yesterdayIncome {
		return []Rule{RuleStable}
	}
	return nil
}

// EvaluateWeekly runs the weekly-digest rule. WEEKLY_SPIKE never fires when
// last week had no expenses, regardless of this week's total.
func EvaluateWeekly(thisWeekExpense, lastWeekExpense int64) []Rule {
	// this_week > 1.3 * last_week
	if lastWeekExpense > 0 && 10*thisWeekExpense > 13*lastWeekExpense {
		return []Rule{RuleWeeklySpike}
	}
	return nil
}

// HasRule reports whether the rule is among the fired set.
func HasRule(rules []Rule, r Rule) bool {
	for _, fired := range rules {
		if fired == r {
			return true
		}
	}
	return false
}
