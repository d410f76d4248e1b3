package core

import (
	"reflect"
	"testing"
)

func TestEvaluateEntry(t *testing.T) {
	tests := []struct {
		name  string
		stats EntryStats
		want  []Rule
	}{
		{
			name:  "no income no expense fires nothing",
			stats: EntryStats{},
			want:  nil,
		},
		{
			name: "expense over income is a leak",
			// income 100000 then expense 150000, as a day's worth of entries
			stats: EntryStats{TodayIncome: 100000, TodayExpense: 150000, TrailingSum: 400000, TrailingDays: 2},
			want:  []Rule{RuleLeak, RuleNearLimit},
		},
		{
			name:  "expense equal to income is not a leak",
			stats: EntryStats{TodayIncome: 1000, TodayExpense: 1000, TrailingSum: 5000, TrailingDays: 2},
			want:  []Rule{RuleNearLimit},
		},
		{
			name:  "limit exceeded only when limit set",
			stats: EntryStats{TodayIncome: 10000, TodayExpense: 600, DailyLimit: 500, TrailingSum: 5000, TrailingDays: 2},
			want:  []Rule{RuleLimitExceeded},
		},
		{
			name:  "spending exactly the limit is fine",
			stats: EntryStats{TodayIncome: 10000, TodayExpense: 500, DailyLimit: 500, TrailingSum: 5000, TrailingDays: 2},
			want:  nil,
		},
		{
			name:  "zero limit means no limit",
			stats: EntryStats{TodayIncome: 10000, TodayExpense: 600, DailyLimit: 0, TrailingSum: 5000, TrailingDays: 2},
			want:  nil,
		},
		{
			name:  "near limit at exactly 80 percent",
			stats: EntryStats{TodayIncome: 1000, TodayExpense: 800, TrailingSum: 5000, TrailingDays: 2},
			want:  []Rule{RuleNearLimit},
		},
		{
			name:  "near limit just under 80 percent stays quiet",
			stats: EntryStats{TodayIncome: 1000, TodayExpense: 799, TrailingSum: 5000, TrailingDays: 2},
			want:  nil,
		},
		{
			name:  "near limit needs income",
			stats: EntryStats{TodayIncome: 0, TodayExpense: 800, TrailingSum: 5000, TrailingDays: 2},
			want:  []Rule{RuleLeak},
		},
		{
			name:  "above rolling average",
			stats: EntryStats{TodayIncome: 10000, TodayExpense: 301, TrailingSum: 900, TrailingDays: 3},
			want:  []Rule{RuleAboveRollingAvg},
		},
		{
			name:  "exactly at rolling average stays quiet",
			stats: EntryStats{TodayIncome: 10000, TodayExpense: 300, TrailingSum: 900, TrailingDays: 3},
			want:  nil,
		},
		{
			name:  "no history means any positive expense is above average",
			stats: EntryStats{TodayIncome: 10000, TodayExpense: 1, TrailingSum: 0, TrailingDays: 0},
			want:  []Rule{RuleAboveRollingAvg},
		},
		{
			name:  "no history and zero expense stays quiet",
			stats: EntryStats{TodayIncome: 10000, TodayExpense: 0, TrailingSum: 0, TrailingDays: 0},
			want:  nil,
		},
		{
			name:  "several rules fire together",
			stats: EntryStats{TodayIncome: 1000, TodayExpense: 1500, DailyLimit: 1200, TrailingSum: 100, TrailingDays: 1},
			want:  []Rule{RuleLeak, RuleLimitExceeded, RuleNearLimit, RuleAboveRollingAvg},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateEntry(tt.stats)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EvaluateEntry(%+v) = %v, want %v", tt.stats, got, tt.want)
			}
		})
	}
}

func TestEvaluateDaily(t *testing.T) {
	tests := []struct {
		name    string
		income  int64
		expense int64
		want    []Rule
	}{
		{name: "heavy spend day is low balance", income: 1000, expense: 900, want: []Rule{RuleLowBalance}},
		{name: "remainder just under 20 percent", income: 1000, expense: 801, want: []Rule{RuleLowBalance}},
		{name: "remainder exactly 20 percent is not low", income: 1000, expense: 800, want: nil},
		{name: "light spend day is stable", income: 1000, expense: 400, want: []Rule{RuleStable}},
		{name: "remainder exactly half is not stable", income: 1000, expense: 500, want: nil},
		{name: "no income no expense fires nothing", income: 0, expense: 0, want: nil},
		{name: "no income with spend is neither", income: 0, expense: 500, want: nil},
		{name: "overspent day is low balance not stable", income: 100, expense: 500, want: []Rule{RuleLowBalance}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateDaily(tt.income, tt.expense)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EvaluateDaily(%d, %d) = %v, want %v", tt.income, tt.expense, got, tt.want)
			}
		})
	}
}

func TestEvaluateWeekly(t *testing.T) {
	tests := []struct {
		name     string
		thisWeek int64
		lastWeek int64
		want     []Rule
	}{
		{name: "clear spike", thisWeek: 2000, lastWeek: 1000, want: []Rule{RuleWeeklySpike}},
		{name: "just over 130 percent", thisWeek: 1301, lastWeek: 1000, want: []Rule{RuleWeeklySpike}},
		{name: "exactly 130 percent is not a spike", thisWeek: 1300, lastWeek: 1000, want: nil},
		{name: "quiet last week never spikes", thisWeek: 1000000, lastWeek: 0, want: nil},
		{name: "both weeks empty", thisWeek: 0, lastWeek: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateWeekly(tt.thisWeek, tt.lastWeek)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EvaluateWeekly(%d, %d) = %v, want %v", tt.thisWeek, tt.lastWeek, got, tt.want)
			}
		})
	}
}

func TestHasRule(t *testing.T) {
	rules := []Rule{RuleLeak, RuleNearLimit}
	if !HasRule(rules, RuleLeak) {
		t.Error("HasRule(LEAK) = false, want true")
	}
	if HasRule(rules, RuleWeeklySpike) {
		t.Error("HasRule(WEEKLY_SPIKE) = true, want false")
	}
	if HasRule(nil, RuleLeak) {
		t.Error("HasRule on nil = true, want false")
	}
}
