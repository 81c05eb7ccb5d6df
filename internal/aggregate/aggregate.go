// Package aggregate derives filtered views, totals and chart series from a
// snapshot of expenses. Every function is pure; "now" is always passed in.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

// DateMode selects the time window of FilterByDate.
type DateMode string

const (
	DateAll   DateMode = "all"
	DateToday DateMode = "today"
	DateWeek  DateMode = "week"
	DateMonth DateMode = "month"
)

// AllCategories disables the category filter.
const AllCategories = "all"

// ParseDateMode validates a filter name.
func ParseDateMode(s string) (DateMode, error) {
	switch m := DateMode(strings.ToLower(strings.TrimSpace(s))); m {
	case DateAll, DateToday, DateWeek, DateMonth:
		return m, nil
	}
	return "", fmt.Errorf("unknown date filter %q: must be one of all, today, week, month", s)
}

// StartOfDay is local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth is local midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// WeekStart is seven 24h periods before today's midnight.
func WeekStart(now time.Time) time.Time {
	return StartOfDay(now).Add(-7 * 24 * time.Hour)
}

// MonthStart is midnight of the same day-of-month one month earlier.
// Days missing from the previous month roll over the way time.Date
// normalizes them: on March 31st the window starts on March 3rd (or 2nd).
func MonthStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m-1, d, 0, 0, 0, 0, now.Location())
}

// Since returns the lower bound of the window for mode, and false for DateAll.
func Since(now time.Time, mode DateMode) (time.Time, bool) {
	switch mode {
	case DateToday:
		return StartOfDay(now), true
	case DateWeek:
		return WeekStart(now), true
	case DateMonth:
		return MonthStart(now), true
	}
	return time.Time{}, false
}

// FilterByDate keeps expenses that occurred at or after the window start.
func FilterByDate(expenses []core.Expense, now time.Time, mode DateMode) []core.Expense {
	since, ok := Since(now, mode)
	if !ok {
		return slices.Clone(expenses)
	}
	return occurredSince(expenses, since)
}

func occurredSince(expenses []core.Expense, since time.Time) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByCategory keeps exact matches; AllCategories passes everything through.
func FilterByCategory(expenses []core.Expense, category string) []core.Expense {
	if category == "" || category == AllCategories {
		return slices.Clone(expenses)
	}
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// SortByRecency orders newest first. Equal sort keys keep their input order.
func SortByRecency(expenses []core.Expense) []core.Expense {
	out := slices.Clone(expenses)
	slices.SortStableFunc(out, func(a, b core.Expense) int {
		return cmp.Compare(b.SortKey, a.SortKey)
	})
	return out
}

// Totals are the summary figures. Total and Balance ignore any filter.
type Totals struct {
	Total          decimal.Decimal
	Balance        decimal.Decimal
	MonthToDate    decimal.Decimal
	MonthlySavings decimal.Decimal
	Week           decimal.Decimal
	Today          decimal.Decimal
}

// ComputeTotals sums exactly; nothing is rounded here.
func ComputeTotals(expenses []core.Expense, profile core.UserProfile, now time.Time) Totals {
	total := core.Sum(expenses)
	monthToDate := core.Sum(occurredSince(expenses, StartOfMonth(now)))
	return Totals{
		Total:          total,
		Balance:        profile.Salary.Sub(total),
		MonthToDate:    monthToDate,
		MonthlySavings: profile.Salary.Sub(monthToDate),
		Week:           core.Sum(FilterByDate(expenses, now, DateWeek)),
		Today:          core.Sum(FilterByDate(expenses, now, DateToday)),
	}
}

// Bucket is one labelled point of a chart series.
type Bucket struct {
	Label  string
	Amount decimal.Decimal
}

// BucketByCategory sums per category in first-seen order. Absent categories are not zero-filled.
func BucketByCategory(expenses []core.Expense) []Bucket {
	return group(expenses, func(e core.Expense) string { return e.Category })
}

// DayLayout is the key format of BucketByDay.
const DayLayout = "2006-01-02"

// BucketByDay sums per local calendar day, ascending.
func BucketByDay(expenses []core.Expense) []Bucket {
	sorted := slices.Clone(expenses)
	slices.SortStableFunc(sorted, func(a, b core.Expense) int {
		return cmp.Compare(a.SortKey, b.SortKey)
	})
	return group(sorted, func(e core.Expense) string { return e.OccurredAt.Format(DayLayout) })
}

func group(expenses []core.Expense, key func(core.Expense) string) []Bucket {
	out := []Bucket{}
	pos := make(map[string]int)
	for _, e := range expenses {
		k := key(e)
		i, ok := pos[k]
		if !ok {
			pos[k] = len(out)
			out = append(out, Bucket{Label: k, Amount: e.Amount})
			continue
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

// Categories lists the distinct categories in first-seen order.
func Categories(expenses []core.Expense) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, e := range expenses {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	return out
}
