package aggregate

import (
	"time"

	"expensetracker/internal/core"
)

// Filter is the pair of selections applied to the expense table and charts.
type Filter struct {
	Date     DateMode
	Category string
}

// DefaultFilter shows everything.
func DefaultFilter() Filter {
	return Filter{Date: DateAll, Category: AllCategories}
}

// Apply runs the date filter then the category filter.
func (f Filter) Apply(expenses []core.Expense, now time.Time) []core.Expense {
	mode := f.Date
	if mode == "" {
		mode = DateAll
	}
	return FilterByCategory(FilterByDate(expenses, now, mode), f.Category)
}

// Summary is everything a presentation layer needs for one render.
type Summary struct {
	Expenses   []core.Expense // filtered, newest first
	Totals     Totals         // over the whole collection
	ByCategory []Bucket       // over the filtered expenses
	ByDay      []Bucket       // over the filtered expenses
	Categories []string       // over the whole collection
}

// Summarize derives a Summary. Calling it twice with the same input gives the same output.
func Summarize(expenses []core.Expense, profile core.UserProfile, filter Filter, now time.Time) Summary {
	filtered := filter.Apply(expenses, now)
	return Summary{
		Expenses:   SortByRecency(filtered),
		Totals:     ComputeTotals(expenses, profile, now),
		ByCategory: BucketByCategory(filtered),
		ByDay:      BucketByDay(filtered),
		Categories: Categories(expenses),
	}
}
