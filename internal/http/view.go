package http

import (
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/aggregate"
	"expensetracker/internal/core"
	"expensetracker/internal/sink"
	"expensetracker/internal/tracker"
)

type totalsJSON struct {
	Total          decimal.Decimal `json:"total"`
	Balance        decimal.Decimal `json:"balance"`
	MonthToDate    decimal.Decimal `json:"monthToDate"`
	MonthlySavings decimal.Decimal `json:"monthlySavings"`
	Week           decimal.Decimal `json:"week"`
	Today          decimal.Decimal `json:"today"`
}

type bucketJSON struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type filterJSON struct {
	Date     string `json:"date"`
	Category string `json:"category"`
}

// viewJSON is the /api/view payload. Expenses use the stored record format.
type viewJSON struct {
	Mode        string           `json:"mode"`
	Profile     core.UserProfile `json:"userInfo"`
	Theme       core.Theme       `json:"theme"`
	Filter      filterJSON       `json:"filter"`
	Expenses    []core.Expense   `json:"expenses"`
	Totals      totalsJSON       `json:"totals"`
	ByCategory  []bucketJSON     `json:"byCategory"`
	ByDay       []bucketJSON     `json:"byDay"`
	Categories  []string         `json:"categories"`
	Warning     string           `json:"warning,omitempty"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

func newViewJSON(v tracker.View) viewJSON {
	out := viewJSON{
		Mode:    v.Mode.String(),
		Profile: v.Profile,
		Theme:   v.Theme,
		Filter:  filterJSON{Date: string(v.Filter.Date), Category: v.Filter.Category},
		Totals: totalsJSON{
			Total:          v.Totals.Total,
			Balance:        v.Totals.Balance,
			MonthToDate:    v.Totals.MonthToDate,
			MonthlySavings: v.Totals.MonthlySavings,
			Week:           v.Totals.Week,
			Today:          v.Totals.Today,
		},
		Expenses:    v.Expenses,
		ByCategory:  bucketsJSON(v.ByCategory),
		ByDay:       bucketsJSON(v.ByDay),
		Categories:  v.Categories,
		Warning:     v.Warning,
		GeneratedAt: v.GeneratedAt,
	}
	if out.Expenses == nil {
		out.Expenses = []core.Expense{}
	}
	if out.Categories == nil {
		out.Categories = []string{}
	}
	return out
}

func bucketsJSON(buckets []aggregate.Bucket) []bucketJSON {
	out := make([]bucketJSON, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketJSON{Label: b.Label, Amount: b.Amount})
	}
	return out
}

type summaryItem struct {
	Label string
	Value string
	Class string
}

type expenseRow struct {
	ID          string
	Date        string
	Category    string
	Description string
	Amount      string
}

type barRow struct {
	Label  string
	Amount string
	Share  string
	Width  string
	Color  string
}

// dashboard is the template data of the HTML page.
type dashboard struct {
	RefreshSeconds int
	Theme          core.Theme
	Configured     bool
	Name           string
	Salary         string
	Warning        string
	Summary        []summaryItem
	FilterLine     string
	Expenses       []expenseRow
	ByCategory     []barRow
	ByDay          []barRow
	GeneratedAt    string
}

func newDashboard(v tracker.View) dashboard {
	theme := v.Theme
	if theme == "" {
		theme = core.ThemeLight
	}
	d := dashboard{
		RefreshSeconds: refreshSeconds,
		Theme:          theme,
		Configured:     v.Mode == tracker.ModeActive,
		Name:           v.Profile.Name,
		Salary:         core.FormatCurrency(v.Profile.Salary),
		Warning:        v.Warning,
		FilterLine:     sink.FilterLine(v.Filter, v.Categories),
		ByCategory: bars(v.ByCategory, func(i int) string {
			return string(sink.CategoryColors[i%len(sink.CategoryColors)])
		}),
		ByDay: bars(v.ByDay, func(int) string { return string(sink.TrendColor) }),
	}
	if !v.GeneratedAt.IsZero() {
		d.GeneratedAt = v.GeneratedAt.Format("2006-01-02 15:04:05")
	}

	d.Summary = []summaryItem{
		{"Total expenses", core.FormatCurrency(v.Totals.Total), ""},
		{"Balance", core.FormatCurrency(v.Totals.Balance), signClass(v.Totals.Balance)},
		{"This month", core.FormatCurrency(v.Totals.MonthToDate), ""},
		{"Monthly savings", core.FormatCurrency(v.Totals.MonthlySavings), signClass(v.Totals.MonthlySavings)},
		{"This week", core.FormatCurrency(v.Totals.Week), ""},
		{"Today", core.FormatCurrency(v.Totals.Today), ""},
	}

	for _, e := range v.Expenses {
		d.Expenses = append(d.Expenses, expenseRow{
			ID:          e.ID,
			Date:        e.OccurredAt.Format("2006-01-02 15:04"),
			Category:    e.Category,
			Description: e.Description,
			Amount:      core.FormatCurrency(e.Amount),
		})
	}
	return d
}

func signClass(d decimal.Decimal) string {
	if d.IsNegative() {
		return "bad"
	}
	return "good"
}

// bars scales each bucket to the largest one, in percent of the row width.
func bars(buckets []aggregate.Bucket, color func(int) string) []barRow {
	largest, total := decimal.Zero, decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.Amount)
		if b.Amount.GreaterThan(largest) {
			largest = b.Amount
		}
	}

	out := make([]barRow, 0, len(buckets))
	for i, b := range buckets {
		width := decimal.Zero
		if largest.IsPositive() {
			width = b.Amount.Mul(decimal.NewFromInt(100)).Div(largest)
		}
		out = append(out, barRow{
			Label:  b.Label,
			Amount: core.FormatCurrency(b.Amount),
			Share:  sink.Share(b.Amount, total) + "%",
			Width:  width.StringFixed(1),
			Color:  color(i),
		})
	}
	return out
}
