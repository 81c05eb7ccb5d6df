package google

import (
	"fmt"

	"github.com/shopspring/decimal"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/aggregate"
	"expensetracker/internal/core"
	"expensetracker/internal/tracker"
)

const DefaultSheetName = "Tracker"

// Block origins inside the sheet.
const (
	summaryCol    = "A"
	expensesCol   = "D"
	categoriesCol = "J"
	dailyCol      = "N"
	lastCol       = "P"
)

// ClearRange covers every block written by ValueRanges.
func ClearRange(sheet string) string {
	return fmt.Sprintf("'%s'!%s:%s", sheet, summaryCol, lastCol)
}

// ValueRanges lays out v as four blocks of the given sheet.
func ValueRanges(sheet string, v tracker.View) []*gsheet.ValueRange {
	block := func(col string, rows [][]interface{}) *gsheet.ValueRange {
		return &gsheet.ValueRange{
			Range:          fmt.Sprintf("'%s'!%s1", sheet, col),
			MajorDimension: "ROWS",
			Values:         rows,
		}
	}
	return []*gsheet.ValueRange{
		block(summaryCol, SummaryRows(v)),
		block(expensesCol, ExpenseRows(v.Expenses)),
		block(categoriesCol, BucketRows("Category", v.ByCategory)),
		block(dailyCol, BucketRows("Day", v.ByDay)),
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func SummaryRows(v tracker.View) [][]interface{} {
	t := v.Totals
	return [][]interface{}{
		{"Summary", ""},
		{"Name", v.Profile.Name},
		{"Salary", money(v.Profile.Salary)},
		{"Total expenses", money(t.Total)},
		{"Balance", money(t.Balance)},
		{"This month", money(t.MonthToDate)},
		{"Monthly savings", money(t.MonthlySavings)},
		{"This week", money(t.Week)},
		{"Today", money(t.Today)},
		{"Updated", v.GeneratedAt.Format(core.DateLayout)},
	}
}

func ExpenseRows(expenses []core.Expense) [][]interface{} {
	rows := [][]interface{}{{"Date", "Category", "Description", "Amount", "ID"}}
	for _, e := range expenses {
		rows = append(rows, []interface{}{
			e.OccurredAt.Format("2006-01-02 15:04"),
			e.Category,
			e.Description,
			money(e.Amount),
			// Quoted so the sheet keeps the millisecond ID as text.
			"'" + e.ID,
		})
	}
	return rows
}

func BucketRows(header string, buckets []aggregate.Bucket) [][]interface{} {
	rows := [][]interface{}{{header, "Amount"}}
	for _, b := range buckets {
		rows = append(rows, []interface{}{b.Label, money(b.Amount)})
	}
	return rows
}
