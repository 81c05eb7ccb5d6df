package sink

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/aggregate"
	"expensetracker/internal/core"
	"expensetracker/internal/tracker"
)

var now = time.Date(2026, 10, 17, 15, 0, 0, 0, time.Local)

func activeView(t *testing.T, expenses ...core.Expense) tracker.View {
	t.Helper()
	profile := core.UserProfile{Name: "Ada", Salary: decimal.NewFromInt(3000)}
	s := aggregate.Summarize(expenses, profile, aggregate.DefaultFilter(), now)
	return tracker.View{
		Mode:       tracker.ModeActive,
		Profile:    profile,
		Theme:      core.ThemeLight,
		Filter:     aggregate.DefaultFilter(),
		Expenses:   s.Expenses,
		Totals:     s.Totals,
		ByCategory: s.ByCategory,
		ByDay:      s.ByDay,
		Categories: s.Categories,
	}
}

func TestTerminalEmptyState(t *testing.T) {
	var out bytes.Buffer
	NewTerminal(&out).Render(context.Background(), activeView(t))

	s := out.String()
	assert.Contains(t, s, "No expenses found")
	assert.Contains(t, s, "$0.00")
	assert.Contains(t, s, "$3000.00", "balance equals the salary")
	assert.NotContains(t, s, "Your profile")
}

func TestTerminalExpenses(t *testing.T) {
	food, err := core.NewExpense("1", decimal.RequireFromString("12.5"), "Food", now.Add(-time.Hour), "lunch")
	require.NoError(t, err)
	rent, err := core.NewExpense("2", decimal.RequireFromString("37.5"), "Rent", now.Add(-48*time.Hour), "")
	require.NoError(t, err)

	s := NewTerminal(&bytes.Buffer{}).Format(activeView(t, food, rent))

	for _, want := range []string{"lunch", "$12.50", "$37.50", "$50.00", "Food", "Rent", "25.0%", "75.0%", "2026-10-17"} {
		assert.Contains(t, s, want)
	}
	assert.NotContains(t, s, "No expenses found")
	assert.Less(t, strings.Index(s, "lunch"), strings.Index(s, "$37.50"), "newest first")
}

func TestTerminalUnconfigured(t *testing.T) {
	v := tracker.View{Mode: tracker.ModeUnconfigured, ProfileFormVisible: true, Profile: core.DefaultProfile(), Warning: "Stored expenses could not be read"}
	s := NewTerminal(&bytes.Buffer{}).Format(v)

	assert.Contains(t, s, "Save with: profile")
	assert.Contains(t, s, "Stored expenses could not be read")
	assert.NotContains(t, s, "Summary")
}

func TestTerminalDarkTheme(t *testing.T) {
	v := activeView(t)
	v.Theme = core.ThemeDark
	assert.Contains(t, NewTerminal(&bytes.Buffer{}).Format(v), "Expense Tracker")
	assert.NotEqual(t, paletteFor(core.ThemeDark), paletteFor(core.ThemeLight))
}

func TestBarLength(t *testing.T) {
	d := decimal.RequireFromString
	assert.Equal(t, barWidth, barLength(d("10"), d("10")))
	assert.Equal(t, barWidth/2, barLength(d("5"), d("10")))
	assert.Equal(t, 1, barLength(d("0.001"), d("10")), "tiny amounts stay visible")
	assert.Equal(t, 0, barLength(decimal.Zero, d("10")))
	assert.Equal(t, 0, barLength(d("1"), decimal.Zero))
}

func TestCategoryColorsCycle(t *testing.T) {
	assert.Len(t, CategoryColors, 10)
	assert.Equal(t, categoryColor(0), categoryColor(10))
	assert.NotEqual(t, categoryColor(0), categoryColor(1))
}

func TestMultiAndFunc(t *testing.T) {
	var got []string
	record := func(name string) tracker.Sink {
		return Func(func(context.Context, tracker.View) { got = append(got, name) })
	}
	Multi{record("a"), nil, record("b")}.Render(context.Background(), tracker.View{})
	assert.Equal(t, []string{"a", "b"}, got)
}
