package main

import (
	"context"
	"errors"
	"fmt"
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

type fakeTracker struct {
	added      []tracker.ExpenseInput
	deleted    []string
	profiles   []string
	filters    []aggregate.Filter
	themes     []core.Theme
	edits      int
	recomputes int
	err        error
}

func (f *fakeTracker) AddExpense(_ context.Context, in tracker.ExpenseInput) (core.Expense, error) {
	if f.err != nil {
		return core.Expense{}, f.err
	}
	f.added = append(f.added, in)
	return core.Expense{ID: fmt.Sprint(len(f.added))}, nil
}

func (f *fakeTracker) DeleteExpense(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeTracker) SaveProfile(_ context.Context, name string, salary decimal.Decimal) error {
	f.profiles = append(f.profiles, name+"="+salary.String())
	return f.err
}

func (f *fakeTracker) EditProfile(context.Context) { f.edits++ }

func (f *fakeTracker) SetFilter(_ context.Context, fl aggregate.Filter) error {
	f.filters = append(f.filters, fl)
	return f.err
}

func (f *fakeTracker) SetTheme(_ context.Context, theme core.Theme) error {
	f.themes = append(f.themes, theme)
	return f.err
}

func (f *fakeTracker) Recompute(context.Context) { f.recomputes++ }

func newTestShell() (*shell, *fakeTracker, *[]string) {
	ft := &fakeTracker{}
	var printed []string
	sh := newShell(ft, func(a ...any) { printed = append(printed, strings.TrimSuffix(fmt.Sprintln(a...), "\n")) })
	sh.loc = time.UTC
	return sh, ft, &printed
}

func TestShellAdd(t *testing.T) {
	sh, ft, printed := newTestShell()
	ctx := context.Background()

	_, err := sh.exec(ctx, "add 12,50 Food")
	require.NoError(t, err)
	_, err = sh.exec(ctx, "add 40 Transport 2026-10-01T08:30 train to work")
	require.NoError(t, err)
	_, err = sh.exec(ctx, "add 5 Coffee not-a-date")
	require.NoError(t, err)

	require.Len(t, ft.added, 3)
	assert.True(t, ft.added[0].Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "Food", ft.added[0].Category)
	assert.True(t, ft.added[0].OccurredAt.IsZero(), "no date means now")
	assert.Empty(t, ft.added[0].Description)

	assert.Equal(t, time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC), ft.added[1].OccurredAt)
	assert.Equal(t, "train to work", ft.added[1].Description)

	assert.True(t, ft.added[2].OccurredAt.IsZero())
	assert.Equal(t, "not-a-date", ft.added[2].Description)

	assert.Contains(t, *printed, "Added 1")
}

func TestShellAddQuotedCategory(t *testing.T) {
	sh, ft, _ := newTestShell()
	ctx := context.Background()

	_, err := sh.exec(ctx, `add 18 "Eating out" 2026-10-01T20:00 pizza with Bob`)
	require.NoError(t, err)
	_, err = sh.exec(ctx, `add 3 'Coffee & tea' "flat white"`)
	require.NoError(t, err)

	require.Len(t, ft.added, 2)
	assert.Equal(t, "Eating out", ft.added[0].Category)
	assert.Equal(t, time.Date(2026, 10, 1, 20, 0, 0, 0, time.UTC), ft.added[0].OccurredAt)
	assert.Equal(t, "pizza with Bob", ft.added[0].Description)
	assert.Equal(t, "Coffee & tea", ft.added[1].Category)
	assert.Equal(t, "flat white", ft.added[1].Description)

	_, err = sh.exec(ctx, `add 3 "Eating out`)
	assert.ErrorContains(t, err, "unterminated")
	assert.Len(t, ft.added, 2)
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"  add  1   Food ", []string{"add", "1", "Food"}},
		{`add 1 "Eating out"`, []string{"add", "1", "Eating out"}},
		{`filter all 'Eating out'`, []string{"filter", "all", "Eating out"}},
		{`add 1 "it's"`, []string{"add", "1", "it's"}},
		{`add 1 ""`, []string{"add", "1", ""}},
		{`add 1 pre"fix x"`, []string{"add", "1", "prefix x"}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		if err != nil {
			t.Fatalf("splitArgs(%q): %v", tt.line, err)
		}
		if !assert.Equal(t, tt.want, got, tt.line) {
			return
		}
	}
}

func TestShellAddRejectsBadInput(t *testing.T) {
	sh, ft, _ := newTestShell()
	ctx := context.Background()

	_, err := sh.exec(ctx, "add 12")
	assert.ErrorIs(t, err, errUsage)
	_, err = sh.exec(ctx, "add -3 Food")
	assert.Error(t, err)
	_, err = sh.exec(ctx, "add abc Food")
	assert.Error(t, err)
	assert.Empty(t, ft.added)
}

func TestShellPropagatesTrackerErrors(t *testing.T) {
	sh, ft, _ := newTestShell()
	ft.err = tracker.ErrProfileRequired

	_, err := sh.exec(context.Background(), "add 10 Food")
	assert.ErrorIs(t, err, tracker.ErrProfileRequired)
	_, err = sh.exec(context.Background(), "delete 123")
	assert.ErrorIs(t, err, tracker.ErrProfileRequired)
}

func TestShellProfile(t *testing.T) {
	sh, ft, _ := newTestShell()
	ctx := context.Background()

	_, err := sh.exec(ctx, "profile Ada Lovelace 3000")
	require.NoError(t, err)
	_, err = sh.exec(ctx, "profile Bob 1234,5")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada Lovelace=3000", "Bob=1234.5"}, ft.profiles)

	_, err = sh.exec(ctx, "profile 3000")
	assert.ErrorIs(t, err, errUsage)
	_, err = sh.exec(ctx, "profile Ada lots")
	assert.Error(t, err)

	_, err = sh.exec(ctx, "edit-profile")
	require.NoError(t, err)
	assert.Equal(t, 1, ft.edits)
}

func TestShellFilterAndTheme(t *testing.T) {
	sh, ft, _ := newTestShell()
	ctx := context.Background()

	_, err := sh.exec(ctx, "filter week")
	require.NoError(t, err)
	_, err = sh.exec(ctx, "filter month Eating out")
	require.NoError(t, err)
	_, err = sh.exec(ctx, "filter year")
	assert.Error(t, err)

	assert.Equal(t, []aggregate.Filter{
		{Date: aggregate.DateWeek, Category: aggregate.AllCategories},
		{Date: aggregate.DateMonth, Category: "Eating out"},
	}, ft.filters)

	_, err = sh.exec(ctx, "theme DARK")
	require.NoError(t, err)
	_, err = sh.exec(ctx, "theme blue")
	assert.Error(t, err)
	assert.Equal(t, []core.Theme{core.ThemeDark}, ft.themes)
}

func TestShellMisc(t *testing.T) {
	sh, ft, printed := newTestShell()
	ctx := context.Background()

	quit, err := sh.exec(ctx, "   ")
	assert.False(t, quit)
	assert.NoError(t, err)

	_, err = sh.exec(ctx, "show")
	require.NoError(t, err)
	assert.Equal(t, 1, ft.recomputes)

	_, err = sh.exec(ctx, "help")
	require.NoError(t, err)
	assert.Equal(t, []string{helpText}, *printed)

	_, err = sh.exec(ctx, "launch")
	assert.True(t, errors.Is(err, errUnknownCommand))

	quit, err = sh.exec(ctx, "QUIT")
	assert.True(t, quit)
	assert.NoError(t, err)
}
