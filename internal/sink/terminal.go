package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"expensetracker/internal/aggregate"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/tracker"
)

const (
	barWidth   = 30
	labelWidth = 14
	emptyTable = "No expenses found"
)

// Terminal prints each view as a dashboard: profile banner, summary figures,
// the filtered expense table and the two chart series as bars.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *lipgloss.Renderer
	logger   *log.Logger
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
		logger:   log.Default().WithComponent(log.ComponentSink),
	}
}

func (t *Terminal) Render(ctx context.Context, v tracker.View) {
	s := t.Format(v)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.out, s); err != nil {
		t.logger.WarnContext(ctx, "Failed to write view", log.FieldError, err)
	}
}

// Println writes a line between views without interleaving with a render.
func (t *Terminal) Println(a ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, a...)
}

// Format renders v without writing it.
func (t *Terminal) Format(v tracker.View) string {
	p := paletteFor(v.Theme)
	r := t.renderer

	title := r.NewStyle().Bold(true).Foreground(p.accent)
	muted := r.NewStyle().Foreground(p.muted)
	section := r.NewStyle().Bold(true).Foreground(p.text).MarginTop(1)

	var b strings.Builder
	b.WriteString(title.Render("Expense Tracker"))
	if v.Profile.Configured() {
		b.WriteString(muted.Render(fmt.Sprintf("  %s, salary %s", v.Profile.Name, core.FormatCurrency(v.Profile.Salary))))
	}
	b.WriteString("\n")

	if v.Warning != "" {
		b.WriteString(r.NewStyle().Foreground(p.warning).Render("! "+v.Warning) + "\n")
	}

	if v.ProfileFormVisible || v.Mode == tracker.ModeUnconfigured {
		b.WriteString(t.profileForm(v, p))
	}
	if v.Mode == tracker.ModeUnconfigured {
		return b.String() + "\n"
	}

	b.WriteString(section.Render("Summary") + "\n")
	b.WriteString(t.summary(v.Totals, p))

	b.WriteString(section.Render("Expenses") + "\n")
	b.WriteString(muted.Render(FilterLine(v.Filter, v.Categories)) + "\n")
	b.WriteString(t.expenseTable(v.Expenses, p) + "\n")

	b.WriteString(section.Render("By category") + "\n")
	b.WriteString(t.bars(v.ByCategory, p, categoryColor))

	b.WriteString(section.Render("Daily trend") + "\n")
	b.WriteString(t.bars(v.ByDay, p, func(int) lipgloss.Color { return TrendColor }))

	return b.String() + "\n"
}

func (t *Terminal) profileForm(v tracker.View, p palette) string {
	box := t.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.border).
		Padding(0, 1)

	name, salary := "", ""
	if v.Profile.Configured() {
		name, salary = v.Profile.Name, v.Profile.Salary.String()
	}
	lines := []string{
		"Your profile",
		fmt.Sprintf("Name:   %s", name),
		fmt.Sprintf("Salary: %s", salary),
		"Save with: profile <name> <monthly salary>",
	}
	return box.Render(strings.Join(lines, "\n")) + "\n"
}

func (t *Terminal) summary(totals aggregate.Totals, p palette) string {
	label := t.renderer.NewStyle().Width(18).Foreground(p.muted)
	value := t.renderer.NewStyle().Foreground(p.text)
	signed := func(d decimal.Decimal) string {
		if d.IsNegative() {
			return t.renderer.NewStyle().Foreground(p.bad).Render(core.FormatCurrency(d))
		}
		return t.renderer.NewStyle().Foreground(p.good).Render(core.FormatCurrency(d))
	}

	rows := []struct {
		name string
		v    string
	}{
		{"Total expenses", value.Render(core.FormatCurrency(totals.Total))},
		{"Balance", signed(totals.Balance)},
		{"This month", value.Render(core.FormatCurrency(totals.MonthToDate))},
		{"Monthly savings", signed(totals.MonthlySavings)},
		{"This week", value.Render(core.FormatCurrency(totals.Week))},
		{"Today", value.Render(core.FormatCurrency(totals.Today))},
	}
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(label.Render(row.name) + row.v + "\n")
	}
	return b.String()
}

// FilterLine describes the active filter and the known categories.
func FilterLine(f aggregate.Filter, categories []string) string {
	category := f.Category
	if category == "" {
		category = aggregate.AllCategories
	}
	date := f.Date
	if date == "" {
		date = aggregate.DateAll
	}
	line := fmt.Sprintf("date: %s  category: %s", date, category)
	if len(categories) > 0 {
		line += "  (categories: " + strings.Join(categories, ", ") + ")"
	}
	return line
}

func (t *Terminal) expenseTable(expenses []core.Expense, p palette) string {
	if len(expenses) == 0 {
		return t.renderer.NewStyle().Foreground(p.muted).Italic(true).Render(emptyTable)
	}

	rows := make([][]string, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, []string{
			e.OccurredAt.Format("2006-01-02 15:04"),
			e.Category,
			e.Description,
			core.FormatCurrency(e.Amount),
			e.ID,
		})
	}

	header := t.renderer.NewStyle().Bold(true).Foreground(p.accent).Padding(0, 1)
	cell := t.renderer.NewStyle().Foreground(p.text).Padding(0, 1)
	amount := cell.Align(lipgloss.Right)

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(t.renderer.NewStyle().Foreground(p.border)).
		Headers("Date", "Category", "Description", "Amount", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 3:
				return amount
			default:
				return cell
			}
		}).
		String()
}

// bars draws one horizontal bar per bucket, scaled to the largest amount.
func (t *Terminal) bars(buckets []aggregate.Bucket, p palette, color func(int) lipgloss.Color) string {
	if len(buckets) == 0 {
		return t.renderer.NewStyle().Foreground(p.muted).Italic(true).Render("No data") + "\n"
	}

	largest, total := decimal.Zero, decimal.Zero
	for _, bk := range buckets {
		total = total.Add(bk.Amount)
		if bk.Amount.GreaterThan(largest) {
			largest = bk.Amount
		}
	}

	label := t.renderer.NewStyle().Width(labelWidth).Foreground(p.text)
	figure := t.renderer.NewStyle().Foreground(p.muted)

	var b strings.Builder
	for i, bk := range buckets {
		bar := t.renderer.NewStyle().Foreground(color(i)).Render(strings.Repeat("█", barLength(bk.Amount, largest)))
		b.WriteString(label.Render(truncate(bk.Label, labelWidth-1)))
		b.WriteString(bar)
		b.WriteString(figure.Render(fmt.Sprintf(" %s (%s%%)", core.FormatCurrency(bk.Amount), Share(bk.Amount, total))))
		b.WriteString("\n")
	}
	return b.String()
}

func barLength(amount, largest decimal.Decimal) int {
	if !largest.IsPositive() || !amount.IsPositive() {
		return 0
	}
	n := int(amount.Mul(decimal.NewFromInt(barWidth)).Div(largest).Round(0).IntPart())
	if n < 1 {
		return 1
	}
	return n
}

// Share is amount as a percentage of total, one decimal place.
func Share(amount, total decimal.Decimal) string {
	if !total.IsPositive() {
		return "0.0"
	}
	return amount.Mul(decimal.NewFromInt(100)).Div(total).StringFixed(1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
