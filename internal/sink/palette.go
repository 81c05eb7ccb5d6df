package sink

import (
	"github.com/charmbracelet/lipgloss"

	"expensetracker/internal/core"
)

// CategoryColors colour the category share bars, cycling after the tenth category.
var CategoryColors = []lipgloss.Color{
	"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0", "#9966FF",
	"#FF9F40", "#8AC249", "#EA526F", "#23B5D3", "#7E909A",
}

// TrendColor colours the daily trend bars.
const TrendColor = lipgloss.Color("#4a6fa5")

type palette struct {
	text    lipgloss.Color
	muted   lipgloss.Color
	accent  lipgloss.Color
	border  lipgloss.Color
	warning lipgloss.Color
	good    lipgloss.Color
	bad     lipgloss.Color
}

func paletteFor(theme core.Theme) palette {
	if theme == core.ThemeDark {
		return palette{
			text:    "#f5f5f5",
			muted:   "#a0a0a0",
			accent:  "#6c8ebf",
			border:  "#444444",
			warning: "#FFCE56",
			good:    "#8AC249",
			bad:     "#FF6384",
		}
	}
	return palette{
		text:    "#333333",
		muted:   "#777777",
		accent:  TrendColor,
		border:  "#dddddd",
		warning: "#FF9F40",
		good:    "#2e7d32",
		bad:     "#c62828",
	}
}

func categoryColor(i int) lipgloss.Color {
	return CategoryColors[i%len(CategoryColors)]
}
