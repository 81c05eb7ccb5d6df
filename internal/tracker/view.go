package tracker

import (
	"context"
	"time"

	"expensetracker/internal/aggregate"
	"expensetracker/internal/core"
)

// Mode is the controller's top-level state.
type Mode int

const (
	// ModeUnconfigured blocks expense entry until a profile is saved.
	ModeUnconfigured Mode = iota
	ModeActive
)

func (m Mode) String() string {
	if m == ModeActive {
		return "active"
	}
	return "unconfigured"
}

// View is everything a presentation layer needs, computed in one pass.
type View struct {
	Mode               Mode
	ProfileFormVisible bool
	Profile            core.UserProfile
	Theme              core.Theme
	Filter             aggregate.Filter

	Expenses   []core.Expense // filtered, newest first
	Totals     aggregate.Totals
	ByCategory []aggregate.Bucket
	ByDay      []aggregate.Bucket
	Categories []string

	// Warning is set while the store cannot be written or read.
	Warning     string
	GeneratedAt time.Time
}

// Sink receives every recomputed view. Render is called with the controller
// lock held, so views arrive in order; implementations must not call back
// into the controller.
type Sink interface {
	Render(ctx context.Context, v View)
}
