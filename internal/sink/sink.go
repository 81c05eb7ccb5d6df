// Package sink turns tracker views into output.
package sink

import (
	"context"

	"expensetracker/internal/tracker"
)

// Func adapts a function to tracker.Sink.
type Func func(ctx context.Context, v tracker.View)

func (f Func) Render(ctx context.Context, v tracker.View) {
	f(ctx, v)
}

// Multi renders every view on each of its sinks, in order.
type Multi []tracker.Sink

func (m Multi) Render(ctx context.Context, v tracker.View) {
	for _, s := range m {
		if s != nil {
			s.Render(ctx, v)
		}
	}
}
