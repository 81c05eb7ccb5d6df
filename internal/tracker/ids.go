package tracker

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator hands out expense IDs.
type IDGenerator interface {
	NextID(now time.Time) string
}

// MillisIDs produces epoch-millisecond IDs, bumped by one when the clock has
// not moved so that IDs from one instance are strictly increasing.
type MillisIDs struct {
	mu   sync.Mutex
	last int64
}

func (g *MillisIDs) NextID(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}
