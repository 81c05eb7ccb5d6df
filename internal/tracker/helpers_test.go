package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/bus"
	"expensetracker/internal/log"
	"expensetracker/internal/repository"
	"expensetracker/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 17, 15, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingSink struct {
	mu    sync.Mutex
	views []View
}

func (s *recordingSink) Render(_ context.Context, v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, v)
}

func (s *recordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

func (s *recordingSink) Last() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return View{}
	}
	return s.views[len(s.views)-1]
}

// flakyStore fails every call while down is set.
type flakyStore struct {
	*storage.MemoryStore
	down atomic.Bool
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if s.down.Load() {
		return "", storage.ErrUnavailable
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	if s.down.Load() {
		return storage.ErrUnavailable
	}
	return s.MemoryStore.Set(ctx, key, value)
}

// countingBus records what the controller publishes.
type countingBus struct {
	bus.Noop
	mu     sync.Mutex
	events []bus.Event
}

func (b *countingBus) Publish(_ context.Context, e bus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *countingBus) Published() []bus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bus.Event(nil), b.events...)
}

type instance struct {
	*Controller
	sink  *recordingSink
	clock *fakeClock
}

func newInstance(t *testing.T, store storage.Store, b bus.Bus) *instance {
	t.Helper()
	clock := newClock()
	sink := &recordingSink{}
	c := New(repository.New(store), b, sink,
		WithClock(clock.Now),
		WithLogger(log.Discard()))
	require.NoError(t, c.Load(context.Background()))
	return &instance{Controller: c, sink: sink, clock: clock}
}

func configure(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.SaveProfile(context.Background(), "Ada", decimal.NewFromInt(3000)))
}

// setLocal swaps time.Local for the duration of the test.
func setLocal(t *testing.T, loc *time.Location) {
	t.Helper()
	prev := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = prev })
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
