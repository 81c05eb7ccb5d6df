package bus

import (
	"context"
	"fmt"
	"sync"

	"expensetracker/internal/log"
)

// Hub is an in-process broadcast channel. Members exchange events in their
// JSON wire form, so they share no memory, the same as instances on separate
// machines.
type Hub struct {
	mu      sync.RWMutex
	members map[string]*Member
}

func NewHub() *Hub {
	return &Hub{members: make(map[string]*Member)}
}

// Join registers a new member. Joining twice with the same id replaces the
// earlier member, which is closed.
func (h *Hub) Join(id string) *Member {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Member{
		hub:    h,
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		logger: log.Default().WithComponent(log.ComponentBus).With(log.FieldInstanceID, id),
	}

	h.mu.Lock()
	old := h.members[id]
	h.members[id] = m
	h.mu.Unlock()

	if old != nil {
		old.shutdown()
	}
	return m
}

func (h *Hub) leave(m *Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.members[m.id] == m {
		delete(h.members, m.id)
	}
}

func (h *Hub) broadcast(from string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for id, m := range h.members {
		if id == from {
			continue
		}
		if m.enqueue(data) {
			delivered++
		}
	}
	return delivered
}

// Member is one instance's handle on a Hub. It implements Bus.
type Member struct {
	hub    *Hub
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger

	mu      sync.Mutex
	handler Handler
	pending [][]byte
	closed  bool
	wake    chan struct{}
}

var _ Bus = (*Member)(nil)

func (m *Member) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	n := m.hub.broadcast(m.id, data)
	m.logger.DebugContext(ctx, "Event broadcast", log.FieldEventKind, e.Kind, "receivers", n)
	return nil
}

// Subscribe starts the member's delivery goroutine. Events published before
// Subscribe are not queued for it.
func (m *Member) Subscribe(h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.handler != nil {
		return ErrAlreadySubscribed
	}
	m.handler = h
	go m.run()
	return nil
}

func (m *Member) Close() error {
	m.hub.leave(m)
	m.shutdown()
	return nil
}

func (m *Member) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.pending = nil
	m.cancel()
}

func (m *Member) enqueue(data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.handler == nil {
		return false
	}
	m.pending = append(m.pending, data)
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

func (m *Member) next() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, false
	}
	data := m.pending[0]
	m.pending = m.pending[1:]
	return data, true
}

func (m *Member) run() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
		}
		for {
			data, ok := m.next()
			if !ok {
				break
			}
			m.deliver(data)
		}
	}
}

func (m *Member) deliver(data []byte) {
	e, err := EventFromJSON(data)
	if err != nil {
		m.logger.Warn("Dropping malformed event", log.FieldError, err)
		return
	}
	if err := m.handler(m.ctx, e); err != nil {
		m.logger.Error("Failed to handle event", log.FieldEventKind, e.Kind, log.FieldError, err)
	}
}
