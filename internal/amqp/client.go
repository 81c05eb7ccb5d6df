// Package amqp carries sync events between instances over a RabbitMQ fanout
// exchange. Every instance binds its own exclusive, auto-delete queue, so an
// event reaches exactly the instances that are connected when it is published.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expensetracker/internal/bus"
	"expensetracker/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	dialTimeout    = 2 * time.Second
	heartbeat      = 10 * time.Second
	maxBackoff     = 30 * time.Second
	outboxSize     = 256
)

// outgoing is an event already encoded for the wire.
type outgoing struct {
	kind bus.EventKind
	body []byte
}

func dial(url string) (*amqp091.Connection, error) {
	return amqp091.DialConfig(url, amqp091.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp091.DefaultDial(dialTimeout),
	})
}

type Client struct {
	url          string
	exchangeName string
	instanceID   string
	logger       *log.Logger
	dial         func(url string) (*amqp091.Connection, error)
	outbox       chan outgoing

	// dialMu serialises connection setup; mu only guards the fields below
	// and is never held across network round trips.
	dialMu  sync.Mutex
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time

	subMu   sync.Mutex
	handler bus.Handler
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ bus.Bus = (*Client)(nil)

func newClient(url, exchangeName, instanceID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		instanceID:   instanceID,
		logger: log.Default().WithComponent(log.ComponentAMQP).With(
			log.FieldInstanceID, instanceID,
			log.FieldChannel, exchangeName,
		),
		dial:   dial,
		outbox: make(chan outgoing, outboxSize),
		ctx:    ctx,
		cancel: cancel,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.sendLoop(ctx)
	}()
	return c
}

// NewClient connects to the broker and declares the fanout exchange named
// after the sync channel. instanceID stamps outgoing messages so the client
// can skip its own.
func NewClient(url, exchangeName, instanceID string) (*Client, error) {
	c := newClient(url, exchangeName, instanceID)
	if _, err := c.publishChannel(); err != nil {
		c.cancel()
		return nil, err
	}
	c.logger.Info("Connected to AMQP broker")
	return c, nil
}

func (c *Client) currentConn() *amqp091.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn
	}
	return nil
}

// connection returns the shared connection, dialing when there is none.
// Callers hold dialMu.
func (c *Client) connection() (*amqp091.Connection, error) {
	if conn := c.currentConn(); conn != nil {
		return conn, nil
	}
	conn, err := c.dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		conn.Close()
		return nil, bus.ErrClosed
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) declare(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// publishChannel returns the channel used for publishing, reconnecting if the
// broker dropped it.
func (c *Client) publishChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	if c.channel != nil && !c.channel.IsClosed() {
		ch := c.channel
		c.mu.Unlock()
		return ch, nil
	}
	c.mu.Unlock()

	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := c.declare(ch); err != nil {
		ch.Close()
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.channel = ch
	return ch, nil
}

func (c *Client) dropConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Publish queues e for every other connected instance and returns without
// waiting for the broker. Messages are transient: an instance that is not
// connected never sees them. Errors only report events that were not queued.
func (c *Client) Publish(ctx context.Context, e bus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ctx.Err() != nil {
		return bus.ErrClosed
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("%w: circuit breaker is open", bus.ErrUnavailable)
	}
	if err := e.Validate(); err != nil {
		return err
	}

	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	select {
	case c.outbox <- outgoing{kind: e.Kind, body: body}:
		return nil
	default:
		return fmt.Errorf("%w: outbox full", bus.ErrUnavailable)
	}
}

func (c *Client) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.outbox:
			if err := c.send(ctx, msg); err != nil {
				c.logger.Warn("Failed to publish sync event",
					log.FieldEventKind, msg.kind,
					log.FieldError, err)
			}
		}
	}
}

// send writes one queued event. While the breaker is open the event is
// dropped without touching the network.
func (c *Client) send(ctx context.Context, msg outgoing) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("%w: circuit breaker is open", bus.ErrUnavailable)
	}

	ch, err := c.publishChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("%w: %w", bus.ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key, ignored by fanout
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Transient,
			Timestamp:    time.Now(),
			AppId:        c.instanceID,
			Type:         string(msg.kind),
			Body:         msg.body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.dropConnection()
		}
		c.recordFailure()
		return fmt.Errorf("%w: publish message: %w", bus.ErrUnavailable, err)
	}

	c.recordSuccess()
	c.logger.DebugContext(ctx, "Published sync event", log.FieldEventKind, msg.kind)
	return nil
}

// Subscribe starts a consumer goroutine that survives broker restarts.
func (c *Client) Subscribe(h bus.Handler) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.closed {
		return bus.ErrClosed
	}
	if c.handler != nil {
		return bus.ErrAlreadySubscribed
	}
	c.handler = h

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(c.ctx)
	}()
	return nil
}

func (c *Client) consumeLoop(ctx context.Context) {
	attempt := 0
	for {
		ready, err := c.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if ready {
			attempt = 0
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.Warn("AMQP consumer stopped, reconnecting",
			log.FieldError, err,
			"retry_in", wait,
			"attempt", attempt)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// consume binds a fresh exclusive queue and dispatches deliveries until the
// channel closes or ctx ends. ready reports whether the queue was bound.
func (c *Client) consume(ctx context.Context) (ready bool, err error) {
	c.dialMu.Lock()
	conn, err := c.connection()
	c.dialMu.Unlock()
	if err != nil {
		return false, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return false, fmt.Errorf("open consume channel: %w", err)
	}
	defer ch.Close()

	if err := c.declare(ch); err != nil {
		return false, err
	}

	q, err := ch.QueueDeclare(
		"",    // name, generated by the broker
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return false, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", c.exchangeName, false, nil); err != nil {
		return false, fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return false, fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("Started consuming sync events", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return true, errors.New("delivery channel closed")
			}
			c.dispatch(ctx, delivery.AppId, delivery.Body)
		}
	}
}

// dispatch hands one delivery to the handler. It reports whether the handler ran.
func (c *Client) dispatch(ctx context.Context, appID string, body []byte) bool {
	if appID == c.instanceID {
		return false
	}

	e, err := bus.EventFromJSON(body)
	if err != nil {
		c.logger.WarnContext(ctx, "Dropping malformed sync event", log.FieldError, err)
		return false
	}

	if err := c.handler(ctx, e); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle sync event",
			log.FieldEventKind, e.Kind,
			log.FieldError, err)
	}
	return true
}

func (c *Client) Close() error {
	c.subMu.Lock()
	if c.closed {
		c.subMu.Unlock()
		return nil
	}
	c.closed = true
	c.subMu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.failMu.Lock()
	last := c.lastFailure
	c.failMu.Unlock()

	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()

	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen && c.logger != nil {
			c.logger.Warn("Circuit breaker opened", "failures", n)
		}
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff returns 1s, 2s, 4s, 8s, 16s, then maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
