// Package bus defines the broadcast contract instances use to mirror each
// other's mutations, plus an in-process implementation.
package bus

import (
	"context"
	"errors"
)

var (
	ErrAlreadySubscribed = errors.New("bus: handler already subscribed")
	ErrClosed            = errors.New("bus: closed")
	ErrUnavailable       = errors.New("bus: transport unavailable")
)

// Handler receives events published by other instances.
type Handler func(ctx context.Context, e Event) error

// Bus delivers published events to every other live subscriber on the same
// channel, asynchronously and never back to the publisher. Delivery is
// best-effort: instances that are not running miss the event.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(h Handler) error
	Close() error
}

// Noop is the bus of an instance that runs alone.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Subscribe(Handler) error              { return nil }
func (Noop) Close() error                         { return nil }
