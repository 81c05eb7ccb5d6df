package bus

import (
	"encoding/json"
	"errors"
	"fmt"

	"expensetracker/internal/core"
)

// EventKind names the mutation carried by an Event. The values are the
// message types tabs of the tracker have always exchanged.
type EventKind string

const (
	EventAdd           EventKind = "add"
	EventDelete        EventKind = "delete"
	EventProfileUpdate EventKind = "updateUserInfo"
)

// Event is one mutation broadcast to the other instances. Exactly one payload
// field is set, depending on Kind.
type Event struct {
	Kind    EventKind         `json:"type"`
	Expense *core.Expense     `json:"expense,omitempty"`
	ID      string            `json:"id,omitempty"`
	Profile *core.UserProfile `json:"userInfo,omitempty"`
}

var ErrInvalidEvent = errors.New("invalid event")

func AddEvent(e core.Expense) Event {
	return Event{Kind: EventAdd, Expense: &e}
}

func DeleteEvent(id string) Event {
	return Event{Kind: EventDelete, ID: id}
}

func ProfileEvent(p core.UserProfile) Event {
	return Event{Kind: EventProfileUpdate, Profile: &p}
}

// Validate checks that the payload required by Kind is present.
func (e Event) Validate() error {
	switch e.Kind {
	case EventAdd:
		if e.Expense == nil {
			return fmt.Errorf("%w: add without expense", ErrInvalidEvent)
		}
	case EventDelete:
		if e.ID == "" {
			return fmt.Errorf("%w: delete without id", ErrInvalidEvent)
		}
	case EventProfileUpdate:
		if e.Profile == nil {
			return fmt.Errorf("%w: updateUserInfo without userInfo", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// ToJSON converts the event to its wire form
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and validates a wire message
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
