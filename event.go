package hsm

import (
	"math"
	"reflect"
	"time"
)

// Event represents a trigger for transitions in the state machine.
// A nil Event is the internal epsilon event driving null transitions.
type Event interface {
	// Order is the evaluation priority, lower orders are tried first
	Order() int
	// Equivalent is only called for two events of the same dynamic type
	Equivalent(other Event) bool
	String() string
}

type anyEvent struct{}

func (anyEvent) Order() int               { return math.MaxInt }
func (anyEvent) Equivalent(Event) bool    { return true }
func (anyEvent) String() string           { return "*" }
func (anyEvent) matches(fired Event) bool { return fired != nil }

// AnyEvent matches every non-nil event. It has the maximum order so it is
// always evaluated last and acts as an "else" branch.
var AnyEvent Event = anyEvent{}

// IsAnyEvent reports whether ev is the wildcard event
func IsAnyEvent(ev Event) bool {
	_, ok := ev.(anyEvent)
	return ok
}

// eventsMatch reports whether a transition declared on declared handles the fired event
func eventsMatch(declared, fired Event) bool {
	if declared == nil || fired == nil {
		return declared == nil && fired == nil
	}
	if w, ok := declared.(anyEvent); ok {
		return w.matches(fired)
	}
	return sameEvent(declared, fired)
}

// sameEvent is strict equality: the wildcard only equals itself
func sameEvent(a, b Event) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return a.Equivalent(b)
}

func eventName(ev Event) string {
	if ev == nil {
		return "null"
	}
	return ev.String()
}

// BaseEvent provides a named implementation of the Event interface
type BaseEvent struct {
	name      string
	order     int
	data      any
	timestamp time.Time
}

// NewEvent creates a new named event with order zero
func NewEvent(name string, data any) *BaseEvent {
	return NewOrderedEvent(name, 0, data)
}

// NewOrderedEvent creates a new named event with the given evaluation order
func NewOrderedEvent(name string, order int, data any) *BaseEvent {
	return &BaseEvent{
		name:      name,
		order:     order,
		data:      data,
		timestamp: time.Now(),
	}
}

// Name returns the event name
func (e *BaseEvent) Name() string {
	return e.name
}

// Data returns the event payload
func (e *BaseEvent) Data() any {
	return e.data
}

// Timestamp returns the creation time of the event
func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

// Order implements Event
func (e *BaseEvent) Order() int {
	return e.order
}

// Equivalent reports whether both events carry the same name
func (e *BaseEvent) Equivalent(other Event) bool {
	o, ok := other.(*BaseEvent)
	return ok && o.name == e.name
}

func (e *BaseEvent) String() string {
	return e.name
}
