package hsm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type codeEvent int

func (e codeEvent) Order() int                  { return int(e) }
func (e codeEvent) Equivalent(other Event) bool { return other.(codeEvent) == e }
func (e codeEvent) String() string              { return "code" }

func TestEventMatching(t *testing.T) {
	x := NewEvent("x", nil)

	assert.True(t, eventsMatch(nil, nil))
	assert.False(t, eventsMatch(nil, x))
	assert.False(t, eventsMatch(x, nil))
	assert.True(t, eventsMatch(x, NewEvent("x", 42)))
	assert.False(t, eventsMatch(x, NewEvent("y", nil)))

	assert.True(t, eventsMatch(AnyEvent, x))
	assert.True(t, eventsMatch(AnyEvent, codeEvent(3)))
	assert.False(t, eventsMatch(AnyEvent, nil))
	assert.False(t, eventsMatch(x, AnyEvent))

	assert.True(t, eventsMatch(codeEvent(1), codeEvent(1)))
	assert.False(t, eventsMatch(codeEvent(1), codeEvent(2)))
	assert.False(t, eventsMatch(codeEvent(1), x), "different types never match")
}

func TestSameEvent(t *testing.T) {
	assert.True(t, sameEvent(AnyEvent, AnyEvent))
	assert.False(t, sameEvent(AnyEvent, NewEvent("x", nil)))
	assert.True(t, sameEvent(nil, nil))
	assert.False(t, sameEvent(nil, AnyEvent))
}

func TestBaseEvent(t *testing.T) {
	ev := NewOrderedEvent("ordered", 7, "data")
	assert.Equal(t, "ordered", ev.Name())
	assert.Equal(t, "ordered", ev.String())
	assert.Equal(t, 7, ev.Order())
	assert.Equal(t, "data", ev.Data())
	assert.False(t, ev.Timestamp().IsZero())

	assert.Equal(t, 0, NewEvent("plain", nil).Order())
	assert.Equal(t, math.MaxInt, AnyEvent.Order())
	assert.True(t, IsAnyEvent(AnyEvent))
	assert.False(t, IsAnyEvent(ev))
	assert.Equal(t, "null", eventName(nil))
	assert.Equal(t, "*", eventName(AnyEvent))
}
