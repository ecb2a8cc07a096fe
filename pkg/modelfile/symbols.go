package modelfile

import (
	"fmt"
	"sync"

	"github.com/anggasct/hsm"
)

// State is a state name interned as an integer. The same name always maps
// to the same State within a process. The zero State is "none".
type State int

type symbolTable struct {
	mutex sync.RWMutex
	names []string
	index map[string]State
}

var symbols = &symbolTable{index: make(map[string]State)}

func (t *symbolTable) intern(name string) State {
	t.mutex.RLock()
	s, ok := t.index[name]
	t.mutex.RUnlock()
	if ok {
		return s
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	if s, ok := t.index[name]; ok {
		return s
	}
	t.names = append(t.names, name)
	s = State(len(t.names))
	t.index[name] = s
	return s
}

func (t *symbolTable) name(s State) (string, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if s <= 0 || int(s) > len(t.names) {
		return "", false
	}
	return t.names[s-1], true
}

func (s State) String() string {
	if s == 0 {
		return "none"
	}
	if name, ok := symbols.name(s); ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event is a named event. Priority orders transitions declared for
// different events in the same state.
type Event struct {
	Name     string
	Priority int
}

// Order implements hsm.Event
func (e Event) Order() int { return e.Priority }

// Equivalent implements hsm.Event. Events are equal by name.
func (e Event) Equivalent(other hsm.Event) bool {
	return other.(Event).Name == e.Name
}

func (e Event) String() string { return e.Name }
