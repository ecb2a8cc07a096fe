package hsm

import (
	"fmt"
	"sync"
)

// State is the constraint for state identifiers. States form a closed
// enumeration whose zero value is reserved as the "no state" sentinel.
type State interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// MemoryType is the history policy of a superstate
type MemoryType int

const (
	// MemoryNone always enters the initial substate
	MemoryNone MemoryType = iota
	// MemoryDeep enters the substate last left, or the initial one if never left
	MemoryDeep
)

func (m MemoryType) String() string {
	switch m {
	case MemoryNone:
		return "none"
	case MemoryDeep:
		return "deep"
	default:
		return fmt.Sprintf("MemoryType(%d)", int(m))
	}
}

// stateInfo holds the hooks of a declared state
type stateInfo[S State] struct {
	state S
	entry action[*PathStep[S]]
	exit  action[*PathStep[S]]
}

// superStateNode is one level of the hierarchy
type superStateNode[S State] struct {
	super      S
	memory     MemoryType
	initial    S
	substates  []S
	exceptions *ExceptionTable[S]
	memorized  S // guarded by hierarchy.history
	synthetic  bool
}

func (n *superStateNode[S]) hasSubState(state S) bool {
	for _, s := range n.substates {
		if s == state {
			return true
		}
	}
	return false
}

// hierarchy is an arena of superstate nodes. Parents are found through
// the owner index (child -> node holding it), never through pointers.
type hierarchy[S State] struct {
	nodes   []*superStateNode[S]
	bySuper map[S]int
	owner   map[S]int
	root    int

	// history guards the memorized substate of every node
	history sync.RWMutex
}

func newHierarchy[S State]() *hierarchy[S] {
	return &hierarchy[S]{
		bySuper: make(map[S]int),
		owner:   make(map[S]int),
		root:    -1,
	}
}

func (h *hierarchy[S]) len() int {
	return len(h.bySuper)
}

func (h *hierarchy[S]) isSuper(state S) bool {
	_, ok := h.bySuper[state]
	return ok
}

func (h *hierarchy[S]) node(super S) *superStateNode[S] {
	if i, ok := h.bySuper[super]; ok {
		return h.nodes[i]
	}
	return nil
}

// enclosing returns the node holding state as a substate
func (h *hierarchy[S]) enclosing(state S) *superStateNode[S] {
	if i, ok := h.owner[state]; ok {
		return h.nodes[i]
	}
	return nil
}

// parent returns the enclosing superstate of state, or the zero sentinel at the outmost level
func (h *hierarchy[S]) parent(state S) S {
	var zero S
	n := h.enclosing(state)
	if n == nil || n.synthetic {
		return zero
	}
	return n.super
}

func (h *hierarchy[S]) isSubState(state S) bool {
	i, ok := h.owner[state]
	return ok && !h.nodes[i].synthetic
}

func (h *hierarchy[S]) add(super S, memory MemoryType, exceptions *ExceptionTable[S]) (*superStateNode[S], error) {
	if h.isSuper(super) {
		return nil, newModelErrorf(ErrCodeHierarchyConflict, super, "state is already a superstate")
	}
	n := &superStateNode[S]{
		super:      super,
		memory:     memory,
		exceptions: exceptions,
	}
	h.nodes = append(h.nodes, n)
	h.bySuper[super] = len(h.nodes) - 1
	return n, nil
}

func (h *hierarchy[S]) setSubStates(n *superStateNode[S], initial S, others []S) error {
	var zero S
	if n.initial != zero {
		return newModelErrorf(ErrCodeHierarchyConflict, n.super, "substates are already declared")
	}
	members := append([]S{initial}, others...)
	seen := make(map[S]struct{}, len(members))
	for _, s := range members {
		if s == zero {
			return newModelErrorf(ErrCodeInvalidState, n.super, "the zero state cannot be a substate")
		}
		if s == n.super {
			return newModelErrorf(ErrCodeHierarchyConflict, s, "superstate cannot contain itself")
		}
		if h.isSuper(s) {
			return newModelErrorf(ErrCodeDeclarationOrder, s, "state is already defined as superstate, define outmost superstates first")
		}
		if _, dup := seen[s]; dup {
			return newModelErrorf(ErrCodeHierarchyConflict, s, "state is listed twice in superstate '%v'", n.super)
		}
		if h.isSubState(s) {
			return newModelErrorf(ErrCodeHierarchyConflict, s, "state is already substate in a hierarchy")
		}
		seen[s] = struct{}{}
	}

	idx := h.bySuper[n.super]
	n.initial = initial
	n.substates = members
	for _, s := range members {
		h.owner[s] = idx
	}
	return nil
}

// freeze synthesizes the implicit outmost root holding every unclaimed state
func (h *hierarchy[S]) freeze(states []S, exceptions *ExceptionTable[S]) {
	h.unfreeze()

	root := &superStateNode[S]{
		exceptions: exceptions,
		synthetic:  true,
	}
	for _, s := range states {
		if _, claimed := h.owner[s]; !claimed {
			root.substates = append(root.substates, s)
		}
	}
	if len(root.substates) == 0 {
		return
	}

	h.nodes = append(h.nodes, root)
	h.root = len(h.nodes) - 1
	for _, s := range root.substates {
		h.owner[s] = h.root
	}
}

func (h *hierarchy[S]) unfreeze() {
	if h.root < 0 {
		return
	}
	for s, i := range h.owner {
		if i == h.root {
			delete(h.owner, s)
		}
	}
	h.nodes = h.nodes[:h.root]
	h.root = -1
}

func (h *hierarchy[S]) reset() {
	h.nodes = nil
	h.bySuper = make(map[S]int)
	h.owner = make(map[S]int)
	h.root = -1
}
