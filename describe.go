package hsm

// RuleDescription is an exception route of a Description
type RuleDescription[S State] struct {
	Category string
	// Target is zero for "stay"
	Target S
}

// SuperStateDescription describes one level of the hierarchy
type SuperStateDescription[S State] struct {
	State      S
	Parent     S
	Memory     MemoryType
	Initial    S
	SubStates  []S
	Exceptions []RuleDescription[S]
}

// TransitionDescription describes a declared transition
type TransitionDescription[S State] struct {
	From S
	// Event is empty for null transitions
	Event     string
	Wildcard  bool
	Guarded   bool
	To        S
	HasAction bool
	// Exceptions are the routes in lookup order
	Exceptions []RuleDescription[S]
}

// IsNull reports whether the transition fires without an event
func (t TransitionDescription[S]) IsNull() bool {
	return t.Event == ""
}

// IsInternal reports whether the transition changes no state
func (t TransitionDescription[S]) IsInternal() bool {
	var zero S
	return t.To == zero
}

// Description is a snapshot of the declared model
type Description[S State] struct {
	Name        string
	States      []S
	SuperStates []SuperStateDescription[S]
	Transitions []TransitionDescription[S]
	Defaults    []RuleDescription[S]
	// Initial is zero until the machine is initialized
	Initial S
	// EntryHooks and ExitHooks list the states with the respective hook
	EntryHooks []S
	ExitHooks  []S
}

// SuperState returns the description of state if it is a superstate
func (d Description[S]) SuperState(state S) (SuperStateDescription[S], bool) {
	for _, s := range d.SuperStates {
		if s.State == state {
			return s, true
		}
	}
	return SuperStateDescription[S]{}, false
}

// Parent returns the enclosing superstate of state, zero at the outmost level
func (d Description[S]) Parent(state S) S {
	var zero S
	for _, s := range d.SuperStates {
		for _, sub := range s.SubStates {
			if sub == state {
				return s.State
			}
		}
	}
	return zero
}

func describeRules[S State](t *ExceptionTable[S]) []RuleDescription[S] {
	rules := t.Rules()
	if len(rules) == 0 {
		return nil
	}
	out := make([]RuleDescription[S], len(rules))
	for i, r := range rules {
		out[i] = RuleDescription[S]{Category: r.Category.String(), Target: r.Target}
	}
	return out
}

// Describe returns a snapshot of the model in declaration order
func (m *Machine[S]) Describe() Description[S] {
	m.mutex.RLock()
	initial := m.initial
	m.mutex.RUnlock()

	d := Description[S]{
		Name:     m.name,
		States:   m.States(),
		Defaults: describeRules(m.defaults),
		Initial:  initial,
	}

	for _, n := range m.hierarchy.nodes {
		if n.synthetic {
			continue
		}
		d.SuperStates = append(d.SuperStates, SuperStateDescription[S]{
			State:      n.super,
			Parent:     m.hierarchy.parent(n.super),
			Memory:     n.memory,
			Initial:    n.initial,
			SubStates:  append([]S(nil), n.substates...),
			Exceptions: describeRules(n.exceptions),
		})
	}

	for _, t := range m.transitions {
		td := TransitionDescription[S]{
			From:       t.from,
			Wildcard:   t.on != nil && IsAnyEvent(t.on),
			Guarded:    t.guard.defined(),
			To:         t.to,
			HasAction:  t.execute.defined(),
			Exceptions: describeRules(t.exceptions),
		}
		if t.on != nil {
			td.Event = t.on.String()
		}
		d.Transitions = append(d.Transitions, td)
	}

	for _, s := range m.enumeration {
		info, ok := m.states[s]
		if !ok {
			continue
		}
		if info.entry.defined() {
			d.EntryHooks = append(d.EntryHooks, s)
		}
		if info.exit.defined() {
			d.ExitHooks = append(d.ExitHooks, s)
		}
	}
	return d
}
