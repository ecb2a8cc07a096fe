package hsm

import "context"

// The builder declares the model through chained calls. Errors are sticky:
// a failing call records its error on the machine, the rest of that chain is
// skipped, and Initialize refuses to freeze a model with recorded errors.
// Every chain also exposes its own error through Err.

// record stores a declaration error and returns it
func (m *Machine[S]) record(err error) error {
	if err != nil {
		m.buildErrs = append(m.buildErrs, err)
	}
	return err
}

// SuperStateChain declares one superstate
type SuperStateChain[S State] struct {
	m    *Machine[S]
	node *superStateNode[S]
	err  error
}

// SuperState declares state as a superstate with the given memory policy.
// Superstates must be declared outmost first and before any In call.
func (m *Machine[S]) SuperState(state S, memory MemoryType) *SuperStateChain[S] {
	c := &SuperStateChain[S]{m: m}
	c.err = m.record(func() error {
		if err := m.ensureMutable(); err != nil {
			return err
		}
		if err := m.ensureKnown(state); err != nil {
			return err
		}
		if len(m.states) > 0 {
			return newModelErrorf(ErrCodeDeclarationOrder, state, "define the hierarchy before any state")
		}
		node, err := m.hierarchy.add(state, memory, m.defaults.Clone())
		if err != nil {
			return err
		}
		c.node = node
		return nil
	}())
	return c
}

func (c *SuperStateChain[S]) apply(fn func() error) *SuperStateChain[S] {
	if c.err != nil {
		return c
	}
	if err := c.m.ensureMutable(); err != nil {
		c.err = c.m.record(err)
		return c
	}
	c.err = c.m.record(fn())
	return c
}

// WithSubStates sets the initial substate and the other members
func (c *SuperStateChain[S]) WithSubStates(initial S, others ...S) *SuperStateChain[S] {
	return c.apply(func() error {
		for _, s := range append([]S{initial}, others...) {
			if err := c.m.ensureKnown(s); err != nil {
				return err
			}
		}
		return c.m.hierarchy.setSubStates(c.node, initial, others)
	})
}

// WhenException routes errors of category raised by transitions declared
// inside this superstate. A zero target means stay.
func (c *SuperStateChain[S]) WhenException(category Category, target S) *SuperStateChain[S] {
	return c.apply(func() error {
		if err := c.m.ensureKnownOrZero(target); err != nil {
			return err
		}
		c.node.exceptions.Set(category, target)
		return nil
	})
}

// InheritExceptionStates replaces the table with a copy of the enclosing
// superstate's table, or of the machine default table at the outmost level
func (c *SuperStateChain[S]) InheritExceptionStates() *SuperStateChain[S] {
	return c.apply(func() error {
		source := c.m.defaults
		if n := c.m.hierarchy.enclosing(c.node.super); n != nil {
			source = n.exceptions
		}
		c.node.exceptions = source.Clone()
		return nil
	})
}

// Err returns the first error of the chain
func (c *SuperStateChain[S]) Err() error {
	return c.err
}

// StateChain declares the hooks and transitions of one state
type StateChain[S State] struct {
	m    *Machine[S]
	info *stateInfo[S]
	err  error
}

// In declares state. Each state can be declared once.
func (m *Machine[S]) In(state S) *StateChain[S] {
	c := &StateChain[S]{m: m}
	c.err = m.record(func() error {
		if err := m.ensureMutable(); err != nil {
			return err
		}
		if err := m.ensureKnown(state); err != nil {
			return err
		}
		if _, dup := m.states[state]; dup {
			return newModelErrorf(ErrCodeDuplicateState, state, "duplicate definition of state")
		}
		c.info = &stateInfo[S]{state: state}
		m.states[state] = c.info
		return nil
	}())
	return c
}

func (c *StateChain[S]) apply(fn func() error) *StateChain[S] {
	if c.err != nil {
		return c
	}
	if err := c.m.ensureMutable(); err != nil {
		c.err = c.m.record(err)
		return c
	}
	c.err = c.m.record(fn())
	return c
}

func (c *StateChain[S]) setEntry(a action[*PathStep[S]]) *StateChain[S] {
	return c.apply(func() error {
		if c.info.entry.defined() {
			return newModelErrorf(ErrCodeDuplicateState, c.info.state, "entry action already defined")
		}
		c.info.entry = a
		return nil
	})
}

func (c *StateChain[S]) setExit(a action[*PathStep[S]]) *StateChain[S] {
	return c.apply(func() error {
		if c.info.exit.defined() {
			return newModelErrorf(ErrCodeDuplicateState, c.info.state, "exit action already defined")
		}
		c.info.exit = a
		return nil
	})
}

// Entry sets the entry action
func (c *StateChain[S]) Entry(fn func() error) *StateChain[S] {
	return c.setEntry(plainAction[*PathStep[S]](fn))
}

// EntryWith sets an entry action receiving the path step
func (c *StateChain[S]) EntryWith(fn func(*PathStep[S]) error) *StateChain[S] {
	return c.setEntry(statefulAction(fn))
}

// EntryCtx sets an entry action observing the machine's cancellation
func (c *StateChain[S]) EntryCtx(fn func(context.Context) error) *StateChain[S] {
	return c.setEntry(plainCtxAction[*PathStep[S]](fn))
}

// EntryCtxWith sets an entry action receiving both the context and the path step
func (c *StateChain[S]) EntryCtxWith(fn func(context.Context, *PathStep[S]) error) *StateChain[S] {
	return c.setEntry(statefulCtxAction(fn))
}

// Exit sets the exit action
func (c *StateChain[S]) Exit(fn func() error) *StateChain[S] {
	return c.setExit(plainAction[*PathStep[S]](fn))
}

// ExitWith sets an exit action receiving the path step
func (c *StateChain[S]) ExitWith(fn func(*PathStep[S]) error) *StateChain[S] {
	return c.setExit(statefulAction(fn))
}

// ExitCtx sets an exit action observing the machine's cancellation
func (c *StateChain[S]) ExitCtx(fn func(context.Context) error) *StateChain[S] {
	return c.setExit(plainCtxAction[*PathStep[S]](fn))
}

// ExitCtxWith sets an exit action receiving both the context and the path step
func (c *StateChain[S]) ExitCtxWith(fn func(context.Context, *PathStep[S]) error) *StateChain[S] {
	return c.setExit(statefulCtxAction(fn))
}

// On starts a transition triggered by ev. A nil ev declares a null transition.
func (c *StateChain[S]) On(ev Event) *EventChain[S] {
	if c.err != nil {
		return &EventChain[S]{m: c.m, err: c.err}
	}
	return c.m.newEventChain(c.info.state, ev)
}

// Immediately starts a null transition
func (c *StateChain[S]) Immediately() *EventChain[S] {
	return c.On(nil)
}

// Err returns the first error of the chain
func (c *StateChain[S]) Err() error {
	return c.err
}

// EventChain declares the trigger and guard of a transition
type EventChain[S State] struct {
	m   *Machine[S]
	t   *transitionInfo[S]
	err error
}

// newEventChain seeds the transition's exception table from the superstate enclosing from
func (m *Machine[S]) newEventChain(from S, ev Event) *EventChain[S] {
	source := m.defaults
	if n := m.hierarchy.enclosing(from); n != nil {
		source = n.exceptions
	}
	return &EventChain[S]{
		m: m,
		t: &transitionInfo[S]{
			from:       from,
			on:         ev,
			exceptions: source.Clone(),
		},
	}
}

func (c *EventChain[S]) setGuard(g guard[S]) *EventChain[S] {
	if c.err != nil {
		return c
	}
	if c.t.guard.defined() {
		c.err = c.m.record(newModelErrorf(ErrCodeTransitionConflict, c.t.from, "guard already defined for %s", c.t))
		return c
	}
	c.t.guard = g
	return c
}

// If guards the transition with a predicate
func (c *EventChain[S]) If(fn func() bool) *EventChain[S] {
	return c.setGuard(guard[S]{kind: actionPlain, plain: fn})
}

// IfWith guards the transition with a predicate over the transition
func (c *EventChain[S]) IfWith(fn func(Transition[S]) bool) *EventChain[S] {
	return c.setGuard(guard[S]{kind: actionStateful, stateful: fn})
}

// IfCtx guards the transition with a predicate that may block or fail
func (c *EventChain[S]) IfCtx(fn func(context.Context) (bool, error)) *EventChain[S] {
	return c.setGuard(guard[S]{kind: actionPlainCtx, plainCtx: fn})
}

// IfCtxWith guards the transition with a predicate over the transition that may block or fail
func (c *EventChain[S]) IfCtxWith(fn func(context.Context, Transition[S]) (bool, error)) *EventChain[S] {
	return c.setGuard(guard[S]{kind: actionStatefulCtx, statefulCtx: fn})
}

// Goto completes the declaration with its target and registers the transition
func (c *EventChain[S]) Goto(target S) *TransitionChain[S] {
	tc := &TransitionChain[S]{m: c.m, t: c.t, err: c.err}
	if tc.err != nil {
		return tc
	}
	tc.err = c.m.record(func() error {
		if err := c.m.ensureMutable(); err != nil {
			return err
		}
		if err := c.m.ensureKnownOrZero(target); err != nil {
			return err
		}
		c.t.to = target
		if err := c.m.ensureNoConflicts(c.t); err != nil {
			return err
		}
		if err := c.m.ensureSensibleNullTransition(c.t); err != nil {
			return err
		}
		c.m.transitions = append(c.m.transitions, c.t)
		return nil
	}())
	return tc
}

// Internal registers a transition that runs its action without leaving the state
func (c *EventChain[S]) Internal() *TransitionChain[S] {
	var zero S
	return c.Goto(zero)
}

// Err returns the first error of the chain
func (c *EventChain[S]) Err() error {
	return c.err
}

// TransitionChain declares the action and exception routes of a registered transition
type TransitionChain[S State] struct {
	m   *Machine[S]
	t   *transitionInfo[S]
	err error
}

func (c *TransitionChain[S]) apply(fn func() error) *TransitionChain[S] {
	if c.err != nil {
		return c
	}
	if err := c.m.ensureMutable(); err != nil {
		c.err = c.m.record(err)
		return c
	}
	c.err = c.m.record(fn())
	return c
}

func (c *TransitionChain[S]) setExecute(a action[Transition[S]]) *TransitionChain[S] {
	return c.apply(func() error {
		if c.t.execute.defined() {
			return newModelErrorf(ErrCodeTransitionConflict, c.t.from, "execute action already defined for %s", c.t)
		}
		c.t.execute = a
		return nil
	})
}

// Execute sets the transition action
func (c *TransitionChain[S]) Execute(fn func() error) *TransitionChain[S] {
	return c.setExecute(plainAction[Transition[S]](fn))
}

// ExecuteWith sets a transition action receiving the transition
func (c *TransitionChain[S]) ExecuteWith(fn func(Transition[S]) error) *TransitionChain[S] {
	return c.setExecute(statefulAction(fn))
}

// ExecuteCtx sets a transition action observing the machine's cancellation
func (c *TransitionChain[S]) ExecuteCtx(fn func(context.Context) error) *TransitionChain[S] {
	return c.setExecute(plainCtxAction[Transition[S]](fn))
}

// ExecuteCtxWith sets a transition action receiving both the context and the transition
func (c *TransitionChain[S]) ExecuteCtxWith(fn func(context.Context, Transition[S]) error) *TransitionChain[S] {
	return c.setExecute(statefulCtxAction(fn))
}

// WhenException overrides the route of category for this transition. A zero target means stay.
func (c *TransitionChain[S]) WhenException(category Category, target S) *TransitionChain[S] {
	return c.apply(func() error {
		if err := c.m.ensureKnownOrZero(target); err != nil {
			return err
		}
		table := c.t.exceptions.Clone()
		table.Set(category, target)

		candidate := *c.t
		candidate.exceptions = table
		if err := c.m.ensureSensibleNullTransition(&candidate); err != nil {
			return err
		}
		c.t.exceptions = table
		return nil
	})
}

// On declares another transition from the same state
func (c *TransitionChain[S]) On(ev Event) *EventChain[S] {
	if c.err != nil {
		return &EventChain[S]{m: c.m, err: c.err}
	}
	return c.m.newEventChain(c.t.from, ev)
}

// Immediately declares a null transition from the same state
func (c *TransitionChain[S]) Immediately() *EventChain[S] {
	return c.On(nil)
}

// Err returns the first error of the chain
func (c *TransitionChain[S]) Err() error {
	return c.err
}
