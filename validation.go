package hsm

import "fmt"

func (m *Machine[S]) ensureNotDisposed() error {
	if m.disposed {
		return NewMachineError(ErrCodeDisposed, m.name, "machine is disposed")
	}
	return nil
}

func (m *Machine[S]) ensureInitialized(yes bool) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.ensureNotDisposed(); err != nil {
		return err
	}
	if yes && m.status < StatusInitialized {
		return NewMachineError(ErrCodeNotInitialized, m.name, "machine is not yet initialized")
	}
	if !yes && m.status >= StatusInitialized {
		return NewMachineError(ErrCodeAlreadyInitialized, m.name, "machine is already initialized")
	}
	return nil
}

func (m *Machine[S]) ensureStarted(yes bool) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.ensureNotDisposed(); err != nil {
		return err
	}
	if yes && m.status < StatusStarted {
		return NewMachineError(ErrCodeNotStarted, m.name, "machine is not yet started")
	}
	if !yes && m.status >= StatusStarted {
		return NewMachineError(ErrCodeAlreadyStarted, m.name, "machine is already started")
	}
	return nil
}

// ensureMutable guards every model mutation
func (m *Machine[S]) ensureMutable() error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.ensureNotDisposed(); err != nil {
		return err
	}
	if m.status >= StatusInitialized {
		return NewModelError(ErrCodeModelFrozen, "", "model cannot be changed once the machine is initialized")
	}
	return nil
}

func (m *Machine[S]) ensureKnown(state S) error {
	var zero S
	if state == zero {
		return NewModelError(ErrCodeInvalidState, "", "the zero state is reserved as no state")
	}
	if _, ok := m.known[state]; !ok {
		return NewModelError(ErrCodeInvalidState, fmt.Sprint(state), "state is not part of the enumeration")
	}
	return nil
}

func (m *Machine[S]) ensureKnownOrZero(state S) error {
	var zero S
	if state == zero {
		return nil
	}
	return m.ensureKnown(state)
}

// ensureNoConflicts rejects a transition overlapping the declared ones
func (m *Machine[S]) ensureNoConflicts(t *transitionInfo[S]) error {
	guarded := t.guard.defined()
	for _, x := range m.transitions {
		if x.from != t.from {
			continue
		}
		if t.on == nil && !guarded {
			return newModelErrorf(ErrCodeTransitionConflict, t.from,
				"cannot add unguarded null transition, there is already a transition from this state")
		}
		if x.on == nil && !x.guard.defined() {
			return newModelErrorf(ErrCodeTransitionConflict, t.from,
				"cannot add any other transition, there is already an unguarded null transition from this state")
		}
		if sameEvent(x.on, t.on) && !x.guard.defined() {
			return newModelErrorf(ErrCodeTransitionConflict, t.from,
				"cannot add transition on '%s', there is already an unguarded transition on the same event", eventName(t.on))
		}
		if sameEvent(x.on, t.on) && !guarded {
			return newModelErrorf(ErrCodeTransitionConflict, t.from,
				"cannot add unguarded transition on '%s', there is already a transition on the same event", eventName(t.on))
		}
	}
	return nil
}

// ensureSensibleNullTransition rejects null transition shapes that cannot settle
func (m *Machine[S]) ensureSensibleNullTransition(t *transitionInfo[S]) error {
	if t.on != nil {
		return nil
	}
	var zero S
	if m.hierarchy.isSuper(t.from) {
		return newModelErrorf(ErrCodeInvalidNullTransition, t.from, "superstates cannot be source of null transitions: %s", t)
	}
	if t.from == t.to && t.exceptions.HasTarget(t.to) {
		return newModelErrorf(ErrCodeInvalidNullTransition, t.from, "null transition where from, to and exception states are the same: %s", t)
	}
	if t.from == t.to || t.to == zero || t.exceptions.HasTarget(t.from) {
		return newModelErrorf(ErrCodeInvalidNullTransition, t.from, "null transition cannot lead to its starting state: %s", t)
	}
	return nil
}

// validateModel runs the checks that need the complete model
func (m *Machine[S]) validateModel() error {
	var zero S
	for _, n := range m.hierarchy.nodes {
		if !n.synthetic && n.initial == zero {
			return newModelErrorf(ErrCodeHierarchyConflict, n.super, "superstate has no substates")
		}
	}
	for _, t := range m.transitions {
		if t.on == nil && t.exceptions.HasTarget(zero) {
			return newModelErrorf(ErrCodeInvalidNullTransition, t.from, "null transitions cannot stay on exception: %s", t)
		}
	}
	return nil
}
