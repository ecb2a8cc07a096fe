package hsm

import "go.uber.org/zap"

// performFire tries the candidates for ev in order and takes the first one
// whose guard passes. It reports whether a transition was taken.
func (m *Machine[S]) performFire(c *cycle, ev Event) bool {
	for _, t := range m.bestTransitions(m.current, ev) {
		result := m.evaluateGuard(c, t, ev)

		m.observers.NotifyStep(&GuardEvaluated[S]{
			StepHeader:  m.header(c),
			Target:      t.from,
			GuardTarget: t.to,
			On:          ev,
			Result:      result,
		})

		if result {
			next := m.execute(c, t, ev, SuppressNone)
			m.setCurrent(next)

			m.observers.NotifyStep(&StationaryReached[S]{
				StepHeader: m.header(c),
				Target:     next,
				On:         ev,
			})
			return true
		}
	}
	return false
}

// fireNull repeats null transitions until none applies. Taking one more
// than the step limit is an error.
func (m *Machine[S]) fireNull(c *cycle) error {
	for i := 0; i <= m.stepLimit; i++ {
		if !m.performFire(c, nil) {
			return nil
		}
	}
	m.logger.Warn("null transition step limit reached", zap.Int("limit", m.stepLimit), zap.Stringer("cycle", c.id))
	return NewStepLimitError(m.name, m.stepLimit)
}

// evaluateGuard runs the guard; a failing guard counts as rejected
func (m *Machine[S]) evaluateGuard(c *cycle, t *transitionInfo[S], ev Event) bool {
	if !t.guard.defined() {
		return true
	}
	ok, err := t.guard.evaluate(c.ctx, t.view(ev))
	if err != nil {
		m.raise(ExceptionEvent[S]{
			StepHeader: m.header(c),
			State:      m.current,
			Source:     SourceGuard,
			Transition: t.view(ev),
			Err:        err,
		})
		return false
	}
	return ok
}

// execute runs one accepted transition and returns the resulting leaf state
func (m *Machine[S]) execute(c *cycle, t *transitionInfo[S], ev Event, suppress Suppress) S {
	var zero S
	tr := t.view(ev)
	path := m.hierarchy.touchedStates(t.from, t.to)

	if !suppress.Has(SuppressExit) && t.to != zero {
		// declared on a superstate: leave the current leaf up to it first
		if t.from != m.current {
			prefix := m.hierarchy.touchedStates(m.current, t.from).Exits
			path.Exits = append(prefix, path.Exits...)
		}
		m.runExitPath(c, tr, path.Exits, nil)
	}

	target, stay := t.to, t.to == zero

	var err error
	if t.execute.defined() {
		err = t.execute.run(c.ctx, tr)
	}
	if err != nil {
		m.raise(ExceptionEvent[S]{
			StepHeader: m.header(c),
			State:      m.current,
			Source:     SourceTransition,
			Transition: tr,
			Err:        err,
		})

		rule, found := t.exceptions.Lookup(err)
		if found && rule.Target != zero {
			target, stay = rule.Target, false
		} else {
			stay = true
		}
	}

	m.observers.NotifyStep(&ActionExecuted[S]{
		StepHeader: m.header(c),
		Target:     m.current,
		HeadingTo:  t.to,
		On:         ev,
		Err:        err,
	})

	// states already left stay left
	if stay {
		return m.current
	}

	if err != nil {
		tr.To = target
		path = m.hierarchy.touchedStates(path.CommonAncestor, target)
		if !suppress.Has(SuppressExit) {
			m.runExitPath(c, tr, path.Exits, err)
		}
	}

	if !suppress.Has(SuppressEntry) {
		for _, s := range path.Entries {
			m.enterState(c, tr, s, err)
		}
	}

	if len(path.Entries) == 0 {
		return target
	}
	return path.Entries[len(path.Entries)-1]
}

// runExitPath leaves states innermost first, memorizing the substate each superstate is left from
func (m *Machine[S]) runExitPath(c *cycle, tr Transition[S], exits []S, whenErr error) {
	for i, s := range exits {
		m.exitState(c, tr, s, whenErr)
		if i > 0 && m.hierarchy.isSuper(s) {
			m.hierarchy.memorize(s, exits[i-1])
		}
	}
}

func (m *Machine[S]) exitState(c *cycle, tr Transition[S], state S, whenErr error) {
	step := &PathStep[S]{
		StepHeader:    m.header(c),
		Transition:    tr,
		Target:        state,
		WhenException: whenErr,
	}
	m.observers.NotifyStep(step)

	info, ok := m.states[state]
	if !ok || !info.exit.defined() {
		return
	}
	if err := info.exit.run(c.ctx, step); err != nil {
		m.raise(ExceptionEvent[S]{
			StepHeader: m.header(c),
			State:      state,
			Source:     SourceExit,
			Transition: tr,
			Err:        err,
		})
	}
}

func (m *Machine[S]) enterState(c *cycle, tr Transition[S], state S, whenErr error) {
	step := &PathStep[S]{
		StepHeader:    m.header(c),
		Transition:    tr,
		Target:        state,
		IsEntry:       true,
		WhenException: whenErr,
	}
	m.observers.NotifyStep(step)

	info, ok := m.states[state]
	if !ok || !info.entry.defined() {
		return
	}
	if err := info.entry.run(c.ctx, step); err != nil {
		m.raise(ExceptionEvent[S]{
			StepHeader: m.header(c),
			State:      state,
			Source:     SourceEntry,
			Transition: tr,
			Err:        err,
		})
	}
}
