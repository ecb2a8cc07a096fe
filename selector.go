package hsm

import "sort"

// bestTransitions finds the candidates for ev: transitions declared on the
// current state first, otherwise on the closest ancestor having any.
// Candidates are ordered by event order, keeping declaration order for ties.
func (m *Machine[S]) bestTransitions(current S, ev Event) []*transitionInfo[S] {
	var zero S
	for state := current; ; {
		if matches := m.transitionsFrom(state, ev); len(matches) > 0 {
			sort.SliceStable(matches, func(i, j int) bool {
				return eventOrder(matches[i].on) < eventOrder(matches[j].on)
			})
			return matches
		}
		if state == zero {
			return nil
		}
		state = m.hierarchy.parent(state)
		if state == zero {
			return nil
		}
	}
}

func (m *Machine[S]) transitionsFrom(state S, ev Event) []*transitionInfo[S] {
	var matches []*transitionInfo[S]
	for _, t := range m.transitions {
		if t.from == state && eventsMatch(t.on, ev) {
			matches = append(matches, t)
		}
	}
	return matches
}

func eventOrder(ev Event) int {
	if ev == nil {
		return 0
	}
	return ev.Order()
}
