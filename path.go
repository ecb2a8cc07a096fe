package hsm

// ancestors returns state followed by its enclosing superstates, ending with the zero sentinel
func (h *hierarchy[S]) ancestors(state S) []S {
	var zero S
	if state == zero {
		return []S{zero}
	}

	chain := []S{state}
	for {
		n := h.enclosing(state)
		if n == nil || n.synthetic {
			break
		}
		state = n.super
		chain = append(chain, state)
	}
	return append(chain, zero)
}

// touchedStates computes the exit and entry paths between two states
func (h *hierarchy[S]) touchedStates(from, to S) TouchedStates[S] {
	var zero S
	result := TouchedStates[S]{CommonAncestor: h.parent(from)}

	if to == zero {
		return result
	}

	if to == from {
		result.Exits = []S{from}
		result.Entries = h.resolveLeaf([]S{to}, to)
		return result
	}

	exits := h.ancestors(from)
	entries := h.ancestors(to)

	for len(exits) > 0 && len(entries) > 0 && exits[len(exits)-1] == entries[len(entries)-1] {
		result.CommonAncestor = exits[len(exits)-1]
		exits = exits[:len(exits)-1]
		entries = entries[:len(entries)-1]
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	// the sentinel is never left
	if len(exits) > 0 && exits[len(exits)-1] == zero {
		exits = exits[:len(exits)-1]
	}

	result.Exits = exits
	result.Entries = h.resolveLeaf(entries, to)
	return result
}

// resolveLeaf appends substates while target is a superstate, honouring its memory policy
func (h *hierarchy[S]) resolveLeaf(entries []S, target S) []S {
	var zero S
	for {
		n := h.node(target)
		if n == nil || n.initial == zero {
			return entries
		}
		target = n.initial
		if remembered := h.remembered(n); n.memory == MemoryDeep && remembered != zero {
			target = remembered
		}
		entries = append(entries, target)
	}
}

// memorize records child as the last visited substate when leaving super
func (h *hierarchy[S]) memorize(super, child S) {
	if n := h.node(super); n != nil {
		h.history.Lock()
		n.memorized = child
		h.history.Unlock()
	}
}

func (h *hierarchy[S]) remembered(n *superStateNode[S]) S {
	h.history.RLock()
	defer h.history.RUnlock()
	return n.memorized
}
