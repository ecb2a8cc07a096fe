package observers

import (
	"fmt"
	"sync"

	"github.com/anggasct/hsm"
)

// ValidationObserver checks a running machine against expected states and
// allowed transitions. Every caught error counts as a violation.
type ValidationObserver[S hsm.State] struct {
	mutex              sync.RWMutex
	expectedStates     map[S]bool
	visitedStates      map[S]bool
	allowedTransitions map[S]map[S]bool
	violations         []string
	from               S
}

// NewValidationObserver creates a new validation observer
func NewValidationObserver[S hsm.State]() *ValidationObserver[S] {
	return &ValidationObserver[S]{
		expectedStates:     make(map[S]bool),
		visitedStates:      make(map[S]bool),
		allowedTransitions: make(map[S]map[S]bool),
		violations:         make([]string, 0),
	}
}

// AddExpectedState adds a state that should be entered at least once
func (o *ValidationObserver[S]) AddExpectedState(state S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[state] = true
}

// AddAllowedTransition allows settling in leaf to after firing in leaf from.
// Once a state has any allowed transition, settling anywhere else is a violation.
func (o *ValidationObserver[S]) AddAllowedTransition(from, to S) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[S]bool)
	}
	o.allowedTransitions[from][to] = true
}

// OnStep tracks visited states and checks settled transitions
func (o *ValidationObserver[S]) OnStep(step hsm.Step[S]) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	switch s := step.(type) {
	case *hsm.PathStep[S]:
		if s.IsEntry {
			o.visitedStates[s.Target] = true
		}
	case *hsm.ActionExecuted[S]:
		o.from = s.Target
	case *hsm.StationaryReached[S]:
		if s.Target == o.from {
			return
		}
		if allowed, exists := o.allowedTransitions[o.from]; exists && !allowed[s.Target] {
			o.violations = append(o.violations, fmt.Sprintf(
				"Invalid transition from '%v' to '%v' on event '%s'",
				o.from, s.Target, eventName(s.On)))
		}
	}
}

// OnException records a violation
func (o *ValidationObserver[S]) OnException(ex hsm.ExceptionEvent[S]) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, fmt.Sprintf("Error occurred in %s of '%v': %v", ex.Source, ex.State, ex.Err))
}

// GetViolations returns all validation violations
func (o *ValidationObserver[S]) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedStates returns states that were expected but not entered
func (o *ValidationObserver[S]) GetUnvisitedStates() []S {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []S
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}
	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver[S]) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset resets the validation state
func (o *ValidationObserver[S]) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedStates = make(map[S]bool)
	o.violations = make([]string, 0)
}
