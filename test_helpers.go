package hsm

import (
	"sync"
	"testing"
)

// TestObserver is an observer for tests that captures both streams
type TestObserver[S State] struct {
	mutex      sync.RWMutex
	Steps      []Step[S]
	Exceptions []ExceptionEvent[S]
	Completed  int
}

// NewTestObserver creates a new test observer
func NewTestObserver[S State]() *TestObserver[S] {
	return &TestObserver[S]{
		Steps:      make([]Step[S], 0),
		Exceptions: make([]ExceptionEvent[S], 0),
	}
}

// OnStep implements Observer
func (o *TestObserver[S]) OnStep(step Step[S]) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Steps = append(o.Steps, step)
}

// OnException implements Observer
func (o *TestObserver[S]) OnException(ex ExceptionEvent[S]) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Exceptions = append(o.Exceptions, ex)
}

// OnCompleted implements CompletionObserver
func (o *TestObserver[S]) OnCompleted() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Completed++
}

// Reset forgets everything captured so far
func (o *TestObserver[S]) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Steps = nil
	o.Exceptions = nil
}

// StepsOf returns the captured steps of kind
func (o *TestObserver[S]) StepsOf(kind StepKind) []Step[S] {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	var out []Step[S]
	for _, s := range o.Steps {
		if s.Kind() == kind {
			out = append(out, s)
		}
	}
	return out
}

// Kinds returns the kinds of the captured steps in order
func (o *TestObserver[S]) Kinds() []StepKind {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	kinds := make([]StepKind, len(o.Steps))
	for i, s := range o.Steps {
		kinds[i] = s.Kind()
	}
	return kinds
}

// Entered returns the states of the captured entry steps in order
func (o *TestObserver[S]) Entered() []S {
	return statesOf(o.StepsOf(StepEntry))
}

// Exited returns the states of the captured exit steps in order
func (o *TestObserver[S]) Exited() []S {
	return statesOf(o.StepsOf(StepExit))
}

// ExceptionCount returns the number of captured exceptions
func (o *TestObserver[S]) ExceptionCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Exceptions)
}

// LastException returns the last captured exception
func (o *TestObserver[S]) LastException() *ExceptionEvent[S] {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	if len(o.Exceptions) == 0 {
		return nil
	}
	return &o.Exceptions[len(o.Exceptions)-1]
}

func statesOf[S State](steps []Step[S]) []S {
	states := make([]S, len(steps))
	for i, s := range steps {
		states[i] = s.State()
	}
	return states
}

// Test assertions and utilities

// AssertState checks if machine is in expected state
func AssertState[S State](t *testing.T, machine *Machine[S], expected S) {
	t.Helper()
	if current := machine.CurrentState(); current != expected {
		t.Errorf("Expected state %v, got %v", expected, current)
	}
}

// AssertStatus checks the lifecycle status of machine
func AssertStatus[S State](t *testing.T, machine *Machine[S], expected Status) {
	t.Helper()
	if status := machine.Status(); status != expected {
		t.Errorf("Expected status %s, got %s", expected, status)
	}
}

// AssertErrorCode checks that err carries the expected error code
func AssertErrorCode(t *testing.T, err error, expected ErrorCode) {
	t.Helper()
	if err == nil {
		t.Errorf("Expected error with code %s, got nil", expected)
		return
	}
	if code := GetErrorCode(err); code != expected {
		t.Errorf("Expected error code %s, got %s (%v)", expected, code, err)
	}
}
