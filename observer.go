package hsm

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StepKind identifies the concrete type of a Step
type StepKind int

const (
	StepGuard StepKind = iota + 1
	StepExit
	StepEntry
	StepAction
	StepStationary
)

func (k StepKind) String() string {
	switch k {
	case StepGuard:
		return "guard"
	case StepExit:
		return "exit"
	case StepEntry:
		return "entry"
	case StepAction:
		return "action"
	case StepStationary:
		return "stationary"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// StepHeader identifies the machine and the fire cycle a notification belongs to
type StepHeader struct {
	MachineID uuid.UUID
	Machine   string
	Cycle     uuid.UUID
}

func (h StepHeader) quotedName() string {
	if h.Machine == "" {
		return "(no name)"
	}
	return "'" + h.Machine + "'"
}

// Step is a notification published on the step stream
type Step[S State] interface {
	Kind() StepKind
	Header() StepHeader
	// State is the state the step is about
	State() S
	// Event is the firing event, nil for null transitions and the initial entry
	Event() Event
	String() string
}

// GuardEvaluated is published after a candidate's guard has been evaluated
type GuardEvaluated[S State] struct {
	StepHeader
	Target      S
	GuardTarget S
	On          Event
	Result      bool
}

func (s *GuardEvaluated[S]) Kind() StepKind     { return StepGuard }
func (s *GuardEvaluated[S]) Header() StepHeader { return s.StepHeader }
func (s *GuardEvaluated[S]) State() S           { return s.Target }
func (s *GuardEvaluated[S]) Event() Event       { return s.On }

func (s *GuardEvaluated[S]) String() string {
	return fmt.Sprintf("%s: G(%v(%s)->%v)=%t", s.quotedName(), s.Target, eventName(s.On), s.GuardTarget, s.Result)
}

// PathStep is published for every state left or entered. It is also the
// argument of state-aware entry and exit hooks.
type PathStep[S State] struct {
	StepHeader
	Transition[S]
	// Target is the state being visited
	Target  S
	IsEntry bool
	// WhenException is set when the path leads to an error state
	WhenException error
}

func (s *PathStep[S]) Kind() StepKind {
	if s.IsEntry {
		return StepEntry
	}
	return StepExit
}

func (s *PathStep[S]) Header() StepHeader { return s.StepHeader }
func (s *PathStep[S]) State() S           { return s.Target }
func (s *PathStep[S]) Event() Event       { return s.On }

func (s *PathStep[S]) String() string {
	mark := ""
	if s.WhenException != nil {
		mark = "!"
	}
	if s.IsEntry {
		return fmt.Sprintf("%s: %v(%s%s)..->%v...%v", s.quotedName(), s.From, eventName(s.On), mark, s.Target, s.To)
	}
	return fmt.Sprintf("%s: %v(%s%s)..%v->...%v", s.quotedName(), s.From, eventName(s.On), mark, s.Target, s.To)
}

// ActionExecuted is published after the execute action of a transition has run
type ActionExecuted[S State] struct {
	StepHeader
	// Target is the state the machine was in when the action ran
	Target    S
	HeadingTo S
	On        Event
	Err       error
}

func (s *ActionExecuted[S]) Kind() StepKind     { return StepAction }
func (s *ActionExecuted[S]) Header() StepHeader { return s.StepHeader }
func (s *ActionExecuted[S]) State() S           { return s.Target }
func (s *ActionExecuted[S]) Event() Event       { return s.On }

func (s *ActionExecuted[S]) String() string {
	outcome := "Ok."
	if s.Err != nil {
		outcome = "Ex!"
	}
	return fmt.Sprintf("%s: T(%v(%s)->%v)=%s", s.quotedName(), s.Target, eventName(s.On), s.HeadingTo, outcome)
}

// StationaryReached is published once a taken transition has settled
type StationaryReached[S State] struct {
	StepHeader
	Target S
	On     Event
}

func (s *StationaryReached[S]) Kind() StepKind     { return StepStationary }
func (s *StationaryReached[S]) Header() StepHeader { return s.StepHeader }
func (s *StationaryReached[S]) State() S           { return s.Target }
func (s *StationaryReached[S]) Event() Event       { return s.On }

func (s *StationaryReached[S]) String() string {
	return fmt.Sprintf("%s: (%s)=>%v.", s.quotedName(), eventName(s.On), s.Target)
}

// ExceptionSource tells where an error was caught
type ExceptionSource int

const (
	SourceGuard ExceptionSource = iota + 1
	SourceTransition
	SourceEntry
	SourceExit
	SourceInternal
)

func (s ExceptionSource) String() string {
	switch s {
	case SourceGuard:
		return "guard"
	case SourceTransition:
		return "transition"
	case SourceEntry:
		return "entry"
	case SourceExit:
		return "exit"
	case SourceInternal:
		return "internal"
	default:
		return fmt.Sprintf("ExceptionSource(%d)", int(s))
	}
}

// ExceptionEvent is published on the exception stream
type ExceptionEvent[S State] struct {
	StepHeader
	// State being visited or started from
	State      S
	Source     ExceptionSource
	Transition Transition[S]
	Err        error
}

func (e ExceptionEvent[S]) String() string {
	return fmt.Sprintf("%s: %s error in %v: %v", e.quotedName(), e.Source, e.State, e.Err)
}

// Observer receives the step and exception streams of a machine
type Observer[S State] interface {
	OnStep(step Step[S])
	OnException(ex ExceptionEvent[S])
}

// CompletionObserver is notified once when the streams terminate
type CompletionObserver interface {
	OnCompleted()
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver[S State] struct{}

// OnStep implements Observer
func (BaseObserver[S]) OnStep(Step[S]) {}

// OnException implements Observer
func (BaseObserver[S]) OnException(ExceptionEvent[S]) {}

// ObserverManager fans notifications out to subscribed observers.
// A panicking observer is reported to onPanic and never disturbs the machine.
type ObserverManager[S State] struct {
	mutex     sync.RWMutex
	observers []Observer[S]
	completed bool
	onPanic   func(observer Observer[S], recovered any)
}

// NewObserverManager creates a new observer manager
func NewObserverManager[S State](onPanic func(observer Observer[S], recovered any)) *ObserverManager[S] {
	return &ObserverManager[S]{
		observers: make([]Observer[S], 0),
		onPanic:   onPanic,
	}
}

// AddObserver subscribes an observer. It is ignored once the manager completed.
func (om *ObserverManager[S]) AddObserver(observer Observer[S]) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	if om.completed || observer == nil {
		return
	}
	om.observers = append(om.observers, observer)
}

// RemoveObserver unsubscribes an observer
func (om *ObserverManager[S]) RemoveObserver(observer Observer[S]) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i:i], om.observers[i+1:]...)
			break
		}
	}
}

func (om *ObserverManager[S]) snapshot() []Observer[S] {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	if om.completed {
		return nil
	}
	observers := make([]Observer[S], len(om.observers))
	copy(observers, om.observers)
	return observers
}

func (om *ObserverManager[S]) safely(observer Observer[S], fn func()) {
	defer func() {
		if r := recover(); r != nil && om.onPanic != nil {
			om.onPanic(observer, r)
		}
	}()
	fn()
}

// NotifyStep publishes a step to all observers
func (om *ObserverManager[S]) NotifyStep(step Step[S]) {
	for _, observer := range om.snapshot() {
		om.safely(observer, func() { observer.OnStep(step) })
	}
}

// NotifyException publishes an exception to all observers
func (om *ObserverManager[S]) NotifyException(ex ExceptionEvent[S]) {
	for _, observer := range om.snapshot() {
		om.safely(observer, func() { observer.OnException(ex) })
	}
}

// Complete terminates both streams. Later notifications are dropped.
func (om *ObserverManager[S]) Complete() {
	om.mutex.Lock()
	if om.completed {
		om.mutex.Unlock()
		return
	}
	om.completed = true
	observers := om.observers
	om.observers = nil
	om.mutex.Unlock()

	for _, observer := range observers {
		if c, ok := observer.(CompletionObserver); ok {
			om.safely(observer, c.OnCompleted)
		}
	}
}

// Completed reports whether Complete has been called
func (om *ObserverManager[S]) Completed() bool {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	return om.completed
}

// Count returns the number of subscribed observers
func (om *ObserverManager[S]) Count() int {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	return len(om.observers)
}
