package hsm

import "fmt"

// Transition is the public view of a transition passed to state-aware guards and actions
type Transition[S State] struct {
	From S
	To   S
	On   Event
}

func (t Transition[S]) String() string {
	return fmt.Sprintf("Transition %v(%s)->%v", t.From, eventName(t.On), t.To)
}

// IsInternal reports whether the transition changes no state
func (t Transition[S]) IsInternal() bool {
	var zero S
	return t.To == zero
}

// transitionInfo is a declared edge of the model
type transitionInfo[S State] struct {
	from       S
	on         Event
	guard      guard[S]
	to         S
	execute    action[Transition[S]]
	exceptions *ExceptionTable[S]
}

// view returns the public transition for the event actually fired
func (t *transitionInfo[S]) view(on Event) Transition[S] {
	return Transition[S]{From: t.from, To: t.to, On: on}
}

func (t *transitionInfo[S]) String() string {
	return t.view(t.on).String()
}

// Suppress selects hooks skipped by a forced transition
type Suppress int

const (
	SuppressNone  Suppress = 0
	SuppressExit  Suppress = 1
	SuppressEntry Suppress = 2
	SuppressAll            = SuppressExit | SuppressEntry
)

// Has reports whether all flags of other are set
func (s Suppress) Has(other Suppress) bool {
	return s&other == other
}

func (s Suppress) String() string {
	switch s {
	case SuppressNone:
		return "none"
	case SuppressExit:
		return "exit"
	case SuppressEntry:
		return "entry"
	case SuppressAll:
		return "all"
	default:
		return fmt.Sprintf("Suppress(%d)", int(s))
	}
}

// TouchedStates lists the states left and entered by moving between two states
type TouchedStates[S State] struct {
	// Exits runs innermost to outward
	Exits []S
	// Entries runs from below the common ancestor down to a leaf
	Entries        []S
	CommonAncestor S
}
