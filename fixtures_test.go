package hsm

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// mlState is the enumeration of the multi level error routing model:
//
//	S1 {S11 {S}, E1 {E}, S2 {S22}}
//	E2
type mlState int

const (
	mlS1 mlState = iota + 1
	mlS2
	mlE
	mlE2
	mlS11
	mlS
	mlS22
	mlE1
)

var mlStateNames = map[mlState]string{
	mlS1:  "S1",
	mlS2:  "S2",
	mlE:   "E",
	mlE2:  "E2",
	mlS11: "S11",
	mlS:   "S",
	mlS22: "S22",
	mlE1:  "E1",
}

func (s mlState) String() string {
	if name, ok := mlStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("mlState(%d)", int(s))
}

var allMLStates = []mlState{mlS1, mlS2, mlE, mlE2, mlS11, mlS, mlS22, mlE1}

// flat is a small enumeration for single level scenarios
type flat int

const (
	fA flat = iota + 1
	fB
	fC
	fD
	fA1
	fA2
)

func (s flat) String() string {
	switch s {
	case fA:
		return "A"
	case fB:
		return "B"
	case fC:
		return "C"
	case fD:
		return "D"
	case fA1:
		return "A1"
	case fA2:
		return "A2"
	}
	return fmt.Sprintf("flat(%d)", int(s))
}

var allFlat = []flat{fA, fB, fC, fD, fA1, fA2}

var (
	errIO        = errors.New("io failure")
	errInvalidOp = errors.New("invalid operation")
)

func errFileNotFound() error {
	return fmt.Errorf("file not found: %w", errIO)
}

// tracer writes the bracket notation of visited hooks
type tracer struct {
	mutex sync.Mutex
	b     strings.Builder
}

func (tr *tracer) logf(format string, args ...any) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	fmt.Fprintf(&tr.b, format, args...)
}

func entryLogger[S State](tr *tracer) func(*PathStep[S]) error {
	return func(step *PathStep[S]) error {
		tr.logf("[+%v]", step.Target)
		return nil
	}
}

func exitLogger[S State](tr *tracer) func(*PathStep[S]) error {
	return func(step *PathStep[S]) error {
		tr.logf("[-%v]", step.Target)
		return nil
	}
}

func (tr *tracer) String() string {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	return tr.b.String()
}

func (tr *tracer) Reset() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.b.Reset()
}

// routing selects where the exception routes of the multi level model are declared
type routing int

const (
	routeNone routing = iota
	routeOnSuperStates
	routeOnTransition
)

// newMultiLevelMachine builds the error routing model. The machine is
// initialized in S1 with the initial entry suppressed, so it starts in S.
// Any event leads from S to S22 running throw.
func newMultiLevelMachine(t *testing.T, tr *tracer, route routing, throw func() error, opts ...Option) *Machine[mlState] {
	t.Helper()

	m, err := New("multilevel", allMLStates, opts...)
	require.NoError(t, err)

	s1 := m.SuperState(mlS1, MemoryNone).WithSubStates(mlS11, mlE1, mlS2)
	if route == routeOnSuperStates {
		s1.WhenException(Is(errIO), mlE).WhenException(AnyError, mlE2)
	}
	m.SuperState(mlS11, MemoryNone).WithSubStates(mlS).InheritExceptionStates()
	m.SuperState(mlS2, MemoryNone).WithSubStates(mlS22)
	m.SuperState(mlE1, MemoryNone).WithSubStates(mlE)

	for _, s := range allMLStates {
		if s == mlS {
			continue
		}
		m.In(s).EntryWith(entryLogger[mlState](tr)).ExitWith(exitLogger[mlState](tr))
	}

	move := m.In(mlS).
		EntryWith(entryLogger[mlState](tr)).
		ExitWith(exitLogger[mlState](tr)).
		On(AnyEvent).Goto(mlS22).
		ExecuteWith(func(tn Transition[mlState]) error {
			tr.logf("[%v#%v]", tn.From, tn.To)
			if throw == nil {
				return nil
			}
			return throw()
		})
	if route == routeOnTransition {
		move.WhenException(Is(errIO), mlE1).WhenException(AnyError, mlE2)
	}

	require.NoError(t, m.Err())
	require.NoError(t, m.Initialize(mlS1, true))
	return m
}
