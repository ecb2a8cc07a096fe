package hsm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlatMachine(t *testing.T) *Machine[flat] {
	t.Helper()
	m, err := New("builder", allFlat)
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	t.Run("rejects the zero state", func(t *testing.T) {
		_, err := New("zero", []flat{fA, 0})
		AssertErrorCode(t, err, ErrCodeInvalidState)
	})

	t.Run("rejects an empty enumeration", func(t *testing.T) {
		_, err := New[flat]("empty", nil)
		AssertErrorCode(t, err, ErrCodeInvalidState)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := New("dup", []flat{fA, fB, fA})
		AssertErrorCode(t, err, ErrCodeDuplicateState)
	})

	t.Run("defaults", func(t *testing.T) {
		m := newFlatMachine(t)
		assert.Equal(t, "builder", m.Name())
		assert.NotEqual(t, [16]byte{}, [16]byte(m.ID()))
		assert.Equal(t, DefaultStepLimit, m.StepLimit())
		assert.Equal(t, allFlat, m.States())
		AssertStatus(t, m, StatusCreated)
		assert.Equal(t, flat(0), m.CurrentState())
	})

	t.Run("ignores invalid step limits", func(t *testing.T) {
		m, err := New("limit", allFlat, WithStepLimit(0), WithLogger(nil), WithParentContext(nil))
		require.NoError(t, err)
		assert.Equal(t, DefaultStepLimit, m.StepLimit())
	})
}

func TestBuilderStateDeclarations(t *testing.T) {
	t.Run("state declared twice", func(t *testing.T) {
		m := newFlatMachine(t)
		require.NoError(t, m.In(fA).Err())
		AssertErrorCode(t, m.In(fA).Err(), ErrCodeDuplicateState)
	})

	t.Run("unknown state", func(t *testing.T) {
		m := newFlatMachine(t)
		AssertErrorCode(t, m.In(flat(42)).Err(), ErrCodeInvalidState)
		AssertErrorCode(t, m.In(0).Err(), ErrCodeInvalidState)
	})

	t.Run("hook defined twice", func(t *testing.T) {
		m := newFlatMachine(t)
		noop := func() error { return nil }
		AssertErrorCode(t, m.In(fA).Entry(noop).Entry(noop).Err(), ErrCodeDuplicateState)
		AssertErrorCode(t, m.In(fB).Exit(noop).ExitCtx(func(context.Context) error { return nil }).Err(), ErrCodeDuplicateState)
	})

	t.Run("errors are sticky", func(t *testing.T) {
		m := newFlatMachine(t)
		m.In(fA)
		chain := m.In(fA).On(NewEvent("x", nil)).Goto(fB)
		AssertErrorCode(t, chain.Err(), ErrCodeDuplicateState)
		assert.Len(t, m.transitions, 0, "transitions of a failed chain are skipped")

		err := m.Initialize(fA, false)
		AssertErrorCode(t, err, ErrCodeDuplicateState)
		AssertStatus(t, m, StatusCreated)
	})

	t.Run("all errors are joined", func(t *testing.T) {
		m := newFlatMachine(t)
		m.In(fA)
		m.In(fA)
		m.In(flat(99))

		err := m.Err()
		require.Error(t, err)
		joined, ok := err.(interface{ Unwrap() []error })
		require.True(t, ok)
		assert.Len(t, joined.Unwrap(), 2)
		assert.True(t, IsModelError(err))
	})
}

func TestBuilderHierarchy(t *testing.T) {
	t.Run("superstate after a state", func(t *testing.T) {
		m := newFlatMachine(t)
		m.In(fB)
		AssertErrorCode(t, m.SuperState(fA, MemoryNone).Err(), ErrCodeDeclarationOrder)
	})

	t.Run("superstate declared twice", func(t *testing.T) {
		m := newFlatMachine(t)
		m.SuperState(fA, MemoryNone).WithSubStates(fA1)
		AssertErrorCode(t, m.SuperState(fA, MemoryNone).Err(), ErrCodeHierarchyConflict)
	})

	t.Run("substate claimed twice", func(t *testing.T) {
		m := newFlatMachine(t)
		m.SuperState(fA, MemoryNone).WithSubStates(fA1, fA2)
		AssertErrorCode(t, m.SuperState(fB, MemoryNone).WithSubStates(fA2).Err(), ErrCodeHierarchyConflict)
	})

	t.Run("outer superstates first", func(t *testing.T) {
		m := newFlatMachine(t)
		m.SuperState(fA, MemoryNone).WithSubStates(fA1)
		AssertErrorCode(t, m.SuperState(fB, MemoryNone).WithSubStates(fA).Err(), ErrCodeDeclarationOrder)
	})

	t.Run("superstate containing itself", func(t *testing.T) {
		m := newFlatMachine(t)
		AssertErrorCode(t, m.SuperState(fA, MemoryNone).WithSubStates(fA).Err(), ErrCodeHierarchyConflict)
	})

	t.Run("substate listed twice", func(t *testing.T) {
		m := newFlatMachine(t)
		AssertErrorCode(t, m.SuperState(fA, MemoryNone).WithSubStates(fA1, fA1).Err(), ErrCodeHierarchyConflict)
	})

	t.Run("substates declared twice", func(t *testing.T) {
		m := newFlatMachine(t)
		AssertErrorCode(t, m.SuperState(fA, MemoryNone).WithSubStates(fA1).WithSubStates(fA2).Err(), ErrCodeHierarchyConflict)
	})

	t.Run("superstate without substates", func(t *testing.T) {
		m := newFlatMachine(t)
		require.NoError(t, m.SuperState(fA, MemoryNone).Err())
		AssertErrorCode(t, m.Initialize(fB, false), ErrCodeHierarchyConflict)
	})

	t.Run("machine routes after a superstate", func(t *testing.T) {
		m := newFlatMachine(t)
		m.SuperState(fA, MemoryNone).WithSubStates(fA1)
		AssertErrorCode(t, m.WhenException(AnyError, fB), ErrCodeDeclarationOrder)
	})

	t.Run("unknown exception target", func(t *testing.T) {
		m := newFlatMachine(t)
		AssertErrorCode(t, m.WhenException(AnyError, flat(77)), ErrCodeInvalidState)
		AssertErrorCode(t, m.SuperState(fA, MemoryNone).WithSubStates(fA1).WhenException(AnyError, flat(77)).Err(), ErrCodeInvalidState)
	})
}

func TestBuilderTransitionConflicts(t *testing.T) {
	x := NewEvent("x", nil)
	yes := func() bool { return true }

	t.Run("unguarded duplicate", func(t *testing.T) {
		m := newFlatMachine(t)
		err := m.In(fA).On(x).Goto(fB).On(NewEvent("x", nil)).Goto(fC).Err()
		AssertErrorCode(t, err, ErrCodeTransitionConflict)
	})

	t.Run("guarded after unguarded", func(t *testing.T) {
		m := newFlatMachine(t)
		err := m.In(fA).On(x).Goto(fB).On(x).If(yes).Goto(fC).Err()
		AssertErrorCode(t, err, ErrCodeTransitionConflict)
	})

	t.Run("unguarded after guarded", func(t *testing.T) {
		m := newFlatMachine(t)
		err := m.In(fA).On(x).If(yes).Goto(fB).On(x).Goto(fC).Err()
		AssertErrorCode(t, err, ErrCodeTransitionConflict)
	})

	t.Run("guarded alternatives", func(t *testing.T) {
		m := newFlatMachine(t)
		err := m.In(fA).On(x).If(yes).Goto(fB).On(x).If(yes).Goto(fC).Err()
		assert.NoError(t, err)
	})

	t.Run("unguarded null beside others", func(t *testing.T) {
		m := newFlatMachine(t)
		err := m.In(fA).On(x).Goto(fB).Immediately().Goto(fC).Err()
		AssertErrorCode(t, err, ErrCodeTransitionConflict)
	})

	t.Run("others beside unguarded null", func(t *testing.T) {
		m := newFlatMachine(t)
		err := m.In(fA).Immediately().Goto(fB).On(x).If(yes).Goto(fC).Err()
		AssertErrorCode(t, err, ErrCodeTransitionConflict)
	})

	t.Run("wildcard beside a named event", func(t *testing.T) {
		m := newFlatMachine(t)
		err := m.In(fA).On(x).Goto(fB).On(AnyEvent).Goto(fC).Err()
		assert.NoError(t, err)
	})

	t.Run("guard defined twice", func(t *testing.T) {
		m := newFlatMachine(t)
		err := m.In(fA).On(x).If(yes).IfWith(func(Transition[flat]) bool { return true }).Err()
		AssertErrorCode(t, err, ErrCodeTransitionConflict)
	})

	t.Run("action defined twice", func(t *testing.T) {
		m := newFlatMachine(t)
		noop := func() error { return nil }
		err := m.In(fA).On(x).Goto(fB).Execute(noop).Execute(noop).Err()
		AssertErrorCode(t, err, ErrCodeTransitionConflict)
	})

	t.Run("unknown target", func(t *testing.T) {
		m := newFlatMachine(t)
		AssertErrorCode(t, m.In(fA).On(x).Goto(flat(50)).Err(), ErrCodeInvalidState)
	})
}

func TestBuilderNullTransitions(t *testing.T) {
	t.Run("from a superstate", func(t *testing.T) {
		m := newFlatMachine(t)
		m.SuperState(fA, MemoryNone).WithSubStates(fA1)
		AssertErrorCode(t, m.In(fA).Immediately().Goto(fB).Err(), ErrCodeInvalidNullTransition)
	})

	t.Run("self loop", func(t *testing.T) {
		m := newFlatMachine(t)
		AssertErrorCode(t, m.In(fA).Immediately().Goto(fA).Err(), ErrCodeInvalidNullTransition)
	})

	t.Run("internal", func(t *testing.T) {
		m := newFlatMachine(t)
		AssertErrorCode(t, m.In(fA).Immediately().Internal().Err(), ErrCodeInvalidNullTransition)
	})

	t.Run("exception route back to the source", func(t *testing.T) {
		m := newFlatMachine(t)
		chain := m.In(fA).Immediately().Goto(fB)
		require.NoError(t, chain.Err())
		AssertErrorCode(t, chain.WhenException(AnyError, fA).Err(), ErrCodeInvalidNullTransition)
		assert.Zero(t, chain.t.exceptions.Len(), "rejected route is not kept")
	})

	t.Run("inherited route back to the source", func(t *testing.T) {
		m := newFlatMachine(t)
		require.NoError(t, m.WhenException(AnyError, fA))
		AssertErrorCode(t, m.In(fA).Immediately().Goto(fB).Err(), ErrCodeInvalidNullTransition)
	})

	t.Run("stay route is rejected when freezing", func(t *testing.T) {
		m := newFlatMachine(t)
		require.NoError(t, m.In(fA).Immediately().Goto(fB).WhenException(AnyError, 0).Err())
		AssertErrorCode(t, m.Initialize(fA, false), ErrCodeInvalidNullTransition)
	})

	t.Run("guarded null transitions", func(t *testing.T) {
		m := newFlatMachine(t)
		err := m.In(fA).
			Immediately().If(func() bool { return false }).Goto(fB).
			Immediately().If(func() bool { return true }).Goto(fC).
			Err()
		assert.NoError(t, err)
	})
}

func TestBuilderFrozenModel(t *testing.T) {
	m := newFlatMachine(t)
	chain := m.In(fA)
	require.NoError(t, m.Initialize(fA, false))

	AssertErrorCode(t, m.In(fB).Err(), ErrCodeModelFrozen)
	AssertErrorCode(t, m.SuperState(fB, MemoryNone).Err(), ErrCodeModelFrozen)
	AssertErrorCode(t, chain.Entry(func() error { return nil }).Err(), ErrCodeModelFrozen)
	AssertErrorCode(t, m.WhenException(AnyError, fB), ErrCodeModelFrozen)
	AssertErrorCode(t, m.Initialize(fA, false), ErrCodeAlreadyInitialized)
}
