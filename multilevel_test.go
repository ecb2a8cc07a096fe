package hsm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiLevelExceptionRouting(t *testing.T) {
	cases := []struct {
		name     string
		throw    func() error
		expected string
		final    mlState
		errors   int
	}{
		{
			name:     "no error",
			throw:    nil,
			expected: "[-S][-S11][S#S22][+S2][+S22]",
			final:    mlS22,
		},
		{
			name:     "io error",
			throw:    func() error { return errIO },
			expected: "[-S][-S11][S#S22][+E1][+E]",
			final:    mlE,
			errors:   1,
		},
		{
			name:     "error of io category",
			throw:    errFileNotFound,
			expected: "[-S][-S11][S#S22][+E1][+E]",
			final:    mlE,
			errors:   1,
		},
		{
			name:     "any other error",
			throw:    func() error { return errInvalidOp },
			expected: "[-S][-S11][S#S22][-S1][+E2]",
			final:    mlE2,
			errors:   1,
		},
	}

	for _, route := range []routing{routeOnSuperStates, routeOnTransition} {
		for _, tc := range cases {
			name := tc.name
			if route == routeOnTransition {
				name += " routed by transition"
			}
			t.Run(name, func(t *testing.T) {
				tr := &tracer{}
				m := newMultiLevelMachine(t, tr, route, tc.throw)
				observer := NewTestObserver[mlState]()
				m.Subscribe(observer)

				ctx := context.Background()
				current, err := m.Start(ctx, nil)
				require.NoError(t, err)
				assert.Equal(t, mlS, current)
				assert.Empty(t, tr.String())

				current, err = m.Fire(ctx, NewEvent("go", nil))
				require.NoError(t, err)

				assert.Equal(t, tc.expected, tr.String())
				assert.Equal(t, tc.final, current)
				AssertState(t, m, tc.final)
				assert.Equal(t, tc.errors, observer.ExceptionCount())
			})
		}
	}
}

func TestMultiLevelStayOnUnroutedError(t *testing.T) {
	tr := &tracer{}
	m := newMultiLevelMachine(t, tr, routeNone, func() error { return errInvalidOp })
	observer := NewTestObserver[mlState]()
	m.Subscribe(observer)

	ctx := context.Background()
	_, err := m.Start(ctx, nil)
	require.NoError(t, err)

	current, err := m.Fire(ctx, NewEvent("go", nil))
	require.NoError(t, err)

	// exited states are not re-entered
	assert.Equal(t, "[-S][-S11][S#S22]", tr.String())
	assert.Equal(t, mlS, current)

	require.Equal(t, 1, observer.ExceptionCount())
	ex := observer.LastException()
	assert.Equal(t, SourceTransition, ex.Source)
	assert.ErrorIs(t, ex.Err, errInvalidOp)
	assert.Equal(t, mlS, ex.Transition.From)
	assert.Equal(t, mlS22, ex.Transition.To)

	last, ok := m.LastException()
	require.True(t, ok)
	assert.ErrorIs(t, last.Err, errInvalidOp)
}

func TestMultiLevelInitialEntry(t *testing.T) {
	tr := &tracer{}
	m, err := New("entry", allMLStates)
	require.NoError(t, err)

	m.SuperState(mlS1, MemoryNone).WithSubStates(mlS11, mlE1, mlS2)
	m.SuperState(mlS11, MemoryNone).WithSubStates(mlS)
	m.SuperState(mlS2, MemoryNone).WithSubStates(mlS22)
	m.SuperState(mlE1, MemoryNone).WithSubStates(mlE)
	for _, s := range allMLStates {
		m.In(s).EntryWith(entryLogger[mlState](tr))
	}
	require.NoError(t, m.Initialize(mlS1, false))

	current, err := m.Start(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, mlS, current)
	assert.Equal(t, "[+S1][+S11][+S]", tr.String())
}

func TestMultiLevelStepSequence(t *testing.T) {
	tr := &tracer{}
	m := newMultiLevelMachine(t, tr, routeOnSuperStates, func() error { return errIO })
	observer := NewTestObserver[mlState]()
	m.Subscribe(observer)

	ctx := context.Background()
	_, err := m.Start(ctx, nil)
	require.NoError(t, err)
	observer.Reset()

	_, err = m.Fire(ctx, NewEvent("go", nil))
	require.NoError(t, err)

	assert.Equal(t, []StepKind{
		StepGuard,
		StepExit, StepExit,
		StepAction,
		StepEntry, StepEntry,
		StepStationary,
	}, observer.Kinds())

	entries := observer.StepsOf(StepEntry)
	require.Len(t, entries, 2)
	step := entries[0].(*PathStep[mlState])
	assert.ErrorIs(t, step.WhenException, errIO)
	assert.Equal(t, mlE, step.To)

	action := observer.StepsOf(StepAction)[0].(*ActionExecuted[mlState])
	assert.Equal(t, mlS, action.Target)
	assert.Equal(t, mlS22, action.HeadingTo)
	assert.ErrorIs(t, action.Err, errIO)

	// every step of one fire shares the cycle id
	cycle := observer.Steps[0].Header().Cycle
	for _, s := range observer.Steps {
		assert.Equal(t, cycle, s.Header().Cycle)
		assert.Equal(t, m.ID(), s.Header().MachineID)
	}
}
