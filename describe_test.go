package hsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	m := newMultiLevelMachine(t, &tracer{}, routeOnSuperStates, nil)
	d := m.Describe()

	assert.Equal(t, "multilevel", d.Name)
	assert.Equal(t, allMLStates, d.States)
	assert.Equal(t, mlS1, d.Initial)
	assert.Empty(t, d.Defaults)
	assert.Len(t, d.SuperStates, 4, "the implicit root is not described")

	s1, ok := d.SuperState(mlS1)
	require.True(t, ok)
	assert.Equal(t, mlState(0), s1.Parent)
	assert.Equal(t, mlS11, s1.Initial)
	assert.Equal(t, []mlState{mlS11, mlE1, mlS2}, s1.SubStates)
	assert.Equal(t, []RuleDescription[mlState]{
		{Category: "io failure", Target: mlE},
		{Category: "error", Target: mlE2},
	}, s1.Exceptions)

	s11, ok := d.SuperState(mlS11)
	require.True(t, ok)
	assert.Equal(t, mlS1, s11.Parent)
	assert.Equal(t, s1.Exceptions, s11.Exceptions)

	_, ok = d.SuperState(mlS)
	assert.False(t, ok)
	assert.Equal(t, mlS11, d.Parent(mlS))
	assert.Equal(t, mlState(0), d.Parent(mlE2))

	require.Len(t, d.Transitions, 1)
	tr := d.Transitions[0]
	assert.Equal(t, mlS, tr.From)
	assert.Equal(t, mlS22, tr.To)
	assert.Equal(t, "*", tr.Event)
	assert.True(t, tr.Wildcard)
	assert.True(t, tr.HasAction)
	assert.False(t, tr.Guarded)
	assert.False(t, tr.IsNull())
	assert.False(t, tr.IsInternal())
	assert.Len(t, tr.Exceptions, 2)

	assert.Equal(t, allMLStates, d.EntryHooks)
	assert.Equal(t, allMLStates, d.ExitHooks)
}

func TestDescribeNullAndInternal(t *testing.T) {
	m := newFlatMachine(t)
	require.NoError(t, m.WhenException(AnyError, fD))
	m.In(fA).
		Immediately().If(func() bool { return true }).Goto(fB).
		On(NewEvent("tick", nil)).Internal()

	d := m.Describe()
	assert.Equal(t, flat(0), d.Initial)
	assert.Equal(t, []RuleDescription[flat]{{Category: "error", Target: fD}}, d.Defaults)
	require.Len(t, d.Transitions, 2)
	assert.True(t, d.Transitions[0].IsNull())
	assert.True(t, d.Transitions[0].Guarded)
	assert.True(t, d.Transitions[1].IsInternal())
	assert.Equal(t, "tick", d.Transitions[1].Event)
	assert.Empty(t, d.EntryHooks)
}
