package hsm

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories(t *testing.T) {
	_, statErr := os.Stat("/definitely/not/here")
	require.Error(t, statErr)

	cases := []struct {
		name     string
		category Category
		err      error
		matches  bool
	}{
		{"is matches the sentinel", Is(errIO), errIO, true},
		{"is matches a wrapped sentinel", Is(errIO), errFileNotFound(), true},
		{"is rejects other errors", Is(errIO), errInvalidOp, false},
		{"as matches the type", As[*fs.PathError](), statErr, true},
		{"as rejects other types", As[*fs.PathError](), errIO, false},
		{"any matches everything", AnyError, errInvalidOp, true},
		{"any rejects nil", AnyError, nil, false},
		{"match uses the predicate", Match("io-ish", func(err error) bool {
			return strings.Contains(err.Error(), "io")
		}), errFileNotFound(), true},
		{"match rejects nil", Match("all", func(error) bool { return true }), nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.matches, tc.category.Match(tc.err))
		})
	}
}

func TestCategoryNames(t *testing.T) {
	assert.Equal(t, "io failure", Is(errIO).String())
	assert.Equal(t, "*fs.PathError", As[*fs.PathError]().String())
	assert.Equal(t, "error", AnyError.String())
	assert.Equal(t, "custom", Match("custom", func(error) bool { return false }).String())
}

func TestExceptionTable(t *testing.T) {
	t.Run("lookup returns the first inserted match", func(t *testing.T) {
		table := NewExceptionTable[flat]()
		table.Set(AnyError, fB)
		table.Set(Is(errIO), fC)

		rule, ok := table.Lookup(errIO)
		require.True(t, ok)
		assert.Equal(t, fB, rule.Target)
	})

	t.Run("set replaces in place", func(t *testing.T) {
		table := NewExceptionTable[flat]()
		table.Set(Is(errIO), fB)
		table.Set(AnyError, fC)
		table.Set(Is(errIO), fD)

		rules := table.Rules()
		require.Len(t, rules, 2)
		assert.Equal(t, fD, rules[0].Target)
		assert.Equal(t, "error", rules[1].Category.String())

		table.Set(As[*fs.PathError](), fA)
		table.Set(As[*fs.PathError](), fB)
		assert.Equal(t, 3, table.Len())
	})

	t.Run("no match", func(t *testing.T) {
		table := NewExceptionTable[flat]()
		table.Set(Is(errIO), fB)

		_, ok := table.Lookup(errInvalidOp)
		assert.False(t, ok)
		_, ok = table.Lookup(nil)
		assert.False(t, ok)
	})

	t.Run("clone is independent", func(t *testing.T) {
		table := NewExceptionTable[flat]()
		table.Set(Is(errIO), fB)

		clone := table.Clone()
		clone.Set(Is(errIO), fC)
		clone.Set(AnyError, fD)

		rule, _ := table.Lookup(errIO)
		assert.Equal(t, fB, rule.Target)
		assert.Equal(t, 1, table.Len())
		assert.Equal(t, 2, clone.Len())
	})

	t.Run("has target", func(t *testing.T) {
		table := NewExceptionTable[flat]()
		table.Set(Is(errIO), fB)
		table.Set(AnyError, 0)

		assert.True(t, table.HasTarget(fB))
		assert.True(t, table.HasTarget(0))
		assert.False(t, table.HasTarget(fC))
	})

	t.Run("nil table", func(t *testing.T) {
		var table *ExceptionTable[flat]
		_, ok := table.Lookup(errIO)
		assert.False(t, ok)
		assert.Zero(t, table.Len())
		assert.False(t, table.HasTarget(fA))
		assert.Nil(t, table.Rules())
		assert.NotNil(t, table.Clone())
	})
}

func TestExceptionRuleString(t *testing.T) {
	assert.Equal(t, "io failure->B", ExceptionRule[flat]{Category: Is(errIO), Target: fB}.String())
	assert.Equal(t, "error->stay", ExceptionRule[flat]{Category: AnyError}.String())
}

func TestExceptionTablesAreClonedAtDeclaration(t *testing.T) {
	m, err := New("clone", allMLStates)
	require.NoError(t, err)

	s1 := m.SuperState(mlS1, MemoryNone).WithSubStates(mlS11, mlE1, mlS2).WhenException(Is(errIO), mlE)
	s11 := m.SuperState(mlS11, MemoryNone).WithSubStates(mlS)
	m.SuperState(mlS2, MemoryNone).WithSubStates(mlS22)
	m.SuperState(mlE1, MemoryNone).WithSubStates(mlE)
	require.NoError(t, s1.Err())

	// not inherited: S11 keeps a copy of the empty default table
	rule, ok := s11.node.exceptions.Lookup(errIO)
	assert.False(t, ok, "%v", rule)

	s11.InheritExceptionStates()
	_, ok = s11.node.exceptions.Lookup(errIO)
	assert.True(t, ok)

	tc := m.In(mlS).On(NewEvent("x", nil)).Goto(mlS22)
	tc.WhenException(AnyError, mlE2)
	require.NoError(t, tc.Err())

	// later changes on the superstate do not leak into the declared transition
	s1.WhenException(errorsCategory(), mlE2)
	assert.Equal(t, 2, tc.t.exceptions.Len())
	assert.Equal(t, 1, s11.node.exceptions.Len())
}

func errorsCategory() Category {
	return Match("joined", func(err error) bool {
		var joined interface{ Unwrap() []error }
		return errors.As(err, &joined)
	})
}
