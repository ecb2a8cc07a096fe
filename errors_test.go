package hsm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelError(t *testing.T) {
	err := newModelErrorf(ErrCodeDuplicateState, fA, "state %s", "twice")
	assert.Equal(t, "model error [duplicate state] on 'A': state twice", err.Error())
	assert.True(t, IsModelError(err))
	assert.False(t, IsMachineError(err))

	err = newModelErrorf(ErrCodeModelFrozen, flat(0), "frozen")
	assert.Equal(t, "model error [model frozen]: frozen", err.Error())
}

func TestMachineError(t *testing.T) {
	err := NewStepLimitError("m", 5)
	assert.Equal(t, ErrCodeStepLimitExceeded, GetErrorCode(err))
	assert.Contains(t, err.Error(), "limit of 5")

	cancelled := NewCancelledError("m", "fire", context.Canceled)
	assert.ErrorIs(t, cancelled, context.Canceled)
	assert.Equal(t, "machine 'm' [cancelled]: fire abandoned: context canceled", cancelled.Error())

	wrapped := fmt.Errorf("outer: %w", cancelled)
	assert.True(t, IsMachineError(wrapped))
	assert.Equal(t, ErrCodeCancelled, GetErrorCode(wrapped))
	assert.Equal(t, ErrCodeNone, GetErrorCode(errIO))
	assert.Equal(t, "ErrorCode(99)", ErrorCode(99).String())
}

func TestSilent(t *testing.T) {
	silent := Silent(errIO)
	assert.True(t, IsSilent(silent))
	assert.ErrorIs(t, silent, errIO)
	assert.Equal(t, errIO.Error(), silent.Error())

	assert.Equal(t, ErrSilent, Silent(nil))
	assert.True(t, IsSilent(fmt.Errorf("wrapped: %w", silent)))
	assert.False(t, IsSilent(errIO))
}

func TestPanicError(t *testing.T) {
	perr := &PanicError{Value: errIO}
	assert.ErrorIs(t, perr, errIO)
	assert.Equal(t, "panic: io failure", perr.Error())

	plain := &PanicError{Value: 42}
	assert.Nil(t, errors.Unwrap(plain))
}
