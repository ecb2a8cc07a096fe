package hsm

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions of the model or the engine
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// State is the zero sentinel or is not part of the state enumeration
	ErrCodeInvalidState
	// State is declared twice, or a hook is defined twice
	ErrCodeDuplicateState
	// State is claimed by more than one superstate, or a superstate is declared twice
	ErrCodeHierarchyConflict
	// Transition overlaps an already declared one
	ErrCodeTransitionConflict
	// Null transition has a shape that cannot terminate
	ErrCodeInvalidNullTransition
	// Model mutation attempted after Initialize
	ErrCodeModelFrozen
	// Model declarations made in the wrong order
	ErrCodeDeclarationOrder
	// Operation requires an initialized machine
	ErrCodeNotInitialized
	// Operation requires a machine that is not initialized yet
	ErrCodeAlreadyInitialized
	// Operation requires a started machine
	ErrCodeNotStarted
	// Operation requires a machine that is not started yet
	ErrCodeAlreadyStarted
	// Null transition cascade exceeded the step limit
	ErrCodeStepLimitExceeded
	// Machine has been disposed
	ErrCodeDisposed
	// Operation was abandoned because its context was cancelled
	ErrCodeCancelled
)

var errorCodeNames = map[ErrorCode]string{
	ErrCodeNone:                  "none",
	ErrCodeInvalidState:          "invalid state",
	ErrCodeDuplicateState:        "duplicate state",
	ErrCodeHierarchyConflict:     "hierarchy conflict",
	ErrCodeTransitionConflict:    "transition conflict",
	ErrCodeInvalidNullTransition: "invalid null transition",
	ErrCodeModelFrozen:           "model frozen",
	ErrCodeDeclarationOrder:      "declaration order",
	ErrCodeNotInitialized:        "not initialized",
	ErrCodeAlreadyInitialized:    "already initialized",
	ErrCodeNotStarted:            "not started",
	ErrCodeAlreadyStarted:        "already started",
	ErrCodeStepLimitExceeded:     "step limit exceeded",
	ErrCodeDisposed:              "disposed",
	ErrCodeCancelled:             "cancelled",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// ModelError is raised while the model is being declared.
// It is always fatal to the declaration that produced it.
type ModelError struct {
	Code    ErrorCode
	State   string
	Message string
}

func (e *ModelError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("model error [%s] on '%s': %s", e.Code, e.State, e.Message)
	}
	return fmt.Sprintf("model error [%s]: %s", e.Code, e.Message)
}

// NewModelError creates a new model error
func NewModelError(code ErrorCode, state string, message string) *ModelError {
	return &ModelError{
		Code:    code,
		State:   state,
		Message: message,
	}
}

func newModelErrorf[S State](code ErrorCode, state S, format string, args ...any) *ModelError {
	name := ""
	var zero S
	if state != zero {
		name = fmt.Sprint(state)
	}
	return NewModelError(code, name, fmt.Sprintf(format, args...))
}

// MachineError is raised by the engine at runtime
type MachineError struct {
	Code    ErrorCode
	Machine string
	Message string
	Err     error
}

func (e *MachineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("machine '%s' [%s]: %s: %v", e.Machine, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("machine '%s' [%s]: %s", e.Machine, e.Code, e.Message)
}

func (e *MachineError) Unwrap() error {
	return e.Err
}

// NewMachineError creates a new runtime error
func NewMachineError(code ErrorCode, machine string, message string) *MachineError {
	return &MachineError{
		Code:    code,
		Machine: machine,
		Message: message,
	}
}

// NewStepLimitError creates the error returned when a null transition cascade does not settle
func NewStepLimitError(machine string, limit int) *MachineError {
	return &MachineError{
		Code:    ErrCodeStepLimitExceeded,
		Machine: machine,
		Message: fmt.Sprintf("reached the limit of %d null transitions, check the machine model", limit),
	}
}

// NewCancelledError wraps the context error that interrupted an operation
func NewCancelledError(machine string, operation string, err error) *MachineError {
	return &MachineError{
		Code:    ErrCodeCancelled,
		Machine: machine,
		Message: operation + " abandoned",
		Err:     err,
	}
}

// ErrSilent marks user errors that must not be published on the exception stream.
// Such errors are handled like any other error in every other aspect.
var ErrSilent = errors.New("silent")

type silentError struct {
	err error
}

func (e *silentError) Error() string {
	return e.err.Error()
}

func (e *silentError) Unwrap() []error {
	return []error{e.err, ErrSilent}
}

// Silent marks err as silent. A nil err yields ErrSilent.
func Silent(err error) error {
	if err == nil {
		return ErrSilent
	}
	return &silentError{err: err}
}

// IsSilent reports whether err is, or wraps, ErrSilent
func IsSilent(err error) bool {
	return errors.Is(err, ErrSilent)
}

// PanicError carries a value recovered from a panicking guard or action
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value to errors.Is and errors.As
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsModelError checks if an error is, or wraps, a ModelError
func IsModelError(err error) bool {
	var target *ModelError
	return errors.As(err, &target)
}

// IsMachineError checks if an error is, or wraps, a MachineError
func IsMachineError(err error) bool {
	var target *MachineError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var modelErr *ModelError
	if errors.As(err, &modelErr) {
		return modelErr.Code
	}
	var machineErr *MachineError
	if errors.As(err, &machineErr) {
		return machineErr.Code
	}
	return ErrCodeNone
}
