package hsm

import (
	"context"
	"runtime/debug"
)

// actionKind discriminates the calling convention of a hook
type actionKind int

const (
	actionNone actionKind = iota
	// func() error
	actionPlain
	// func(A) error
	actionStateful
	// func(context.Context) error
	actionPlainCtx
	// func(context.Context, A) error
	actionStatefulCtx
)

// action holds exactly one callable matching its kind. A is the argument
// passed to state-aware shapes: Transition[S] for execute actions and
// *PathStep[S] for entry and exit hooks.
type action[A any] struct {
	kind        actionKind
	plain       func() error
	stateful    func(A) error
	plainCtx    func(context.Context) error
	statefulCtx func(context.Context, A) error
}

func plainAction[A any](fn func() error) action[A] {
	return action[A]{kind: actionPlain, plain: fn}
}

func statefulAction[A any](fn func(A) error) action[A] {
	return action[A]{kind: actionStateful, stateful: fn}
}

func plainCtxAction[A any](fn func(context.Context) error) action[A] {
	return action[A]{kind: actionPlainCtx, plainCtx: fn}
}

func statefulCtxAction[A any](fn func(context.Context, A) error) action[A] {
	return action[A]{kind: actionStatefulCtx, statefulCtx: fn}
}

func (a action[A]) defined() bool {
	return a.kind != actionNone
}

// run executes the action, converting a panic into a *PanicError
func (a action[A]) run(ctx context.Context, arg A) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	switch a.kind {
	case actionPlain:
		return a.plain()
	case actionStateful:
		return a.stateful(arg)
	case actionPlainCtx:
		return a.plainCtx(ctx)
	case actionStatefulCtx:
		return a.statefulCtx(ctx, arg)
	}
	return nil
}

// guard is the predicate counterpart of action
type guard[S State] struct {
	kind        actionKind
	plain       func() bool
	stateful    func(Transition[S]) bool
	plainCtx    func(context.Context) (bool, error)
	statefulCtx func(context.Context, Transition[S]) (bool, error)
}

func (g guard[S]) defined() bool {
	return g.kind != actionNone
}

// evaluate returns the guard result. A missing guard passes.
func (g guard[S]) evaluate(ctx context.Context, tr Transition[S]) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	switch g.kind {
	case actionPlain:
		return g.plain(), nil
	case actionStateful:
		return g.stateful(tr), nil
	case actionPlainCtx:
		return g.plainCtx(ctx)
	case actionStatefulCtx:
		return g.statefulCtx(ctx, tr)
	}
	return true, nil
}
