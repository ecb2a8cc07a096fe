package modelfile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anggasct/hsm"
)

// Action is a named entry, exit or transition action
type Action func(ctx context.Context) error

// Guard is a named transition guard
type Guard func(ctx context.Context) (bool, error)

// Registry binds the names used in model files to code.
//
// Besides registered names, actions accept these forms:
//
//	noop             does nothing
//	fail:<error>     returns the named error
//	silent:<error>   returns the named error without publishing it
//	panic:<message>  panics with message
//	sleep:<duration> waits for duration or until the action is cancelled
//
// Guards accept "always" and "never".
type Registry struct {
	mutex   sync.RWMutex
	actions map[string]Action
	guards  map[string]Guard
	errors  map[string]error
}

// NewRegistry creates a registry holding only the built-in names
func NewRegistry() *Registry {
	r := &Registry{
		actions: make(map[string]Action),
		guards:  make(map[string]Guard),
		errors:  make(map[string]error),
	}
	r.RegisterAction("noop", func(context.Context) error { return nil })
	r.RegisterGuard("always", func(context.Context) (bool, error) { return true, nil })
	r.RegisterGuard("never", func(context.Context) (bool, error) { return false, nil })
	return r
}

// RegisterAction binds name to fn, replacing a previous binding
func (r *Registry) RegisterAction(name string, fn Action) *Registry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.actions[name] = fn
	return r
}

// RegisterGuard binds name to fn, replacing a previous binding
func (r *Registry) RegisterGuard(name string, fn Guard) *Registry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.guards[name] = fn
	return r
}

// RegisterError binds name to err so model files can route and raise it
func (r *Registry) RegisterError(name string, err error) *Registry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.errors[name] = err
	return r
}

func (r *Registry) registeredError(name string) (error, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	err, ok := r.errors[name]
	return err, ok
}

// action resolves an action name. lookup resolves the error names of the model being built.
func (r *Registry) action(name string, lookup func(string) (error, error)) (Action, error) {
	r.mutex.RLock()
	fn, ok := r.actions[name]
	r.mutex.RUnlock()
	if ok {
		return fn, nil
	}

	kind, arg, found := strings.Cut(name, ":")
	if !found {
		return nil, fmt.Errorf("unknown action %q", name)
	}
	switch kind {
	case "fail", "silent":
		err, lookupErr := lookup(arg)
		if lookupErr != nil {
			return nil, fmt.Errorf("action %q: %w", name, lookupErr)
		}
		if kind == "silent" {
			err = hsm.Silent(err)
		}
		return func(context.Context) error { return err }, nil
	case "panic":
		return func(context.Context) error { panic(arg) }, nil
	case "sleep":
		d, err := time.ParseDuration(arg)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", name, err)
		}
		return func(ctx context.Context) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", name)
	}
}

func (r *Registry) guard(name string) (Guard, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	fn, ok := r.guards[name]
	if !ok {
		return nil, fmt.Errorf("unknown guard %q", name)
	}
	return fn, nil
}
