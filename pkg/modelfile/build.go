package modelfile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/anggasct/hsm"
)

// wildcard is the name of the any-event and of the any-error category
const wildcard = "*"

// Model is a machine built from a File together with its symbol tables
type Model struct {
	Name    string
	Machine *hsm.Machine[State]

	states []State
	byName map[string]State
	events map[string]Event
	errors map[string]error
}

// State returns the state declared as name
func (m *Model) State(name string) (State, bool) {
	s, ok := m.byName[name]
	return s, ok
}

// States returns the declared states in file order
func (m *Model) States() []State {
	return append([]State(nil), m.states...)
}

// Event returns the event to fire for name, carrying its declared priority
func (m *Model) Event(name string) hsm.Event {
	if ev, ok := m.events[name]; ok {
		return ev
	}
	return Event{Name: name}
}

// Error returns the error declared or registered as name
func (m *Model) Error(name string) (error, bool) {
	err, ok := m.errors[name]
	return err, ok
}

type modelError struct {
	msg    string
	parent error
}

func (e *modelError) Error() string { return e.msg }
func (e *modelError) Unwrap() error { return e.parent }

// builder carries the symbol tables while a File is turned into a machine
type builder struct {
	file     *File
	registry *Registry
	model    *Model
}

// Build declares the machine described by f and initializes it
func Build(f *File, registry *Registry, opts ...hsm.Option) (*Model, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	name := f.Name
	if name == "" {
		name = "model"
	}

	b := &builder{
		file:     f,
		registry: registry,
		model: &Model{
			Name:   name,
			byName: make(map[string]State),
			events: make(map[string]Event),
			errors: make(map[string]error),
		},
	}
	if err := b.build(opts); err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	return b.model, nil
}

// LoadModel loads the file at path and builds it
func LoadModel(path string, registry *Registry, opts ...hsm.Option) (*Model, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Build(f, registry, opts...)
}

func (b *builder) build(opts []hsm.Option) error {
	if err := b.declareStates(); err != nil {
		return err
	}
	if err := b.declareErrors(); err != nil {
		return err
	}
	if err := b.declareEvents(); err != nil {
		return err
	}

	if b.file.StepLimit > 0 {
		opts = append(opts, hsm.WithStepLimit(b.file.StepLimit))
	}
	m, err := hsm.New(b.model.Name, b.model.states, opts...)
	if err != nil {
		return err
	}
	b.model.Machine = m

	for _, rule := range b.file.Exceptions {
		category, target, err := b.rule(rule)
		if err != nil {
			return fmt.Errorf("default exceptions: %w", err)
		}
		if err := m.WhenException(category, target); err != nil {
			return err
		}
	}

	if err := b.declareSuperStates(); err != nil {
		return err
	}
	if err := b.declareBehavior(); err != nil {
		return err
	}
	if err := m.Err(); err != nil {
		return err
	}

	if b.file.Initial == "" {
		return errors.New("no initial state")
	}
	initial, err := b.state(b.file.Initial)
	if err != nil {
		return fmt.Errorf("initial: %w", err)
	}
	return m.Initialize(initial, b.file.SuppressInitialEntry)
}

func (b *builder) declareStates() error {
	if len(b.file.States) == 0 {
		return errors.New("no states declared")
	}
	for _, name := range b.file.States {
		if name == "" {
			return errors.New("empty state name")
		}
		if _, dup := b.model.byName[name]; dup {
			return fmt.Errorf("state %q declared twice", name)
		}
		s := symbols.intern(name)
		b.model.byName[name] = s
		b.model.states = append(b.model.states, s)
	}
	return nil
}

func (b *builder) state(name string) (State, error) {
	s, ok := b.model.byName[name]
	if !ok {
		return 0, fmt.Errorf("unknown state %q", name)
	}
	return s, nil
}

// target resolves an optional state name, the empty name being "no state"
func (b *builder) target(name string) (State, error) {
	if name == "" {
		return 0, nil
	}
	return b.state(name)
}

// declareErrors resolves the file's errors so that each one unwraps to its parent
func (b *builder) declareErrors() error {
	names := make([]string, 0, len(b.file.Errors))
	for name := range b.file.Errors {
		if _, taken := b.registry.registeredError(name); taken {
			return fmt.Errorf("error %q is already registered", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	resolving := make(map[string]bool)
	var resolve func(name string) (error, error)
	resolve = func(name string) (error, error) {
		if err, ok := b.model.errors[name]; ok {
			return err, nil
		}
		spec, ok := b.file.Errors[name]
		if !ok {
			if err, ok := b.registry.registeredError(name); ok {
				b.model.errors[name] = err
				return err, nil
			}
			return nil, fmt.Errorf("unknown error %q", name)
		}
		if resolving[name] {
			return nil, fmt.Errorf("error %q wraps itself", name)
		}
		resolving[name] = true
		defer delete(resolving, name)

		e := &modelError{msg: spec.Message}
		if e.msg == "" {
			e.msg = strings.ReplaceAll(name, "_", " ")
		}
		if spec.Wraps != "" {
			parent, err := resolve(spec.Wraps)
			if err != nil {
				return nil, err
			}
			e.parent = parent
		}
		b.model.errors[name] = e
		return e, nil
	}

	for _, name := range names {
		if _, err := resolve(name); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) lookupError(name string) (error, error) {
	if err, ok := b.model.errors[name]; ok {
		return err, nil
	}
	if err, ok := b.registry.registeredError(name); ok {
		b.model.errors[name] = err
		return err, nil
	}
	return nil, fmt.Errorf("unknown error %q", name)
}

func (b *builder) declareEvents() error {
	for _, t := range b.file.Transitions {
		if t.IsNull() {
			continue
		}
		name := *t.On
		if name == "" {
			return fmt.Errorf("transition from %q: empty event name", t.From)
		}
		if name == wildcard {
			continue
		}
		if ev, ok := b.model.events[name]; ok && ev.Priority != t.Priority {
			return fmt.Errorf("event %q declared with priorities %d and %d", name, ev.Priority, t.Priority)
		}
		b.model.events[name] = Event{Name: name, Priority: t.Priority}
	}
	return nil
}

func (b *builder) rule(spec RuleSpec) (hsm.Category, State, error) {
	target, err := b.target(spec.Target)
	if err != nil {
		return nil, 0, err
	}
	if spec.Error == wildcard {
		return hsm.AnyError, target, nil
	}
	err, lookupErr := b.lookupError(spec.Error)
	if lookupErr != nil {
		return nil, 0, lookupErr
	}
	return hsm.Is(err), target, nil
}

func memoryType(name string) (hsm.MemoryType, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return hsm.MemoryNone, nil
	case "deep":
		return hsm.MemoryDeep, nil
	default:
		return 0, fmt.Errorf("unknown memory %q", name)
	}
}

func (b *builder) declareSuperStates() error {
	m := b.model.Machine
	for _, spec := range b.file.SuperStates {
		super, err := b.state(spec.State)
		if err != nil {
			return fmt.Errorf("superstate: %w", err)
		}
		memory, err := memoryType(spec.Memory)
		if err != nil {
			return fmt.Errorf("superstate %q: %w", spec.State, err)
		}
		initial, err := b.state(spec.Initial)
		if err != nil {
			return fmt.Errorf("superstate %q initial: %w", spec.State, err)
		}
		others := make([]State, 0, len(spec.SubStates))
		for _, name := range spec.SubStates {
			s, err := b.state(name)
			if err != nil {
				return fmt.Errorf("superstate %q: %w", spec.State, err)
			}
			others = append(others, s)
		}

		chain := m.SuperState(super, memory).WithSubStates(initial, others...)
		if spec.Inherit {
			chain.InheritExceptionStates()
		}
		for _, rule := range spec.Exceptions {
			category, target, err := b.rule(rule)
			if err != nil {
				return fmt.Errorf("superstate %q: %w", spec.State, err)
			}
			chain.WhenException(category, target)
		}
	}
	return nil
}

// declareBehavior declares hooks and transitions state by state, in file order
func (b *builder) declareBehavior() error {
	hooks := make(map[State]HookSpec)
	for _, h := range b.file.Hooks {
		s, err := b.state(h.State)
		if err != nil {
			return fmt.Errorf("hooks: %w", err)
		}
		if _, dup := hooks[s]; dup {
			return fmt.Errorf("hooks for %q declared twice", h.State)
		}
		hooks[s] = h
	}

	transitions := make(map[State][]TransitionSpec)
	for _, t := range b.file.Transitions {
		s, err := b.state(t.From)
		if err != nil {
			return fmt.Errorf("transition: %w", err)
		}
		transitions[s] = append(transitions[s], t)
	}

	for _, s := range b.model.states {
		h, hasHooks := hooks[s]
		ts := transitions[s]
		if !hasHooks && len(ts) == 0 {
			continue
		}

		chain := b.model.Machine.In(s)
		if hasHooks {
			if err := b.hooks(chain, h); err != nil {
				return err
			}
		}
		for _, t := range ts {
			if err := b.transition(chain, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) hooks(chain *hsm.StateChain[State], h HookSpec) error {
	if h.Entry != "" {
		fn, err := b.registry.action(h.Entry, b.lookupError)
		if err != nil {
			return fmt.Errorf("entry of %q: %w", h.State, err)
		}
		chain.EntryCtx(fn)
	}
	if h.Exit != "" {
		fn, err := b.registry.action(h.Exit, b.lookupError)
		if err != nil {
			return fmt.Errorf("exit of %q: %w", h.State, err)
		}
		chain.ExitCtx(fn)
	}
	return nil
}

func (b *builder) transition(chain *hsm.StateChain[State], spec TransitionSpec) error {
	var ec *hsm.EventChain[State]
	switch {
	case spec.IsNull():
		ec = chain.Immediately()
	case *spec.On == wildcard:
		ec = chain.On(hsm.AnyEvent)
	default:
		ec = chain.On(b.model.events[*spec.On])
	}

	if spec.Guard != "" {
		fn, err := b.registry.guard(spec.Guard)
		if err != nil {
			return fmt.Errorf("transition from %q: %w", spec.From, err)
		}
		ec.IfCtx(fn)
	}

	var tc *hsm.TransitionChain[State]
	if spec.To == "" {
		tc = ec.Internal()
	} else {
		to, err := b.state(spec.To)
		if err != nil {
			return fmt.Errorf("transition from %q: %w", spec.From, err)
		}
		tc = ec.Goto(to)
	}

	if spec.Action != "" {
		fn, err := b.registry.action(spec.Action, b.lookupError)
		if err != nil {
			return fmt.Errorf("transition from %q: %w", spec.From, err)
		}
		tc.ExecuteCtx(fn)
	}
	for _, rule := range spec.Exceptions {
		category, target, err := b.rule(rule)
		if err != nil {
			return fmt.Errorf("transition from %q: %w", spec.From, err)
		}
		tc.WhenException(category, target)
	}
	return nil
}
