package hsm

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anggasct/hsm/internal/ctxmutex"
)

// Status is the lifecycle position of a machine. It only advances
// forward until Stop resets it to StatusCreated.
type Status int

const (
	// StatusCreated means the machine is being declared, or was stopped
	StatusCreated Status = iota
	// StatusInitialized means the model is frozen and the initial state is recorded
	StatusInitialized
	// StatusStarted means the initial entry ran and events are processed
	StatusStarted
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusInitialized:
		return "initialized"
	case StatusStarted:
		return "started"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Machine is a hierarchical state machine over the state enumeration S
type Machine[S State] struct {
	id        uuid.UUID
	name      string
	logger    *zap.Logger
	stepLimit int
	parent    context.Context

	enumeration []S
	known       map[S]struct{}

	states      map[S]*stateInfo[S]
	hierarchy   *hierarchy[S]
	transitions []*transitionInfo[S]
	defaults    *ExceptionTable[S]
	buildErrs   []error

	// lock serializes Fire, Goto and Start
	lock      *ctxmutex.CtxMutex
	observers *ObserverManager[S]
	consumers sync.WaitGroup

	mutex                sync.RWMutex
	status               Status
	current              S
	initial              S
	suppressInitialEntry bool
	lastException        *ExceptionEvent[S]
	disposed             bool
	scope                context.Context
	cancelScope          context.CancelFunc
	detach               context.CancelFunc
}

// New creates a machine over the closed enumeration states.
// The enumeration must not contain the zero value.
func New[S State](name string, states []S, opts ...Option) (*Machine[S], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if len(states) == 0 {
		return nil, NewModelError(ErrCodeInvalidState, "", "states enumeration is empty")
	}

	var zero S
	known := make(map[S]struct{}, len(states))
	for _, s := range states {
		if s == zero {
			return nil, NewModelError(ErrCodeInvalidState, "", "states enumeration cannot contain the zero value, ensure all values differ from zero")
		}
		if _, dup := known[s]; dup {
			return nil, newModelErrorf(ErrCodeDuplicateState, s, "state is listed twice in the enumeration")
		}
		known[s] = struct{}{}
	}

	id := uuid.New()
	scope, cancel := context.WithCancel(o.parent)

	m := &Machine[S]{
		id:          id,
		name:        name,
		logger:      o.logger.Named("hsm").With(zap.String("machine", name), zap.Stringer("machine_id", id)),
		stepLimit:   o.stepLimit,
		parent:      o.parent,
		enumeration: append([]S(nil), states...),
		known:       known,
		states:      make(map[S]*stateInfo[S]),
		hierarchy:   newHierarchy[S](),
		defaults:    NewExceptionTable[S](),
		lock:        ctxmutex.New(),
		status:      StatusCreated,
		scope:       scope,
		cancelScope: cancel,
	}
	m.observers = NewObserverManager[S](func(observer Observer[S], recovered any) {
		m.logger.Error("observer panicked",
			zap.String("observer", fmt.Sprintf("%T", observer)),
			zap.Any("panic", recovered))
	})

	return m, nil
}

// ID returns the unique identifier of the machine instance
func (m *Machine[S]) ID() uuid.UUID {
	return m.id
}

// Name returns the informational name given to New
func (m *Machine[S]) Name() string {
	return m.name
}

// StepLimit returns the null transition cascade bound
func (m *Machine[S]) StepLimit() int {
	return m.stepLimit
}

// States returns the state enumeration
func (m *Machine[S]) States() []S {
	return append([]S(nil), m.enumeration...)
}

// Status returns the lifecycle status
func (m *Machine[S]) Status() Status {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.status
}

// CurrentState returns the current leaf state
func (m *Machine[S]) CurrentState() S {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// LastException returns the last error caught from user code
func (m *Machine[S]) LastException() (ExceptionEvent[S], bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.lastException == nil {
		return ExceptionEvent[S]{}, false
	}
	return *m.lastException, true
}

// Subscribe adds an observer to the step and exception streams
func (m *Machine[S]) Subscribe(observer Observer[S]) {
	m.observers.AddObserver(observer)
}

// Unsubscribe removes an observer
func (m *Machine[S]) Unsubscribe(observer Observer[S]) {
	m.observers.RemoveObserver(observer)
}

// TouchedStates returns the exit and entry paths between two states
func (m *Machine[S]) TouchedStates(from, to S) TouchedStates[S] {
	return m.hierarchy.touchedStates(from, to)
}

// Err returns the declaration errors recorded by the builder
func (m *Machine[S]) Err() error {
	return errors.Join(m.buildErrs...)
}

// WhenException sets a machine wide exception route. It must be called before
// any superstate is declared, and only affects transitions declared afterwards.
func (m *Machine[S]) WhenException(category Category, target S) error {
	if err := m.ensureMutable(); err != nil {
		return err
	}
	if m.hierarchy.len() > 0 {
		return NewModelError(ErrCodeDeclarationOrder, "", "default error states must be set before any superstate is declared")
	}
	if err := m.ensureKnownOrZero(target); err != nil {
		return err
	}
	m.defaults.Set(category, target)
	return nil
}

// Initialize freezes the model and records the initial state. No action is run.
func (m *Machine[S]) Initialize(initial S, suppressEntry bool) error {
	if err := m.ensureInitialized(false); err != nil {
		return err
	}
	if err := m.Err(); err != nil {
		return err
	}
	if err := m.ensureKnown(initial); err != nil {
		return err
	}
	if err := m.validateModel(); err != nil {
		return err
	}

	m.hierarchy.freeze(m.enumeration, m.defaults.Clone())

	m.mutex.Lock()
	m.initial = initial
	m.suppressInitialEntry = suppressEntry
	m.status = StatusInitialized
	m.mutex.Unlock()

	m.logger.Debug("machine initialized",
		zap.String("initial", fmt.Sprint(initial)),
		zap.Bool("suppress_entry", suppressEntry))
	return nil
}

// Start runs the entry path to the initial state, settles null transitions,
// and then consumes source one event at a time until Stop or Dispose.
// A nil source is allowed when events are only delivered through Fire.
func (m *Machine[S]) Start(ctx context.Context, source <-chan Event) (S, error) {
	if err := m.ensureInitialized(true); err != nil {
		return m.CurrentState(), err
	}
	if err := m.ensureStarted(false); err != nil {
		return m.CurrentState(), err
	}

	if err := m.lock.Lock(ctx); err != nil {
		return m.CurrentState(), NewCancelledError(m.name, "start", err)
	}
	defer m.lock.Unlock()

	c, done := m.newCycle(ctx)
	defer done()

	err := m.contain(c, func() error {
		var zero S
		path := m.hierarchy.touchedStates(zero, m.initial)
		tr := Transition[S]{To: m.initial}
		if !m.suppressInitialEntry {
			for _, s := range path.Entries {
				m.enterState(c, tr, s, nil)
			}
		}

		current := m.initial
		if len(path.Entries) > 0 {
			current = path.Entries[len(path.Entries)-1]
		}
		m.setCurrent(current)

		return m.fireNull(c)
	})
	if err != nil {
		m.logger.Warn("machine failed to start", zap.Error(err))
		return m.CurrentState(), err
	}

	m.mutex.Lock()
	consumerCtx, detach := context.WithCancel(m.scope)
	m.detach = detach
	m.status = StatusStarted
	m.mutex.Unlock()

	if source != nil {
		m.consumers.Add(1)
		go m.consume(consumerCtx, source)
	}

	m.logger.Info("machine started", zap.String("state", fmt.Sprint(m.CurrentState())))
	return m.CurrentState(), nil
}

// consume forwards events from source to Fire strictly one at a time
func (m *Machine[S]) consume(ctx context.Context, source <-chan Event) {
	defer m.consumers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-source:
			if !ok {
				m.logger.Debug("event source closed")
				return
			}
			if _, err := m.Fire(ctx, ev); err != nil {
				m.logger.Warn("event processing failed", zap.String("event", eventName(ev)), zap.Error(err))
			}
		}
	}
}

// Fire processes one event and the null transitions following it.
// Errors raised by user code never escape: they are routed or published.
// The returned error reports lifecycle violations, cancellation while
// waiting for the machine, and an exceeded step limit.
func (m *Machine[S]) Fire(ctx context.Context, ev Event) (S, error) {
	if err := m.ensureStarted(true); err != nil {
		return m.CurrentState(), err
	}

	if err := m.lock.Lock(ctx); err != nil {
		return m.CurrentState(), NewCancelledError(m.name, "fire", err)
	}
	defer m.lock.Unlock()

	// Stop may have happened while waiting
	if err := m.ensureStarted(true); err != nil {
		return m.CurrentState(), err
	}

	c, done := m.newCycle(ctx)
	defer done()

	m.logger.Debug("firing event", zap.String("event", eventName(ev)), zap.Stringer("cycle", c.id))

	err := m.contain(c, func() error {
		if !m.performFire(c, ev) {
			m.logger.Debug("event absorbed", zap.String("event", eventName(ev)), zap.String("state", fmt.Sprint(m.current)))
			return nil
		}
		return m.fireNull(c)
	})
	return m.CurrentState(), err
}

// Goto forcefully moves the machine to state, bypassing selection and guards.
// No null transitions are attempted afterwards.
func (m *Machine[S]) Goto(ctx context.Context, state S, suppress Suppress) (S, error) {
	if err := m.ensureStarted(true); err != nil {
		return m.CurrentState(), err
	}
	if err := m.ensureKnownOrZero(state); err != nil {
		return m.CurrentState(), err
	}

	if err := m.lock.Lock(ctx); err != nil {
		return m.CurrentState(), NewCancelledError(m.name, "goto", err)
	}
	defer m.lock.Unlock()

	c, done := m.newCycle(ctx)
	defer done()

	err := m.contain(c, func() error {
		forced := &transitionInfo[S]{from: m.current, to: state}
		next := m.execute(c, forced, nil, suppress)
		m.setCurrent(next)
		m.observers.NotifyStep(&StationaryReached[S]{StepHeader: m.header(c), Target: next})
		return nil
	})
	return m.CurrentState(), err
}

// Stop cancels outstanding work and detaches the event source. With cleanup
// the model is cleared and has to be declared again before Initialize.
// In-flight Fire calls are not interrupted; with cleanup Stop waits for them.
func (m *Machine[S]) Stop(cleanup bool) {
	m.mutex.Lock()
	m.cancelScope()
	if m.detach != nil {
		m.detach()
		m.detach = nil
	}
	m.status = StatusCreated
	if !m.disposed {
		m.scope, m.cancelScope = context.WithCancel(m.parent)
	}
	m.mutex.Unlock()

	if cleanup {
		_ = m.lock.Lock(context.Background())
		m.clearModel()
		m.lock.Unlock()
	}

	m.logger.Info("machine stopped", zap.Bool("cleanup", cleanup))
}

// Dispose stops the machine, waits for the event consumer and any in-flight
// Fire, then completes both observable streams.
func (m *Machine[S]) Dispose() {
	m.mutex.Lock()
	if m.disposed {
		m.mutex.Unlock()
		return
	}
	m.disposed = true
	m.cancelScope()
	if m.detach != nil {
		m.detach()
		m.detach = nil
	}
	m.status = StatusCreated
	m.mutex.Unlock()

	m.consumers.Wait()
	_ = m.lock.Lock(context.Background())
	m.lock.Unlock()

	m.observers.Complete()
	m.logger.Debug("machine disposed")
}

func (m *Machine[S]) clearModel() {
	m.states = make(map[S]*stateInfo[S])
	m.hierarchy.reset()
	m.transitions = nil
	m.defaults = NewExceptionTable[S]()
	m.buildErrs = nil
}

// cycle carries the correlation id and the action context of one Fire
type cycle struct {
	ctx context.Context
	id  uuid.UUID
}

// newCycle derives the action context: it is cancelled when either the
// machine scope or the caller's context is done.
func (m *Machine[S]) newCycle(ctx context.Context) (*cycle, func()) {
	m.mutex.RLock()
	scope := m.scope
	m.mutex.RUnlock()

	actionCtx, cancel := context.WithCancel(scope)
	stop := context.AfterFunc(ctx, cancel)
	return &cycle{ctx: actionCtx, id: uuid.New()}, func() {
		stop()
		cancel()
	}
}

func (m *Machine[S]) header(c *cycle) StepHeader {
	return StepHeader{MachineID: m.id, Machine: m.name, Cycle: c.id}
}

// contain reports engine panics on the exception stream instead of propagating them
func (m *Machine[S]) contain(c *cycle, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{Value: r, Stack: debug.Stack()}
			m.logger.Error("engine failure", zap.Error(perr), zap.ByteString("stack", perr.Stack))
			m.observers.NotifyException(ExceptionEvent[S]{
				StepHeader: m.header(c),
				State:      m.current,
				Source:     SourceInternal,
				Err:        perr,
			})
			err = nil
		}
	}()
	return fn()
}

func (m *Machine[S]) setCurrent(state S) {
	m.mutex.Lock()
	m.current = state
	m.mutex.Unlock()
}

// raise records a user error and publishes it unless it is silent
func (m *Machine[S]) raise(ex ExceptionEvent[S]) {
	m.mutex.Lock()
	m.lastException = &ex
	m.mutex.Unlock()

	if IsSilent(ex.Err) {
		m.logger.Debug("silent error", zap.Stringer("source", ex.Source), zap.Error(ex.Err))
		return
	}
	m.logger.Debug("error caught", zap.Stringer("source", ex.Source), zap.String("state", fmt.Sprint(ex.State)), zap.Error(ex.Err))
	m.observers.NotifyException(ex)
}
