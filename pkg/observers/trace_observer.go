package observers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/anggasct/hsm"
)

// Styler decorates one trace token, e.g. with terminal colors
type Styler func(kind hsm.StepKind, token string) string

// TraceObserver renders path and action steps in bracket notation:
// [-X] for an exit, [+X] for an entry and [From#To] for an executed action.
type TraceObserver[S hsm.State] struct {
	mutex  sync.Mutex
	b      strings.Builder
	style  Styler
	guards bool
}

// TraceOption configures a TraceObserver
type TraceOption func(*traceOptions)

type traceOptions struct {
	style  Styler
	guards bool
}

// WithStyler decorates every token with style
func WithStyler(style Styler) TraceOption {
	return func(o *traceOptions) { o.style = style }
}

// WithGuards adds guard evaluations as [?From->To=result]
func WithGuards() TraceOption {
	return func(o *traceOptions) { o.guards = true }
}

// NewTraceObserver creates a new trace observer
func NewTraceObserver[S hsm.State](opts ...TraceOption) *TraceObserver[S] {
	var o traceOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &TraceObserver[S]{style: o.style, guards: o.guards}
}

// OnStep appends the token of step
func (o *TraceObserver[S]) OnStep(step hsm.Step[S]) {
	var token string
	switch s := step.(type) {
	case *hsm.PathStep[S]:
		if s.IsEntry {
			token = fmt.Sprintf("[+%v]", s.Target)
		} else {
			token = fmt.Sprintf("[-%v]", s.Target)
		}
	case *hsm.ActionExecuted[S]:
		token = fmt.Sprintf("[%v#%v]", s.Target, s.HeadingTo)
	case *hsm.GuardEvaluated[S]:
		if !o.guards {
			return
		}
		token = fmt.Sprintf("[?%v->%v=%t]", s.Target, s.GuardTarget, s.Result)
	default:
		return
	}

	if o.style != nil {
		token = o.style(step.Kind(), token)
	}

	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.b.WriteString(token)
}

// OnException implements hsm.Observer
func (o *TraceObserver[S]) OnException(hsm.ExceptionEvent[S]) {}

// String returns the trace so far
func (o *TraceObserver[S]) String() string {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.b.String()
}

// Reset clears the trace
func (o *TraceObserver[S]) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.b.Reset()
}
