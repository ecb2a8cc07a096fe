// Package observers provides observers for monitoring state machine steps and exceptions
package observers

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anggasct/hsm"
)

// ZapObserver logs the step stream and the exception stream of a machine
type ZapObserver[S hsm.State] struct {
	logger         *zap.Logger
	stepLevel      zapcore.Level
	exceptionLevel zapcore.Level
}

// ZapOption configures a ZapObserver
type ZapOption func(*zapOptions)

type zapOptions struct {
	stepLevel      zapcore.Level
	exceptionLevel zapcore.Level
}

// WithStepLevel sets the level steps are logged at
func WithStepLevel(level zapcore.Level) ZapOption {
	return func(o *zapOptions) { o.stepLevel = level }
}

// WithExceptionLevel sets the level exceptions are logged at
func WithExceptionLevel(level zapcore.Level) ZapOption {
	return func(o *zapOptions) { o.exceptionLevel = level }
}

// NewZapObserver creates a new logging observer. Steps are logged at debug
// and exceptions at warn unless configured otherwise.
func NewZapObserver[S hsm.State](logger *zap.Logger, opts ...ZapOption) *ZapObserver[S] {
	o := zapOptions{
		stepLevel:      zapcore.DebugLevel,
		exceptionLevel: zapcore.WarnLevel,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapObserver[S]{
		logger:         logger,
		stepLevel:      o.stepLevel,
		exceptionLevel: o.exceptionLevel,
	}
}

// OnStep logs a step
func (o *ZapObserver[S]) OnStep(step hsm.Step[S]) {
	ce := o.logger.Check(o.stepLevel, step.Kind().String())
	if ce == nil {
		return
	}

	h := step.Header()
	fields := []zap.Field{
		zap.String("machine", h.Machine),
		zap.Stringer("cycle", h.Cycle),
		zap.String("state", fmt.Sprint(step.State())),
		zap.String("event", eventName(step.Event())),
	}

	switch s := step.(type) {
	case *hsm.GuardEvaluated[S]:
		fields = append(fields, zap.String("target", fmt.Sprint(s.GuardTarget)), zap.Bool("result", s.Result))
	case *hsm.PathStep[S]:
		fields = append(fields, zap.String("heading_to", fmt.Sprint(s.To)))
		if s.WhenException != nil {
			fields = append(fields, zap.NamedError("when_exception", s.WhenException))
		}
	case *hsm.ActionExecuted[S]:
		fields = append(fields, zap.String("heading_to", fmt.Sprint(s.HeadingTo)))
		if s.Err != nil {
			fields = append(fields, zap.Error(s.Err))
		}
	}

	ce.Write(fields...)
}

// OnException logs a caught error
func (o *ZapObserver[S]) OnException(ex hsm.ExceptionEvent[S]) {
	o.logger.Log(o.exceptionLevel, "exception",
		zap.String("machine", ex.Machine),
		zap.Stringer("cycle", ex.Cycle),
		zap.Stringer("source", ex.Source),
		zap.String("state", fmt.Sprint(ex.State)),
		zap.String("transition", ex.Transition.String()),
		zap.Error(ex.Err))
}

// OnCompleted flushes the logger
func (o *ZapObserver[S]) OnCompleted() {
	_ = o.logger.Sync()
}

func eventName(ev hsm.Event) string {
	if ev == nil {
		return "null"
	}
	return ev.String()
}
