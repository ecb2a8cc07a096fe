package hsm

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// DefaultStepLimit bounds null transition cascades unless WithStepLimit is given
const DefaultStepLimit = math.MaxUint16

type options struct {
	logger    *zap.Logger
	stepLimit int
	parent    context.Context
}

// Option configures a Machine
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		stepLimit: DefaultStepLimit,
		parent:    context.Background(),
	}
}

// WithLogger sets the logger used by the engine
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStepLimit bounds the number of consecutive null transitions.
// Values below one are ignored.
func WithStepLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.stepLimit = limit
		}
	}
}

// WithParentContext links the machine's cancellation scope to ctx
func WithParentContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.parent = ctx
		}
	}
}
