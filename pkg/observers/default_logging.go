package observers

import (
	"go.uber.org/zap"

	"github.com/anggasct/hsm"
)

// NewDefaultZapObserver creates a logging observer on the global zap logger
func NewDefaultZapObserver[S hsm.State]() *ZapObserver[S] {
	return NewZapObserver[S](zap.L().Named("hsm.observer"))
}
