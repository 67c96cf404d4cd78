package future

import (
	"runtime/debug"

	"github.com/amp-labs/llmtrace/logger"
	"github.com/amp-labs/llmtrace/utils"
)

// invokeCallback runs callback(value) in its own goroutine. Nil callbacks are
// ignored and panics are recovered and logged, so a misbehaving callback can
// neither block fulfillment nor crash the process.
func invokeCallback[T any](kind string, callback func(T), value T) {
	if callback == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if err := utils.GetPanicRecoveryError(r, debug.Stack()); err != nil {
					logger.Get().Error("panic encountered in future."+kind+" callback", "error", err)
				}
			}
		}()

		callback(value)
	}()
}
