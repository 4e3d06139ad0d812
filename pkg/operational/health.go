package operational

import (
	"github.com/heptiolabs/healthcheck"
)

const maxGoroutines = 1000

// NewHealthHandler builds the /live and /ready handler. ready reports whether the model is usable.
func NewHealthHandler(ready healthcheck.Check) healthcheck.Handler {
	handler := healthcheck.NewHandler()
	handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	handler.AddReadinessCheck("model", ready)
	return handler
}
