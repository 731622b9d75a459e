package cmdlog

import (
	"time"

	"niceguy/internal/logging"
	"niceguy/internal/metrics"
)

// Run executes f as the named command, counting the run and logging
// <cmd>_ok or <cmd>_error with the elapsed time.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	fields := map[string]any{"elapsed_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandError(cmd)
		fields["error"] = err.Error()
		logging.Error(cmd+"_error", fields)
	} else {
		logging.Info(cmd+"_ok", fields)
	}
	return err
}
