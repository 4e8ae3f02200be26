package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/voicememo/logger"
)

// Hook is a lifecycle callback.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// OnStart registers fn to run after components start and before configure.
func (a *App[C]) OnStart(name string, fn Hook) {
	a.onStart = append(a.onStart, namedHook{name, fn})
}

// OnReady registers fn to run after the ready check, e.g. arming capture
// once every service is wired.
func (a *App[C]) OnReady(name string, fn Hook) {
	a.onReady = append(a.onReady, namedHook{name, fn})
}

// OnStop registers fn to run before components stop. Stop hooks all run
// even when one fails.
func (a *App[C]) OnStop(name string, fn Hook) {
	a.onStop = append(a.onStop, namedHook{name, fn})
}

// runHooks runs hooks in registration order. Startup phases stop at the
// first failure; with keepGoing every hook runs and failures are joined.
func runHooks(ctx context.Context, log *logger.Logger, phase string, hooks []namedHook, keepGoing bool) error {
	var errs []error
	for _, h := range hooks {
		start := time.Now()
		err := h.fn(ctx)
		if err == nil {
			log.Debug("hook done", logger.Fields("phase", phase, "hook", h.name, "took", time.Since(start).String()))
			continue
		}
		err = fmt.Errorf("%s hook %s: %w", phase, h.name, err)
		if !keepGoing {
			return err
		}
		log.Warn("hook failed", logger.Fields("phase", phase, "hook", h.name, logger.FieldError, err.Error()))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
