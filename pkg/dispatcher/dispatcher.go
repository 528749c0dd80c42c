// Package dispatcher routes inbound platform interactions and events to the
// handlers held by a registry.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/morezero/dbi/pkg/events"
	"github.com/morezero/dbi/pkg/ratelimit"
	"github.com/morezero/dbi/pkg/registry"
)

const logPrefix = "dispatcher:dispatcher"

// Config holds router configuration.
type Config struct {
	// Strict propagates handler errors and panics instead of routing them to
	// the error hooks.
	Strict bool
	// DefaultLocale is the locale name used when a tag does not resolve.
	DefaultLocale string
}

// PanicError wraps a recovered handler panic.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// InteractionErrorContext is passed to the interactionError hooks.
type InteractionErrorContext struct {
	*registry.InteractionContext
	Err error
}

// RateLimitContext is passed to the interactionRateLimit hooks.
type RateLimitContext struct {
	*registry.InteractionContext
	Hit *ratelimit.Hit
}

// EventErrorContext is passed to the eventError hooks.
type EventErrorContext struct {
	*registry.EventContext
	Err error
}

// call runs fn. Outside strict mode a panic is recovered into a *PanicError.
func call(strict bool, fn func() error) (err error) {
	if !strict {
		defer func() {
			if rec := recover(); rec != nil {
				err = &PanicError{Value: rec, Stack: debug.Stack()}
			}
		}()
	}
	return fn()
}

func publish(ctx context.Context, pub events.EventPublisher, ev *events.LifecycleEvent) {
	if pub == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	if err := pub.PublishLifecycle(ctx, ev); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s for %s: %v", logPrefix, ev.Stage, ev.Name, err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
