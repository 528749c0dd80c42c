// Package hooks holds the global lifecycle hook chains consulted by the
// interaction and event routers.
package hooks

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

const logPrefix = "hooks:hooks"

// Stage names a lifecycle point.
type Stage string

// Lifecycle stages.
const (
	BeforeInteraction    Stage = "beforeInteraction"
	AfterInteraction     Stage = "afterInteraction"
	InteractionError     Stage = "interactionError"
	InteractionRateLimit Stage = "interactionRateLimit"
	BeforeEvent          Stage = "beforeEvent"
	AfterEvent           Stage = "afterEvent"
	EventError           Stage = "eventError"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{
	BeforeInteraction, AfterInteraction, InteractionError, InteractionRateLimit,
	BeforeEvent, AfterEvent, EventError,
}

// Hook receives the stage context. Gate stages treat a false return as a veto;
// the return value of non-gate stages is ignored.
type Hook func(ctx interface{}) bool

// Chain is an ordered, concurrency-safe list of hooks.
type Chain struct {
	mu    sync.RWMutex
	hooks []Hook
}

// Add appends a hook.
func (c *Chain) Add(h Hook) {
	if h == nil {
		return
	}
	c.mu.Lock()
	c.hooks = append(c.hooks, h)
	c.mu.Unlock()
}

// Len returns the number of hooks.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hooks)
}

// Clear removes all hooks.
func (c *Chain) Clear() {
	c.mu.Lock()
	c.hooks = nil
	c.mu.Unlock()
}

func (c *Chain) snapshot() []Hook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Hook, len(c.hooks))
	copy(out, c.hooks)
	return out
}

// All runs the hooks in order and stops at the first one that does not allow
// continuation. An empty chain allows.
func (c *Chain) All(ctx interface{}) bool {
	for _, h := range c.snapshot() {
		if !h(ctx) {
			return false
		}
	}
	return true
}

// Any runs every hook and reports whether at least one returned true.
func (c *Chain) Any(ctx interface{}) bool {
	handled := false
	for _, h := range c.snapshot() {
		if h(ctx) {
			handled = true
		}
	}
	return handled
}

// Run calls every hook synchronously, ignoring return values.
func (c *Chain) Run(ctx interface{}) {
	for _, h := range c.snapshot() {
		h(ctx)
	}
}

// Go calls every hook on a separate goroutine. A panicking hook is logged and
// does not affect the caller.
func (c *Chain) Go(stage Stage, ctx interface{}) {
	hooks := c.snapshot()
	if len(hooks) == 0 {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error(fmt.Sprintf("%s - %s hook panicked: %v\n%s", logPrefix, stage, r, debug.Stack()))
			}
		}()
		for _, h := range hooks {
			h(ctx)
		}
	}()
}

// Set is the full collection of chains, one per stage.
type Set struct {
	chains map[Stage]*Chain
}

// NewSet creates a Set with an empty chain per stage.
func NewSet() *Set {
	s := &Set{chains: make(map[Stage]*Chain, len(Stages))}
	for _, st := range Stages {
		s.chains[st] = &Chain{}
	}
	return s
}

// On adds h to the chain of stage. Unknown stages are rejected.
func (s *Set) On(stage Stage, h Hook) error {
	c, ok := s.chains[stage]
	if !ok {
		return fmt.Errorf("%s - unknown stage %q", logPrefix, stage)
	}
	c.Add(h)
	return nil
}

// Chain returns the chain for stage, or an empty chain for unknown stages.
func (s *Set) Chain(stage Stage) *Chain {
	if c, ok := s.chains[stage]; ok {
		return c
	}
	return &Chain{}
}

// Clear empties every chain.
func (s *Set) Clear() {
	for _, c := range s.chains {
		c.Clear()
	}
}
