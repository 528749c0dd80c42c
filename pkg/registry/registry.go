package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/morezero/dbi/pkg/customid"
	"github.com/morezero/dbi/pkg/locale"
)

const logPrefix = "registry:registry"

// FlagAll loads every flagged definition.
const FlagAll = "all"

// Config holds registry configuration.
type Config struct {
	// Strict rejects duplicate keys instead of overwriting.
	Strict bool
}

// NewRegistryParams holds the dependencies of a Registry.
type NewRegistryParams struct {
	Config       Config
	Codec        *customid.Codec
	Locales      *locale.Registry
	Interactions *locale.InteractionRegistry
	// Now defaults to time.Now.
	Now func() time.Time
}

type collection struct {
	order  []string
	byName map[string]*Definition
}

func newCollection() *collection {
	return &collection{byName: make(map[string]*Definition)}
}

// Registry is the registration table of one framework instance.
type Registry struct {
	mu           sync.RWMutex
	config       Config
	codec        *customid.Codec
	locales      *locale.Registry
	interactions *locale.InteractionRegistry
	now          func() time.Time

	collections map[Kind]*collection
	// commands is KindChatInput sorted by descending segment count.
	commands  []*Definition
	events    []*EventDefinition
	eventIDs  map[string]*EventDefinition
	eventSeq  int
	unloaders []func()
}

// NewRegistry creates a Registry.
func NewRegistry(params NewRegistryParams) *Registry {
	locales := params.Locales
	if locales == nil {
		locales = locale.NewRegistry()
	}
	interactions := params.Interactions
	if interactions == nil {
		interactions = locale.NewInteractionRegistry()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		config:       params.Config,
		codec:        params.Codec,
		locales:      locales,
		interactions: interactions,
		now:          now,
	}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.collections = make(map[Kind]*collection, len(Kinds))
	for _, k := range Kinds {
		r.collections[k] = newCollection()
	}
	r.commands = nil
	r.events = nil
	r.eventIDs = make(map[string]*EventDefinition)
	r.unloaders = nil
}

// Strict reports whether duplicates are rejected.
func (r *Registry) Strict() bool { return r.config.Strict }

// Locales returns the locale registry.
func (r *Registry) Locales() *locale.Registry { return r.locales }

// Interactions returns the interaction locale registry.
func (r *Registry) Interactions() *locale.InteractionRegistry { return r.interactions }

// Codec returns the custom id codec handed to component definitions.
func (r *Registry) Codec() *customid.Codec { return r.codec }

// RegisterFunc adds definitions through a Registrar.
type RegisterFunc func(reg *Registrar) error

// Load runs every RegisterFunc with flags, then sorts the command table. A
// failing RegisterFunc does not stop the others; all failures are joined.
func (r *Registry) Load(flags []string, fns ...RegisterFunc) error {
	var errs []error
	for _, fn := range fns {
		if err := fn(&Registrar{reg: r, flags: flags}); err != nil {
			errs = append(errs, err)
		}
	}
	r.mu.Lock()
	r.sortCommands()
	r.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - loaded flags=%v commands=%d events=%d", logPrefix, flags, len(r.Commands()), len(r.Events())))
	return joinErrors(errs)
}

func (r *Registry) sortCommands() {
	c := r.collections[KindChatInput]
	cmds := make([]*Definition, 0, len(c.order))
	for _, name := range c.order {
		cmds = append(cmds, c.byName[name])
	}
	sort.SliceStable(cmds, func(i, j int) bool {
		return cmds[i].Segments() > cmds[j].Segments()
	})
	r.commands = cmds
}

func (r *Registry) insert(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%s - %s definition has no name", logPrefix, def.Kind)
	}
	if def.Kind == KindChatInput {
		def.Name = strings.Join(strings.Fields(def.Name), " ")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[def.Kind]
	if !ok {
		return fmt.Errorf("%s - unknown kind %d for %q", logPrefix, def.Kind, def.Name)
	}
	if _, exists := c.byName[def.Name]; exists {
		if r.config.Strict {
			return &DuplicateHandlerError{Collection: def.Kind.String(), Name: def.Name}
		}
		slog.Debug(fmt.Sprintf("%s - overwriting %s %q", logPrefix, def.Kind, def.Name))
	} else {
		c.order = append(c.order, def.Name)
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = r.now()
	}
	def.codec = r.codec
	c.byName[def.Name] = def
	return nil
}

func (r *Registry) insertEvent(def *EventDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("%s - event definition has no event name", logPrefix)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if def.ID == "" {
		r.eventSeq++
		def.ID = fmt.Sprintf("%s#%d", def.Name, r.eventSeq)
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = r.now()
	}
	if old, exists := r.eventIDs[def.ID]; exists {
		if r.config.Strict {
			return &DuplicateHandlerError{Collection: "event", Name: def.ID}
		}
		for i, e := range r.events {
			if e == old {
				r.events[i] = def
				break
			}
		}
	} else {
		r.events = append(r.events, def)
	}
	r.eventIDs[def.ID] = def
	return nil
}

// AddInline inserts a definition outside of a load pass, ignoring flags.
func (r *Registry) AddInline(def *Definition) error {
	if err := r.insert(def); err != nil {
		return err
	}
	if def.Kind == KindChatInput {
		r.mu.Lock()
		r.sortCommands()
		r.mu.Unlock()
	}
	return nil
}

// AddInlineEvent inserts an event definition outside of a load pass.
func (r *Registry) AddInlineEvent(def *EventDefinition) error {
	return r.insertEvent(def)
}

// Remove deletes an interaction definition.
func (r *Registry) Remove(kind Kind, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.removeLocked(kind, name) {
		return false
	}
	if kind == KindChatInput {
		r.sortCommands()
	}
	return true
}

func (r *Registry) removeLocked(kind Kind, name string) bool {
	c, ok := r.collections[kind]
	if !ok {
		return false
	}
	if _, exists := c.byName[name]; !exists {
		return false
	}
	delete(c.byName, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// RemoveEvent deletes an event definition by ID.
func (r *Registry) RemoveEvent(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeEventLocked(id)
}

func (r *Registry) removeEventLocked(id string) bool {
	def, ok := r.eventIDs[id]
	if !ok {
		return false
	}
	delete(r.eventIDs, id)
	for i, e := range r.events {
		if e == def {
			r.events = append(r.events[:i], r.events[i+1:]...)
			break
		}
	}
	return true
}

// Sweep removes every definition whose TTL has elapsed and returns how many
// were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	commandsChanged := false
	for kind, c := range r.collections {
		for _, name := range append([]string(nil), c.order...) {
			if c.byName[name].Expired(now) {
				r.removeLocked(kind, name)
				removed++
				if kind == KindChatInput {
					commandsChanged = true
				}
			}
		}
	}
	for _, e := range append([]*EventDefinition(nil), r.events...) {
		if e.Expired(now) {
			r.removeEventLocked(e.ID)
			removed++
		}
	}
	if commandsChanged {
		r.sortCommands()
	}
	return removed
}

// Unload runs the unloaders, then empties every collection and the locale
// registries.
func (r *Registry) Unload() {
	r.mu.Lock()
	unloaders := r.unloaders
	r.reset()
	r.mu.Unlock()

	for i := len(unloaders) - 1; i >= 0; i-- {
		unloaders[i]()
	}
	r.locales.Clear()
	r.interactions.Clear()
	slog.Info(fmt.Sprintf("%s - unloaded (%d unloaders)", logPrefix, len(unloaders)))
}

// Commands returns the chat input commands, longest names first.
func (r *Registry) Commands() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, len(r.commands))
	copy(out, r.commands)
	return out
}

// MatchCommand returns the most specific chat input command whose name equals
// path or is a segment prefix of it.
func (r *Registry) MatchCommand(path string) *Definition {
	path = strings.Join(strings.Fields(path), " ")
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, def := range r.commands {
		if def.Name == path || strings.HasPrefix(path, def.Name+" ") {
			return def
		}
	}
	return nil
}

// Find returns the definition of kind named name.
func (r *Registry) Find(kind Kind, name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[kind]
	if !ok {
		return nil
	}
	return c.byName[name]
}

// List returns the definitions of kind in registration order.
func (r *Registry) List(kind Kind) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[kind]
	if !ok {
		return nil
	}
	out := make([]*Definition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Events returns every event definition in registration order.
func (r *Registry) Events() []*EventDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*EventDefinition, len(r.events))
	copy(out, r.events)
	return out
}

// EventsFor returns the definitions subscribed to event in registration order.
func (r *Registry) EventsFor(event string) []*EventDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*EventDefinition
	for _, e := range r.events {
		if e.Name == event {
			out = append(out, e)
		}
	}
	return out
}

// Event returns the event definition with id.
func (r *Registry) Event(id string) *EventDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eventIDs[id]
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s - load failed: %w", logPrefix, errors.Join(errs...))
}
