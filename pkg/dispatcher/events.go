package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/clients"
	"github.com/morezero/dbi/pkg/events"
	"github.com/morezero/dbi/pkg/hooks"
	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/metrics"
	"github.com/morezero/dbi/pkg/registry"
)

const eventsLogPrefix = "dispatcher:events"

// NewEventRouterParams holds the dependencies of an EventRouter.
type NewEventRouterParams struct {
	Config    Config
	Registry  *registry.Registry
	Hooks     *hooks.Set
	Clients   *clients.Pool
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
}

// EventRouter fans a named event out to every subscribed handler.
type EventRouter struct {
	config    Config
	registry  *registry.Registry
	hooks     *hooks.Set
	clients   *clients.Pool
	publisher events.EventPublisher
	metrics   *metrics.Metrics

	mu         sync.RWMutex
	customArgs map[string][]string
}

// NewEventRouter creates an EventRouter.
func NewEventRouter(params NewEventRouterParams) *EventRouter {
	h := params.Hooks
	if h == nil {
		h = hooks.NewSet()
	}
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	return &EventRouter{
		config:     params.Config,
		registry:   params.Registry,
		hooks:      h,
		clients:    params.Clients,
		publisher:  pub,
		metrics:    params.Metrics,
		customArgs: make(map[string][]string),
	}
}

// RegisterArgs names the positional arguments of event. Custom mappings take
// precedence over the built-in table and are removed by ClearCustomArgs.
func (r *EventRouter) RegisterArgs(event string, argNames ...string) {
	names := make([]string, len(argNames))
	copy(names, argNames)
	r.mu.Lock()
	r.customArgs[event] = names
	r.mu.Unlock()
}

// ClearCustomArgs removes every mapping added with RegisterArgs.
func (r *EventRouter) ClearCustomArgs() {
	r.mu.Lock()
	r.customArgs = make(map[string][]string)
	r.mu.Unlock()
}

// ArgNames returns the argument names of event.
func (r *EventRouter) ArgNames(event string) ([]string, bool) {
	r.mu.RLock()
	names, ok := r.customArgs[event]
	r.mu.RUnlock()
	if ok {
		return names, true
	}
	names, ok = defaultArgNames[event]
	return names, ok
}

// Intercept accepts any platform event value, as delivered to a
// func(*discordgo.Session, interface{}) handler, and dispatches it.
func (r *EventRouter) Intercept(ctx context.Context, s *discordgo.Session, event interface{}) error {
	if direct, ok := event.(*DirectEvent); ok {
		return r.DispatchNamed(ctx, s, direct.Name, direct.Args)
	}
	name, args, ok := EventArgs(event)
	if !ok {
		return nil
	}
	return r.Dispatch(ctx, s, name, args)
}

// Dispatch maps positional args of event to names and fans the event out.
// Events without a mapping are ignored.
func (r *EventRouter) Dispatch(ctx context.Context, s *discordgo.Session, event string, args []interface{}) error {
	names, ok := r.ArgNames(event)
	if !ok {
		return nil
	}
	named := make(map[string]interface{}, len(names))
	for i, n := range names {
		if i < len(args) {
			named[n] = args[i]
		}
	}
	return r.DispatchNamed(ctx, s, event, named)
}

// DispatchNamed fans out an event whose arguments are already named.
//
// Unordered handlers are launched in registration order without waiting for
// them; ordered handlers run one after another. The two groups proceed
// independently and afterEvent fires once both loops are done. In strict mode
// the first ordered handler error stops the ordered group and is returned.
func (r *EventRouter) DispatchNamed(ctx context.Context, s *discordgo.Session, event string, args map[string]interface{}) error {
	if args == nil {
		args = make(map[string]interface{})
	}
	lc := r.guildLocale(s, args)

	var ordered, unordered []*registry.EventDefinition
	for _, def := range r.registry.EventsFor(event) {
		if def.Disabled {
			continue
		}
		if def.Ordered {
			ordered = append(ordered, def)
		} else {
			unordered = append(unordered, def)
		}
	}

	var wg sync.WaitGroup
	if len(unordered) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, def := range unordered {
				r.runOne(ctx, s, event, args, lc, def, false)
			}
		}()
	}

	var firstErr error
	for _, def := range ordered {
		// Only strict mode returns handler errors; the rest of the group is skipped.
		if err := r.runOne(ctx, s, event, args, lc, def, true); err != nil {
			firstErr = err
			break
		}
	}
	wg.Wait()

	after := &registry.EventContext{Name: event, Session: s, Args: args, Locale: lc}
	r.hooks.Chain(hooks.AfterEvent).Go(hooks.AfterEvent, after)
	publish(ctx, r.publisher, &events.LifecycleEvent{Stage: events.StageAfterEvent, Kind: "event", Name: event})
	return firstErr
}

// runOne gates, delays and invokes one handler. Ordered handlers are awaited.
func (r *EventRouter) runOne(ctx context.Context, s *discordgo.Session, event string, args map[string]interface{}, lc locale.Context, def *registry.EventDefinition, await bool) error {
	ectx := &registry.EventContext{
		Name:       event,
		Session:    s,
		Args:       args,
		Definition: def,
		Locale:     lc,
		Client:     r.pick(def, s),
		Other:      make(map[string]interface{}),
	}
	if !r.hooks.Chain(hooks.BeforeEvent).All(ectx) {
		r.metrics.RecordEvent(event, metrics.OutcomeVetoed)
		return nil
	}

	sleep(ctx, def.DelayBefore)
	defer sleep(ctx, def.DelayAfter)

	if def.OnExecute == nil {
		return nil
	}
	if await {
		return r.invoke(ctx, ectx)
	}
	go func() {
		if err := r.invoke(ctx, ectx); err != nil {
			slog.Error(fmt.Sprintf("%s - unordered %s handler %s failed: %v", eventsLogPrefix, event, def.ID, err))
		}
	}()
	return nil
}

func (r *EventRouter) invoke(ctx context.Context, ectx *registry.EventContext) error {
	start := time.Now()
	err := call(r.config.Strict, func() error { return ectx.Definition.OnExecute(ctx, ectx) })
	r.metrics.ObserveHandler("event", time.Since(start))
	if err == nil {
		r.metrics.RecordEvent(ectx.Name, metrics.OutcomeOK)
		return nil
	}

	r.metrics.RecordEvent(ectx.Name, metrics.OutcomeError)
	publish(ctx, r.publisher, &events.LifecycleEvent{
		Stage:  events.StageEventError,
		Kind:   "event",
		Name:   ectx.Name,
		Client: ectx.Client.Name,
		Error:  err.Error(),
	})
	if r.config.Strict {
		return fmt.Errorf("%s - %s handler %s: %w", eventsLogPrefix, ectx.Name, ectx.Definition.ID, err)
	}
	chain := r.hooks.Chain(hooks.EventError)
	if chain.Len() == 0 {
		slog.Error(fmt.Sprintf("%s - %s handler %s failed: %v", eventsLogPrefix, ectx.Name, ectx.Definition.ID, err))
		return nil
	}
	chain.Run(&EventErrorContext{EventContext: ectx, Err: err})
	return nil
}

func (r *EventRouter) pick(def *registry.EventDefinition, s *discordgo.Session) *clients.Client {
	if r.clients == nil {
		return &clients.Client{Name: "default", Session: s}
	}
	return r.clients.Next(def.Policy, def.ID)
}

// guildLocale resolves the guild locale from the first guild-bearing argument.
func (r *EventRouter) guildLocale(s *discordgo.Session, args map[string]interface{}) locale.Context {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		id, tag := guildOf(args[k])
		if id == "" && tag == "" {
			continue
		}
		if tag == "" && s != nil && s.State != nil {
			if g, err := s.State.Guild(id); err == nil {
				tag = string(g.PreferredLocale)
			}
		}
		return locale.Context{Guild: r.registry.Locales().Resolve(tag, r.config.DefaultLocale)}
	}
	return locale.Context{}
}
