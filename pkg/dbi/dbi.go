// Package dbi is the framework facade. It owns one reference store, codec,
// registry, hook set and the two routers, and connects them to the platform
// sessions of a deployment.
package dbi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/clients"
	"github.com/morezero/dbi/pkg/customid"
	"github.com/morezero/dbi/pkg/dispatcher"
	"github.com/morezero/dbi/pkg/events"
	"github.com/morezero/dbi/pkg/hooks"
	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/metrics"
	"github.com/morezero/dbi/pkg/publish"
	"github.com/morezero/dbi/pkg/ratelimit"
	"github.com/morezero/dbi/pkg/refstore"
	"github.com/morezero/dbi/pkg/registry"
	"github.com/morezero/dbi/pkg/store"
	"github.com/morezero/dbi/pkg/sweeper"
)

const logPrefix = "dbi:dbi"

// DefaultInlineTTL is the lifetime of inline listeners created without a TTL.
const DefaultInlineTTL = 10 * time.Minute

// Config holds framework wide settings.
type Config struct {
	Strict        bool
	DefaultLocale string
	// ReferenceTTL is applied to definitions loaded without a RefTTL.
	ReferenceTTL  time.Duration
	SweepInterval time.Duration
	InlineTTL     time.Duration
}

// NewParams holds the collaborators of a DBI.
type NewParams struct {
	Config  Config
	Clients []*clients.Client
	// Store backs rate limits and publish versions. Defaults to memory.
	Store store.Store
	// Publisher receives lifecycle events. Defaults to a no-op.
	Publisher events.EventPublisher
	// Commander overrides the session used to publish commands.
	Commander publish.Commander
}

// DBI is one framework instance.
type DBI struct {
	config Config

	refs      *refstore.Store
	codec     *customid.Codec
	registry  *registry.Registry
	hooks     *hooks.Set
	store     store.Store
	limiter   *ratelimit.Limiter
	pool      *clients.Pool
	metrics   *metrics.Metrics
	sweeper   *sweeper.Sweeper
	publisher *publish.Publisher

	interactions *dispatcher.InteractionRouter
	events       *dispatcher.EventRouter

	mu       sync.Mutex
	register []registry.RegisterFunc
	detach   []func()
	started  bool
}

// New wires a DBI. It fails with clients.ErrNoClientsConfigured when no
// client is given.
func New(params NewParams) (*DBI, error) {
	pool, err := clients.NewPool(params.Clients...)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}

	cfg := params.Config
	if cfg.InlineTTL <= 0 {
		cfg.InlineTTL = DefaultInlineTTL
	}

	st := params.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}

	refs := refstore.New()
	codec := customid.NewCodec(refs, cfg.Strict)
	reg := registry.NewRegistry(registry.NewRegistryParams{
		Config: registry.Config{Strict: cfg.Strict},
		Codec:  codec,
	})
	hs := hooks.NewSet()
	limiter := ratelimit.New(st)
	m := metrics.New(refs.Len)
	routerCfg := dispatcher.Config{Strict: cfg.Strict, DefaultLocale: cfg.DefaultLocale}

	commander := params.Commander
	if commander == nil {
		if s := pool.First().Session; s != nil {
			commander = s
		}
	}

	d := &DBI{
		config:   cfg,
		refs:     refs,
		codec:    codec,
		registry: reg,
		hooks:    hs,
		store:    st,
		limiter:  limiter,
		pool:     pool,
		metrics:  m,
		sweeper:  sweeper.New(cfg.SweepInterval, m.RecordSweep),
		interactions: dispatcher.NewInteractionRouter(dispatcher.NewInteractionRouterParams{
			Config:    routerCfg,
			Registry:  reg,
			Codec:     codec,
			Hooks:     hs,
			Limiter:   limiter,
			Clients:   pool,
			Publisher: pub,
			Metrics:   m,
		}),
		events: dispatcher.NewEventRouter(dispatcher.NewEventRouterParams{
			Config:    routerCfg,
			Registry:  reg,
			Hooks:     hs,
			Clients:   pool,
			Publisher: pub,
			Metrics:   m,
		}),
	}
	if commander != nil {
		d.publisher = publish.NewPublisher(publish.NewPublisherParams{
			Registry:  reg,
			Commander: commander,
			Store:     st,
		})
	}

	if err := d.sweeper.Add(sweeper.Job{Name: "references", Sweep: refs.Sweep}); err != nil {
		return nil, err
	}
	if err := d.sweeper.Add(sweeper.Job{Name: "handlers", Sweep: reg.Sweep}); err != nil {
		return nil, err
	}
	return d, nil
}

// Accessors.

func (d *DBI) Config() Config                              { return d.config }
func (d *DBI) Registry() *registry.Registry                { return d.registry }
func (d *DBI) Codec() *customid.Codec                      { return d.codec }
func (d *DBI) References() *refstore.Store                 { return d.refs }
func (d *DBI) Hooks() *hooks.Set                           { return d.hooks }
func (d *DBI) Store() store.Store                          { return d.store }
func (d *DBI) Limiter() *ratelimit.Limiter                 { return d.limiter }
func (d *DBI) Clients() *clients.Pool                      { return d.pool }
func (d *DBI) Metrics() *metrics.Metrics                   { return d.metrics }
func (d *DBI) Sweeper() *sweeper.Sweeper                   { return d.sweeper }
func (d *DBI) Locales() *locale.Registry                   { return d.registry.Locales() }
func (d *DBI) Interactions() *dispatcher.InteractionRouter { return d.interactions }
func (d *DBI) Events() *dispatcher.EventRouter             { return d.events }

// Register queues fns for the next Load.
func (d *DBI) Register(fns ...registry.RegisterFunc) {
	d.mu.Lock()
	d.register = append(d.register, fns...)
	d.mu.Unlock()
}

// Load runs every queued RegisterFunc with flags. Failures of one function
// do not stop the others; they are returned joined.
func (d *DBI) Load(flags ...string) error {
	d.mu.Lock()
	fns := make([]registry.RegisterFunc, len(d.register))
	copy(fns, d.register)
	d.mu.Unlock()

	err := d.registry.Load(flags, fns...)
	if d.config.ReferenceTTL > 0 {
		for _, kind := range registry.Kinds {
			for _, def := range d.registry.List(kind) {
				if def.RefTTL == 0 {
					def.RefTTL = d.config.ReferenceTTL
				}
			}
		}
	}
	return err
}

// Unload clears every definition, locale, custom event mapping and reference.
// Queued RegisterFuncs are kept so Load can run again.
func (d *DBI) Unload() {
	d.registry.Unload()
	d.events.ClearCustomArgs()
	d.refs.Clear()
}

// On adds a hook to stage.
func (d *DBI) On(stage hooks.Stage, h hooks.Hook) error {
	return d.hooks.On(stage, h)
}

// RegisterEventArgs names the positional arguments of a custom event.
func (d *DBI) RegisterEventArgs(event string, argNames ...string) {
	d.events.RegisterArgs(event, argNames...)
}

// Handle routes one platform event. Interactions go through the
// interaction router before reaching event handlers.
func (d *DBI) Handle(ctx context.Context, s *discordgo.Session, event interface{}) error {
	if ic, ok := event.(*discordgo.InteractionCreate); ok {
		if err := d.interactions.Dispatch(ctx, s, ic); err != nil {
			return err
		}
	}
	return d.events.Intercept(ctx, s, event)
}

// Start attaches Handle to every client session and starts the sweeper.
// Sessions are opened by the caller.
func (d *DBI) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for _, c := range d.pool.All() {
		if c.Session == nil {
			continue
		}
		client := c
		remove := c.Session.AddHandler(func(s *discordgo.Session, event interface{}) {
			if err := d.Handle(ctx, s, event); err != nil {
				slog.Error(fmt.Sprintf("%s - %s: %v", logPrefix, client.Name, err))
			}
		})
		d.detach = append(d.detach, remove)
	}
	d.sweeper.Start()
	slog.Info(fmt.Sprintf("%s - started with %d clients", logPrefix, d.pool.Len()))
}

// Stop detaches the session handlers and stops the sweeper.
func (d *DBI) Stop() {
	d.mu.Lock()
	detach := d.detach
	d.detach = nil
	wasStarted := d.started
	d.started = false
	d.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	if wasStarted {
		d.sweeper.Stop()
	}
}

// Emit re-emits an internal event whose arguments are already named.
func (d *DBI) Emit(ctx context.Context, event string, args map[string]interface{}) error {
	return d.events.Intercept(ctx, d.pool.First().Session, &dispatcher.DirectEvent{Name: event, Args: args})
}

// Publish pushes the command tree. It fails when no session or Commander
// is available.
func (d *DBI) Publish(ctx context.Context, opts publish.Options) (*publish.Result, error) {
	if d.publisher == nil {
		return nil, fmt.Errorf("%s - no session available to publish commands", logPrefix)
	}
	return d.publisher.Publish(ctx, opts)
}
