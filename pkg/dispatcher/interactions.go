package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/clients"
	"github.com/morezero/dbi/pkg/customid"
	"github.com/morezero/dbi/pkg/events"
	"github.com/morezero/dbi/pkg/hooks"
	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/metrics"
	"github.com/morezero/dbi/pkg/ratelimit"
	"github.com/morezero/dbi/pkg/registry"
)

const interactionsLogPrefix = "dispatcher:interactions"

// NewInteractionRouterParams holds the dependencies of an InteractionRouter.
type NewInteractionRouterParams struct {
	Config   Config
	Registry *registry.Registry
	Codec    *customid.Codec
	Hooks    *hooks.Set
	// Limiter may be nil to disable rate limiting.
	Limiter   *ratelimit.Limiter
	Clients   *clients.Pool
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
}

// InteractionRouter matches interactions to definitions and runs them
// through the gate pipeline.
type InteractionRouter struct {
	config    Config
	registry  *registry.Registry
	codec     *customid.Codec
	hooks     *hooks.Set
	limiter   *ratelimit.Limiter
	clients   *clients.Pool
	publisher events.EventPublisher
	metrics   *metrics.Metrics
}

// NewInteractionRouter creates an InteractionRouter.
func NewInteractionRouter(params NewInteractionRouterParams) *InteractionRouter {
	h := params.Hooks
	if h == nil {
		h = hooks.NewSet()
	}
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	codec := params.Codec
	if codec == nil {
		codec = params.Registry.Codec()
	}
	return &InteractionRouter{
		config:    params.Config,
		registry:  params.Registry,
		codec:     codec,
		hooks:     h,
		limiter:   params.Limiter,
		clients:   params.Clients,
		publisher: pub,
		metrics:   params.Metrics,
	}
}

// match is a resolved interaction.
type match struct {
	def     *registry.Definition
	decoded *customid.Decoded
	leaf    []*discordgo.ApplicationCommandInteractionDataOption
}

// Dispatch routes one interaction. Unmatched interactions and gate
// short-circuits return nil. In strict mode handler errors are returned.
func (r *InteractionRouter) Dispatch(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	if ic == nil || ic.Interaction == nil {
		return nil
	}

	m := r.match(ic)
	if m == nil || m.def.Disabled {
		slog.Debug(fmt.Sprintf("%s - no handler for interaction %s (%s)", interactionsLogPrefix, ic.ID, ic.Type))
		r.metrics.RecordInteraction(ic.Type.String(), metrics.OutcomeUnmatched)
		return nil
	}

	if ic.Type == discordgo.InteractionApplicationCommandAutocomplete {
		return r.autocomplete(ctx, s, ic, m)
	}
	return r.execute(ctx, s, ic, m)
}

func (r *InteractionRouter) match(ic *discordgo.InteractionCreate) *match {
	switch ic.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		data, ok := ic.Data.(discordgo.ApplicationCommandInteractionData)
		if !ok {
			return nil
		}
		kind, ok := registry.KindOfCommand(data.CommandType)
		if !ok {
			return nil
		}
		if kind != registry.KindChatInput {
			if def := r.registry.Find(kind, data.Name); def != nil {
				return &match{def: def}
			}
			return nil
		}
		path, leaf := registry.CommandPath(data)
		if def := r.registry.MatchCommand(path); def != nil {
			return &match{def: def, leaf: leaf}
		}
	case discordgo.InteractionMessageComponent:
		data, ok := ic.Data.(discordgo.MessageComponentInteractionData)
		if !ok {
			return nil
		}
		kind, ok := registry.KindOfComponent(data.ComponentType)
		if !ok {
			return nil
		}
		decoded := r.codec.Decode(data.CustomID)
		if def := r.registry.Find(kind, decoded.Name); def != nil {
			return &match{def: def, decoded: decoded}
		}
	case discordgo.InteractionModalSubmit:
		data, ok := ic.Data.(discordgo.ModalSubmitInteractionData)
		if !ok {
			return nil
		}
		decoded := r.codec.Decode(data.CustomID)
		if def := r.registry.Find(registry.KindModal, decoded.Name); def != nil {
			return &match{def: def, decoded: decoded}
		}
	}
	return nil
}

func (r *InteractionRouter) resolveLocale(ic *discordgo.InteractionCreate) locale.Context {
	locales := r.registry.Locales()
	lc := locale.Context{User: locales.Resolve(string(ic.Locale), r.config.DefaultLocale)}
	guildTag := ""
	if ic.GuildLocale != nil {
		guildTag = string(*ic.GuildLocale)
	}
	lc.Guild = locales.Resolve(guildTag, r.config.DefaultLocale)
	return lc
}

func (r *InteractionRouter) pick(def *registry.Definition, s *discordgo.Session) *clients.Client {
	if r.clients == nil {
		return &clients.Client{Name: "default", Session: s}
	}
	return r.clients.Next(def.Policy, def.Name)
}

func (r *InteractionRouter) autocomplete(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, m *match) error {
	kind := m.def.Kind.String()
	focused := registry.FocusedOption(m.leaf)
	if focused == nil {
		return nil
	}
	opt := m.def.Option(focused.Name)
	if opt == nil || opt.OnComplete == nil {
		return nil
	}

	oc := &registry.OptionContext{
		Interaction: ic,
		Definition:  m.def,
		Option:      opt,
		Value:       focused.Value,
		Locale:      r.resolveLocale(ic),
		Client:      r.pick(m.def, s),
	}
	if opt.Validate != nil && !opt.Validate(ctx, oc) {
		r.metrics.RecordInteraction(kind, metrics.OutcomeInvalid)
		return nil
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	err := call(r.config.Strict, func() error {
		var err error
		choices, err = opt.OnComplete(ctx, oc)
		return err
	})
	if err == nil {
		err = oc.Client.Respond(ic.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionApplicationCommandAutocompleteResult,
			Data: &discordgo.InteractionResponseData{Choices: choices},
		})
	}
	if err != nil {
		r.metrics.RecordInteraction(kind, metrics.OutcomeError)
		ictx := &registry.InteractionContext{
			Session: s, Interaction: ic, Definition: m.def, Locale: oc.Locale, Client: oc.Client,
		}
		return r.fail(ctx, ictx, err)
	}
	r.metrics.RecordInteraction(kind, metrics.OutcomeAutocomplete)
	return nil
}

func (r *InteractionRouter) execute(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, m *match) error {
	def := m.def
	kind := def.Kind.String()
	target := ratelimit.TargetFromInteraction(ic.Interaction)

	ictx := &registry.InteractionContext{
		Session:     s,
		Interaction: ic,
		Definition:  def,
		Locale:      r.resolveLocale(ic),
		Other:       make(map[string]interface{}),
		Client:      r.pick(def, s),
	}
	if m.decoded != nil {
		ictx.Data = m.decoded.Data
		ictx.Version = m.decoded.Version
	}
	if def.Kind == registry.KindChatInput {
		ictx.Options = registry.HoistOptions(m.leaf)
	}
	ictx.SetRateLimit = func(ctx context.Context, dim ratelimit.Dimension, d time.Duration) error {
		if r.limiter == nil {
			return nil
		}
		return r.limiter.Set(ctx, def.Name, dim, target, d)
	}

	if !r.hooks.Chain(hooks.BeforeInteraction).All(ictx) {
		r.metrics.RecordInteraction(kind, metrics.OutcomeVetoed)
		return nil
	}

	if r.limiter != nil {
		hit, err := r.limiter.Check(ctx, def.Name, target)
		if err != nil {
			r.metrics.RecordInteraction(kind, metrics.OutcomeError)
			return r.fail(ctx, ictx, err)
		}
		if hit != nil {
			rl := &RateLimitContext{InteractionContext: ictx, Hit: hit}
			publish(ctx, r.publisher, r.lifecycle(events.StageInteractionRateLimit, ictx, func(ev *events.LifecycleEvent) {
				ev.RateLimit = string(hit.Dimension)
				ev.Duration = hit.Remaining.String()
			}))
			if r.hooks.Chain(hooks.InteractionRateLimit).Any(rl) {
				r.metrics.RecordInteraction(kind, metrics.OutcomeRateLimited)
				return nil
			}
		}
		if err := r.limiter.Apply(ctx, def.Name, def.RateLimits, target); err != nil {
			r.metrics.RecordInteraction(kind, metrics.OutcomeError)
			return r.fail(ctx, ictx, err)
		}
	}

	if def.Kind == registry.KindChatInput {
		for _, given := range m.leaf {
			opt := def.Option(given.Name)
			if opt == nil || opt.Validate == nil {
				continue
			}
			oc := &registry.OptionContext{
				Interaction: ic,
				Definition:  def,
				Option:      opt,
				Value:       given.Value,
				Locale:      ictx.Locale,
				Client:      ictx.Client,
			}
			if !opt.Validate(ctx, oc) {
				r.metrics.RecordInteraction(kind, metrics.OutcomeInvalid)
				return nil
			}
		}
	}

	var err error
	if def.OnExecute != nil {
		start := time.Now()
		err = call(r.config.Strict, func() error { return def.OnExecute(ctx, ictx) })
		r.metrics.ObserveHandler(kind, time.Since(start))
	}

	if err != nil {
		r.metrics.RecordInteraction(kind, metrics.OutcomeError)
		err = r.fail(ctx, ictx, err)
	} else {
		r.metrics.RecordInteraction(kind, metrics.OutcomeOK)
	}

	r.hooks.Chain(hooks.AfterInteraction).Go(hooks.AfterInteraction, ictx)
	publish(ctx, r.publisher, r.lifecycle(events.StageAfterInteraction, ictx, nil))
	return err
}

// fail returns err in strict mode; otherwise it hands err to the
// interactionError hooks and returns nil.
func (r *InteractionRouter) fail(ctx context.Context, ictx *registry.InteractionContext, err error) error {
	publish(ctx, r.publisher, r.lifecycle(events.StageInteractionError, ictx, func(ev *events.LifecycleEvent) {
		ev.Error = err.Error()
	}))
	if r.config.Strict {
		return fmt.Errorf("%s - %s %q: %w", interactionsLogPrefix, ictx.Definition.Kind, ictx.Definition.Name, err)
	}
	chain := r.hooks.Chain(hooks.InteractionError)
	if chain.Len() == 0 {
		slog.Error(fmt.Sprintf("%s - %s %q failed: %v", interactionsLogPrefix, ictx.Definition.Kind, ictx.Definition.Name, err))
		return nil
	}
	chain.Run(&InteractionErrorContext{InteractionContext: ictx, Err: err})
	return nil
}

func (r *InteractionRouter) lifecycle(stage string, ictx *registry.InteractionContext, fill func(*events.LifecycleEvent)) *events.LifecycleEvent {
	ev := &events.LifecycleEvent{
		Stage: stage,
		Kind:  ictx.Definition.Kind.String(),
		Name:  ictx.Definition.Name,
	}
	if ictx.Client != nil {
		ev.Client = ictx.Client.Name
	}
	if i := ictx.Interaction; i != nil && i.Interaction != nil {
		t := ratelimit.TargetFromInteraction(i.Interaction)
		ev.GuildID, ev.ChannelID, ev.UserID = t.GuildID, t.ChannelID, t.UserID
	}
	if fill != nil {
		fill(ev)
	}
	return ev
}
