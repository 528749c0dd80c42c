package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/registry"
	"github.com/morezero/dbi/pkg/store"
)

const logPrefix = "publish:publish"

// Commander is the bulk overwrite primitive of a platform session.
type Commander interface {
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Options select where and what version to publish.
type Options struct {
	AppID string
	// Scope is registry.PublishGuild or registry.PublishGlobal.
	Scope   registry.PublishScope
	GuildID string
	// Version enables the version gate when set.
	Version string
	// Force publishes even when Version is not newer.
	Force bool
}

// Validate checks the scope and required identifiers.
func (o Options) Validate() error {
	if o.AppID == "" {
		return fmt.Errorf("%s - application id is required", logPrefix)
	}
	switch o.Scope {
	case registry.PublishGuild:
		if o.GuildID == "" {
			return fmt.Errorf("%s - guild id is required for guild scope", logPrefix)
		}
	case registry.PublishGlobal:
	default:
		return fmt.Errorf("%s - unknown scope %q", logPrefix, o.Scope)
	}
	return nil
}

// Result reports what a publish did.
type Result struct {
	Commands []*discordgo.ApplicationCommand
	Skipped  bool
	// Previous is the version recorded before this publish.
	Previous string
}

// NewPublisherParams holds the dependencies of a Publisher.
type NewPublisherParams struct {
	Registry  *registry.Registry
	Commander Commander
	// Store records published versions; nil disables the version gate.
	Store store.Store
}

// Publisher pushes the command tree of a registry.
type Publisher struct {
	registry  *registry.Registry
	commander Commander
	store     store.Store
}

// NewPublisher creates a Publisher.
func NewPublisher(params NewPublisherParams) *Publisher {
	return &Publisher{
		registry:  params.Registry,
		commander: params.Commander,
		store:     params.Store,
	}
}

// Publish builds the tree for opts.Scope and overwrites the remote commands.
func (p *Publisher) Publish(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}
	gated := opts.Version != "" && p.store != nil
	if gated {
		newer, prev, err := NewerThanPublished(ctx, p.store, opts, opts.Version)
		if err != nil {
			return nil, err
		}
		res.Previous = prev
		if !newer && !opts.Force {
			slog.Info(fmt.Sprintf("%s - %s version %s already published (last %s), skipping", logPrefix, opts.Scope, opts.Version, prev))
			res.Skipped = true
			return res, nil
		}
	}

	cmds, err := Build(p.registry, opts.Scope)
	if err != nil {
		return nil, err
	}

	guildID := ""
	if opts.Scope == registry.PublishGuild {
		guildID = opts.GuildID
	}
	created, err := p.commander.ApplicationCommandBulkOverwrite(opts.AppID, guildID, cmds)
	if err != nil {
		return nil, fmt.Errorf("%s - bulk overwrite %s: %w", logPrefix, opts.Scope, err)
	}
	res.Commands = created

	if gated {
		if err := RecordVersion(ctx, p.store, opts, opts.Version); err != nil {
			return nil, fmt.Errorf("%s - record version: %w", logPrefix, err)
		}
	}
	slog.Info(fmt.Sprintf("%s - published %d commands to %s %s", logPrefix, len(cmds), opts.Scope, guildID))
	return res, nil
}
