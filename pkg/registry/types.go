// Package registry holds the handler definitions of a framework instance:
// commands, components, modals, context menus, events and locales.
package registry

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/clients"
	"github.com/morezero/dbi/pkg/customid"
	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/ratelimit"
)

// Kind tags a handler definition variant.
type Kind int

// Handler kinds.
const (
	KindChatInput Kind = iota
	KindUserContextMenu
	KindMessageContextMenu
	KindButton
	KindStringSelect
	KindUserSelect
	KindRoleSelect
	KindChannelSelect
	KindMentionableSelect
	KindModal
)

// Kinds lists every interaction kind.
var Kinds = []Kind{
	KindChatInput, KindUserContextMenu, KindMessageContextMenu,
	KindButton, KindStringSelect, KindUserSelect, KindRoleSelect,
	KindChannelSelect, KindMentionableSelect, KindModal,
}

var kindNames = map[Kind]string{
	KindChatInput:          "chatInput",
	KindUserContextMenu:    "userContextMenu",
	KindMessageContextMenu: "messageContextMenu",
	KindButton:             "button",
	KindStringSelect:       "stringSelect",
	KindUserSelect:         "userSelect",
	KindRoleSelect:         "roleSelect",
	KindChannelSelect:      "channelSelect",
	KindMentionableSelect:  "mentionableSelect",
	KindModal:              "modal",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsCommand reports whether k is published as an application command.
func (k Kind) IsCommand() bool {
	return k == KindChatInput || k == KindUserContextMenu || k == KindMessageContextMenu
}

// IsComponent reports whether k is matched through an encoded custom id.
func (k Kind) IsComponent() bool {
	return !k.IsCommand()
}

// IsSelect reports whether k is a select-menu variant.
func (k Kind) IsSelect() bool {
	switch k {
	case KindStringSelect, KindUserSelect, KindRoleSelect, KindChannelSelect, KindMentionableSelect:
		return true
	}
	return false
}

// KindOfComponent maps a platform component type to a handler kind.
func KindOfComponent(t discordgo.ComponentType) (Kind, bool) {
	switch t {
	case discordgo.ButtonComponent:
		return KindButton, true
	case discordgo.SelectMenuComponent:
		return KindStringSelect, true
	case discordgo.UserSelectMenuComponent:
		return KindUserSelect, true
	case discordgo.RoleSelectMenuComponent:
		return KindRoleSelect, true
	case discordgo.ChannelSelectMenuComponent:
		return KindChannelSelect, true
	case discordgo.MentionableSelectMenuComponent:
		return KindMentionableSelect, true
	}
	return 0, false
}

// KindOfCommand maps a platform command type to a handler kind.
func KindOfCommand(t discordgo.ApplicationCommandType) (Kind, bool) {
	switch t {
	case discordgo.ChatApplicationCommand:
		return KindChatInput, true
	case discordgo.UserApplicationCommand:
		return KindUserContextMenu, true
	case discordgo.MessageApplicationCommand:
		return KindMessageContextMenu, true
	}
	return 0, false
}

// PublishScope selects where a command is published.
type PublishScope string

// Publish scopes. An empty scope publishes everywhere.
const (
	PublishGuild  PublishScope = "Guild"
	PublishGlobal PublishScope = "Global"
	PublishBoth   PublishScope = "Both"
)

// Includes reports whether a definition scoped s belongs in target.
func (s PublishScope) Includes(target PublishScope) bool {
	return s == "" || s == PublishBoth || s == target
}

// InteractionFunc executes an interaction.
type InteractionFunc func(ctx context.Context, ic *InteractionContext) error

// Definition is one interaction handler.
type Definition struct {
	// Name is the lookup key. Chat input commands use space separated paths
	// ("config set color") that map onto the published command tree.
	Name        string
	Kind        Kind
	Description string
	Options     []*Option

	DefaultMemberPermissions *int64
	DMPermission             *bool
	NSFW                     bool
	Publish                  PublishScope

	OnExecute  InteractionFunc
	RateLimits []ratelimit.Limit
	Disabled   bool
	// Flag gates insertion to load passes that name it (or "all").
	Flag string
	// Policy picks the client handed to the handler.
	Policy clients.Policy
	// TTL removes the definition once CreatedAt is older than it.
	TTL       time.Duration
	CreatedAt time.Time
	// RefTTL is the reference lifetime used by CustomID.
	RefTTL time.Duration

	Other map[string]interface{}

	codec *customid.Codec
}

// Segments returns the number of space separated name segments.
func (d *Definition) Segments() int {
	return len(strings.Fields(d.Name))
}

// Expired reports whether the definition outlived its TTL at now.
func (d *Definition) Expired(now time.Time) bool {
	return d.TTL > 0 && now.Sub(d.CreatedAt) > d.TTL
}

// Option finds a declared option by name.
func (d *Definition) Option(name string) *Option {
	for _, o := range d.Options {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// Option is a command option with optional validation and autocompletion.
type Option struct {
	discordgo.ApplicationCommandOption

	// Validate returning false aborts the dispatch silently.
	Validate func(ctx context.Context, oc *OptionContext) bool
	// OnComplete produces autocomplete choices.
	OnComplete func(ctx context.Context, oc *OptionContext) ([]*discordgo.ApplicationCommandOptionChoice, error)
}

// OptionContext is passed to option validators and completers.
type OptionContext struct {
	Interaction *discordgo.InteractionCreate
	Definition  *Definition
	Option      *Option
	Value       interface{}
	Locale      locale.Context
	Client      *clients.Client
}

// InteractionContext is passed to OnExecute and to the interaction hooks.
type InteractionContext struct {
	Session     *discordgo.Session
	Interaction *discordgo.InteractionCreate
	Definition  *Definition
	Locale      locale.Context
	// Data holds the decoded custom id payload of components.
	Data []interface{}
	// Version is set when the custom id carried the version marker.
	Version bool
	// Options holds the leaf option values of chat input commands.
	Options map[string]*discordgo.ApplicationCommandInteractionDataOption
	Other   map[string]interface{}
	Client  *clients.Client
	// SetRateLimit applies a cool-down for this handler from inside OnExecute.
	SetRateLimit func(ctx context.Context, dim ratelimit.Dimension, d time.Duration) error
}

// Respond replies to the interaction through the selected client.
func (c *InteractionContext) Respond(resp *discordgo.InteractionResponse) error {
	return c.Client.Respond(c.Interaction.Interaction, resp)
}

// EventFunc executes an event handler.
type EventFunc func(ctx context.Context, ec *EventContext) error

// EventDefinition subscribes a handler to a named platform event.
type EventDefinition struct {
	// ID identifies the handler for duplicate checks. Generated when empty.
	ID string
	// Name is the event name, e.g. "messageCreate".
	Name      string
	OnExecute EventFunc
	// Ordered handlers run one at a time in registration order.
	Ordered     bool
	Disabled    bool
	DelayBefore time.Duration
	DelayAfter  time.Duration
	Flag        string
	Policy      clients.Policy
	TTL         time.Duration
	CreatedAt   time.Time
	Other       map[string]interface{}
}

// Expired reports whether the definition outlived its TTL at now.
func (d *EventDefinition) Expired(now time.Time) bool {
	return d.TTL > 0 && now.Sub(d.CreatedAt) > d.TTL
}

// EventContext is passed to event handlers and the event hooks.
type EventContext struct {
	Name       string
	Session    *discordgo.Session
	Args       map[string]interface{}
	Definition *EventDefinition
	// Locale only carries a guild locale, resolved from the arguments.
	Locale locale.Context
	Client *clients.Client
	Other  map[string]interface{}
}

// Arg returns a named argument.
func (c *EventContext) Arg(name string) interface{} {
	return c.Args[name]
}
