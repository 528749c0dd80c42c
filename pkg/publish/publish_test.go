package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/registry"
	"github.com/morezero/dbi/pkg/store"
)

type fakeCommander struct {
	calls   int
	appID   string
	guildID string
	cmds    []*discordgo.ApplicationCommand
	err     error
}

func (f *fakeCommander) ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.calls++
	f.appID, f.guildID, f.cmds = appID, guildID, commands
	if f.err != nil {
		return nil, f.err
	}
	return commands, nil
}

func loadTree(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry(registry.NewRegistryParams{})
	err := reg.Load(nil, func(r *registry.Registrar) error {
		defs := []*registry.Definition{
			{Name: "ping", Description: "Pong!"},
			{Name: "config show", Description: "Show config"},
			{Name: "config color set", Description: "Set color", Options: []*registry.Option{{
				ApplicationCommandOption: discordgo.ApplicationCommandOption{
					Name: "value", Description: "Color", Type: discordgo.ApplicationCommandOptionString,
					Choices: []*discordgo.ApplicationCommandOptionChoice{{Name: "red", Value: "red"}},
				},
			}}},
			{Name: "config color reset", Description: "Reset color"},
			{Name: "secret", Description: "Guild only", Publish: registry.PublishGuild},
		}
		for _, d := range defs {
			if err := r.ChatInput(d); err != nil {
				return err
			}
		}
		if err := r.UserContextMenu(&registry.Definition{Name: "Inspect"}); err != nil {
			return err
		}
		r.InteractionLocale("ping", map[string]locale.Translation{"tr": {Name: "ping-tr", Description: "Pong tr"}})
		r.InteractionLocale("config color set", map[string]locale.Translation{"tr": {
			Name:    "ayarla",
			Options: map[string]locale.OptionTranslation{"value": {Name: "deger", Choices: map[string]string{"red": "kirmizi"}}},
		}})
		return nil
	})
	if err != nil {
		t.Fatalf("publish:publish_test - Load error: %v", err)
	}
	return reg
}

func findCmd(cmds []*discordgo.ApplicationCommand, name string) *discordgo.ApplicationCommand {
	for _, c := range cmds {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func findOpt(opts []*discordgo.ApplicationCommandOption, name string) *discordgo.ApplicationCommandOption {
	for _, o := range opts {
		if o.Name == name {
			return o
		}
	}
	return nil
}

func TestBuild_Tree(t *testing.T) {
	reg := loadTree(t)
	cmds, err := Build(reg, registry.PublishGlobal)
	if err != nil {
		t.Fatalf("publish:publish_test - Build error: %v", err)
	}

	if findCmd(cmds, "secret") != nil {
		t.Error("publish:publish_test - guild-only command published globally")
	}
	if len(cmds) != 3 {
		t.Fatalf("publish:publish_test - got %d commands, want 3 (config, ping, Inspect)", len(cmds))
	}

	ping := findCmd(cmds, "ping")
	if ping == nil || ping.Description != "Pong!" {
		t.Fatalf("publish:publish_test - ping = %+v", ping)
	}
	if ping.NameLocalizations == nil || (*ping.NameLocalizations)[discordgo.Turkish] != "ping-tr" {
		t.Errorf("publish:publish_test - ping name localizations = %v", ping.NameLocalizations)
	}

	config := findCmd(cmds, "config")
	if config == nil {
		t.Fatal("publish:publish_test - config root missing")
	}
	show := findOpt(config.Options, "show")
	if show == nil || show.Type != discordgo.ApplicationCommandOptionSubCommand {
		t.Errorf("publish:publish_test - show = %+v", show)
	}
	color := findOpt(config.Options, "color")
	if color == nil || color.Type != discordgo.ApplicationCommandOptionSubCommandGroup || len(color.Options) != 2 {
		t.Fatalf("publish:publish_test - color group = %+v", color)
	}
	set := findOpt(color.Options, "set")
	if set == nil || set.NameLocalizations[discordgo.Turkish] != "ayarla" {
		t.Fatalf("publish:publish_test - set = %+v", set)
	}
	value := findOpt(set.Options, "value")
	if value == nil || value.NameLocalizations[discordgo.Turkish] != "deger" {
		t.Fatalf("publish:publish_test - value option = %+v", value)
	}
	if value.Choices[0].NameLocalizations[discordgo.Turkish] != "kirmizi" {
		t.Errorf("publish:publish_test - choice localizations = %v", value.Choices[0].NameLocalizations)
	}

	menu := findCmd(cmds, "Inspect")
	if menu == nil || menu.Type != discordgo.UserApplicationCommand {
		t.Errorf("publish:publish_test - context menu = %+v", menu)
	}

	guild, err := Build(reg, registry.PublishGuild)
	if err != nil {
		t.Fatalf("publish:publish_test - Build error: %v", err)
	}
	if findCmd(guild, "secret") == nil {
		t.Error("publish:publish_test - guild build should include guild-only command")
	}
}

func TestBuild_AutocompleteOption(t *testing.T) {
	reg := registry.NewRegistry(registry.NewRegistryParams{})
	_ = reg.Load(nil, func(r *registry.Registrar) error {
		return r.ChatInput(&registry.Definition{Name: "search", Options: []*registry.Option{{
			ApplicationCommandOption: discordgo.ApplicationCommandOption{Name: "q", Type: discordgo.ApplicationCommandOptionString},
			OnComplete: func(context.Context, *registry.OptionContext) ([]*discordgo.ApplicationCommandOptionChoice, error) {
				return nil, nil
			},
		}}})
	})
	cmds, err := Build(reg, registry.PublishGlobal)
	if err != nil {
		t.Fatalf("publish:publish_test - Build error: %v", err)
	}
	if !cmds[0].Options[0].Autocomplete {
		t.Error("publish:publish_test - option with OnComplete should be published as autocomplete")
	}
	if cmds[0].Description != "search" {
		t.Errorf("publish:publish_test - fallback description = %q", cmds[0].Description)
	}
}

func TestBuild_TooDeep(t *testing.T) {
	reg := registry.NewRegistry(registry.NewRegistryParams{})
	_ = reg.Load(nil, func(r *registry.Registrar) error {
		return r.ChatInput(&registry.Definition{Name: "a b c d"})
	})
	if _, err := Build(reg, registry.PublishGlobal); err == nil {
		t.Error("publish:publish_test - expected error for four segment command")
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"global", Options{AppID: "app", Scope: registry.PublishGlobal}, false},
		{"guild", Options{AppID: "app", Scope: registry.PublishGuild, GuildID: "g"}, false},
		{"guild without id", Options{AppID: "app", Scope: registry.PublishGuild}, true},
		{"no app", Options{Scope: registry.PublishGlobal}, true},
		{"both is not a target", Options{AppID: "app", Scope: registry.PublishBoth}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("publish:publish_test - Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	reg := loadTree(t)
	cmd := &fakeCommander{}
	mem := store.NewMemoryStore()
	p := NewPublisher(NewPublisherParams{Registry: reg, Commander: cmd, Store: mem})

	opts := Options{AppID: "app", Scope: registry.PublishGuild, GuildID: "g1", Version: "1.0.0"}
	res, err := p.Publish(ctx, opts)
	if err != nil {
		t.Fatalf("publish:publish_test - Publish error: %v", err)
	}
	if res.Skipped || cmd.calls != 1 || cmd.guildID != "g1" || cmd.appID != "app" {
		t.Fatalf("publish:publish_test - first publish res=%+v calls=%d guild=%q", res, cmd.calls, cmd.guildID)
	}

	res, err = p.Publish(ctx, opts)
	if err != nil {
		t.Fatalf("publish:publish_test - Publish error: %v", err)
	}
	if !res.Skipped || res.Previous != "1.0.0" || cmd.calls != 1 {
		t.Errorf("publish:publish_test - same version should skip, res=%+v calls=%d", res, cmd.calls)
	}

	opts.Force = true
	if _, err := p.Publish(ctx, opts); err != nil || cmd.calls != 2 {
		t.Errorf("publish:publish_test - forced publish err=%v calls=%d", err, cmd.calls)
	}

	opts.Force = false
	opts.Version = "1.1.0"
	if res, err := p.Publish(ctx, opts); err != nil || res.Skipped || cmd.calls != 3 {
		t.Errorf("publish:publish_test - newer version should publish, res=%+v err=%v", res, err)
	}

	// Global scope keeps its own record.
	global := Options{AppID: "app", Scope: registry.PublishGlobal, Version: "0.1.0"}
	if res, err := p.Publish(ctx, global); err != nil || res.Skipped || cmd.guildID != "" {
		t.Errorf("publish:publish_test - global publish res=%+v err=%v guild=%q", res, err, cmd.guildID)
	}
}

func TestPublisher_Errors(t *testing.T) {
	ctx := context.Background()
	reg := loadTree(t)
	cmd := &fakeCommander{err: errors.New("401")}
	mem := store.NewMemoryStore()
	p := NewPublisher(NewPublisherParams{Registry: reg, Commander: cmd, Store: mem})

	opts := Options{AppID: "app", Scope: registry.PublishGlobal, Version: "1.0.0"}
	if _, err := p.Publish(ctx, opts); err == nil {
		t.Fatal("publish:publish_test - expected overwrite error")
	}
	if mem.Len() != 0 {
		t.Error("publish:publish_test - failed publish must not record its version")
	}

	opts.Version = "not-a-version"
	if _, err := p.Publish(ctx, opts); err == nil {
		t.Error("publish:publish_test - expected invalid version error")
	}
}
