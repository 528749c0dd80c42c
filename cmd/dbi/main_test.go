package main

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/morezero/dbi/pkg/customid"
	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/refstore"
	"github.com/morezero/dbi/pkg/registry"
)

const mainTestPrefix = "cmd/dbi:main_test"

func TestUsage_NonEmpty(t *testing.T) {
	if len(usage) == 0 {
		t.Fatalf("%s - usage string is empty", mainTestPrefix)
	}
}

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "publish", "migrate", "clear", "DISCORD_TOKENS"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestParsePublishArgs(t *testing.T) {
	tests := []struct {
		args      []string
		wantScope string
		wantForce bool
		wantErr   bool
	}{
		{nil, "", false, false},
		{[]string{"guild"}, "Guild", false, false},
		{[]string{"--force", "global"}, "Global", true, false},
		{[]string{"everywhere"}, "", false, true},
	}
	for _, tt := range tests {
		scope, force, err := parsePublishArgs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s - parsePublishArgs(%v) error = %v", mainTestPrefix, tt.args, err)
			continue
		}
		if scope != tt.wantScope || force != tt.wantForce {
			t.Errorf("%s - parsePublishArgs(%v) = %q, %v", mainTestPrefix, tt.args, scope, force)
		}
	}
}

func TestHandlers_Register(t *testing.T) {
	reg := registry.NewRegistry(registry.NewRegistryParams{
		Config: registry.Config{Strict: true},
		Codec:  customid.NewCodec(refstore.New(), true),
	})
	if err := reg.Load(nil, handlers()...); err != nil {
		t.Fatalf("%s - Load error: %v", mainTestPrefix, err)
	}
	if reg.MatchCommand("ping") == nil {
		t.Errorf("%s - ping command not registered", mainTestPrefix)
	}
	again := reg.Find(registry.KindButton, "ping-again")
	if again == nil {
		t.Fatalf("%s - ping-again button not registered", mainTestPrefix)
	}
	components, err := pingComponents(again, 3)
	if err != nil {
		t.Fatalf("%s - pingComponents error: %v", mainTestPrefix, err)
	}
	row := components[0].(discordgo.ActionsRow)
	btn := row.Components[0].(discordgo.Button)
	if btn.CustomID != "ping-again"+customid.Delimiter+"π3" {
		t.Errorf("%s - button custom id = %q", mainTestPrefix, btn.CustomID)
	}
	if len(reg.EventsFor("ready")) != 1 {
		t.Errorf("%s - ready handler not registered", mainTestPrefix)
	}
}

func TestText(t *testing.T) {
	locales := locale.NewRegistry()
	en := locales.Register("en", map[string]interface{}{"ping": map[string]interface{}{"count": "Pong #{0}"}})

	if got := text(locale.Context{User: en}, "ping.count", "x{0}", 4); got != "Pong #4" {
		t.Errorf("%s - text() = %q", mainTestPrefix, got)
	}
	if got := text(locale.Context{User: en}, "ping.reply", "Pong!"); got != "Pong!" {
		t.Errorf("%s - fallback text() = %q", mainTestPrefix, got)
	}
	if got := text(locale.Context{}, "ping.count", "x{0}", 2); got != "x2" {
		t.Errorf("%s - no locale text() = %q", mainTestPrefix, got)
	}
}
