package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/customid"
	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/refstore"
)

func newTestRegistry(strict bool) *Registry {
	return NewRegistry(NewRegistryParams{
		Config: Config{Strict: strict},
		Codec:  customid.NewCodec(refstore.New(), strict),
	})
}

func TestRegistry_StrictDuplicate(t *testing.T) {
	reg := newTestRegistry(true)
	var second error
	err := reg.Load([]string{FlagAll}, func(r *Registrar) error {
		if err := r.ChatInput(&Definition{Name: "ping"}); err != nil {
			t.Fatalf("registry:registry_test - first ping: %v", err)
		}
		second = r.ChatInput(&Definition{Name: "ping"})
		return second
	})

	var dup *DuplicateHandlerError
	if !errors.As(second, &dup) {
		t.Fatalf("registry:registry_test - second = %v, want DuplicateHandlerError", second)
	}
	if dup.Name != "ping" || dup.Collection != "chatInput" {
		t.Errorf("registry:registry_test - dup = %+v", dup)
	}
	if !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("registry:registry_test - Load err = %v, want ErrDuplicateHandler", err)
	}
	if len(reg.Commands()) != 1 {
		t.Errorf("registry:registry_test - commands = %d, want 1", len(reg.Commands()))
	}
}

func TestRegistry_NonStrictOverwrites(t *testing.T) {
	reg := newTestRegistry(false)
	first := &Definition{Name: "ping", Description: "first"}
	second := &Definition{Name: "ping", Description: "second"}
	err := reg.Load(nil, func(r *Registrar) error {
		if err := r.ChatInput(first); err != nil {
			return err
		}
		return r.ChatInput(second)
	})
	if err != nil {
		t.Fatalf("registry:registry_test - Load error: %v", err)
	}
	if got := reg.MatchCommand("ping"); got != second {
		t.Errorf("registry:registry_test - MatchCommand = %+v, want second definition", got)
	}
	if len(reg.Commands()) != 1 {
		t.Errorf("registry:registry_test - commands = %d, want 1", len(reg.Commands()))
	}
}

func TestRegistry_LoadContinuesAfterFailure(t *testing.T) {
	reg := newTestRegistry(true)
	err := reg.Load(nil,
		func(r *Registrar) error { return r.Button(&Definition{}) },
		func(r *Registrar) error { return r.Button(&Definition{Name: "ok"}) },
	)
	if err == nil {
		t.Fatal("registry:registry_test - expected error for nameless definition")
	}
	if reg.Find(KindButton, "ok") == nil {
		t.Error("registry:registry_test - later register func should still run")
	}
}

func TestRegistry_Flags(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		want  []string
	}{
		{"no flags", nil, []string{"plain"}},
		{"named flag", []string{"beta"}, []string{"plain", "beta-cmd"}},
		{"all", []string{FlagAll}, []string{"plain", "beta-cmd", "dev-cmd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(true)
			err := reg.Load(tt.flags, func(r *Registrar) error {
				for _, d := range []*Definition{
					{Name: "plain"},
					{Name: "beta-cmd", Flag: "beta"},
					{Name: "dev-cmd", Flag: "dev"},
				} {
					if err := r.ChatInput(d); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				t.Fatalf("registry:registry_test - Load error: %v", err)
			}
			if got := len(reg.Commands()); got != len(tt.want) {
				t.Fatalf("registry:registry_test - commands = %d, want %d", got, len(tt.want))
			}
			for _, name := range tt.want {
				if reg.Find(KindChatInput, name) == nil {
					t.Errorf("registry:registry_test - %q not loaded", name)
				}
			}
		})
	}
}

func TestRegistry_LongestMatch(t *testing.T) {
	orders := [][]string{
		{"a", "a b", "a b c"},
		{"a b c", "a", "a b"},
		{"a b", "a b c", "a"},
	}
	for _, order := range orders {
		reg := newTestRegistry(true)
		err := reg.Load(nil, func(r *Registrar) error {
			for _, name := range order {
				if err := r.ChatInput(&Definition{Name: name}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("registry:registry_test - Load error: %v", err)
		}

		cmds := reg.Commands()
		for i := 1; i < len(cmds); i++ {
			if cmds[i-1].Segments() < cmds[i].Segments() {
				t.Errorf("registry:registry_test - commands not sorted: %q before %q", cmds[i-1].Name, cmds[i].Name)
			}
		}
		if got := reg.MatchCommand("a b c"); got == nil || got.Name != "a b c" {
			t.Errorf("registry:registry_test - order %v: match(a b c) = %v", order, got)
		}
		if got := reg.MatchCommand("a b"); got == nil || got.Name != "a b" {
			t.Errorf("registry:registry_test - order %v: match(a b) = %v", order, got)
		}
		if got := reg.MatchCommand("a x"); got == nil || got.Name != "a" {
			t.Errorf("registry:registry_test - order %v: match(a x) = %v", order, got)
		}
		if got := reg.MatchCommand("ab"); got != nil {
			t.Errorf("registry:registry_test - match(ab) = %q, want nil", got.Name)
		}
	}
}

func TestRegistry_EventsOrderAndIDs(t *testing.T) {
	reg := newTestRegistry(true)
	err := reg.Load(nil, func(r *Registrar) error {
		for _, e := range []*EventDefinition{
			{Name: "messageCreate"},
			{Name: "guildCreate"},
			{Name: "messageCreate", ID: "logger"},
		} {
			if err := r.Event(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("registry:registry_test - Load error: %v", err)
	}

	got := reg.EventsFor("messageCreate")
	if len(got) != 2 || got[1].ID != "logger" {
		t.Fatalf("registry:registry_test - EventsFor = %+v", got)
	}
	if got[0].ID == "" {
		t.Error("registry:registry_test - generated event id should not be empty")
	}

	err = reg.Load(nil, func(r *Registrar) error {
		return r.Event(&EventDefinition{Name: "messageCreate", ID: "logger"})
	})
	if !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("registry:registry_test - duplicate event id err = %v", err)
	}
}

func TestRegistry_Sweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	reg := NewRegistry(NewRegistryParams{Now: func() time.Time { return now }})

	if err := reg.AddInline(&Definition{Name: "short", Kind: KindButton, TTL: time.Minute}); err != nil {
		t.Fatalf("registry:registry_test - AddInline error: %v", err)
	}
	if err := reg.AddInline(&Definition{Name: "forever", Kind: KindButton}); err != nil {
		t.Fatalf("registry:registry_test - AddInline error: %v", err)
	}
	if err := reg.AddInlineEvent(&EventDefinition{Name: "ready", TTL: time.Second}); err != nil {
		t.Fatalf("registry:registry_test - AddInlineEvent error: %v", err)
	}

	now = now.Add(time.Minute)
	if n := reg.Sweep(); n != 1 {
		t.Errorf("registry:registry_test - sweep at exactly ttl removed %d, want 1 (event only)", n)
	}

	now = now.Add(time.Second)
	if n := reg.Sweep(); n != 1 {
		t.Errorf("registry:registry_test - second sweep removed %d, want 1", n)
	}
	if reg.Find(KindButton, "short") != nil {
		t.Error("registry:registry_test - expired button still registered")
	}
	if reg.Find(KindButton, "forever") == nil {
		t.Error("registry:registry_test - button without ttl was swept")
	}
}

func TestRegistry_Unload(t *testing.T) {
	reg := newTestRegistry(true)
	var order []int
	err := reg.Load(nil, func(r *Registrar) error {
		r.OnUnload(func() { order = append(order, 1) })
		r.OnUnload(func() { order = append(order, 2) })
		r.Locale("en", map[string]interface{}{"hi": "hello"})
		r.InteractionLocale("ping", map[string]locale.Translation{"tr": {Name: "ping-tr"}})
		if err := r.Event(&EventDefinition{Name: "ready"}); err != nil {
			return err
		}
		return r.ChatInput(&Definition{Name: "ping"})
	})
	if err != nil {
		t.Fatalf("registry:registry_test - Load error: %v", err)
	}

	reg.Unload()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("registry:registry_test - unloaders ran as %v, want [2 1]", order)
	}
	if len(reg.Commands()) != 0 || len(reg.Events()) != 0 {
		t.Error("registry:registry_test - collections not cleared")
	}
	if reg.Locales().Len() != 0 || len(reg.Interactions().Names()) != 0 {
		t.Error("registry:registry_test - locales not cleared")
	}

	// The registry is usable again after unload.
	if err := reg.Load(nil, func(r *Registrar) error { return r.ChatInput(&Definition{Name: "ping"}) }); err != nil {
		t.Errorf("registry:registry_test - reload error: %v", err)
	}
}

func TestRegistry_Remove(t *testing.T) {
	reg := newTestRegistry(true)
	_ = reg.AddInline(&Definition{Name: "a", Kind: KindChatInput})
	_ = reg.AddInline(&Definition{Name: "a b", Kind: KindChatInput})

	if !reg.Remove(KindChatInput, "a b") {
		t.Fatal("registry:registry_test - Remove returned false")
	}
	if reg.Remove(KindChatInput, "a b") {
		t.Error("registry:registry_test - second Remove should return false")
	}
	if got := reg.MatchCommand("a b"); got == nil || got.Name != "a" {
		t.Errorf("registry:registry_test - match after remove = %v", got)
	}
}

func TestDefinition_ComponentBuilders(t *testing.T) {
	reg := newTestRegistry(true)
	vote := &Definition{Name: "vote"}
	pick := &Definition{Name: "pick"}
	form := &Definition{Name: "form"}
	err := reg.Load(nil, func(r *Registrar) error {
		if err := r.Button(vote); err != nil {
			return err
		}
		if err := r.RoleSelect(pick); err != nil {
			return err
		}
		return r.Modal(form)
	})
	if err != nil {
		t.Fatalf("registry:registry_test - Load error: %v", err)
	}

	btn, err := vote.Button(discordgo.PrimaryButton, "Up", "up", 2)
	if err != nil {
		t.Fatalf("registry:registry_test - Button error: %v", err)
	}
	if btn.CustomID != "vote—up—π2" || btn.Label != "Up" {
		t.Errorf("registry:registry_test - button = %+v", btn)
	}

	menu, err := pick.SelectMenu("Pick a role", nil)
	if err != nil {
		t.Fatalf("registry:registry_test - SelectMenu error: %v", err)
	}
	if menu.MenuType != discordgo.RoleSelectMenu || menu.CustomID != "pick" {
		t.Errorf("registry:registry_test - menu = %+v", menu)
	}

	resp, err := form.Modal("Title", nil, true)
	if err != nil {
		t.Fatalf("registry:registry_test - Modal error: %v", err)
	}
	if resp.Type != discordgo.InteractionResponseModal || resp.Data.CustomID != "form—𝞫1" {
		t.Errorf("registry:registry_test - modal = %+v", resp.Data)
	}

	if _, err := vote.SelectMenu("x", nil); err == nil {
		t.Error("registry:registry_test - SelectMenu on a button should fail")
	}
	if _, err := (&Definition{Name: "loose"}).CustomID(); err == nil {
		t.Error("registry:registry_test - CustomID on unregistered definition should fail")
	}
}

func TestCommandPath(t *testing.T) {
	leaf := &discordgo.ApplicationCommandInteractionDataOption{Name: "value", Type: discordgo.ApplicationCommandOptionString, Value: "red"}
	data := discordgo.ApplicationCommandInteractionData{
		Name: "config",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name: "color",
			Type: discordgo.ApplicationCommandOptionSubCommandGroup,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name:    "set",
				Type:    discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{leaf},
			}},
		}},
	}

	path, opts := CommandPath(data)
	if path != "config color set" {
		t.Errorf("registry:registry_test - path = %q", path)
	}
	if len(opts) != 1 || opts[0] != leaf {
		t.Fatalf("registry:registry_test - leaf options = %+v", opts)
	}
	if HoistOptions(opts)["value"] != leaf {
		t.Error("registry:registry_test - HoistOptions missing leaf")
	}

	leaf.Focused = true
	if FocusedOption(opts) != leaf {
		t.Error("registry:registry_test - FocusedOption missing leaf")
	}

	plain, opts := CommandPath(discordgo.ApplicationCommandInteractionData{Name: "ping"})
	if plain != "ping" || len(opts) != 0 {
		t.Errorf("registry:registry_test - plain path = %q, %v", plain, opts)
	}
}

func TestKind(t *testing.T) {
	if KindButton.String() != "button" || Kind(99).String() != "unknown" {
		t.Error("registry:registry_test - Kind.String mismatch")
	}
	if !KindUserContextMenu.IsCommand() || KindModal.IsCommand() {
		t.Error("registry:registry_test - IsCommand mismatch")
	}
	if !KindChannelSelect.IsSelect() || KindButton.IsSelect() {
		t.Error("registry:registry_test - IsSelect mismatch")
	}
	if k, ok := KindOfComponent(discordgo.UserSelectMenuComponent); !ok || k != KindUserSelect {
		t.Error("registry:registry_test - KindOfComponent mismatch")
	}
	if _, ok := KindOfComponent(discordgo.TextInputComponent); ok {
		t.Error("registry:registry_test - text input is not a handler kind")
	}
	if k, ok := KindOfCommand(discordgo.MessageApplicationCommand); !ok || k != KindMessageContextMenu {
		t.Error("registry:registry_test - KindOfCommand mismatch")
	}
	if !PublishScope("").Includes(PublishGuild) || PublishGlobal.Includes(PublishGuild) || !PublishBoth.Includes(PublishGlobal) {
		t.Error("registry:registry_test - PublishScope.Includes mismatch")
	}
}
