package registry

import (
	"github.com/morezero/dbi/pkg/locale"
)

// Registrar is handed to RegisterFuncs during a load pass.
type Registrar struct {
	reg   *Registry
	flags []string
}

// Flags returns the flags of the current load pass.
func (r *Registrar) Flags() []string {
	out := make([]string, len(r.flags))
	copy(out, r.flags)
	return out
}

// Enabled reports whether a definition tagged flag is loaded by this pass.
func (r *Registrar) Enabled(flag string) bool {
	if flag == "" {
		return true
	}
	for _, f := range r.flags {
		if f == flag || f == FlagAll {
			return true
		}
	}
	return false
}

// Interaction inserts def under its Kind. Definitions whose flag is not part
// of the pass are skipped without error.
func (r *Registrar) Interaction(def *Definition) error {
	if !r.Enabled(def.Flag) {
		return nil
	}
	return r.reg.insert(def)
}

func (r *Registrar) kind(k Kind, def *Definition) error {
	def.Kind = k
	return r.Interaction(def)
}

// ChatInput registers a slash command.
func (r *Registrar) ChatInput(def *Definition) error { return r.kind(KindChatInput, def) }

// UserContextMenu registers a user context-menu command.
func (r *Registrar) UserContextMenu(def *Definition) error {
	return r.kind(KindUserContextMenu, def)
}

// MessageContextMenu registers a message context-menu command.
func (r *Registrar) MessageContextMenu(def *Definition) error {
	return r.kind(KindMessageContextMenu, def)
}

// Button registers a button.
func (r *Registrar) Button(def *Definition) error { return r.kind(KindButton, def) }

// StringSelect registers a string select menu.
func (r *Registrar) StringSelect(def *Definition) error { return r.kind(KindStringSelect, def) }

func (r *Registrar) UserSelect(def *Definition) error { return r.kind(KindUserSelect, def) }

func (r *Registrar) RoleSelect(def *Definition) error { return r.kind(KindRoleSelect, def) }

func (r *Registrar) ChannelSelect(def *Definition) error { return r.kind(KindChannelSelect, def) }

func (r *Registrar) MentionableSelect(def *Definition) error {
	return r.kind(KindMentionableSelect, def)
}

// Modal registers a modal submit handler.
func (r *Registrar) Modal(def *Definition) error { return r.kind(KindModal, def) }

// Event subscribes def to its event name.
func (r *Registrar) Event(def *EventDefinition) error {
	if !r.Enabled(def.Flag) {
		return nil
	}
	return r.reg.insertEvent(def)
}

// Locale registers or merges a locale. Existing values win.
func (r *Registrar) Locale(name string, data map[string]interface{}) {
	r.reg.locales.Register(name, data)
}

// InteractionLocale registers or merges per-language names of an interaction.
func (r *Registrar) InteractionLocale(name string, data map[string]locale.Translation) {
	r.reg.interactions.Register(name, data)
}

// OnUnload adds a cleanup callback run by Registry.Unload.
func (r *Registrar) OnUnload(fn func()) {
	if fn == nil {
		return
	}
	r.reg.mu.Lock()
	r.reg.unloaders = append(r.reg.unloaders, fn)
	r.reg.mu.Unlock()
}
