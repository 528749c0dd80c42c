package dbi

import (
	"fmt"

	"github.com/morezero/dbi/pkg/refstore"
	"github.com/morezero/dbi/pkg/registry"
)

// inlineName returns a fresh name for a runtime definition.
func inlineName() string {
	return "inline-" + refstore.NewToken()
}

func (d *DBI) inline(kind registry.Kind, def *registry.Definition) (*registry.Definition, error) {
	if def == nil || def.OnExecute == nil {
		return nil, fmt.Errorf("%s - inline %s needs an OnExecute", logPrefix, kind)
	}
	def.Kind = kind
	if def.Name == "" {
		def.Name = inlineName()
	}
	if def.TTL <= 0 {
		def.TTL = d.config.InlineTTL
	}
	if def.RefTTL == 0 {
		def.RefTTL = d.config.ReferenceTTL
	}
	if err := d.registry.AddInline(def); err != nil {
		return nil, err
	}
	return def, nil
}

// InlineButton registers a button listener at runtime. The returned
// definition builds components whose ids route back to it until its TTL
// elapses.
func (d *DBI) InlineButton(def *registry.Definition) (*registry.Definition, error) {
	return d.inline(registry.KindButton, def)
}

// InlineSelect registers a select menu listener of the given select kind.
func (d *DBI) InlineSelect(kind registry.Kind, def *registry.Definition) (*registry.Definition, error) {
	if !kind.IsSelect() {
		return nil, fmt.Errorf("%s - %s is not a select menu kind", logPrefix, kind)
	}
	return d.inline(kind, def)
}

// InlineModal registers a modal listener at runtime.
func (d *DBI) InlineModal(def *registry.Definition) (*registry.Definition, error) {
	return d.inline(registry.KindModal, def)
}

// InlineEvent registers an event handler at runtime.
func (d *DBI) InlineEvent(def *registry.EventDefinition) (*registry.EventDefinition, error) {
	if def == nil || def.OnExecute == nil || def.Name == "" {
		return nil, fmt.Errorf("%s - inline event needs a name and an OnExecute", logPrefix)
	}
	if def.TTL <= 0 {
		def.TTL = d.config.InlineTTL
	}
	if err := d.registry.AddInlineEvent(def); err != nil {
		return nil, err
	}
	return def, nil
}
