package locale

import (
	"sort"
	"sync"
)

// OptionTranslation localizes one command option.
type OptionTranslation struct {
	Name        string            `yaml:"name" json:"name,omitempty"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Choices     map[string]string `yaml:"choices" json:"choices,omitempty"`
}

// Translation localizes one command or component in one language.
type Translation struct {
	Name        string                       `yaml:"name" json:"name,omitempty"`
	Description string                       `yaml:"description" json:"description,omitempty"`
	Options     map[string]OptionTranslation `yaml:"options" json:"options,omitempty"`
}

// InteractionLocale holds translations for one interaction name keyed by
// platform locale code ("tr", "en-US").
type InteractionLocale struct {
	Name string
	Data map[string]Translation
}

// InteractionRegistry holds InteractionLocale entries by interaction name.
type InteractionRegistry struct {
	mu      sync.RWMutex
	entries map[string]*InteractionLocale
}

// NewInteractionRegistry creates an empty InteractionRegistry.
func NewInteractionRegistry() *InteractionRegistry {
	return &InteractionRegistry{entries: make(map[string]*InteractionLocale)}
}

// Register merges data for name. Translations already present for a locale
// code win over the new ones.
func (r *InteractionRegistry) Register(name string, data map[string]Translation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.entries[name]
	if !ok {
		cur = &InteractionLocale{Name: name, Data: make(map[string]Translation, len(data))}
		r.entries[name] = cur
	}
	for code, tr := range data {
		if existing, exists := cur.Data[code]; exists {
			cur.Data[code] = mergeTranslation(existing, tr)
			continue
		}
		cur.Data[code] = tr
	}
}

// Get returns the translations for name.
func (r *InteractionRegistry) Get(name string) (*InteractionLocale, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	cp := &InteractionLocale{Name: e.Name, Data: make(map[string]Translation, len(e.Data))}
	for k, v := range e.Data {
		cp.Data[k] = v
	}
	return cp, true
}

// Names returns the registered interaction names in sorted order.
func (r *InteractionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clear removes every entry.
func (r *InteractionRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*InteractionLocale)
}

func mergeTranslation(base, extra Translation) Translation {
	if base.Name == "" {
		base.Name = extra.Name
	}
	if base.Description == "" {
		base.Description = extra.Description
	}
	if len(extra.Options) == 0 {
		return base
	}
	opts := make(map[string]OptionTranslation, len(base.Options)+len(extra.Options))
	for k, v := range base.Options {
		opts[k] = v
	}
	for k, v := range extra.Options {
		cur, ok := opts[k]
		if !ok {
			opts[k] = v
			continue
		}
		if cur.Name == "" {
			cur.Name = v.Name
		}
		if cur.Description == "" {
			cur.Description = v.Description
		}
		for ck, cv := range v.Choices {
			if cur.Choices == nil {
				cur.Choices = make(map[string]string)
			}
			if _, exists := cur.Choices[ck]; !exists {
				cur.Choices[ck] = cv
			}
		}
		opts[k] = cur
	}
	base.Options = opts
	return base
}
