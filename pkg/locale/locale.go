// Package locale owns the registered text locales and the per-interaction
// localization tables used when publishing commands.
//
// The Registry holds the canonical data for each locale name. Callers receive
// a *Locale view that reads through the registry, so a later registration that
// merges into the same name is visible to every holder.
package locale

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Registry maps locale names ("en", "tr") to nested string templates.
type Registry struct {
	mu      sync.RWMutex
	locales map[string]map[string]interface{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{locales: make(map[string]map[string]interface{})}
}

// Register adds data under name. If name exists, data is merged beneath the
// existing entries: existing values win, new keys fill gaps.
func (r *Registry) Register(name string, data map[string]interface{}) *Locale {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.locales[name]; ok {
		r.locales[name] = merge(existing, data)
	} else {
		r.locales[name] = deepCopy(data)
	}
	return &Locale{name: name, reg: r}
}

// Get returns the locale registered under name.
func (r *Registry) Get(name string) (*Locale, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.locales[name]; !ok {
		return nil, false
	}
	return &Locale{name: name, reg: r}, true
}

// Names returns the registered locale names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.locales))
	for n := range r.locales {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered locales.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.locales)
}

// Clear removes every locale.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locales = make(map[string]map[string]interface{})
}

// Resolve maps a platform locale tag ("en-US") to a registered locale by its
// language subtag, falling back to defaultName. It returns nil when neither is
// registered.
func (r *Registry) Resolve(tag, defaultName string) *Locale {
	lang := tag
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}
	lang = strings.ToLower(lang)

	if lang != "" {
		if l, ok := r.Get(lang); ok {
			return l
		}
		if l, ok := r.Get(tag); ok {
			return l
		}
	}
	if l, ok := r.Get(defaultName); ok {
		return l
	}
	return nil
}

// Locale is a read-through view of one registered locale.
type Locale struct {
	name string
	reg  *Registry
}

// Name returns the locale name.
func (l *Locale) Name() string { return l.name }

// Data returns a copy of the current merged data.
func (l *Locale) Data() map[string]interface{} {
	l.reg.mu.RLock()
	defer l.reg.mu.RUnlock()
	return deepCopy(l.reg.locales[l.name])
}

// Get returns the template at a dotted path such as "errors.cooldown".
func (l *Locale) Get(path string) (string, bool) {
	l.reg.mu.RLock()
	defer l.reg.mu.RUnlock()

	var node interface{} = l.reg.locales[l.name]
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]interface{})
		if !ok {
			return "", false
		}
		if node, ok = m[part]; !ok {
			return "", false
		}
	}
	s, ok := node.(string)
	return s, ok
}

// Format returns the template at path with {0}, {1}, ... replaced by args.
// A missing path formats to the path itself.
func (l *Locale) Format(path string, args ...interface{}) string {
	tmpl, ok := l.Get(path)
	if !ok {
		return path
	}
	return Format(tmpl, args...)
}

// Format substitutes positional placeholders in tmpl.
func Format(tmpl string, args ...interface{}) string {
	if len(args) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(args)*2)
	for i, a := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", fmt.Sprint(a))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Context is the locale pair resolved for one dispatch. Either side may be nil.
type Context struct {
	User  *Locale
	Guild *Locale
}

// merge returns base with gaps filled from extra. base wins on conflicts;
// nested maps are merged recursively.
func merge(base, extra map[string]interface{}) map[string]interface{} {
	out := deepCopy(base)
	for k, v := range extra {
		cur, exists := out[k]
		if !exists {
			out[k] = deepCopyValue(v)
			continue
		}
		curMap, curIsMap := cur.(map[string]interface{})
		vMap, vIsMap := v.(map[string]interface{})
		if curIsMap && vIsMap {
			out[k] = merge(curMap, vMap)
		}
	}
	return out
}

func deepCopy(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopy(t)
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, vv := range t {
			m[fmt.Sprint(k)] = deepCopyValue(vv)
		}
		return m
	default:
		return v
	}
}
