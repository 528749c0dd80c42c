package locale

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const loaderLogPrefix = "locale:loader"

// LoadDir registers every <name>.yaml / <name>.yml file in dir as locale
// <name>. Files under an "interactions" subdirectory are read as interaction
// locale tables keyed by interaction name.
func LoadDir(dir string, locales *Registry, interactions *InteractionRegistry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%s - failed to read locale dir %s: %w", loaderLogPrefix, dir, err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() {
			if e.Name() == "interactions" && interactions != nil {
				if err := loadInteractionDir(filepath.Join(dir, e.Name()), interactions); err != nil {
					return err
				}
			}
			continue
		}
		name, ok := yamlBase(e.Name())
		if !ok {
			continue
		}
		var data map[string]interface{}
		if err := readYAML(filepath.Join(dir, e.Name()), &data); err != nil {
			return err
		}
		locales.Register(name, normalize(data))
		loaded++
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d locales from %s", loaderLogPrefix, loaded, dir))
	return nil
}

func loadInteractionDir(dir string, interactions *InteractionRegistry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%s - failed to read %s: %w", loaderLogPrefix, dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := yamlBase(e.Name()); !ok {
			continue
		}
		var table map[string]map[string]Translation
		if err := readYAML(filepath.Join(dir, e.Name()), &table); err != nil {
			return err
		}
		for name, data := range table {
			interactions.Register(name, data)
		}
	}
	return nil
}

func readYAML(path string, dest interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s - failed to read %s: %w", loaderLogPrefix, path, err)
	}
	if err := yaml.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%s - failed to parse %s: %w", loaderLogPrefix, path, err)
	}
	return nil
}

func yamlBase(file string) (string, bool) {
	ext := filepath.Ext(file)
	if ext != ".yaml" && ext != ".yml" {
		return "", false
	}
	return strings.TrimSuffix(file, ext), true
}

// normalize turns yaml scalars into strings so templates read uniformly.
func normalize(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]interface{}:
			out[k] = normalize(t)
		case string:
			out[k] = t
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
