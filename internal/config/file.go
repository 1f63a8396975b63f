package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileLookup reads a flat YAML document whose keys are the STUDIO_* names,
// e.g.
//
//	STUDIO_DATASOURCE_DSN: ./MiniCRM.db
//	STUDIO_AI_TIMEOUT: 20s
func FileLookup(path string) (LookupFunc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	values, err := parseFlatYAML(raw)
	if err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return MapLookup(values), nil
}

func MapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

// ChainLookup returns the first hit across lookups, in order.
func ChainLookup(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if value, ok := lookup(key); ok {
				return value, true
			}
		}
		return "", false
	}
}

// parseFlatYAML rejects keys Load would silently ignore, so a typo in the
// file fails at startup.
func parseFlatYAML(raw []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	known := Keys()
	values := make(map[string]string, len(doc))
	for key, value := range doc {
		key = strings.TrimSpace(key)
		if !slices.Contains(known, key) {
			return nil, fmt.Errorf("unknown key %s", key)
		}
		switch typed := value.(type) {
		case nil:
			values[key] = ""
		case string:
			values[key] = typed
		case bool, int, int64, float64:
			values[key] = fmt.Sprint(typed)
		default:
			return nil, fmt.Errorf("key %s: nested values are not supported", key)
		}
	}
	return values, nil
}
