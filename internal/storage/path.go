package storage

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var ErrInvalidObjectKey = errors.New("invalid object key")

var keyComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

var databaseExtensions = map[string]string{
	".db":      "sqlite",
	".sqlite":  "sqlite",
	".sqlite3": "sqlite",
	".duckdb":  "duckdb",
}

// DatabaseDialectForKey validates an object key that points at a database
// file and returns the dialect implied by its extension.
func DatabaseDialectForKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("%w: key is required", ErrInvalidObjectKey)
	}
	for _, component := range strings.Split(key, "/") {
		if !keyComponentPattern.MatchString(component) {
			return "", fmt.Errorf("%w: component %q", ErrInvalidObjectKey, component)
		}
	}
	dialect, ok := databaseExtensions[strings.ToLower(path.Ext(key))]
	if !ok {
		return "", fmt.Errorf("%w: %q does not name a database file (.db, .sqlite, .sqlite3, .duckdb)", ErrInvalidObjectKey, key)
	}
	return dialect, nil
}
