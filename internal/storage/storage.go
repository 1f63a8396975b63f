// Package storage describes the bucket that database files are fetched
// from. Implementations live in subpackages.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStore is read-only. Keys are relative to the store's own prefix.
type ObjectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// List returns every object under prefix, recursively.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

type DatabaseObject struct {
	ObjectInfo
	Dialect string `json:"dialect"`
}

// ListDatabases lists the objects under prefix whose extension names a
// supported database file, sorted by key.
func ListDatabases(ctx context.Context, store ObjectStore, prefix string) ([]DatabaseObject, error) {
	objects, err := store.List(ctx, strings.TrimPrefix(strings.TrimSpace(prefix), "/"))
	if err != nil {
		return nil, err
	}
	databases := make([]DatabaseObject, 0, len(objects))
	for _, object := range objects {
		if strings.HasSuffix(object.Key, "/") {
			continue
		}
		dialect, ok := databaseExtensions[strings.ToLower(path.Ext(object.Key))]
		if !ok {
			continue
		}
		databases = append(databases, DatabaseObject{ObjectInfo: object, Dialect: dialect})
	}
	sort.Slice(databases, func(i, j int) bool { return databases[i].Key < databases[j].Key })
	return databases, nil
}
