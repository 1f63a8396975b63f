package datasource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/nl2sqlstudio/studio/internal/storage"
)

// Fetch downloads the database file at key into a temp file under dir and
// returns a Config that removes the copy when the source closes. Objects
// larger than maxBytes fail with ErrUploadTooLarge; a non-positive maxBytes
// means no limit.
func Fetch(ctx context.Context, store storage.ObjectStore, key, dir string, maxBytes int64) (Config, error) {
	if store == nil {
		return Config{}, fmt.Errorf("object store is not configured")
	}
	dialect, err := storage.DatabaseDialectForKey(key)
	if err != nil {
		return Config{}, err
	}
	reader, err := store.Get(ctx, key)
	if err != nil {
		return Config{}, fmt.Errorf("fetch database object: %w", err)
	}
	defer func() { _ = reader.Close() }()

	if dir == "" {
		dir = os.TempDir()
	}
	file, err := os.CreateTemp(dir, "studio-object-*"+path.Ext(key))
	if err != nil {
		return Config{}, fmt.Errorf("create local database file: %w", err)
	}
	localPath := file.Name()
	var src io.Reader = reader
	if maxBytes > 0 {
		src = io.LimitReader(reader, maxBytes+1)
	}
	written, err := io.Copy(file, src)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(localPath)
		return Config{}, fmt.Errorf("write local database file: %w", err)
	}
	if maxBytes > 0 && written > maxBytes {
		_ = file.Close()
		_ = os.Remove(localPath)
		return Config{}, fmt.Errorf("%w: object %s is larger than %d bytes", ErrUploadTooLarge, key, maxBytes)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(localPath)
		return Config{}, fmt.Errorf("close local database file: %w", err)
	}

	return Config{
		Dialect:       dialect,
		DSN:           localPath,
		Label:         path.Base(key),
		RemoveOnClose: true,
	}, nil
}
