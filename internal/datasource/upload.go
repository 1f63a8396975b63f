package datasource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

var sqliteHeader = []byte("SQLite format 3\x00")

var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// ValidateSQLiteFile checks the 16-byte SQLite header.
func ValidateSQLiteFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open database file: %w", err)
	}
	defer func() { _ = file.Close() }()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(file, header); err != nil {
		return ErrNotSQLite
	}
	if !bytes.Equal(header, sqliteHeader) {
		return ErrNotSQLite
	}
	return nil
}

// SaveUpload copies r into a new temp .db file under dir, enforcing maxBytes
// and the SQLite header. The caller owns the returned file.
func SaveUpload(dir string, r io.Reader, maxBytes int64) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	file, err := os.CreateTemp(dir, "studio-upload-*.db")
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	path := file.Name()
	cleanup := func() {
		_ = file.Close()
		_ = os.Remove(path)
	}

	written, err := io.Copy(file, io.LimitReader(r, maxBytes+1))
	if err != nil {
		cleanup()
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if written > maxBytes {
		cleanup()
		return "", ErrUploadTooLarge
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	if err := ValidateSQLiteFile(path); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
