package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrClosed         = errors.New("data source is closed")
	ErrUnknownDialect = errors.New("unknown dialect")
	ErrNotSQLite      = errors.New("file is not a SQLite database")
)

type Config struct {
	Dialect string
	DSN     string
	// Label is shown to users in place of the DSN.
	Label string
	// ReadOnly asks the driver to refuse writes where the dialect supports it.
	ReadOnly bool
	// RemoveOnClose deletes the file at DSN once the source is closed. Used
	// for uploads and object store downloads.
	RemoveOnClose bool
}

// Source is a database handle owned by one session.
type Source struct {
	db         *sql.DB
	dialect    Dialect
	label      string
	removePath string

	mu     sync.Mutex
	closed bool
}

// Open connects to the configured database. When cfg.RemoveOnClose is set
// the file is also removed if Open fails.
func Open(ctx context.Context, cfg Config) (source *Source, err error) {
	defer func() {
		if err != nil && cfg.RemoveOnClose {
			removeOwnedFile(cfg)
		}
	}()

	dialect, err := LookupDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is required", dialect.Name)
	}

	if dialect.FileBased {
		if err := checkDatabaseFile(dialect, filePart(dsn)); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(dialect.Driver, driverDSN(dialect, dsn, cfg.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect.Name, err)
	}
	// One connection held for the whole session.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect.Name, err)
	}

	source = NewFromDB(db, dialect, labelFor(dialect, cfg))
	if cfg.RemoveOnClose && dialect.FileBased {
		source.removePath = filePart(dsn)
	}
	return source, nil
}

// NewFromDB wraps an already opened handle, e.g. a sqlmock connection.
func NewFromDB(db *sql.DB, dialect Dialect, label string) *Source {
	if label == "" {
		label = dialect.DisplayName
	}
	return &Source{db: db, dialect: dialect, label: label}
}

// DB returns the handle, or ErrClosed after Close.
func (s *Source) DB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.db, nil
}

func (s *Source) Dialect() Dialect {
	return s.dialect
}

func (s *Source) Label() string {
	return s.label
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	if s.removePath != "" {
		if removeErr := os.Remove(s.removePath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) && err == nil {
			err = fmt.Errorf("remove database file: %w", removeErr)
		}
	}
	return err
}

func checkDatabaseFile(dialect Dialect, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("open %s database %q: %w", dialect.Name, filepath.Base(path), err)
	}
	if info.IsDir() {
		return fmt.Errorf("open %s database %q: is a directory", dialect.Name, filepath.Base(path))
	}
	if dialect.Name == SQLite {
		return ValidateSQLiteFile(path)
	}
	return nil
}

func removeOwnedFile(cfg Config) {
	dialect, err := LookupDialect(cfg.Dialect)
	if err != nil || !dialect.FileBased || strings.TrimSpace(cfg.DSN) == "" {
		return
	}
	_ = os.Remove(filePart(strings.TrimSpace(cfg.DSN)))
}

func driverDSN(dialect Dialect, dsn string, readOnly bool) string {
	if !readOnly {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	switch dialect.Name {
	case SQLite:
		return dsn + sep + "_pragma=query_only(1)"
	case DuckDB:
		return dsn + sep + "access_mode=read_only"
	case Postgres:
		// pgx sends unknown parameters to the server as startup settings.
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			return dsn + sep + "default_transaction_read_only=on"
		}
		return strings.TrimSpace(dsn + " default_transaction_read_only=on")
	default:
		return dsn
	}
}

func filePart(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(dsn, "?"); idx >= 0 {
		return dsn[:idx]
	}
	return dsn
}

func labelFor(dialect Dialect, cfg Config) string {
	if strings.TrimSpace(cfg.Label) != "" {
		return strings.TrimSpace(cfg.Label)
	}
	if dialect.FileBased {
		return filepath.Base(filePart(cfg.DSN))
	}
	return dialect.DisplayName
}
