package demo

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

// Runner applies the embedded MiniCRM schema to a SQLite database. The
// applied version lives in PRAGMA user_version so no bookkeeping table shows
// up in the extracted schema.
type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

// migration is one numbered pair of scripts, sql/NNNNNN_name.{up,down}.sql.
type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Up applies pending migrations in version order. steps <= 0 applies all.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	migrations, current, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, m := range migrations {
		if steps > 0 && applied == steps {
			break
		}
		if m.Version <= current {
			continue
		}
		if err := runScript(ctx, db, m.UpSQL, m.Version); err != nil {
			return applied, fmt.Errorf("apply migration %d_%s: %w", m.Version, m.Name, err)
		}
		applied++
	}
	return applied, nil
}

// Down rolls back the newest steps migrations, one when steps <= 0.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	migrations, current, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	reverted := 0
	for i := len(migrations) - 1; i >= 0 && reverted < steps; i-- {
		m := migrations[i]
		if m.Version > current {
			continue
		}
		target := int64(0)
		if i > 0 {
			target = migrations[i-1].Version
		}
		if err := runScript(ctx, db, m.DownSQL, target); err != nil {
			return reverted, fmt.Errorf("roll back migration %d_%s: %w", m.Version, m.Name, err)
		}
		reverted++
	}
	return reverted, nil
}

func (r *Runner) prepare(ctx context.Context, db *sql.DB) ([]migration, int64, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, 0, err
	}
	current, err := Version(ctx, db)
	if err != nil {
		return nil, 0, err
	}
	return migrations, current, nil
}

// Version reports the schema version recorded in the database header.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	var version int64
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// runScript executes script and records version in one transaction.
func runScript(ctx context.Context, db *sql.DB, script string, version int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.FormatInt(version, 10)); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	ups, err := fs.Glob(fsys, "sql/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	migrations := make([]migration, 0, len(ups))
	for _, upPath := range ups {
		m, err := readMigration(fsys, upPath)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}
	slices.SortFunc(migrations, func(a, b migration) int { return cmp.Compare(a.Version, b.Version) })
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("migration version %d is used twice", migrations[i].Version)
		}
	}
	return migrations, nil
}

func readMigration(fsys fs.FS, upPath string) (migration, error) {
	base := strings.TrimSuffix(path.Base(upPath), ".up.sql")
	number, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return migration{}, fmt.Errorf("migration %q: want NNNNNN_name.up.sql", upPath)
	}
	version, err := strconv.ParseInt(number, 10, 64)
	if err != nil || version <= 0 {
		return migration{}, fmt.Errorf("migration %q: bad version %q", upPath, number)
	}
	up, err := fs.ReadFile(fsys, upPath)
	if err != nil {
		return migration{}, fmt.Errorf("read migration: %w", err)
	}
	down, err := fs.ReadFile(fsys, path.Join(path.Dir(upPath), base+".down.sql"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return migration{}, fmt.Errorf("read migration: %w", err)
	}
	m := migration{Version: version, Name: name, UpSQL: string(up), DownSQL: string(down)}
	if strings.TrimSpace(m.UpSQL) == "" {
		return migration{}, fmt.Errorf("migration %d missing up SQL", version)
	}
	if strings.TrimSpace(m.DownSQL) == "" {
		return migration{}, fmt.Errorf("migration %d missing down SQL", version)
	}
	return m, nil
}

