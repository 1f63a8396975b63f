package demo

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/nl2sqlstudio/studio/internal/datasource"
	"github.com/nl2sqlstudio/studio/internal/schema"
)

var fixedStart = time.Date(2026, 2, 19, 7, 30, 0, 0, time.UTC)

func TestCreateBuildsQueryableDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MiniCRM.db")
	options := DefaultOptions()
	options.Start = fixedStart

	summary, err := Create(context.Background(), path, options)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if summary.Customers != 50 || summary.Deals == 0 || summary.Activities == 0 {
		t.Fatalf("summary = %#v", summary)
	}

	source, err := datasource.Open(context.Background(), datasource.Config{Dialect: datasource.SQLite, DSN: path, ReadOnly: true})
	if err != nil {
		t.Fatalf("datasource.Open() error = %v", err)
	}
	defer func() { _ = source.Close() }()

	description, err := schema.Extract(context.Background(), source)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	names := description.TableNames()
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"activities", "customers", "deals"}) {
		t.Fatalf("tables = %v", names)
	}

	db, err := source.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	var deals int
	if err := db.QueryRow(`SELECT count(*) FROM deals d JOIN customers c ON c.id = d.customer_id`).Scan(&deals); err != nil {
		t.Fatalf("count deals: %v", err)
	}
	if deals != summary.Deals {
		t.Fatalf("joined deals = %d, want %d", deals, summary.Deals)
	}
	var openWithCloseDate int
	if err := db.QueryRow(`SELECT count(*) FROM deals WHERE stage IN ('prospect', 'negotiation') AND closed_at IS NOT NULL`).Scan(&openWithCloseDate); err != nil {
		t.Fatalf("count open deals: %v", err)
	}
	if openWithCloseDate != 0 {
		t.Fatalf("%d open deals have a close date", openWithCloseDate)
	}
}

func TestCreateIsDeterministicForSeed(t *testing.T) {
	dir := t.TempDir()
	options := DefaultOptions()
	options.Start = fixedStart
	options.Seed = 42

	first, err := Create(context.Background(), filepath.Join(dir, "a.db"), options)
	if err != nil {
		t.Fatalf("Create(a) error = %v", err)
	}
	second, err := Create(context.Background(), filepath.Join(dir, "b.db"), options)
	if err != nil {
		t.Fatalf("Create(b) error = %v", err)
	}
	if first != second {
		t.Fatalf("summaries differ: %#v vs %#v", first, second)
	}
	if dumpCustomers(t, filepath.Join(dir, "a.db")) != dumpCustomers(t, filepath.Join(dir, "b.db")) {
		t.Fatal("customer rows differ for the same seed")
	}
}

func TestCreateRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MiniCRM.db")
	if err := os.WriteFile(path, []byte("keep me"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := Create(context.Background(), path, DefaultOptions())
	if !errors.Is(err, ErrExists) {
		t.Fatalf("Create() error = %v, want ErrExists", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "keep me" {
		t.Fatal("existing file was modified")
	}

	options := DefaultOptions()
	options.Overwrite = true
	options.Customers = 3
	summary, err := Create(context.Background(), path, options)
	if err != nil {
		t.Fatalf("Create(overwrite) error = %v", err)
	}
	if summary.Customers != 3 {
		t.Fatalf("summary = %#v", summary)
	}
}

func TestCreateRejectsInvalidOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MiniCRM.db")
	for _, options := range []Options{
		{Customers: 0},
		{Customers: 1, MaxDealsPerCustomer: -1},
	} {
		if _, err := Create(context.Background(), path, options); err == nil {
			t.Fatalf("Create(%#v) expected error", options)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invalid options left a file: %v", err)
	}
}

func TestRunnerUpAndDownTrackUserVersion(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	runner := NewRunner()
	applied, err := runner.Up(ctx, db, 2)
	if err != nil || applied != 2 {
		t.Fatalf("Up(2) = %d, %v", applied, err)
	}
	if version, _ := Version(ctx, db); version != 2 {
		t.Fatalf("version = %d, want 2", version)
	}
	applied, err = runner.Up(ctx, db, 0)
	if err != nil || applied != 1 {
		t.Fatalf("Up(0) = %d, %v", applied, err)
	}
	if applied, err := runner.Up(ctx, db, 0); err != nil || applied != 0 {
		t.Fatalf("second Up(0) = %d, %v", applied, err)
	}

	rolledBack, err := runner.Down(ctx, db, 2)
	if err != nil || rolledBack != 2 {
		t.Fatalf("Down(2) = %d, %v", rolledBack, err)
	}
	if version, _ := Version(ctx, db); version != 1 {
		t.Fatalf("version after down = %d, want 1", version)
	}
	var tables int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('deals', 'activities')`).Scan(&tables); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if tables != 0 {
		t.Fatalf("%d rolled back tables remain", tables)
	}
}

func TestLoadMigrationsSortsAndPairsUpDown(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_two.up.sql":   {Data: []byte("SELECT 2;")},
		"sql/000002_two.down.sql": {Data: []byte("SELECT -2;")},
		"sql/000001_one.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_one.down.sql": {Data: []byte("SELECT -1;")},
		"sql/README.md":           {Data: []byte("ignored")},
	}

	items, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].Version != 1 || items[1].Version != 2 {
		t.Fatalf("unexpected migration order: %+v", items)
	}
}

func TestLoadMigrationsErrorsWhenDownMissing(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_one.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := loadMigrations(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "missing down SQL") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMigrationsRejectsDuplicateAndMalformedNames(t *testing.T) {
	duplicate := fstest.MapFS{
		"sql/000001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_a.down.sql": {Data: []byte("SELECT 1;")},
		"sql/000001_b.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_b.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := loadMigrations(duplicate); err == nil || !strings.Contains(err.Error(), "used twice") {
		t.Fatalf("duplicate versions: err = %v", err)
	}
	malformed := fstest.MapFS{"sql/first.up.sql": {Data: []byte("SELECT 1;")}}
	if _, err := loadMigrations(malformed); err == nil {
		t.Fatal("expected error for unnumbered migration")
	}
}

func TestEmbeddedMigrationsLoad(t *testing.T) {
	items, err := loadMigrations(embeddedFS)
	if err != nil {
		t.Fatalf("loadMigrations(embedded) error = %v", err)
	}
	var names []string
	for _, item := range items {
		names = append(names, item.Name)
	}
	if !reflect.DeepEqual(names, []string{"customers", "deals", "activities"}) {
		t.Fatalf("names = %v", names)
	}
}

func TestGeneratorDeterministicForSeed(t *testing.T) {
	g1 := NewGenerator(7, fixedStart)
	g2 := NewGenerator(7, fixedStart)
	for i := 0; i < 5; i++ {
		c1, c2 := g1.NextCustomer(), g2.NextCustomer()
		if !reflect.DeepEqual(c1, c2) {
			t.Fatalf("customer %d differs: %#v vs %#v", i, c1, c2)
		}
		if c1.ID != int64(i+1) {
			t.Fatalf("customer id = %d, want %d", c1.ID, i+1)
		}
		d1, d2 := g1.NextDeal(c1), g2.NextDeal(c2)
		if !reflect.DeepEqual(d1, d2) {
			t.Fatalf("deal %d differs: %#v vs %#v", i, d1, d2)
		}
		if d1.CustomerID != c1.ID || d1.Amount <= 0 {
			t.Fatalf("deal = %#v", d1)
		}
		if (d1.Stage == "won" || d1.Stage == "lost") != (d1.ClosedAt != nil) {
			t.Fatalf("deal stage %s with ClosedAt %v", d1.Stage, d1.ClosedAt)
		}
	}
}

func dumpCustomers(t *testing.T, path string) string {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	rows, err := db.Query(`SELECT id, name, industry, country, annual_revenue, created_at FROM customers ORDER BY id`)
	if err != nil {
		t.Fatalf("query customers: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var out strings.Builder
	for rows.Next() {
		var id int64
		var name, industry, country, createdAt string
		var revenue float64
		if err := rows.Scan(&id, &name, &industry, &country, &revenue, &createdAt); err != nil {
			t.Fatalf("scan customer: %v", err)
		}
		out.WriteString(strings.Join([]string{name, industry, country, createdAt}, "|"))
		out.WriteByte('\n')
	}
	return out.String()
}
