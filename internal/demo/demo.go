// Package demo builds the MiniCRM sample database used when no other
// database is configured.
package demo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

var ErrExists = errors.New("database file already exists")

type Options struct {
	Customers int
	// Deals and activities per customer are drawn from [0, Max].
	MaxDealsPerCustomer      int
	MaxActivitiesPerCustomer int
	Seed                     int64
	// Start anchors generated dates; zero means now.
	Start     time.Time
	Overwrite bool
}

func DefaultOptions() Options {
	return Options{
		Customers:                50,
		MaxDealsPerCustomer:      4,
		MaxActivitiesPerCustomer: 6,
		Seed:                     1,
	}
}

type Summary struct {
	Customers  int
	Deals      int
	Activities int
}

// Create writes a new SQLite file at path with the MiniCRM schema and
// generated rows. A failed build leaves no file behind.
func Create(ctx context.Context, path string, options Options) (summary Summary, err error) {
	if options.Customers <= 0 {
		return Summary{}, fmt.Errorf("customers must be positive")
	}
	if options.MaxDealsPerCustomer < 0 || options.MaxActivitiesPerCustomer < 0 {
		return Summary{}, fmt.Errorf("per-customer maximums must not be negative")
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if !options.Overwrite {
			return Summary{}, fmt.Errorf("%w: %s", ErrExists, path)
		}
		if err := os.Remove(path); err != nil {
			return Summary{}, fmt.Errorf("remove existing database: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Summary{}, fmt.Errorf("open database: %w", err)
	}
	defer func() {
		_ = db.Close()
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	db.SetMaxOpenConns(1)

	if _, err := NewRunner().Up(ctx, db, 0); err != nil {
		return Summary{}, err
	}
	start := options.Start
	if start.IsZero() {
		start = time.Now()
	}
	return seed(ctx, db, NewGenerator(options.Seed, start), options)
}

func seed(ctx context.Context, db *sql.DB, g *Generator, options Options) (Summary, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var summary Summary
	for i := 0; i < options.Customers; i++ {
		customer := g.NextCustomer()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO customers (id, name, industry, country, annual_revenue, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			customer.ID, customer.Name, customer.Industry, customer.Country, customer.AnnualRevenue, formatDate(customer.CreatedAt),
		); err != nil {
			return Summary{}, fmt.Errorf("insert customer: %w", err)
		}
		summary.Customers++

		for n := g.rnd.Intn(options.MaxDealsPerCustomer + 1); n > 0; n-- {
			deal := g.NextDeal(customer)
			var closedAt any
			if deal.ClosedAt != nil {
				closedAt = formatDate(*deal.ClosedAt)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO deals (id, customer_id, title, stage, amount, closed_at) VALUES (?, ?, ?, ?, ?, ?)`,
				deal.ID, deal.CustomerID, deal.Title, deal.Stage, deal.Amount, closedAt,
			); err != nil {
				return Summary{}, fmt.Errorf("insert deal: %w", err)
			}
			summary.Deals++
		}

		for n := g.rnd.Intn(options.MaxActivitiesPerCustomer + 1); n > 0; n-- {
			activity := g.NextActivity(customer)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO activities (id, customer_id, kind, occurred_at) VALUES (?, ?, ?, ?)`,
				activity.ID, activity.CustomerID, activity.Kind, activity.OccurredAt.Format(time.RFC3339),
			); err != nil {
				return Summary{}, fmt.Errorf("insert activity: %w", err)
			}
			summary.Activities++
		}
	}
	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit seed data: %w", err)
	}
	return summary, nil
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}
