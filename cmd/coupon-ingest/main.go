// Command coupon-ingest loads partner coupon exports into the coupons table.
//
// Exports are gzip files with one coupon per line:
//
//	code;discount_type;discount_value[;min_order_value;expiry_date;visibility;allowed_customer_ids;display_text]
//
// A code exported by several files is taken from the last file in name
// order.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pricing/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		location    string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz coupon exports")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&location, "location", "UTC", "time zone of expiry dates without an offset")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, location); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, location string) error {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return errors.Wrap(err, "load location")
	}

	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list exports")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz exports in %s", dataDir)
	}
	slices.Sort(files)

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	st, err := ingest(ctx, files, loc, postgres.NewCouponStore(pool))
	if err != nil {
		return err
	}
	slog.Info("ingest summary",
		slog.Int("files", len(files)),
		slog.Int("written", st.written),
		slog.Int("rejected", st.rejected),
		slog.Int("conflicts", st.conflicts),
	)
	return nil
}
