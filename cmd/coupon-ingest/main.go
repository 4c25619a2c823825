package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/repository"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		storeID     string
		maxUses     int
		batchSize   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing <program-id>.gz code batches")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storeID, "store-id", "", "store that owns the coupons")
	flag.IntVar(&maxUses, "max-uses", 1, "successful purchases allowed per profile for each code")
	flag.IntVar(&batchSize, "batch-size", 1000, "coupons per upsert batch")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if storeID == "" {
		slog.Error("store id is required: set --store-id")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, storeID, maxUses, batchSize); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, storeID string, maxUses, batchSize int) error {
	batches, err := discoverBatches(dataDir)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		slog.Info("no code batches found", slog.String("dir", dataDir))
		return nil
	}
	slog.Info("found code batches", slog.Int("batches", len(batches)))

	conflicts, err := findConflicts(ctx, batches)
	if err != nil {
		return errors.Wrap(err, "find conflicting codes")
	}
	slog.Info("conflicting codes skipped", slog.Int("count", len(conflicts)))

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	w := &couponWriter{
		seeder:    repository.NewSeeder(pool),
		storeID:   storeID,
		maxUses:   maxUses,
		batchSize: batchSize,
	}
	for _, b := range batches {
		written, err := w.write(ctx, b, conflicts)
		if err != nil {
			return errors.Wrapf(err, "write batch %s", b.programID)
		}
		slog.Info("batch written",
			slog.String("program", b.programID),
			slog.Int("coupons", written),
		)
	}
	return nil
}

// batch is a gzip file of coupon codes, one per line, for one discount
// program. The file name without .gz is the program id.
type batch struct {
	programID string
	path      string
}

func discoverBatches(dir string) ([]batch, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.gz"))
	if err != nil {
		return nil, errors.Wrap(err, "list batches")
	}
	slices.Sort(paths)

	out := make([]batch, 0, len(paths))
	for _, p := range paths {
		out = append(out, batch{
			programID: strings.TrimSuffix(filepath.Base(p), ".gz"),
			path:      p,
		})
	}
	return out, nil
}
