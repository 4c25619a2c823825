package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/domain/auth"
	"github.com/xenking/checkout-pricing/internal/domain/discount"
	"github.com/xenking/checkout-pricing/internal/repository"
)

func main() {
	var (
		databaseURL  string
		seedPath     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to seed JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or PRICING_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PRICING_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PRICING_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PRICING_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, apiKey, pepper string) error {
	f, err := readSeedFile(seedPath)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seeder := repository.NewSeeder(pool)
	for _, st := range f.Stores {
		if err := seedStore(ctx, seeder, st); err != nil {
			return errors.Wrapf(err, "seed store %s", st.Slug)
		}
	}

	if apiKey == "" {
		slog.Info("no API key given, skipping")
		return nil
	}
	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func seedStore(ctx context.Context, seeder *repository.Seeder, st storeJSON) error {
	if err := seeder.UpsertStore(ctx, st.store()); err != nil {
		return err
	}
	slog.Info("upserted store", slog.String("slug", st.Slug))

	for _, p := range st.Products {
		if err := seeder.UpsertProduct(ctx, p.product(st.ID)); err != nil {
			return err
		}
	}
	slog.Info("upserted products", slog.Int("count", len(st.Products)))

	programs := make(map[string]discount.Program, len(st.Programs))
	for _, pj := range st.Programs {
		p := pj.program()
		if err := p.Validate(); err != nil {
			return err
		}
		if err := seeder.UpsertProgram(ctx, st.ID, p); err != nil {
			return err
		}
		programs[p.ID] = p
	}
	slog.Info("upserted discount programs", slog.Int("count", len(programs)))

	coupons, err := st.coupons(programs)
	if err != nil {
		return err
	}
	if err := seeder.UpsertCoupons(ctx, coupons); err != nil {
		return err
	}
	slog.Info("upserted coupons", slog.Int("count", len(coupons)))

	for _, mj := range st.Memberships {
		m, err := mj.membership(st.ID, programs)
		if err != nil {
			return err
		}
		if err := seeder.UpsertMembership(ctx, m); err != nil {
			return err
		}
		for _, profileID := range mj.Profiles {
			if err := seeder.Enroll(ctx, m.ID, profileID); err != nil {
				return err
			}
		}
		slog.Info("upserted membership",
			slog.String("id", m.ID),
			slog.Int("enrolled", len(mj.Profiles)),
		)
	}
	return nil
}

func seedAPIKey(ctx context.Context, keys *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	key := &auth.Key{
		ID:     "default",
		Hash:   auth.NewAuthenticator(keys, []byte(pepper)).Hash(apiKey),
		Name:   "Default key",
		Scopes: []string{auth.ScopeAll},
	}
	if err := keys.Upsert(ctx, key); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", key.ID), slog.String("name", key.Name))
	return nil
}
