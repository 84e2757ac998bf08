package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"orgguard.dev/internal/auth"
	"orgguard.dev/internal/migrate"
	"orgguard.dev/internal/obs"
	"orgguard.dev/internal/seed"
	"orgguard.dev/internal/store/pg"
	"orgguard.dev/migrations"
)

func main() {
	var (
		dsn      = flag.String("dsn", os.Getenv("ORGGUARD_POSTGRES_DSN"), "PostgreSQL DSN")
		demo     = flag.Bool("demo", true, "seed: also create demo organizations, users and overrides")
		password = flag.String("password", seed.DefaultPassword, "seed: password for seeded users")
		cost     = flag.Int("bcrypt-cost", 10, "seed: bcrypt cost for seeded passwords")
	)
	flag.Parse()

	logger, err := obs.NewLogger(os.Getenv("ORGGUARD_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *dsn == "" {
		logger.Fatal("missing DSN: provide via -dsn or ORGGUARD_POSTGRES_DSN")
	}
	if len(flag.Args()) == 0 {
		logger.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), migrations.FS, migrations.Dir)

	switch cmd := flag.Arg(0); cmd {
	case "up":
		applied, err := mgr.Up(ctx)
		if err != nil {
			logger.Fatal("migrate up", zap.Strings("applied", applied), zap.Error(err))
		}
		logger.Info("migrations applied", zap.Strings("applied", applied))
	case "down":
		name, err := mgr.Down(ctx)
		if err != nil {
			logger.Fatal("migrate down", zap.Error(err))
		}
		logger.Info("migration rolled back", zap.String("name", name))
	case "status":
		history, err := mgr.Status(ctx)
		if err != nil {
			logger.Fatal("migrate status", zap.Error(err))
		}
		for _, item := range history {
			fmt.Println(item)
		}
	case "seed":
		res, err := seed.Run(ctx, store, auth.BcryptHasher{Cost: *cost}, seed.Options{Demo: *demo, Password: *password})
		if err != nil {
			logger.Fatal("seed", zap.Error(err))
		}
		logger.Info("seed complete",
			zap.String("platform_id", res.Platform.ID),
			zap.Int("organizations", len(res.Organizations)),
			zap.Int("users", len(res.Users)),
		)
	default:
		logger.Fatal("unknown command", zap.String("command", cmd))
	}
}
