package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/audit"
	"orgguard.dev/internal/auth"
	"orgguard.dev/internal/config"
	"orgguard.dev/internal/grpcapi"
	"orgguard.dev/internal/guard"
	"orgguard.dev/internal/httpapi"
	"orgguard.dev/internal/obs"
	"orgguard.dev/internal/ratelimit"
	"orgguard.dev/internal/seed"
	"orgguard.dev/internal/store/memory"
	"orgguard.dev/internal/store/pg"
	"orgguard.dev/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is what both the Postgres and the in-memory store provide.
type backend interface {
	access.Store
	audit.Sink
	audit.Reader
}

func main() {
	configPath := flag.String("config", os.Getenv("ORGGUARD_CONFIG"), "optional config file (yaml, json, toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger is not configured yet
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := obs.NewLogger(cfg.Log.Level)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("orgguard-api stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	obs.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hasher := auth.BcryptHasher{Cost: cfg.Auth.BcryptCost}

	var (
		store backend
		ready httpapi.ReadinessChecker = httpapi.ReadyFunc(nil)
	)
	if cfg.Postgres.DSN != "" {
		pgStore, err := pg.Open(cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		store = pgStore
		ready = httpapi.ReadyFunc(pgStore.Ping)
	} else {
		mem := memory.New()
		if _, err := seed.Run(ctx, mem, hasher, seed.Options{Demo: true}); err != nil {
			return err
		}
		logger.Warn("no postgres.dsn configured: using in-memory store with demo data")
		store = mem
	}

	hub := stream.New()
	sinks := []audit.Sink{store, hub}
	if cfg.Audit.ElasticURL != "" {
		es, err := audit.NewElasticSink(cfg.Audit.ElasticURL, cfg.Audit.ElasticIndex)
		if err != nil {
			return err
		}
		sinks = append(sinks, es)
	}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		producer, err := audit.NewKafkaProducer(cfg.Audit.KafkaBrokers)
		if err != nil {
			return err
		}
		kafka, err := audit.NewKafkaSink(producer, cfg.Audit.KafkaTopic)
		if err != nil {
			_ = producer.Close()
			return err
		}
		defer kafka.Close()
		sinks = append(sinks, kafka)
	}
	if cfg.Audit.LogEntries {
		sinks = append(sinks, audit.NewLogSink(logger.Named("audit")))
	}
	recorder, err := audit.NewRecorder(audit.Fanout(sinks...), audit.WithLogger(logger), audit.WithQueue(cfg.Audit.QueueSize))
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, auth.WithIssuer(cfg.Auth.Issuer), auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return err
	}
	authn, err := auth.NewAuthenticator(store, hasher, tokens)
	if err != nil {
		return err
	}
	resolver, err := access.NewResolver(store, store)
	if err != nil {
		return err
	}
	g, err := guard.New(store, resolver, recorder, guard.WithLogger(logger))
	if err != nil {
		return err
	}
	admin, err := access.NewAdmin(store, hasher)
	if err != nil {
		return err
	}

	storeKind := "memory"
	if cfg.Postgres.DSN != "" {
		storeKind = "postgres"
	}
	obs.InitBuildInfo(obs.BuildInfo{Version: version, Commit: commit, Store: storeKind, RateLimit: cfg.RateLimit.Backend})

	quotas := ratelimit.Quotas(cfg.RateLimit.Quotas())
	var limiter ratelimit.Limiter = ratelimit.NewMemory(quotas)
	if cfg.RateLimit.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		limiter = ratelimit.NewRedis(rdb, quotas, ratelimit.WithLogger(logger))
	}

	api, err := httpapi.New(httpapi.Deps{
		Store:          store,
		Auth:           authn,
		Guard:          g,
		Resolver:       resolver,
		Admin:          admin,
		Recorder:       recorder,
		AuditLog:       store,
		Limiter:        ratelimit.Wrap(limiter, logger),
		Stream:         hub,
		Ready:          ready,
		Logger:         logger,
		Version:        version,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := grpcapi.NewHealth(ready, logger)
	grpcSrv := grpcapi.NewServer(health)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	go health.Run(ctx, 10*time.Second)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	grpcSrv.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		logger.Warn("audit queue not drained", zap.Error(err))
	}
	logger.Info("stopped")
	return nil
}
