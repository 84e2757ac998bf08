package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"go.uber.org/zap"

	"orgguard.dev/internal/loadgen"
	"orgguard.dev/internal/obs"
	"orgguard.dev/internal/seed"
)

func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:8080", "API base URL")
		workers  = flag.Int("workers", 4, "Concurrent worker count")
		duration = flag.Duration("duration", 2*time.Minute, "Duration of the run")
		password = flag.String("password", seed.DefaultPassword, "Password of the demo users")
		seedVal  = flag.Int64("seed", 0, "Random seed (0 picks one)")
	)
	flag.Parse()

	logger, err := obs.NewLogger(os.Getenv("ORGGUARD_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	logger.Info("launching load run", zap.String("base_url", *baseURL), zap.Int("workers", *workers), zap.Duration("duration", *duration))

	client := loadgen.NewClient(*baseURL, *password, &http.Client{Timeout: 10 * time.Second})
	generator := loadgen.NewGenerator(loadgen.DemoScenario(), *seedVal)

	for _, email := range generator.Users() {
		if _, err := client.Login(ctx, email); err != nil {
			logger.Fatal("login", zap.String("email", email), zap.Error(err))
		}
	}

	var counter loadgen.Counter
	var wg sync.WaitGroup
	started := time.Now()
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id*9973)))
			for ctx.Err() == nil {
				probe := generator.Next()
				status, err := client.Probe(ctx, probe)
				if err != nil {
					if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
						logger.Warn("probe failed", zap.Int("worker", id), zap.Error(err))
						counter.Record(0)
					}
					continue
				}
				counter.Record(status)
				switch {
				case status == http.StatusTooManyRequests:
					time.Sleep(250 * time.Millisecond)
				case status >= 500:
					logger.Warn("probe server error", zap.Int("worker", id), zap.Int("status", status), zap.String("module", probe.ModuleKey))
					time.Sleep(200 * time.Millisecond)
				default:
					time.Sleep(time.Duration(50+rnd.Intn(120)) * time.Millisecond)
				}
			}
		}(i)
	}
	wg.Wait()

	s := counter.Summary()
	logger.Info("run complete",
		zap.Int64("total", s.Total()),
		zap.Int64("allowed", s.Allowed),
		zap.Int64("denied", s.Denied),
		zap.Int64("rate_limited", s.RateLimited),
		zap.Int64("failed", s.Failed),
		zap.Duration("elapsed", time.Since(started)),
	)
}
