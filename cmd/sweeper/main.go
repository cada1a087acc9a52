// Sweeper binary: draws lotteries whose deadline elapsed and cleans up
// terminal ones past the retention window, exposing metrics on the side.
package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfreitas/giveaway-engine/internal/app/draw"
	"github.com/mfreitas/giveaway-engine/internal/app/giveaway"
	"github.com/mfreitas/giveaway-engine/internal/app/sweeper"
	"github.com/mfreitas/giveaway-engine/internal/platform/clock"
	"github.com/mfreitas/giveaway-engine/internal/platform/config"
	"github.com/mfreitas/giveaway-engine/internal/platform/health"
	"github.com/mfreitas/giveaway-engine/internal/platform/ids"
	"github.com/mfreitas/giveaway-engine/internal/platform/logger"
	"github.com/mfreitas/giveaway-engine/internal/platform/migrations"
	postgresstorage "github.com/mfreitas/giveaway-engine/internal/platform/storage/postgres"
	redisstorage "github.com/mfreitas/giveaway-engine/internal/platform/storage/redis"
	"github.com/mfreitas/giveaway-engine/internal/platform/throttle"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	// The sweeper shares the API's GORM models and migrations so the schema
	// never diverges between the two binaries.
	db, err := postgresstorage.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("postgres connection failed", "err", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("unwrapping sql.DB failed", "err", err)
	}
	defer sqlDB.Close()

	if cfg.AutoMigrate {
		if err := migrations.Run(db); err != nil {
			logger.Fatal("auto migration failed", "err", err)
		}
	}

	redisClient, err := redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connection failed", "err", err)
	}
	defer redisClient.Close()

	lotteryRepo := postgresstorage.NewLotteryRepository(db)
	participantRepo := postgresstorage.NewParticipantRepository(db)
	winnerRepo := postgresstorage.NewWinnerRepository(db)
	rollup := redisstorage.NewRollup(redisClient, cfg.RollupKeyPrefix)
	clockSystem := clock.NewSystemClock()
	picker := draw.NewPicker(rand.NewSource(time.Now().UnixNano()))
	checker := health.NewChecker(sqlDB, redisClient)

	// Automatic draws bypass the permission gate, so no admin list is wired.
	service := giveaway.NewService(
		lotteryRepo,
		participantRepo,
		winnerRepo,
		rollup,
		throttle.NewNoop(),
		clockSystem,
		picker,
		nil,
		logger.L(),
	)

	if cfg.SweeperMetricsAddress != "" {
		go func() {
			// Metrics and readiness run beside the sweep goroutines.
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/readyz", checker.ReadyHandler())
			logger.Info("sweeper metrics listening", "addr", cfg.SweeperMetricsAddress)
			if err := http.ListenAndServe(cfg.SweeperMetricsAddress, mux); err != nil {
				logger.Error("sweeper metrics server error", "err", err)
			}
		}()
	}

	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	sw := sweeper.New(
		lotteryRepo,
		service,
		clockSystem,
		ids.NewGenerator(),
		logger.L(),
		cfg.SweepInterval,
		retention,
		cfg.RetentionInterval,
	)

	go func() {
		if err := sw.RunRetention(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("retention loop stopped", "err", err)
		}
	}()

	logger.Info("sweeper started", "interval", cfg.SweepInterval.String())
	err = sw.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Fatal("sweeper stopped with error", "err", err)
	}

	logger.Info("sweeper finished")
}
