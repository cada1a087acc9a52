// API binary: loads configuration, wires dependencies and serves the HTTP
// command layer.
package main

import (
	"context"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfreitas/giveaway-engine/internal/app/draw"
	"github.com/mfreitas/giveaway-engine/internal/app/giveaway"
	"github.com/mfreitas/giveaway-engine/internal/app/httpapi"
	"github.com/mfreitas/giveaway-engine/internal/domain"
	"github.com/mfreitas/giveaway-engine/internal/platform/clock"
	"github.com/mfreitas/giveaway-engine/internal/platform/config"
	"github.com/mfreitas/giveaway-engine/internal/platform/health"
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

	// The GORM pool is shared across the whole process and backs readiness.
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
		// Auto migration only runs when enabled to avoid surprises in production.
		if err := migrations.Run(db); err != nil {
			logger.Fatal("auto migration failed", "err", err)
		}
	}

	// Redis carries the rollup counters and the join throttle.
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

	var joinThrottle domain.Throttle = throttle.NewNoop()
	if cfg.ThrottleEnabled {
		window := time.Duration(cfg.ThrottleWindowSeconds) * time.Second
		joinThrottle = throttle.NewRedisLimiter(redisClient, cfg.ThrottleMaxJoins, window, cfg.ThrottleKeyPrefix)
	} else {
		logger.Warn("join throttle disabled; joins are not rate limited")
	}

	// The elevated-permission gate is a static admin list here; a chat-platform
	// adapter would plug in its own role resolution.
	admins := make(map[int64]struct{}, len(cfg.AdminUserIDs))
	for _, id := range cfg.AdminUserIDs {
		admins[id] = struct{}{}
	}
	elevated := func(communityID, actorID int64) bool {
		_, ok := admins[actorID]
		return ok
	}

	service := giveaway.NewService(
		lotteryRepo,
		participantRepo,
		winnerRepo,
		rollup,
		joinThrottle,
		clockSystem,
		picker,
		elevated,
		logger.L(),
	)

	mux := http.NewServeMux()
	checker := health.NewChecker(sqlDB, redisClient)

	api := httpapi.New(service, logger.L())
	api.Register(mux)
	mux.HandleFunc("/readyz", checker.ReadyHandler())
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("api listening", "addr", cfg.HTTPAddress)
	if err := http.ListenAndServe(cfg.HTTPAddress, mux); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
