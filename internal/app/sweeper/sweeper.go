// Package sweeper runs the recurring background passes: automatic draws for
// lotteries whose deadline elapsed, and retention cleanup of terminal ones.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mfreitas/giveaway-engine/internal/app/giveaway"
	"github.com/mfreitas/giveaway-engine/internal/domain"
	"github.com/mfreitas/giveaway-engine/internal/platform/ids"
	"github.com/mfreitas/giveaway-engine/internal/platform/metrics"
)

// SystemActorID marks automatic draws; the permission gate is skipped for
// them, so the value never has to match a real user.
const SystemActorID int64 = 0

// Drawer is the slice of the lifecycle service the sweeper invokes.
type Drawer interface {
	Draw(ctx context.Context, lotteryID uint64, actorID int64, automatic bool) (giveaway.DrawResult, error)
}

type Sweeper struct {
	lotteries domain.LotteryRepository
	drawer    Drawer
	clock     domain.Clock
	ids       *ids.Generator
	logger    *slog.Logger

	interval          time.Duration
	retention         time.Duration
	retentionInterval time.Duration
}

func New(
	lotteries domain.LotteryRepository,
	drawer Drawer,
	clock domain.Clock,
	idsGen *ids.Generator,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
	retentionInterval time.Duration,
) *Sweeper {
	if idsGen == nil {
		idsGen = ids.DefaultGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		lotteries:         lotteries,
		drawer:            drawer,
		clock:             clock,
		ids:               idsGen,
		logger:            logger,
		interval:          interval,
		retention:         retention,
		retentionInterval: retentionInterval,
	}
}

// Run polls for due lotteries until the context ends.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce draws every due lottery, isolating failures per item so one bad
// record cannot halt the pass. Lotteries that raced a manual draw show up as
// ErrInvalidState and are skipped; they are not failures.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	start := time.Now()
	runID := s.ids.New()
	log := s.logger.With("sweep", runID)

	due, err := s.lotteries.ListDue(ctx, s.clock.Now())
	if err != nil {
		log.Error("listing due lotteries failed", "err", err)
		return
	}

	var drawn int
	for _, lottery := range due {
		result, err := s.drawer.Draw(ctx, lottery.ID, SystemActorID, true)
		switch {
		case errors.Is(err, giveaway.ErrInvalidState):
			// Already ended or cancelled by a racing caller.
			log.Debug("lottery already transitioned", "lottery", lottery.ID)
			metrics.ObserveDraw("automatic", "stale")
		case errors.Is(err, giveaway.ErrNoParticipants):
			log.Info("lottery ended without participants", "lottery", lottery.ID)
			metrics.ObserveDraw("automatic", "empty")
			drawn++
		case err != nil:
			// Leave the lottery active; the next sweep retries it.
			log.Error("automatic draw failed", "lottery", lottery.ID, "err", err)
			metrics.ObserveDraw("automatic", "error")
		default:
			log.Info("lottery drawn", "lottery", lottery.ID, "winners", len(result.Winners))
			metrics.ObserveDraw("automatic", "drawn")
			drawn++
		}
	}

	metrics.ObserveSweepDuration(time.Since(start).Seconds())
	if len(due) > 0 {
		log.Info("sweep finished", "due", len(due), "drawn", drawn)
	}
}

// RunRetention periodically deletes terminal lotteries past the retention
// window, cascading to their participants and winners.
func (s *Sweeper) RunRetention(ctx context.Context) error {
	ticker := time.NewTicker(s.retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RetentionOnce(ctx)
		}
	}
}

func (s *Sweeper) RetentionOnce(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.retention)
	deleted, err := s.lotteries.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention cleanup failed", "err", err)
		return
	}
	if deleted > 0 {
		metrics.AddRetentionDeleted(float64(deleted))
		s.logger.Info("retention cleanup done", "deleted", deleted, "cutoff", cutoff)
	}
}
