package giveaway

import (
	"context"
	"fmt"

	"github.com/mfreitas/giveaway-engine/internal/domain"
)

// CommunityStats assembles the per-community counters. Lottery totals come
// from SQL (the active split needs the status column anyway); entry and win
// totals are answered by the warm redis mirror in one MGET, with the SQL
// aggregates as fallback when the mirror is cold or unreachable.
func (s *Service) CommunityStats(ctx context.Context, communityID int64) (domain.CommunityStats, error) {
	stats := domain.CommunityStats{CommunityID: communityID}

	err := withRetry(ctx, func() error {
		total, active, err := s.lotteries.CountByCommunity(ctx, communityID)
		if err != nil {
			return err
		}
		stats.TotalLotteries = total
		stats.ActiveLotteries = active
		return nil
	})
	if err != nil {
		return domain.CommunityStats{}, fmt.Errorf("count lotteries: %w", err)
	}

	if counts, ok := s.rollupCounts(ctx, communityID); ok {
		stats.TotalEntries = counts[RollupKeyEntries(communityID)]
		stats.TotalWins = counts[RollupKeyWins(communityID)]
		return stats, nil
	}

	entries, err := s.participants.CountByCommunity(ctx, communityID)
	if err != nil {
		return domain.CommunityStats{}, fmt.Errorf("count entries: %w", err)
	}
	stats.TotalEntries = entries

	wins, err := s.winners.CountByCommunity(ctx, communityID)
	if err != nil {
		return domain.CommunityStats{}, fmt.Errorf("count wins: %w", err)
	}
	stats.TotalWins = wins

	return stats, nil
}

// rollupCounts reads the community's mirror counters. A zero lottery counter
// for a community that exists in SQL means the mirror was flushed, so the
// caller falls back to the authoritative tables.
func (s *Service) rollupCounts(ctx context.Context, communityID int64) (map[string]int64, bool) {
	if s.rollup == nil {
		return nil, false
	}

	counts, err := s.rollup.GetAll(ctx, []string{
		RollupKeyLotteries(communityID),
		RollupKeyEntries(communityID),
		RollupKeyWins(communityID),
	})
	if err != nil {
		s.logger.Warn("rollup read failed", "community", communityID, "err", err)
		return nil, false
	}
	if counts[RollupKeyLotteries(communityID)] == 0 {
		return nil, false
	}
	return counts, true
}

func (s *Service) UserStats(ctx context.Context, communityID, userID int64) (domain.UserStats, error) {
	stats := domain.UserStats{UserID: userID, CommunityID: communityID}

	entered, err := s.participants.CountLotteriesEntered(ctx, communityID, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("count entered: %w", err)
	}
	stats.Entered = entered

	won, err := s.winners.CountByUser(ctx, communityID, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("count won: %w", err)
	}
	stats.Won = won

	recent, err := s.winners.ListRecentByUser(ctx, communityID, userID, 5)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("list recent wins: %w", err)
	}
	stats.RecentWins = recent

	return stats, nil
}
