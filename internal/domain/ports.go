package domain

import (
	"context"
	"time"
)

type LotteryRepository interface {
	Create(ctx context.Context, l *Lottery) error
	FindByID(ctx context.Context, id uint64) (Lottery, error)
	ListActive(ctx context.Context, communityID int64, limit int) ([]Lottery, error)
	// ListDue returns active lotteries whose deadline is set and has elapsed.
	ListDue(ctx context.Context, now time.Time) ([]Lottery, error)
	// TransitionStatus atomically moves a lottery from one status to another.
	// It returns ErrStaleStatus when the stored status no longer matches from.
	TransitionStatus(ctx context.Context, id uint64, from, to LotteryStatus) error
	// CommitDraw writes the winner records and transitions the lottery from
	// the expected status to ended inside a single transaction. On
	// ErrStaleStatus nothing is persisted.
	CommitDraw(ctx context.Context, id uint64, expected LotteryStatus, winners []WinnerRecord) error
	// DeleteTerminalBefore removes ended/cancelled lotteries last touched
	// before the cutoff, cascading to participants and winners.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByCommunity(ctx context.Context, communityID int64) (total, active int64, err error)
}

type ParticipantRepository interface {
	// Insert adds a participant, enforcing the (lottery, user) uniqueness and
	// the capacity limit atomically. capacity < 0 disables the limit.
	Insert(ctx context.Context, p Participant, capacity int) error
	IncrementWeight(ctx context.Context, lotteryID uint64, userID int64) error
	// ListByLottery returns participants in join order.
	ListByLottery(ctx context.Context, lotteryID uint64) ([]Participant, error)
	CountByLottery(ctx context.Context, lotteryID uint64) (int64, error)
	CountByCommunity(ctx context.Context, communityID int64) (int64, error)
	CountLotteriesEntered(ctx context.Context, communityID, userID int64) (int64, error)
}

type WinnerRepository interface {
	ListByLottery(ctx context.Context, lotteryID uint64) ([]WinnerRecord, error)
	CountByCommunity(ctx context.Context, communityID int64) (int64, error)
	CountByUser(ctx context.Context, communityID, userID int64) (int64, error)
	ListRecentByUser(ctx context.Context, communityID, userID int64, limit int) ([]WinnerRecord, error)
}

// RollupCounter keeps cheap per-community counters serving the stats reads;
// the SQL repositories remain the fallback when the mirror is cold.
type RollupCounter interface {
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	GetAll(ctx context.Context, keys []string) (map[string]int64, error)
}

// Throttle guards the join path against bursts from a single user.
type Throttle interface {
	Allow(ctx context.Context, lotteryID uint64, userID int64) error
}

type Clock interface {
	Now() time.Time
}
