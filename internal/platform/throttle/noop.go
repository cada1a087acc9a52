package throttle

import (
	"context"

	"github.com/mfreitas/giveaway-engine/internal/domain"
)

// Noop is the throttle used when rate limiting is disabled via config.
type Noop struct{}

func NewNoop() Noop {
	return Noop{}
}

func (Noop) Allow(ctx context.Context, lotteryID uint64, userID int64) error {
	return nil
}

var _ domain.Throttle = Noop{}
