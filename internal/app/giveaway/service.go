// Package giveaway implements the lottery lifecycle: creation, admission of
// participants, winner drawing and cancellation.
package giveaway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfreitas/giveaway-engine/internal/app/draw"
	"github.com/mfreitas/giveaway-engine/internal/domain"
)

var (
	ErrValidation      = errors.New("invalid lottery input")
	ErrNotFound        = errors.New("lottery not found")
	ErrForbidden       = errors.New("actor not allowed")
	ErrInvalidState    = errors.New("lottery is not active")
	ErrAlreadyJoined   = errors.New("user already joined")
	ErrCapacityReached = errors.New("lottery is full")
	ErrRoleRequired    = errors.New("required role missing")
	ErrNoParticipants  = errors.New("no participants to draw")
)

// PermissionFn reports whether the actor holds elevated permission in the
// community; the creator of a lottery is always allowed without it.
type PermissionFn func(communityID, actorID int64) bool

// CreateInput carries everything the command layer collects for a new lottery.
type CreateInput struct {
	CommunityID   int64
	ChannelID     int64
	CreatorID     int64
	Title         string
	Description   string
	Prizes        []string
	Capacity      int
	Deadline      *time.Time
	AllowRepeat   bool
	RequiredRoles []int64
}

// Snapshot is the read model returned to the command layer.
type Snapshot struct {
	Lottery          domain.Lottery
	ParticipantCount int64
	Winners          []domain.WinnerRecord
}

// DrawResult is the payload the caller announces after a draw. It is filled
// even on the no-participants outcome so the notice can still be rendered.
type DrawResult struct {
	LotteryID int64
	Title     string
	ChannelID int64
	Winners   []domain.WinnerRecord
	Automatic bool
}

// CancelResult is the payload announced after a cancellation.
type CancelResult struct {
	LotteryID int64
	Title     string
	ChannelID int64
}

// Service owns the status state machine and the admission rules; every
// mutation goes through the repositories' atomic primitives.
type Service struct {
	lotteries    domain.LotteryRepository
	participants domain.ParticipantRepository
	winners      domain.WinnerRepository
	rollup       domain.RollupCounter
	throttle     domain.Throttle
	clock        domain.Clock
	picker       *draw.Picker
	elevated     PermissionFn
	logger       *slog.Logger
}

func NewService(
	lotteries domain.LotteryRepository,
	participants domain.ParticipantRepository,
	winners domain.WinnerRepository,
	rollup domain.RollupCounter,
	throttle domain.Throttle,
	clock domain.Clock,
	picker *draw.Picker,
	elevated PermissionFn,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		lotteries:    lotteries,
		participants: participants,
		winners:      winners,
		rollup:       rollup,
		throttle:     throttle,
		clock:        clock,
		picker:       picker,
		elevated:     elevated,
		logger:       logger,
	}
}

const (
	storeRetries = 3
	storeBackoff = 50 * time.Millisecond
)

// withRetry re-runs read operations on transient store failures. Mutations
// are never retried here: a timed-out commit may have landed, and re-running
// it would misreport the outcome.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < storeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(storeBackoff * time.Duration(attempt)):
			}
		}
		err = op()
		if err == nil || !errors.Is(err, domain.ErrUnavailable) {
			return err
		}
	}
	return err
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Lottery, error) {
	now := s.clock.Now()
	if err := validateCreate(in, now); err != nil {
		return domain.Lottery{}, err
	}

	lottery := domain.Lottery{
		CommunityID:   in.CommunityID,
		ChannelID:     in.ChannelID,
		CreatorID:     in.CreatorID,
		Title:         in.Title,
		Description:   in.Description,
		Prizes:        append(domain.PrizeList{}, in.Prizes...),
		Capacity:      in.Capacity,
		Deadline:      in.Deadline,
		Status:        domain.StatusActive,
		AllowRepeat:   in.AllowRepeat,
		RequiredRoles: append(domain.RoleList{}, in.RequiredRoles...),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.lotteries.Create(ctx, &lottery); err != nil {
		return domain.Lottery{}, fmt.Errorf("create lottery: %w", err)
	}

	s.bumpRollup(ctx, RollupKeyLotteries(in.CommunityID), 1)
	return lottery, nil
}

// Join admits a user into an active lottery. The duplicate and capacity rules
// ride on the store's atomic insert, so concurrent joins cannot oversubscribe.
func (s *Service) Join(ctx context.Context, lotteryID uint64, userID int64, roleIDs []int64) error {
	lottery, err := s.findLottery(ctx, lotteryID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if lottery.Status != domain.StatusActive {
		return ErrInvalidState
	}
	if lottery.Deadline != nil && !now.Before(*lottery.Deadline) {
		return ErrInvalidState
	}
	if len(lottery.RequiredRoles) > 0 && !holdsAnyRole(lottery.RequiredRoles, roleIDs) {
		return ErrRoleRequired
	}

	if s.throttle != nil {
		if err := s.throttle.Allow(ctx, lotteryID, userID); err != nil {
			return err
		}
	}

	// The status read above is not held across the insert: a draw committing
	// in between leaves this row on an ended lottery, outside its winner pool.
	participant := domain.Participant{
		LotteryID: lotteryID,
		UserID:    userID,
		Weight:    1,
		JoinedAt:  now,
	}

	err = s.participants.Insert(ctx, participant, lottery.Capacity)
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		if !lottery.AllowRepeat {
			return ErrAlreadyJoined
		}
		if err := s.participants.IncrementWeight(ctx, lotteryID, userID); err != nil {
			return fmt.Errorf("increment weight: %w", err)
		}
	case errors.Is(err, domain.ErrCapacityFull):
		return ErrCapacityReached
	case err != nil:
		return fmt.Errorf("insert participant: %w", err)
	default:
		s.bumpRollup(ctx, RollupKeyEntries(lottery.CommunityID), 1)
	}

	return nil
}

// Draw runs the winner selection and commits records plus the ended status in
// one store transaction. Losing the compare-and-transition race surfaces as
// ErrInvalidState with nothing persisted; that is the double-draw guard.
func (s *Service) Draw(ctx context.Context, lotteryID uint64, actorID int64, automatic bool) (DrawResult, error) {
	lottery, err := s.findLottery(ctx, lotteryID)
	if err != nil {
		return DrawResult{}, err
	}

	result := DrawResult{
		LotteryID: int64(lottery.ID),
		Title:     lottery.Title,
		ChannelID: lottery.ChannelID,
		Automatic: automatic,
	}

	if lottery.Status != domain.StatusActive {
		return DrawResult{}, ErrInvalidState
	}
	if !automatic && !s.canManage(lottery, actorID) {
		return DrawResult{}, ErrForbidden
	}

	var participants []domain.Participant
	err = withRetry(ctx, func() error {
		var listErr error
		participants, listErr = s.participants.ListByLottery(ctx, lotteryID)
		return listErr
	})
	if err != nil {
		return DrawResult{}, fmt.Errorf("list participants: %w", err)
	}

	if len(participants) == 0 {
		// An empty pool still ends the lottery; zero winner records are kept.
		if err := s.lotteries.TransitionStatus(ctx, lotteryID, domain.StatusActive, domain.StatusEnded); err != nil {
			if errors.Is(err, domain.ErrStaleStatus) {
				return DrawResult{}, ErrInvalidState
			}
			return DrawResult{}, fmt.Errorf("end empty lottery: %w", err)
		}
		return result, ErrNoParticipants
	}

	entrants := make([]draw.Entrant, len(participants))
	for i, p := range participants {
		entrants[i] = draw.Entrant{UserID: p.UserID, Weight: p.Weight}
	}

	now := s.clock.Now()
	assignments := s.picker.Pick(lottery.Prizes, entrants)
	winners := make([]domain.WinnerRecord, len(assignments))
	for i, a := range assignments {
		winners[i] = domain.WinnerRecord{
			LotteryID: lotteryID,
			UserID:    a.UserID,
			PrizeName: a.PrizeName,
			WonAt:     now,
		}
	}

	if err := s.lotteries.CommitDraw(ctx, lotteryID, domain.StatusActive, winners); err != nil {
		if errors.Is(err, domain.ErrStaleStatus) {
			return DrawResult{}, ErrInvalidState
		}
		return DrawResult{}, fmt.Errorf("commit draw: %w", err)
	}

	s.bumpRollup(ctx, RollupKeyWins(lottery.CommunityID), int64(len(winners)))

	result.Winners = winners
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, lotteryID uint64, actorID int64) (CancelResult, error) {
	lottery, err := s.findLottery(ctx, lotteryID)
	if err != nil {
		return CancelResult{}, err
	}

	if lottery.Status != domain.StatusActive {
		return CancelResult{}, ErrInvalidState
	}
	if !s.canManage(lottery, actorID) {
		return CancelResult{}, ErrForbidden
	}

	if err := s.lotteries.TransitionStatus(ctx, lotteryID, domain.StatusActive, domain.StatusCancelled); err != nil {
		if errors.Is(err, domain.ErrStaleStatus) {
			return CancelResult{}, ErrInvalidState
		}
		return CancelResult{}, fmt.Errorf("cancel lottery: %w", err)
	}

	return CancelResult{
		LotteryID: int64(lottery.ID),
		Title:     lottery.Title,
		ChannelID: lottery.ChannelID,
	}, nil
}

func (s *Service) Get(ctx context.Context, lotteryID uint64) (Snapshot, error) {
	lottery, err := s.findLottery(ctx, lotteryID)
	if err != nil {
		return Snapshot{}, err
	}

	count, err := s.participants.CountByLottery(ctx, lotteryID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count participants: %w", err)
	}

	snapshot := Snapshot{Lottery: lottery, ParticipantCount: count}
	if lottery.Status == domain.StatusEnded {
		winners, err := s.winners.ListByLottery(ctx, lotteryID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("list winners: %w", err)
		}
		snapshot.Winners = winners
	}

	return snapshot, nil
}

func (s *Service) ListActive(ctx context.Context, communityID int64, limit int) ([]domain.Lottery, error) {
	var lotteries []domain.Lottery
	err := withRetry(ctx, func() error {
		var listErr error
		lotteries, listErr = s.lotteries.ListActive(ctx, communityID, limit)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	return lotteries, nil
}

func (s *Service) findLottery(ctx context.Context, lotteryID uint64) (domain.Lottery, error) {
	var lottery domain.Lottery
	err := withRetry(ctx, func() error {
		var findErr error
		lottery, findErr = s.lotteries.FindByID(ctx, lotteryID)
		return findErr
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Lottery{}, ErrNotFound
	}
	if err != nil {
		return domain.Lottery{}, fmt.Errorf("find lottery: %w", err)
	}
	return lottery, nil
}

func (s *Service) canManage(l domain.Lottery, actorID int64) bool {
	if l.CreatorID == actorID {
		return true
	}
	return s.elevated != nil && s.elevated(l.CommunityID, actorID)
}

// bumpRollup keeps the dashboard counters warm; failures only log because the
// authoritative numbers live in the SQL store.
func (s *Service) bumpRollup(ctx context.Context, key string, delta int64) {
	if s.rollup == nil {
		return
	}
	if _, err := s.rollup.Increment(ctx, key, delta); err != nil {
		s.logger.Warn("rollup increment failed", "key", key, "err", err)
	}
}

func validateCreate(in CreateInput, now time.Time) error {
	if in.Title == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	if len(in.Prizes) == 0 {
		return fmt.Errorf("%w: at least one prize", ErrValidation)
	}
	for _, prize := range in.Prizes {
		if prize == "" {
			return fmt.Errorf("%w: empty prize name", ErrValidation)
		}
	}
	if in.Capacity != domain.CapacityUnbounded && in.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive or unbounded", ErrValidation)
	}
	if in.Deadline != nil && !in.Deadline.After(now) {
		return fmt.Errorf("%w: deadline must be in the future", ErrValidation)
	}
	return nil
}

func holdsAnyRole(required domain.RoleList, roleIDs []int64) bool {
	for _, need := range required {
		for _, have := range roleIDs {
			if need == have {
				return true
			}
		}
	}
	return false
}
