package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mfreitas/giveaway-engine/internal/domain"
)

// ParticipantRepository persists lottery entries. The capacity-gated insert is
// one transaction holding the lottery row lock, so two concurrent joins cannot
// both pass a count of N-1 against a cap of N.
type ParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

type participantModel struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	LotteryID uint64    `gorm:"column:lottery_id;uniqueIndex:idx_participants_lottery_user,priority:1"`
	UserID    int64     `gorm:"column:user_id;uniqueIndex:idx_participants_lottery_user,priority:2"`
	Weight    int       `gorm:"column:weight"`
	JoinedAt  time.Time `gorm:"column:joined_at"`
}

func (participantModel) TableName() string {
	return "participants"
}

func (m participantModel) toDomain() domain.Participant {
	return domain.Participant{
		ID:        m.ID,
		LotteryID: m.LotteryID,
		UserID:    m.UserID,
		Weight:    m.Weight,
		JoinedAt:  m.JoinedAt,
	}
}

func fromDomainParticipant(p domain.Participant) participantModel {
	return participantModel{
		ID:        p.ID,
		LotteryID: p.LotteryID,
		UserID:    p.UserID,
		Weight:    p.Weight,
		JoinedAt:  p.JoinedAt,
	}
}

func (r *ParticipantRepository) Insert(ctx context.Context, p domain.Participant, capacity int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Membership is checked before the capacity gate: re-joining a full
		// lottery must surface the existing entry, not a capacity error.
		var existing int64
		if err := tx.Model(&participantModel{}).
			Where("lottery_id = ? AND user_id = ?", p.LotteryID, p.UserID).
			Count(&existing).Error; err != nil {
			return wrapErr("gorm participant: membership check", err)
		}
		if existing > 0 {
			return domain.ErrAlreadyExists
		}

		if capacity >= 0 {
			// Locking the parent row serializes the count-then-insert against
			// concurrent joins on the same lottery. SQLite has no FOR UPDATE;
			// its single-writer model already serializes the transaction.
			q := tx
			if tx.Dialector.Name() == "postgres" {
				q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
			}
			var parent lotteryModel
			if err := q.First(&parent, "id = ?", p.LotteryID).Error; err != nil {
				return wrapErr("gorm participant: lock lottery", err)
			}

			var count int64
			if err := tx.Model(&participantModel{}).
				Where("lottery_id = ?", p.LotteryID).
				Count(&count).Error; err != nil {
				return wrapErr("gorm participant: count", err)
			}
			if count >= int64(capacity) {
				return domain.ErrCapacityFull
			}
		}

		model := fromDomainParticipant(p)
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyExists
			}
			return wrapErr("gorm participant: insert", err)
		}
		return nil
	})
}

func (r *ParticipantRepository) IncrementWeight(ctx context.Context, lotteryID uint64, userID int64) error {
	res := r.db.WithContext(ctx).Model(&participantModel{}).
		Where("lottery_id = ? AND user_id = ?", lotteryID, userID).
		Update("weight", gorm.Expr("weight + 1"))
	if res.Error != nil {
		return wrapErr("gorm participant: increment weight", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ParticipantRepository) ListByLottery(ctx context.Context, lotteryID uint64) ([]domain.Participant, error) {
	var models []participantModel
	if err := r.db.WithContext(ctx).
		// Join order keeps the draw input stable for a given seed.
		Where("lottery_id = ?", lotteryID).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, wrapErr("gorm participant: list", err)
	}

	result := make([]domain.Participant, len(models))
	for i, model := range models {
		result[i] = model.toDomain()
	}
	return result, nil
}

func (r *ParticipantRepository) CountByLottery(ctx context.Context, lotteryID uint64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&participantModel{}).
		Where("lottery_id = ?", lotteryID).
		Count(&count).Error; err != nil {
		return 0, wrapErr("gorm participant: count by lottery", err)
	}
	return count, nil
}

func (r *ParticipantRepository) CountByCommunity(ctx context.Context, communityID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&participantModel{}).
		Joins("JOIN lotteries ON lotteries.id = participants.lottery_id").
		Where("lotteries.community_id = ?", communityID).
		Count(&count).Error; err != nil {
		return 0, wrapErr("gorm participant: count by community", err)
	}
	return count, nil
}

func (r *ParticipantRepository) CountLotteriesEntered(ctx context.Context, communityID, userID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&participantModel{}).
		Joins("JOIN lotteries ON lotteries.id = participants.lottery_id").
		Where("lotteries.community_id = ? AND participants.user_id = ?", communityID, userID).
		Count(&count).Error; err != nil {
		return 0, wrapErr("gorm participant: count entered", err)
	}
	return count, nil
}

var _ domain.ParticipantRepository = (*ParticipantRepository)(nil)
