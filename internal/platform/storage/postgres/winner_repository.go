package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mfreitas/giveaway-engine/internal/domain"
)

// WinnerRepository reads winner records; writes happen inside the
// LotteryRepository draw commit so they share its transaction.
type WinnerRepository struct {
	db *gorm.DB
}

func NewWinnerRepository(db *gorm.DB) *WinnerRepository {
	return &WinnerRepository{db: db}
}

type winnerModel struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	LotteryID uint64    `gorm:"column:lottery_id;index"`
	UserID    int64     `gorm:"column:user_id;index"`
	PrizeName string    `gorm:"column:prize_name"`
	WonAt     time.Time `gorm:"column:won_at"`
}

func (winnerModel) TableName() string {
	return "winners"
}

func (m winnerModel) toDomain() domain.WinnerRecord {
	return domain.WinnerRecord{
		ID:        m.ID,
		LotteryID: m.LotteryID,
		UserID:    m.UserID,
		PrizeName: m.PrizeName,
		WonAt:     m.WonAt,
	}
}

func fromDomainWinner(w domain.WinnerRecord) winnerModel {
	return winnerModel{
		ID:        w.ID,
		LotteryID: w.LotteryID,
		UserID:    w.UserID,
		PrizeName: w.PrizeName,
		WonAt:     w.WonAt,
	}
}

func (r *WinnerRepository) ListByLottery(ctx context.Context, lotteryID uint64) ([]domain.WinnerRecord, error) {
	var models []winnerModel
	if err := r.db.WithContext(ctx).
		// Insert order matches prize slot order from the draw.
		Where("lottery_id = ?", lotteryID).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, wrapErr("gorm winner: list", err)
	}

	result := make([]domain.WinnerRecord, len(models))
	for i, model := range models {
		result[i] = model.toDomain()
	}
	return result, nil
}

func (r *WinnerRepository) CountByCommunity(ctx context.Context, communityID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&winnerModel{}).
		Joins("JOIN lotteries ON lotteries.id = winners.lottery_id").
		Where("lotteries.community_id = ?", communityID).
		Count(&count).Error; err != nil {
		return 0, wrapErr("gorm winner: count by community", err)
	}
	return count, nil
}

func (r *WinnerRepository) CountByUser(ctx context.Context, communityID, userID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&winnerModel{}).
		Joins("JOIN lotteries ON lotteries.id = winners.lottery_id").
		Where("lotteries.community_id = ? AND winners.user_id = ?", communityID, userID).
		Count(&count).Error; err != nil {
		return 0, wrapErr("gorm winner: count by user", err)
	}
	return count, nil
}

func (r *WinnerRepository) ListRecentByUser(ctx context.Context, communityID, userID int64, limit int) ([]domain.WinnerRecord, error) {
	if limit <= 0 {
		limit = 5
	}

	var models []winnerModel
	if err := r.db.WithContext(ctx).Model(&winnerModel{}).
		Select("winners.*").
		Joins("JOIN lotteries ON lotteries.id = winners.lottery_id").
		Where("lotteries.community_id = ? AND winners.user_id = ?", communityID, userID).
		Order("winners.won_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, wrapErr("gorm winner: list recent", err)
	}

	result := make([]domain.WinnerRecord, len(models))
	for i, model := range models {
		result[i] = model.toDomain()
	}
	return result, nil
}

var _ domain.WinnerRepository = (*WinnerRepository)(nil)
