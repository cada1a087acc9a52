package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mfreitas/giveaway-engine/internal/domain"
)

// LotteryRepository maps the lottery aggregate to GORM tables and owns the
// compare-and-transition primitive the lifecycle depends on.
type LotteryRepository struct {
	db *gorm.DB
}

func NewLotteryRepository(db *gorm.DB) *LotteryRepository {
	return &LotteryRepository{db: db}
}

type lotteryModel struct {
	ID            uint64               `gorm:"column:id;primaryKey;autoIncrement"`
	CommunityID   int64                `gorm:"column:community_id"`
	ChannelID     int64                `gorm:"column:channel_id"`
	CreatorID     int64                `gorm:"column:creator_id"`
	Title         string               `gorm:"column:title"`
	Description   string               `gorm:"column:description"`
	Prizes        domain.PrizeList     `gorm:"column:prizes;type:text"`
	Capacity      int                  `gorm:"column:capacity"`
	Deadline      *time.Time           `gorm:"column:deadline"`
	Status        domain.LotteryStatus `gorm:"column:status"`
	AllowRepeat   bool                 `gorm:"column:allow_repeat_entry"`
	RequiredRoles domain.RoleList      `gorm:"column:required_roles;type:text"`
	CreatedAt     time.Time            `gorm:"column:created_at"`
	UpdatedAt     time.Time            `gorm:"column:updated_at"`
}

func (lotteryModel) TableName() string {
	return "lotteries"
}

func (m lotteryModel) toDomain() domain.Lottery {
	return domain.Lottery{
		ID:            m.ID,
		CommunityID:   m.CommunityID,
		ChannelID:     m.ChannelID,
		CreatorID:     m.CreatorID,
		Title:         m.Title,
		Description:   m.Description,
		Prizes:        m.Prizes,
		Capacity:      m.Capacity,
		Deadline:      m.Deadline,
		Status:        m.Status,
		AllowRepeat:   m.AllowRepeat,
		RequiredRoles: m.RequiredRoles,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func fromDomainLottery(l domain.Lottery) lotteryModel {
	return lotteryModel{
		ID:            l.ID,
		CommunityID:   l.CommunityID,
		ChannelID:     l.ChannelID,
		CreatorID:     l.CreatorID,
		Title:         l.Title,
		Description:   l.Description,
		Prizes:        l.Prizes,
		Capacity:      l.Capacity,
		Deadline:      l.Deadline,
		Status:        l.Status,
		AllowRepeat:   l.AllowRepeat,
		RequiredRoles: l.RequiredRoles,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func (r *LotteryRepository) Create(ctx context.Context, l *domain.Lottery) error {
	model := fromDomainLottery(*l)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapErr("gorm lottery: insert", err)
	}
	// The database assigns the ID; surface it to the caller.
	l.ID = model.ID
	l.CreatedAt = model.CreatedAt
	l.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *LotteryRepository) FindByID(ctx context.Context, id uint64) (domain.Lottery, error) {
	var model lotteryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return domain.Lottery{}, wrapErr("gorm lottery: find by id", err)
	}
	return model.toDomain(), nil
}

func (r *LotteryRepository) ListActive(ctx context.Context, communityID int64, limit int) ([]domain.Lottery, error) {
	query := r.db.WithContext(ctx).
		Where("community_id = ? AND status = ?", communityID, domain.StatusActive).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []lotteryModel
	if err := query.Find(&models).Error; err != nil {
		return nil, wrapErr("gorm lottery: list active", err)
	}

	result := make([]domain.Lottery, len(models))
	for i, model := range models {
		result[i] = model.toDomain()
	}
	return result, nil
}

func (r *LotteryRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Lottery, error) {
	var models []lotteryModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline <= ?", domain.StatusActive, now).
		Order("deadline ASC").
		Find(&models).Error; err != nil {
		return nil, wrapErr("gorm lottery: list due", err)
	}

	result := make([]domain.Lottery, len(models))
	for i, model := range models {
		result[i] = model.toDomain()
	}
	return result, nil
}

func (r *LotteryRepository) TransitionStatus(ctx context.Context, id uint64, from, to domain.LotteryStatus) error {
	return r.transition(r.db.WithContext(ctx), id, from, to)
}

// transition is the compare-and-transition primitive: the WHERE clause carries
// the expected status, so exactly one concurrent caller sees RowsAffected = 1.
func (r *LotteryRepository) transition(tx *gorm.DB, id uint64, from, to domain.LotteryStatus) error {
	res := tx.Model(&lotteryModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return wrapErr("gorm lottery: transition", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrStaleStatus
	}
	return nil
}

func (r *LotteryRepository) CommitDraw(ctx context.Context, id uint64, expected domain.LotteryStatus, winners []domain.WinnerRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The transition runs first: losing the race rolls the whole
		// transaction back before any winner row lands.
		if err := r.transition(tx, id, expected, domain.StatusEnded); err != nil {
			return err
		}

		if len(winners) == 0 {
			return nil
		}

		models := make([]winnerModel, len(winners))
		for i, w := range winners {
			models[i] = fromDomainWinner(w)
		}
		if err := tx.Create(&models).Error; err != nil {
			return wrapErr("gorm lottery: insert winners", err)
		}
		return nil
	})
}

func (r *LotteryRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint64
		if err := tx.Model(&lotteryModel{}).
			Where("status IN ? AND updated_at < ?", []domain.LotteryStatus{domain.StatusEnded, domain.StatusCancelled}, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return wrapErr("gorm lottery: list terminal", err)
		}
		if len(ids) == 0 {
			return nil
		}

		// Child rows go first so the delete works without FK cascade support.
		if err := tx.Where("lottery_id IN ?", ids).Delete(&winnerModel{}).Error; err != nil {
			return wrapErr("gorm lottery: delete winners", err)
		}
		if err := tx.Where("lottery_id IN ?", ids).Delete(&participantModel{}).Error; err != nil {
			return wrapErr("gorm lottery: delete participants", err)
		}
		res := tx.Where("id IN ?", ids).Delete(&lotteryModel{})
		if res.Error != nil {
			return wrapErr("gorm lottery: delete", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

func (r *LotteryRepository) CountByCommunity(ctx context.Context, communityID int64) (int64, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&lotteryModel{}).
		Where("community_id = ?", communityID).
		Count(&total).Error; err != nil {
		return 0, 0, wrapErr("gorm lottery: count", err)
	}

	var active int64
	if err := r.db.WithContext(ctx).Model(&lotteryModel{}).
		Where("community_id = ? AND status = ?", communityID, domain.StatusActive).
		Count(&active).Error; err != nil {
		return 0, 0, wrapErr("gorm lottery: count active", err)
	}

	return total, active, nil
}

var _ domain.LotteryRepository = (*LotteryRepository)(nil)
