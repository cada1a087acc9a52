package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type LotteryStatus string

const (
	StatusActive    LotteryStatus = "active"
	StatusEnded     LotteryStatus = "ended"
	StatusCancelled LotteryStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of the status.
func (s LotteryStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// CapacityUnbounded is the sentinel for lotteries without a participant cap.
const CapacityUnbounded = -1

// PrizeList is stored as a JSON text column; slot order is the draw order.
type PrizeList []string

func (p PrizeList) Value() (driver.Value, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("prizes: marshal: %w", err)
	}
	return string(raw), nil
}

func (p *PrizeList) Scan(src any) error {
	return scanJSON(src, p, "prizes")
}

// RoleList holds the eligibility role IDs required to join; empty means open.
type RoleList []int64

func (r RoleList) Value() (driver.Value, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("roles: marshal: %w", err)
	}
	return string(raw), nil
}

func (r *RoleList) Scan(src any) error {
	return scanJSON(src, r, "roles")
}

func scanJSON(src, dst any, what string) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		return json.Unmarshal(v, dst)
	default:
		return fmt.Errorf("%s: unexpected column type %T", what, src)
	}
}

type Lottery struct {
	ID            uint64        `gorm:"column:id;primaryKey;autoIncrement"`
	CommunityID   int64         `gorm:"column:community_id;not null;index:idx_lotteries_community"`
	ChannelID     int64         `gorm:"column:channel_id;not null"`
	CreatorID     int64         `gorm:"column:creator_id;not null"`
	Title         string        `gorm:"column:title;type:text;not null"`
	Description   string        `gorm:"column:description;type:text"`
	Prizes        PrizeList     `gorm:"column:prizes;type:text;not null"`
	Capacity      int           `gorm:"column:capacity;not null;default:-1"`
	Deadline      *time.Time    `gorm:"column:deadline"`
	Status        LotteryStatus `gorm:"column:status;type:text;not null;default:active;index:idx_lotteries_status"`
	AllowRepeat   bool          `gorm:"column:allow_repeat_entry;not null;default:false"`
	RequiredRoles RoleList      `gorm:"column:required_roles;type:text"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

type Participant struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	LotteryID uint64    `gorm:"column:lottery_id;not null;uniqueIndex:idx_participants_lottery_user,priority:1;index:idx_participants_lottery"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_participants_lottery_user,priority:2"`
	Weight    int       `gorm:"column:weight;not null;default:1"`
	JoinedAt  time.Time `gorm:"column:joined_at;autoCreateTime"`
}

type WinnerRecord struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	LotteryID uint64    `gorm:"column:lottery_id;not null;index:idx_winners_lottery"`
	UserID    int64     `gorm:"column:user_id;not null;index:idx_winners_user"`
	PrizeName string    `gorm:"column:prize_name;type:text;not null"`
	WonAt     time.Time `gorm:"column:won_at;autoCreateTime"`
}

// CommunityStats is the per-community rollup read model.
type CommunityStats struct {
	CommunityID     int64
	TotalLotteries  int64
	ActiveLotteries int64
	TotalEntries    int64
	TotalWins       int64
}

// UserStats summarizes one user's history inside a community.
type UserStats struct {
	UserID      int64
	CommunityID int64
	Entered     int64
	Won         int64
	RecentWins  []WinnerRecord
}

func (Lottery) TableName() string { return "lotteries" }

func (Participant) TableName() string { return "participants" }

func (WinnerRecord) TableName() string { return "winners" }
