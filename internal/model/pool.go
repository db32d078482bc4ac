package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolModel 一个 arisan 池
type PoolModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"` // block time of PoolCreated
	UpdatedAt time.Time `json:"updated_at"`

	PoolId      uint64 `json:"pool_id" gorm:"uniqueIndex:idx_pool_pool_id;not null"`
	PoolAddress string `json:"pool_address" gorm:"size:42;index;not null"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Admin       string `json:"admin" gorm:"size:42;index;not null"`

	ContributionAmount decimal.Decimal `json:"contribution_amount" gorm:"type:numeric(78,0);not null"`
	SecurityDeposit    decimal.Decimal `json:"security_deposit" gorm:"type:numeric(78,0);not null"`
	MaxMembers         uint64          `json:"max_members"`
	PaymentDay         uint64          `json:"payment_day"`
	VouchRequired      uint64          `json:"vouch_required"`
	RotationPeriod     uint64          `json:"rotation_period"`

	Status       PoolStatus `json:"status" gorm:"size:16;not null"`
	CurrentRound uint64     `json:"current_round"`
	TotalRounds  uint64     `json:"total_rounds"`
	RotationSize int        `json:"rotation_size"` // live prefix of rotation_order_entry

	CreatedBlock uint64 `json:"created_block"`
}

// PoolStatus 池状态
type PoolStatus string

const (
	PoolStatusPending   PoolStatus = "pending"
	PoolStatusActive    PoolStatus = "active"
	PoolStatusCompleted PoolStatus = "completed"
	PoolStatusCancelled PoolStatus = "cancelled"
)

// PoolStatusFromLedger maps the on-chain enum ordinal.
func PoolStatusFromLedger(v uint8) (PoolStatus, bool) {
	switch v {
	case 0:
		return PoolStatusPending, true
	case 1:
		return PoolStatusActive, true
	case 2:
		return PoolStatusCompleted, true
	case 3:
		return PoolStatusCancelled, true
	}
	return "", false
}

// TableName 自定义表名
func (PoolModel) TableName() string {
	return "pool"
}

// RotationOrderEntryModel 轮换顺序中的一个位置
type RotationOrderEntryModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PoolId        uint64 `json:"pool_id" gorm:"uniqueIndex:idx_rotation_pool_position;not null"`
	Position      int    `json:"position" gorm:"uniqueIndex:idx_rotation_pool_position;not null"`
	MemberAddress string `json:"member_address" gorm:"size:42;not null"`
}

func (RotationOrderEntryModel) TableName() string {
	return "rotation_order_entry"
}

// WinnerHistoryModel 每一轮的中奖记录
type WinnerHistoryModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PoolId        uint64          `json:"pool_id" gorm:"uniqueIndex:idx_winner_pool_round;not null"`
	Round         uint64          `json:"round" gorm:"uniqueIndex:idx_winner_pool_round;not null"`
	WinnerAddress string          `json:"winner_address" gorm:"size:42;index;not null"`
	PayoutAmount  decimal.Decimal `json:"payout_amount" gorm:"type:numeric(78,0);not null"`
	ClaimedAt     *time.Time      `json:"claimed_at"`

	ClaimTxHash   string `json:"claim_tx_hash" gorm:"size:66"`
	ClaimBlockNum uint64 `json:"claim_block_num"`
	ClaimLogIndex uint   `json:"claim_log_index"`
}

func (WinnerHistoryModel) TableName() string {
	return "winner_history_entry"
}
