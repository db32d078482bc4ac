package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionModel 轮次缴款记录，追加写入
type ContributionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TxHash    string          `json:"tx_hash" gorm:"uniqueIndex:idx_contribution_key;size:66;not null"`
	PoolId    uint64          `json:"pool_id" gorm:"uniqueIndex:idx_contribution_key;index:idx_contribution_round;not null"`
	Address   string          `json:"address" gorm:"uniqueIndex:idx_contribution_key;index:idx_contribution_round;size:42;not null"`
	Round     uint64          `json:"round" gorm:"uniqueIndex:idx_contribution_key;index:idx_contribution_round;not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(78,0);not null"`
	Timestamp time.Time       `json:"timestamp"`
	BlockNum  uint64          `json:"block_num"`
	LogIndex  uint            `json:"log_index"`
}

// TableName 自定义表名
func (ContributionModel) TableName() string {
	return "contribution"
}

// WithdrawalModel FundsWithdrawn 事件
type WithdrawalModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TxHash       string          `json:"tx_hash" gorm:"uniqueIndex:idx_withdrawal_key;size:66;not null"`
	LogIndex     uint            `json:"log_index" gorm:"uniqueIndex:idx_withdrawal_key;not null"`
	PoolId       uint64          `json:"pool_id" gorm:"not null"`
	Address      string          `json:"address" gorm:"size:42;index;not null"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:numeric(78,0);not null"`
	WithdrawType uint8           `json:"withdraw_type"`
	Timestamp    time.Time       `json:"timestamp"`
	BlockNum     uint64          `json:"block_num"`
}

func (WithdrawalModel) TableName() string {
	return "withdrawal"
}

// Withdraw types emitted by FundsWithdrawn.
const (
	WithdrawTypeLiquid uint8 = 0
	WithdrawTypeStake  uint8 = 1
)

// TokenActivityKind distinguishes the two Token contract activity tables.
type TokenActivityKind string

const (
	TokenActivityTopUp  TokenActivityKind = "topup"
	TokenActivityFaucet TokenActivityKind = "faucet"
)

// TopUpModel TopUpCompleted 事件
type TopUpModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TxHash    string          `json:"tx_hash" gorm:"uniqueIndex:idx_topup_key;size:66;not null"`
	LogIndex  uint            `json:"log_index" gorm:"uniqueIndex:idx_topup_key;not null"`
	User      string          `json:"user" gorm:"column:user_address;size:42;index;not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(78,0);not null"`
	Timestamp time.Time       `json:"timestamp"`
	BlockNum  uint64          `json:"block_num"`
}

func (TopUpModel) TableName() string {
	return "top_up"
}

// FaucetClaimModel FaucetClaimed 事件
type FaucetClaimModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TxHash    string          `json:"tx_hash" gorm:"uniqueIndex:idx_faucet_key;size:66;not null"`
	LogIndex  uint            `json:"log_index" gorm:"uniqueIndex:idx_faucet_key;not null"`
	User      string          `json:"user" gorm:"column:user_address;size:42;index;not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(78,0);not null"`
	Timestamp time.Time       `json:"timestamp"`
	BlockNum  uint64          `json:"block_num"`
}

func (FaucetClaimModel) TableName() string {
	return "faucet_claim"
}
