package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebtTokenModel 违约债务 NFT
type DebtTokenModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TokenId         string          `json:"token_id" gorm:"uniqueIndex:idx_debt_token_id;size:78;not null"`
	Owner           string          `json:"owner" gorm:"size:42;index;not null"`
	Member          string          `json:"member" gorm:"size:42"`
	PoolId          uint64          `json:"pool_id"`
	DefaultedAmount decimal.Decimal `json:"defaulted_amount" gorm:"type:numeric(78,0);not null"`
	MintedAt        *time.Time      `json:"minted_at"`
}

func (DebtTokenModel) TableName() string {
	return "debt_token"
}

// ReputationModel 信誉计数，来自链上的绝对值
type ReputationModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address        string    `json:"address" gorm:"uniqueIndex:idx_reputation_address;size:42;not null"`
	CompletedPools uint64    `json:"completed_pools"`
	DefaultCount   uint64    `json:"default_count"`
	LastUpdated    time.Time `json:"last_updated"`
}

func (ReputationModel) TableName() string {
	return "reputation"
}
