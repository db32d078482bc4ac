package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MemberModel 池成员，按 (pool_id, address) 唯一
type MemberModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PoolId  uint64       `json:"pool_id" gorm:"uniqueIndex:idx_member_pool_address;not null"`
	Address string       `json:"address" gorm:"uniqueIndex:idx_member_pool_address;size:42;index;not null"`
	Status  MemberStatus `json:"status" gorm:"size:16;not null"`

	LockedStake      decimal.Decimal `json:"locked_stake" gorm:"type:numeric(78,0);not null"`
	LiquidBalance    decimal.Decimal `json:"liquid_balance" gorm:"type:numeric(78,0);not null"`
	JoinedAt         *time.Time      `json:"joined_at"`
	HasClaimedPayout bool            `json:"has_claimed_payout"`
}

// MemberStatus 成员状态
type MemberStatus string

const (
	MemberStatusNone      MemberStatus = "none"
	MemberStatusPending   MemberStatus = "pending"
	MemberStatusApproved  MemberStatus = "approved"
	MemberStatusActive    MemberStatus = "active"
	MemberStatusDefaulted MemberStatus = "defaulted"
	MemberStatusRemoved   MemberStatus = "removed"
)

// MemberStatusFromLedger maps the on-chain enum ordinal.
func MemberStatusFromLedger(v uint8) (MemberStatus, bool) {
	switch v {
	case 0:
		return MemberStatusNone, true
	case 1:
		return MemberStatusPending, true
	case 2:
		return MemberStatusApproved, true
	case 3:
		return MemberStatusActive, true
	case 4:
		return MemberStatusDefaulted, true
	case 5:
		return MemberStatusRemoved, true
	}
	return "", false
}

// memberTransitions lists the legal source states for every target state.
var memberTransitions = map[MemberStatus][]MemberStatus{
	MemberStatusPending:   {MemberStatusNone},
	MemberStatusApproved:  {MemberStatusPending},
	MemberStatusActive:    {MemberStatusApproved},
	MemberStatusDefaulted: {MemberStatusActive},
	MemberStatusRemoved:   {MemberStatusPending, MemberStatusApproved},
}

// CanTransition reports whether from -> to is an edge of the member state machine.
func CanTransition(from, to MemberStatus) bool {
	for _, s := range memberTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Counted reports whether the member counts toward memberCount.
func (s MemberStatus) Counted() bool {
	return s == MemberStatusActive || s == MemberStatusApproved
}

func (MemberModel) TableName() string {
	return "member"
}

// VouchModel 担保记录；同一对 (voucher, vouchee) 可以同时存在多条
type VouchModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PoolId    uint64          `json:"pool_id" gorm:"uniqueIndex:idx_vouch_key;index:idx_vouch_pair;not null"`
	Voucher   string          `json:"voucher" gorm:"uniqueIndex:idx_vouch_key;index:idx_vouch_pair;size:42;not null"`
	Vouchee   string          `json:"vouchee" gorm:"uniqueIndex:idx_vouch_key;index:idx_vouch_pair;size:42;not null"`
	VouchedAt time.Time       `json:"vouched_at" gorm:"uniqueIndex:idx_vouch_key;not null"`
	BlockNum  uint64          `json:"block_num" gorm:"uniqueIndex:idx_vouch_key;not null"`
	LogIndex  uint            `json:"log_index" gorm:"uniqueIndex:idx_vouch_key;not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(78,0);not null"`

	Returned   bool       `json:"returned" gorm:"not null;default:false"`
	ReturnedAt *time.Time `json:"returned_at"`
}

func (VouchModel) TableName() string {
	return "vouch"
}

// DefaultRecordModel 违约处理审计记录
type DefaultRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PoolId          uint64          `json:"pool_id" gorm:"uniqueIndex:idx_default_key;not null"`
	Address         string          `json:"address" gorm:"uniqueIndex:idx_default_key;size:42;not null"`
	ResolvedAt      time.Time       `json:"resolved_at" gorm:"uniqueIndex:idx_default_key;not null"`
	RecoveredAmount decimal.Decimal `json:"recovered_amount" gorm:"type:numeric(78,0);not null"`
	DebtNftId       *string         `json:"debt_nft_id" gorm:"size:78"`
	BlockNum        uint64          `json:"block_num"`
	LogIndex        uint            `json:"log_index"`
}

func (DefaultRecordModel) TableName() string {
	return "default_record"
}
