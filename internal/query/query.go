// Package query 查询接口：存储实现与链上直读实现共用的读模型、响应结构与派生字段计算
package query

import (
	"context"
	"errors"
	"time"
)

// ErrPoolNotFound 池不存在
var ErrPoolNotFound = errors.New("pool not found")

// ReadModel 读模型。地址均为小写十六进制（见 model.ParseAddress），user 为空表示匿名
type ReadModel interface {
	GetPools(ctx context.Context, user string) ([]PoolSummary, error)
	GetPoolDetail(ctx context.Context, poolId uint64, user string) (*PoolDetail, error)
	GetUserDebts(ctx context.Context, address string) ([]DebtView, error)
	GetTransactions(ctx context.Context, address string) ([]TxRecord, error)
	GetReputation(ctx context.Context, address string) (*ReputationView, error)
}

// PoolSummary 池列表项
type PoolSummary struct {
	PoolId             uint64    `json:"pool_id"`
	PoolAddress        string    `json:"pool_address"`
	Name               string    `json:"name"`
	Category           string    `json:"category"`
	Admin              string    `json:"admin"`
	ContributionAmount string    `json:"contribution_amount"`
	SecurityDeposit    string    `json:"security_deposit"`
	MaxMembers         uint64    `json:"max_members"`
	PaymentDay         uint64    `json:"payment_day"`
	VouchRequired      uint64    `json:"vouch_required"`
	RotationPeriod     uint64    `json:"rotation_period"`
	Status             string    `json:"status"`
	CurrentRound       uint64    `json:"current_round"`
	TotalRounds        uint64    `json:"total_rounds"`
	CreatedAt          time.Time `json:"created_at"`

	MemberCount    int    `json:"member_count"`
	IsAdmin        bool   `json:"is_admin"`
	IsMember       bool   `json:"is_member"`
	MemberStatus   string `json:"member_status,omitempty"`
	HasContributed bool   `json:"has_contributed"`
}

// MemberView 成员视图
type MemberView struct {
	Address          string     `json:"address"`
	Status           string     `json:"status"`
	LockedStake      string     `json:"locked_stake"`
	LiquidBalance    string     `json:"liquid_balance"`
	JoinedAt         *time.Time `json:"joined_at,omitempty"`
	HasClaimedPayout bool       `json:"has_claimed_payout"`
	HasContributed   bool       `json:"has_contributed"` // 当前轮次
}

// RoundView 一轮的中奖与领取情况
type RoundView struct {
	Round        uint64     `json:"round"`
	Winner       string     `json:"winner"`
	PayoutAmount string     `json:"payout_amount"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
}

// VouchView 一笔担保
type VouchView struct {
	Voucher  string `json:"voucher"`
	Amount   string `json:"amount"`
	Returned bool   `json:"returned"`
}

// VouchesReceived 某个被担保人收到的担保
type VouchesReceived struct {
	Vouchee     string      `json:"vouchee"`
	Outstanding string      `json:"outstanding"` // 未退还金额合计
	Vouches     []VouchView `json:"vouches"`
}

// PoolDetail 池详情
type PoolDetail struct {
	PoolSummary
	Members         []MemberView      `json:"members"`
	PendingMembers  []MemberView      `json:"pending_members"`
	RoundHistory    []RoundView       `json:"round_history"`
	RotationOrder   []string          `json:"rotation_order"`
	VouchesReceived []VouchesReceived `json:"vouches_received"`
	Membership      *MemberView       `json:"membership,omitempty"` // 调用者自己的成员信息
}

// DebtView 债务 NFT
type DebtView struct {
	TokenId         string     `json:"token_id"`
	Owner           string     `json:"owner"`
	Member          string     `json:"member"`
	PoolId          uint64     `json:"pool_id"`
	DefaultedAmount string     `json:"defaulted_amount"`
	MintedAt        *time.Time `json:"minted_at,omitempty"`
}

// TxKind 交易类型
type TxKind string

const (
	TxContribution TxKind = "contribution"
	TxPayout       TxKind = "payout"
	TxWithdrawal   TxKind = "withdrawal"
	TxTopUp        TxKind = "topup"
	TxFaucet       TxKind = "faucet"
)

// TxRecord 用户的一笔资金流水
type TxRecord struct {
	Kind      TxKind    `json:"kind"`
	PoolId    uint64    `json:"pool_id,omitempty"`
	Round     uint64    `json:"round,omitempty"` // 仅缴款
	Amount    string    `json:"amount"`
	Detail    string    `json:"detail,omitempty"` // 提现类型
	TxHash    string    `json:"tx_hash"`
	BlockNum  uint64    `json:"block_num"`
	LogIndex  uint      `json:"log_index"`
	Timestamp time.Time `json:"timestamp"`
}

// ReputationView 信誉计数；未出现过的地址返回零值
type ReputationView struct {
	Address        string     `json:"address"`
	CompletedPools uint64     `json:"completed_pools"`
	DefaultCount   uint64     `json:"default_count"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
}
