// Package ledger answers the read-model queries directly from contract state,
// without the derived store.
package ledger

import (
	"context"
	"math/big"

	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/ethereum/go-ethereum/common"
)

// PoolInfo mirrors Pool.getPoolInfo.
type PoolInfo struct {
	Admin              common.Address
	ContributionAmount *big.Int
	SecurityDeposit    *big.Int
	MaxMembers         uint64
	PaymentDay         uint64
	VouchRequired      uint64
	RotationPeriod     uint64
	Status             uint8
	CurrentRound       uint64
	TotalRounds        uint64
	Name               string
	Category           string
	CreatedAt          uint64 // unix seconds
}

// MemberInfo mirrors Pool.getMemberInfo.
type MemberInfo struct {
	Status           uint8
	LockedStake      *big.Int
	LiquidBalance    *big.Int
	JoinedAt         uint64
	HasClaimedPayout bool
}

// VouchInfo is one entry of Pool.getVouches.
type VouchInfo struct {
	Voucher  common.Address
	Amount   *big.Int
	Returned bool
}

// RoundInfo mirrors Pool.getRoundInfo. Winner is zero before the round is drawn.
type RoundInfo struct {
	Winner       common.Address
	PayoutAmount *big.Int
	ClaimedAt    uint64
}

// DebtInfo mirrors DebtNFT.getDebtInfo.
type DebtInfo struct {
	Member          common.Address
	PoolId          uint64
	DefaultedAmount *big.Int
	MintedAt        uint64
}

// ReputationInfo mirrors ReputationRegistry.getReputation.
type ReputationInfo struct {
	CompletedPools uint64
	DefaultCount   uint64
	LastUpdated    uint64
}

// Reader 链上只读调用
type Reader interface {
	PoolCount(ctx context.Context) (uint64, error)
	// PoolAddress returns the zero address for an unknown pool id.
	PoolAddress(ctx context.Context, poolId uint64) (common.Address, error)
	PoolInfo(ctx context.Context, pool common.Address) (*PoolInfo, error)
	Members(ctx context.Context, pool common.Address) ([]common.Address, error)
	MemberInfo(ctx context.Context, pool, member common.Address) (*MemberInfo, error)
	Vouches(ctx context.Context, pool, vouchee common.Address) ([]VouchInfo, error)
	RoundInfo(ctx context.Context, pool common.Address, round uint64) (*RoundInfo, error)
	HasContributed(ctx context.Context, pool common.Address, round uint64, member common.Address) (bool, error)
	RotationOrder(ctx context.Context, pool common.Address) ([]common.Address, error)
	DebtTokensOf(ctx context.Context, owner common.Address) ([]*big.Int, error)
	DebtInfo(ctx context.Context, tokenId *big.Int) (*DebtInfo, error)
	Reputation(ctx context.Context, user common.Address) (*ReputationInfo, error)
	// UserEvents returns the pool and token events naming user, in chain order.
	UserEvents(ctx context.Context, user common.Address) ([]*event.Envelope, error)
}
