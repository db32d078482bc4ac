package event

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is one decoded ledger event. The concrete type identifies the variant.
type Event interface {
	EventName() string
}

// PoolScoped is implemented by every event emitted by a pool contract.
type PoolScoped interface {
	Event
	Pool() uint64
}

// PoolRef carries the pool id shared by all pool contract events.
type PoolRef struct {
	PoolId uint64
}

func (p PoolRef) Pool() uint64 { return p.PoolId }

// Factory

type PoolCreated struct {
	PoolId             uint64
	PoolAddress        common.Address
	Admin              common.Address
	ContributionAmount *big.Int
	SecurityDeposit    *big.Int
	MaxMembers         uint64
	PaymentDay         uint64
	VouchRequired      uint64
	RotationPeriod     uint64
	PoolName           string
	Category           string
}

// Pool

type MemberRequested struct {
	PoolRef
	Member common.Address
}

type MemberApproved struct {
	PoolRef
	Member common.Address
}

type MemberRemoved struct {
	PoolRef
	Member common.Address
}

type SecurityDepositLocked struct {
	PoolRef
	Member common.Address
	Amount *big.Int
}

type ContributionMade struct {
	PoolRef
	Member common.Address
	Amount *big.Int
	Round  uint64
}

type MemberVouched struct {
	PoolRef
	Voucher common.Address
	Vouchee common.Address
	Amount  *big.Int
}

type VouchReturned struct {
	PoolRef
	Voucher common.Address
	Vouchee common.Address
	Amount  *big.Int
}

type MemberReportedDefault struct {
	PoolRef
	Member     common.Address
	ReportedBy common.Address
}

type DefaultResolved struct {
	PoolRef
	Member          common.Address
	RecoveredAmount *big.Int
}

type WinnerDetermined struct {
	PoolRef
	Round  uint64
	Winner common.Address
}

type PayoutClaimed struct {
	PoolRef
	Winner      common.Address
	Amount      *big.Int
	PlatformFee *big.Int
}

type PoolActivated struct {
	PoolRef
	TotalRounds uint64
}

type PoolCompleted struct {
	PoolRef
}

type PoolCancelled struct {
	PoolRef
}

type RotationOrderSet struct {
	PoolRef
	Order []common.Address
}

type RoundStarted struct {
	PoolRef
	Round    uint64
	Deadline uint64
}

type FundsWithdrawn struct {
	PoolRef
	Member       common.Address
	Amount       *big.Int
	WithdrawType uint8
}

// DebtNFT

type DebtNFTMinted struct {
	Member          common.Address
	TokenId         *big.Int
	PoolId          uint64
	DefaultedAmount *big.Int
}

type Transfer struct {
	From    common.Address
	To      common.Address
	TokenId *big.Int
}

// ReputationRegistry

type PoolCompletionRecorded struct {
	User           common.Address
	TotalCompleted uint64
}

type DefaultRecorded struct {
	User          common.Address
	TotalDefaults uint64
}

// Token

type TopUpCompleted struct {
	User   common.Address
	Amount *big.Int
}

type FaucetClaimed struct {
	User   common.Address
	Amount *big.Int
}

func (PoolCreated) EventName() string            { return "PoolCreated" }
func (MemberRequested) EventName() string        { return "MemberRequested" }
func (MemberApproved) EventName() string         { return "MemberApproved" }
func (MemberRemoved) EventName() string          { return "MemberRemoved" }
func (SecurityDepositLocked) EventName() string  { return "SecurityDepositLocked" }
func (ContributionMade) EventName() string       { return "ContributionMade" }
func (MemberVouched) EventName() string          { return "MemberVouched" }
func (VouchReturned) EventName() string          { return "VouchReturned" }
func (MemberReportedDefault) EventName() string  { return "MemberReportedDefault" }
func (DefaultResolved) EventName() string        { return "DefaultResolved" }
func (WinnerDetermined) EventName() string       { return "WinnerDetermined" }
func (PayoutClaimed) EventName() string          { return "PayoutClaimed" }
func (PoolActivated) EventName() string          { return "PoolActivated" }
func (PoolCompleted) EventName() string          { return "PoolCompleted" }
func (PoolCancelled) EventName() string          { return "PoolCancelled" }
func (RotationOrderSet) EventName() string       { return "RotationOrderSet" }
func (RoundStarted) EventName() string           { return "RoundStarted" }
func (FundsWithdrawn) EventName() string         { return "FundsWithdrawn" }
func (DebtNFTMinted) EventName() string          { return "DebtNFTMinted" }
func (Transfer) EventName() string               { return "Transfer" }
func (PoolCompletionRecorded) EventName() string { return "PoolCompletionRecorded" }
func (DefaultRecorded) EventName() string        { return "DefaultRecorded" }
func (TopUpCompleted) EventName() string         { return "TopUpCompleted" }
func (FaucetClaimed) EventName() string          { return "FaucetClaimed" }
