package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/Howters/ArisanOnChain-sub000/internal/chain/chaintest"
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	pool7 = common.HexToAddress("0x0000000000000000000000000000000000000a07")
	pool8 = common.HexToAddress("0x0000000000000000000000000000000000000a08")
	aa    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bb    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	cc    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	dd    = common.HexToAddress("0x00000000000000000000000000000000000000dd")

	t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
)

func wei(v int64) *big.Int { return big.NewInt(v) }

// fakeReader serves canned ledger state. Methods listed in fail return an error.
type fakeReader struct {
	count       uint64
	pools       map[uint64]common.Address
	info        map[common.Address]*ledger.PoolInfo
	members     map[common.Address][]common.Address
	memberInfo  map[common.Address]map[common.Address]*ledger.MemberInfo
	vouches     map[common.Address]map[common.Address][]ledger.VouchInfo
	rounds      map[common.Address]map[uint64]*ledger.RoundInfo
	contributed map[common.Address]map[common.Address]bool
	rotation    map[common.Address][]common.Address
	debts       map[common.Address][]*big.Int
	debtInfo    map[string]*ledger.DebtInfo
	reputation  map[common.Address]*ledger.ReputationInfo
	events      []*event.Envelope

	mu          sync.Mutex
	fail        map[string]bool
	failMembers map[common.Address]bool
	failTokens  map[string]bool
}

// newFakeReader mirrors the pool 7 / pool 8 history used across these tests.
func newFakeReader() *fakeReader {
	return &fakeReader{
		count: 8,
		pools: map[uint64]common.Address{7: pool7, 8: pool8},
		info: map[common.Address]*ledger.PoolInfo{
			pool7: {Admin: aa, ContributionAmount: wei(1000000), SecurityDeposit: wei(2000000), MaxMembers: 5,
				Status: 1, CurrentRound: 2, TotalRounds: 3, Name: "kantor", CreatedAt: uint64(t0.Unix())},
			pool8: {Admin: dd, ContributionAmount: wei(1), SecurityDeposit: wei(1), CreatedAt: uint64(t0.Unix())},
		},
		members: map[common.Address][]common.Address{
			pool7: {aa, bb, cc, dd},
			pool8: {dd},
		},
		memberInfo: map[common.Address]map[common.Address]*ledger.MemberInfo{
			pool7: {
				aa: {Status: 2, LockedStake: wei(0), LiquidBalance: wei(0)},
				bb: {Status: 3, LockedStake: wei(2000000), LiquidBalance: wei(4000000), HasClaimedPayout: true},
				cc: {Status: 1, LockedStake: wei(0), LiquidBalance: wei(0)},
				dd: {Status: 4, LockedStake: wei(0), LiquidBalance: wei(0)},
			},
			pool8: {
				dd: {Status: 2, LockedStake: wei(0), LiquidBalance: wei(0)},
			},
		},
		vouches: map[common.Address]map[common.Address][]ledger.VouchInfo{
			pool7: {
				cc: {{Voucher: aa, Amount: wei(300)}, {Voucher: bb, Amount: wei(200), Returned: true}},
				bb: {{Voucher: aa, Amount: wei(100)}},
			},
		},
		rounds: map[common.Address]map[uint64]*ledger.RoundInfo{
			pool7: {
				1: {Winner: bb, PayoutAmount: wei(4000000), ClaimedAt: uint64(t0.Add(48 * time.Hour).Unix())},
				2: {Winner: aa, PayoutAmount: wei(0)},
			},
		},
		contributed: map[common.Address]map[common.Address]bool{pool7: {bb: true}},
		rotation:    map[common.Address][]common.Address{pool7: {bb, aa}},
		debts:       map[common.Address][]*big.Int{bb: {wei(10), wei(9)}},
		debtInfo: map[string]*ledger.DebtInfo{
			"10": {Member: dd, PoolId: 7, DefaultedAmount: wei(9)},
			"9":  {Member: dd, PoolId: 7, DefaultedAmount: wei(8), MintedAt: uint64(t0.Unix())},
		},
		reputation: map[common.Address]*ledger.ReputationInfo{
			bb: {CompletedPools: 2, DefaultCount: 1, LastUpdated: uint64(t0.Unix())},
		},
		fail:        map[string]bool{},
		failMembers: map[common.Address]bool{},
		failTokens:  map[string]bool{},
	}
}

func (f *fakeReader) failing(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[method] {
		return fmt.Errorf("%s: %w", method, errors.New("ledger unavailable"))
	}
	return nil
}

func (f *fakeReader) PoolCount(ctx context.Context) (uint64, error) {
	if err := f.failing("PoolCount"); err != nil {
		return 0, err
	}
	return f.count, nil
}

func (f *fakeReader) PoolAddress(ctx context.Context, poolId uint64) (common.Address, error) {
	if err := f.failing("PoolAddress"); err != nil {
		return common.Address{}, err
	}
	return f.pools[poolId], nil
}

func (f *fakeReader) PoolInfo(ctx context.Context, pool common.Address) (*ledger.PoolInfo, error) {
	if err := f.failing("PoolInfo"); err != nil {
		return nil, err
	}
	info, ok := f.info[pool]
	if !ok {
		return nil, errors.New("no code at address")
	}
	return info, nil
}

func (f *fakeReader) Members(ctx context.Context, pool common.Address) ([]common.Address, error) {
	if err := f.failing("Members"); err != nil {
		return nil, err
	}
	return f.members[pool], nil
}

func (f *fakeReader) MemberInfo(ctx context.Context, pool, member common.Address) (*ledger.MemberInfo, error) {
	if err := f.failing("MemberInfo"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	failed := f.failMembers[member]
	f.mu.Unlock()
	if failed {
		return nil, errors.New("member info timed out")
	}
	info, ok := f.memberInfo[pool][member]
	if !ok {
		return &ledger.MemberInfo{}, nil
	}
	return info, nil
}

func (f *fakeReader) Vouches(ctx context.Context, pool, vouchee common.Address) ([]ledger.VouchInfo, error) {
	if err := f.failing("Vouches"); err != nil {
		return nil, err
	}
	return f.vouches[pool][vouchee], nil
}

func (f *fakeReader) RoundInfo(ctx context.Context, pool common.Address, round uint64) (*ledger.RoundInfo, error) {
	if err := f.failing("RoundInfo"); err != nil {
		return nil, err
	}
	info, ok := f.rounds[pool][round]
	if !ok {
		return &ledger.RoundInfo{}, nil
	}
	return info, nil
}

func (f *fakeReader) HasContributed(ctx context.Context, pool common.Address, round uint64, member common.Address) (bool, error) {
	if err := f.failing("HasContributed"); err != nil {
		return false, err
	}
	if round != f.info[pool].CurrentRound {
		return false, nil
	}
	return f.contributed[pool][member], nil
}

func (f *fakeReader) RotationOrder(ctx context.Context, pool common.Address) ([]common.Address, error) {
	if err := f.failing("RotationOrder"); err != nil {
		return nil, err
	}
	return f.rotation[pool], nil
}

func (f *fakeReader) DebtTokensOf(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	if err := f.failing("DebtTokensOf"); err != nil {
		return nil, err
	}
	return f.debts[owner], nil
}

func (f *fakeReader) DebtInfo(ctx context.Context, tokenId *big.Int) (*ledger.DebtInfo, error) {
	if err := f.failing("DebtInfo"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	failed := f.failTokens[tokenId.String()]
	f.mu.Unlock()
	if failed {
		return nil, errors.New("debt info timed out")
	}
	return f.debtInfo[tokenId.String()], nil
}

func (f *fakeReader) Reputation(ctx context.Context, user common.Address) (*ledger.ReputationInfo, error) {
	if err := f.failing("Reputation"); err != nil {
		return nil, err
	}
	info, ok := f.reputation[user]
	if !ok {
		return &ledger.ReputationInfo{}, nil
	}
	return info, nil
}

func (f *fakeReader) UserEvents(ctx context.Context, user common.Address) ([]*event.Envelope, error) {
	if err := f.failing("UserEvents"); err != nil {
		return nil, err
	}
	return f.events, nil
}

// envelope ABI-encodes an event and classifies it the way the source does.
func envelope(t *testing.T, reg *chain.Registry, contract string, emitter common.Address, name string,
	block uint64, logIndex uint, args map[string]interface{}) *event.Envelope {
	t.Helper()
	l := chaintest.At(chaintest.Log(t, reg, contract, emitter, name, args), block, 0, logIndex)
	c, evName, ok := reg.Classify(l)
	require.True(t, ok)

	env := &event.Envelope{
		Block:     l.BlockNumber,
		Timestamp: t0.Add(time.Duration(block) * 12 * time.Second),
		TxHash:    l.TxHash,
		LogIndex:  l.Index,
		Address:   l.Address,
		Contract:  c.GetName(),
		Name:      evName,
	}
	_, env.Args, env.Err = c.Unpack(l)
	return env
}
