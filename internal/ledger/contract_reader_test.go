package ledger_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/Howters/ArisanOnChain-sub000/internal/chain/chaintest"
	"github.com/Howters/ArisanOnChain-sub000/internal/ledger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers eth_call by ABI-packing the values returned by results[method].
type fakeCaller struct {
	abis    []abi.ABI
	results map[string]func(args []interface{}) []interface{}

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int // transient failures left per method
}

func newFakeCaller(t *testing.T, reg *chain.Registry) *fakeCaller {
	f := &fakeCaller{
		results:  map[string]func(args []interface{}) []interface{}{},
		calls:    map[string]int{},
		failures: map[string]int{},
	}
	for _, name := range []string{chain.Factory, chain.Pool, chain.DebtNFT, chain.ReputationRegistry} {
		c, err := reg.GetContract(name)
		require.NoError(t, err)
		f.abis = append(f.abis, c.GetABI())
	}
	return f
}

func (f *fakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	for _, a := range f.abis {
		method, err := a.MethodById(call.Data[:4])
		if err != nil {
			continue
		}
		f.mu.Lock()
		f.calls[method.Name]++
		transient := f.failures[method.Name] > 0
		if transient {
			f.failures[method.Name]--
		}
		f.mu.Unlock()
		if transient {
			return nil, errors.New("connection reset by peer")
		}

		result, ok := f.results[method.Name]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(result(args)...)
	}
	return nil, errors.New("unknown selector")
}

func (f *fakeCaller) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func newContractReader(t *testing.T) (*ledger.ContractReader, *fakeCaller) {
	reg := chaintest.Registry(t)
	caller := newFakeCaller(t, reg)
	r, err := ledger.NewContractReader(reg, caller, nil, ledger.CallOptions{Timeout: time.Second})
	require.NoError(t, err)
	return r, caller
}

func TestContractReaderPoolInfo(t *testing.T) {
	r, caller := newContractReader(t)
	caller.results["getPoolInfo"] = func([]interface{}) []interface{} {
		return []interface{}{aa, wei(1000), wei(2000), wei(5), wei(15), wei(2), wei(30), uint8(1),
			wei(2), wei(5), "kantor", "office", wei(t0.Unix())}
	}

	info, err := r.PoolInfo(context.Background(), pool7)
	require.NoError(t, err)
	assert.Equal(t, aa, info.Admin)
	assert.Equal(t, wei(1000), info.ContributionAmount)
	assert.Equal(t, wei(2000), info.SecurityDeposit)
	assert.Equal(t, uint64(5), info.MaxMembers)
	assert.Equal(t, uint64(15), info.PaymentDay)
	assert.Equal(t, uint64(2), info.VouchRequired)
	assert.Equal(t, uint64(30), info.RotationPeriod)
	assert.Equal(t, uint8(1), info.Status)
	assert.Equal(t, uint64(2), info.CurrentRound)
	assert.Equal(t, uint64(5), info.TotalRounds)
	assert.Equal(t, "kantor", info.Name)
	assert.Equal(t, "office", info.Category)
	assert.Equal(t, uint64(t0.Unix()), info.CreatedAt)
}

func TestContractReaderCachesPoolAddress(t *testing.T) {
	r, caller := newContractReader(t)
	caller.results["getPool"] = func(args []interface{}) []interface{} {
		if args[0].(*big.Int).Uint64() == 7 {
			return []interface{}{pool7}
		}
		return []interface{}{common.Address{}}
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		addr, err := r.PoolAddress(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, pool7, addr)
	}
	assert.Equal(t, 1, caller.count("getPool"))

	// unknown ids are looked up again, a later PoolCreated may fill them
	for i := 0; i < 2; i++ {
		addr, err := r.PoolAddress(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, addr)
	}
	assert.Equal(t, 3, caller.count("getPool"))
}

func TestContractReaderVouches(t *testing.T) {
	r, caller := newContractReader(t)
	caller.results["getVouches"] = func(args []interface{}) []interface{} {
		require.Equal(t, cc, args[0])
		return []interface{}{[]common.Address{aa, bb}, []*big.Int{wei(300), wei(200)}, []bool{false, true}}
	}

	vouches, err := r.Vouches(context.Background(), pool7, cc)
	require.NoError(t, err)
	assert.Equal(t, []ledger.VouchInfo{
		{Voucher: aa, Amount: wei(300)},
		{Voucher: bb, Amount: wei(200), Returned: true},
	}, vouches)
}

func TestContractReaderMemberInfo(t *testing.T) {
	r, caller := newContractReader(t)
	caller.results["getMemberInfo"] = func([]interface{}) []interface{} {
		return []interface{}{uint8(3), wei(2000), wei(4000), wei(t0.Unix()), true}
	}
	caller.results["hasContributed"] = func(args []interface{}) []interface{} {
		return []interface{}{args[0].(*big.Int).Uint64() == 2 && args[1].(common.Address) == bb}
	}

	info, err := r.MemberInfo(context.Background(), pool7, bb)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), info.Status)
	assert.Equal(t, wei(4000), info.LiquidBalance)
	assert.True(t, info.HasClaimedPayout)

	ok, err := r.HasContributed(context.Background(), pool7, 2, bb)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.HasContributed(context.Background(), pool7, 1, bb)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContractReaderDebtTokens(t *testing.T) {
	r, caller := newContractReader(t)
	caller.results["balanceOf"] = func([]interface{}) []interface{} { return []interface{}{wei(2)} }
	caller.results["tokenOfOwnerByIndex"] = func(args []interface{}) []interface{} {
		return []interface{}{new(big.Int).Add(args[1].(*big.Int), wei(10))}
	}
	caller.results["getDebtInfo"] = func(args []interface{}) []interface{} {
		return []interface{}{dd, wei(7), wei(9), wei(t0.Unix())}
	}

	ids, err := r.DebtTokensOf(context.Background(), bb)
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{wei(10), wei(11)}, ids)

	info, err := r.DebtInfo(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, dd, info.Member)
	assert.Equal(t, uint64(7), info.PoolId)
	assert.Equal(t, wei(9), info.DefaultedAmount)
}

func TestContractReaderReputation(t *testing.T) {
	r, caller := newContractReader(t)
	caller.results["getReputation"] = func([]interface{}) []interface{} {
		return []interface{}{wei(4), wei(1), wei(t0.Unix())}
	}

	rep, err := r.Reputation(context.Background(), bb)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReputationInfo{CompletedPools: 4, DefaultCount: 1, LastUpdated: uint64(t0.Unix())}, *rep)
}

func TestContractReaderCallFailure(t *testing.T) {
	r, _ := newContractReader(t)

	_, err := r.RoundInfo(context.Background(), pool7, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "getRoundInfo")

	_, err = r.UserEvents(context.Background(), bb)
	assert.Error(t, err)
}

func TestContractReaderRetriesTransientFailures(t *testing.T) {
	reg := chaintest.Registry(t)
	caller := newFakeCaller(t, reg)
	caller.results["getReputation"] = func([]interface{}) []interface{} {
		return []interface{}{wei(1), wei(0), wei(0)}
	}
	caller.failures["getReputation"] = 2

	var retried []string
	r, err := ledger.NewContractReader(reg, caller, nil, ledger.CallOptions{
		Timeout:        time.Second,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		OnRetry:        func(method string) { retried = append(retried, method) },
	})
	require.NoError(t, err)

	rep, err := r.Reputation(context.Background(), bb)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rep.CompletedPools)
	assert.Equal(t, 3, caller.count("getReputation"))
	assert.Equal(t, []string{"getReputation", "getReputation"}, retried)

	caller.failures["getReputation"] = 5
	_, err = r.Reputation(context.Background(), bb)
	assert.Error(t, err)
}
