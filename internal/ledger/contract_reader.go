package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/source"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// CallOptions 合约调用的超时与重试
type CallOptions struct {
	Timeout        time.Duration
	MaxRetries     uint64 // 0 disables retries
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnRetry is called with the contract method before every retry.
	OnRetry func(method string)
}

func (o *CallOptions) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 2 * time.Second
	}
}

// ContractReader 通过合约 view 调用读取链上状态
type ContractReader struct {
	registry *chain.Registry
	caller   bind.ContractCaller
	events   *source.Source
	opts     CallOptions

	factory    *bind.BoundContract
	debtNFT    *bind.BoundContract
	reputation *bind.BoundContract
	poolABI    abi.ABI

	mu    sync.RWMutex
	pools map[uint64]common.Address // factory lookups, immutable once set
}

var _ Reader = (*ContractReader)(nil)

// NewContractReader binds the fixed contracts of registry to caller. events
// serves UserEvents and may be nil when transactions are not needed.
func NewContractReader(registry *chain.Registry, caller bind.ContractCaller, events *source.Source, opts CallOptions) (*ContractReader, error) {
	pool, err := registry.GetContract(chain.Pool)
	if err != nil {
		return nil, err
	}
	opts.setDefaults()

	r := &ContractReader{
		registry: registry,
		caller:   caller,
		events:   events,
		opts:     opts,
		poolABI:  pool.GetABI(),
		pools:    make(map[uint64]common.Address),
	}
	r.factory = r.bind(chain.Factory)
	r.debtNFT = r.bind(chain.DebtNFT)
	r.reputation = r.bind(chain.ReputationRegistry)
	return r, nil
}

func (r *ContractReader) bind(name string) *bind.BoundContract {
	c, err := r.registry.GetContract(name)
	if err != nil {
		return nil
	}
	return bind.NewBoundContract(c.GetAddress(), c.GetABI(), r.caller, nil, nil)
}

func (r *ContractReader) pool(addr common.Address) *bind.BoundContract {
	return bind.NewBoundContract(addr, r.poolABI, r.caller, nil, nil)
}

// call runs one view method with a per-attempt timeout, retrying with exponential backoff.
func (r *ContractReader) call(ctx context.Context, c *bind.BoundContract, method string, params ...interface{}) (*outputs, error) {
	if c == nil {
		return nil, fmt.Errorf("call %s: contract not configured", method)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.opts.InitialBackoff
	exp.MaxInterval = r.opts.MaxBackoff
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, r.opts.MaxRetries), ctx)

	var out []interface{}
	err := backoff.RetryNotify(func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()

		out = nil
		err := c.Call(&bind.CallOpts{Context: callCtx}, &out, method, params...)
		if errors.Is(err, bind.ErrNoCode) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		logger.Warn("Contract call %s failed, retrying in %s: %v", method, wait, err)
		if r.opts.OnRetry != nil {
			r.opts.OnRetry(method)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return &outputs{method: method, values: out}, nil
}

func (r *ContractReader) PoolCount(ctx context.Context) (uint64, error) {
	out, err := r.call(ctx, r.factory, "poolCount")
	if err != nil {
		return 0, err
	}
	n := out.u64(0)
	return n, out.err
}

func (r *ContractReader) PoolAddress(ctx context.Context, poolId uint64) (common.Address, error) {
	r.mu.RLock()
	addr, ok := r.pools[poolId]
	r.mu.RUnlock()
	if ok {
		return addr, nil
	}

	out, err := r.call(ctx, r.factory, "getPool", new(big.Int).SetUint64(poolId))
	if err != nil {
		return common.Address{}, err
	}
	addr = out.address(0)
	if out.err != nil {
		return common.Address{}, out.err
	}
	if addr != (common.Address{}) {
		r.mu.Lock()
		r.pools[poolId] = addr
		r.mu.Unlock()
	}
	return addr, nil
}

func (r *ContractReader) PoolInfo(ctx context.Context, pool common.Address) (*PoolInfo, error) {
	out, err := r.call(ctx, r.pool(pool), "getPoolInfo")
	if err != nil {
		return nil, err
	}
	info := &PoolInfo{
		Admin:              out.address(0),
		ContributionAmount: out.uint256(1),
		SecurityDeposit:    out.uint256(2),
		MaxMembers:         out.u64(3),
		PaymentDay:         out.u64(4),
		VouchRequired:      out.u64(5),
		RotationPeriod:     out.u64(6),
		Status:             out.u8(7),
		CurrentRound:       out.u64(8),
		TotalRounds:        out.u64(9),
		Name:               out.str(10),
		Category:           out.str(11),
		CreatedAt:          out.u64(12),
	}
	return info, out.err
}

func (r *ContractReader) Members(ctx context.Context, pool common.Address) ([]common.Address, error) {
	out, err := r.call(ctx, r.pool(pool), "getMembers")
	if err != nil {
		return nil, err
	}
	members := out.addresses(0)
	return members, out.err
}

func (r *ContractReader) MemberInfo(ctx context.Context, pool, member common.Address) (*MemberInfo, error) {
	out, err := r.call(ctx, r.pool(pool), "getMemberInfo", member)
	if err != nil {
		return nil, err
	}
	info := &MemberInfo{
		Status:           out.u8(0),
		LockedStake:      out.uint256(1),
		LiquidBalance:    out.uint256(2),
		JoinedAt:         out.u64(3),
		HasClaimedPayout: out.boolean(4),
	}
	return info, out.err
}

func (r *ContractReader) Vouches(ctx context.Context, pool, vouchee common.Address) ([]VouchInfo, error) {
	out, err := r.call(ctx, r.pool(pool), "getVouches", vouchee)
	if err != nil {
		return nil, err
	}
	vouchers, amounts, returned := out.addresses(0), out.uint256s(1), out.booleans(2)
	if out.err != nil {
		return nil, out.err
	}
	if len(amounts) != len(vouchers) || len(returned) != len(vouchers) {
		return nil, fmt.Errorf("getVouches: mismatched lengths %d/%d/%d", len(vouchers), len(amounts), len(returned))
	}

	vouches := make([]VouchInfo, len(vouchers))
	for i := range vouchers {
		vouches[i] = VouchInfo{Voucher: vouchers[i], Amount: amounts[i], Returned: returned[i]}
	}
	return vouches, nil
}

func (r *ContractReader) RoundInfo(ctx context.Context, pool common.Address, round uint64) (*RoundInfo, error) {
	out, err := r.call(ctx, r.pool(pool), "getRoundInfo", new(big.Int).SetUint64(round))
	if err != nil {
		return nil, err
	}
	info := &RoundInfo{
		Winner:       out.address(0),
		PayoutAmount: out.uint256(1),
		ClaimedAt:    out.u64(2),
	}
	return info, out.err
}

func (r *ContractReader) HasContributed(ctx context.Context, pool common.Address, round uint64, member common.Address) (bool, error) {
	out, err := r.call(ctx, r.pool(pool), "hasContributed", new(big.Int).SetUint64(round), member)
	if err != nil {
		return false, err
	}
	ok := out.boolean(0)
	return ok, out.err
}

func (r *ContractReader) RotationOrder(ctx context.Context, pool common.Address) ([]common.Address, error) {
	out, err := r.call(ctx, r.pool(pool), "getRotationOrder")
	if err != nil {
		return nil, err
	}
	order := out.addresses(0)
	return order, out.err
}

// DebtTokensOf enumerates the ERC721 tokens owned by owner.
func (r *ContractReader) DebtTokensOf(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	out, err := r.call(ctx, r.debtNFT, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance := out.u64(0)
	if out.err != nil {
		return nil, out.err
	}

	tokens := make([]*big.Int, 0, balance)
	for i := uint64(0); i < balance; i++ {
		out, err := r.call(ctx, r.debtNFT, "tokenOfOwnerByIndex", owner, new(big.Int).SetUint64(i))
		if err != nil {
			return nil, err
		}
		id := out.uint256(0)
		if out.err != nil {
			return nil, out.err
		}
		tokens = append(tokens, id)
	}
	return tokens, nil
}

func (r *ContractReader) DebtInfo(ctx context.Context, tokenId *big.Int) (*DebtInfo, error) {
	out, err := r.call(ctx, r.debtNFT, "getDebtInfo", tokenId)
	if err != nil {
		return nil, err
	}
	info := &DebtInfo{
		Member:          out.address(0),
		PoolId:          out.u64(1),
		DefaultedAmount: out.uint256(2),
		MintedAt:        out.u64(3),
	}
	return info, out.err
}

func (r *ContractReader) Reputation(ctx context.Context, user common.Address) (*ReputationInfo, error) {
	out, err := r.call(ctx, r.reputation, "getReputation", user)
	if err != nil {
		return nil, err
	}
	info := &ReputationInfo{
		CompletedPools: out.u64(0),
		DefaultCount:   out.u64(1),
		LastUpdated:    out.u64(2),
	}
	return info, out.err
}

func (r *ContractReader) UserEvents(ctx context.Context, user common.Address) ([]*event.Envelope, error) {
	if r.events == nil {
		return nil, fmt.Errorf("user events: no event source configured")
	}
	queries, err := r.registry.UserLogQueries(user, r.registry.StartBlock(), nil)
	if err != nil {
		return nil, err
	}
	return r.events.FetchQueries(ctx, queries)
}

// outputs reads typed return values by position and keeps the first failure.
type outputs struct {
	method string
	values []interface{}
	err    error
}

func (o *outputs) get(i int) (interface{}, bool) {
	if o.err != nil {
		return nil, false
	}
	if i >= len(o.values) {
		o.err = fmt.Errorf("%s: missing output %d", o.method, i)
		return nil, false
	}
	return o.values[i], true
}

func (o *outputs) fail(i int, v interface{}, want string) {
	o.err = fmt.Errorf("%s: output %d is %T, want %s", o.method, i, v, want)
}

func (o *outputs) uint256(i int) *big.Int {
	v, ok := o.get(i)
	if !ok {
		return nil
	}
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		o.fail(i, v, "uint256")
		return nil
	}
	return b
}

func (o *outputs) u64(i int) uint64 {
	b := o.uint256(i)
	if b == nil {
		return 0
	}
	if !b.IsUint64() {
		o.err = fmt.Errorf("%s: output %d overflows uint64: %s", o.method, i, b)
		return 0
	}
	return b.Uint64()
}

func (o *outputs) u8(i int) uint8 {
	v, ok := o.get(i)
	if !ok {
		return 0
	}
	u, ok := v.(uint8)
	if !ok {
		o.fail(i, v, "uint8")
	}
	return u
}

func (o *outputs) address(i int) common.Address {
	v, ok := o.get(i)
	if !ok {
		return common.Address{}
	}
	a, ok := v.(common.Address)
	if !ok {
		o.fail(i, v, "address")
	}
	return a
}

func (o *outputs) addresses(i int) []common.Address {
	v, ok := o.get(i)
	if !ok {
		return nil
	}
	a, ok := v.([]common.Address)
	if !ok {
		o.fail(i, v, "address[]")
	}
	return a
}

func (o *outputs) uint256s(i int) []*big.Int {
	v, ok := o.get(i)
	if !ok {
		return nil
	}
	a, ok := v.([]*big.Int)
	if !ok {
		o.fail(i, v, "uint256[]")
	}
	return a
}

func (o *outputs) boolean(i int) bool {
	v, ok := o.get(i)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		o.fail(i, v, "bool")
	}
	return b
}

func (o *outputs) booleans(i int) []bool {
	v, ok := o.get(i)
	if !ok {
		return nil
	}
	a, ok := v.([]bool)
	if !ok {
		o.fail(i, v, "bool[]")
	}
	return a
}

func (o *outputs) str(i int) string {
	v, ok := o.get(i)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		o.fail(i, v, "string")
	}
	return s
}
