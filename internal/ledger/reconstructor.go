package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
	"github.com/Howters/ArisanOnChain-sub000/internal/query"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"
)

// Reconstructor 直接从链上合约状态重建查询结果，不依赖派生存储。
// 池信息与成员列表是必需的；其余子查询失败时省略或取默认值
type Reconstructor struct {
	reader Reader
	pool   *ants.Pool
}

var _ query.ReadModel = (*Reconstructor)(nil)

// NewReconstructor creates a reconstructor whose concurrent ledger reads are bounded by fanout.
func NewReconstructor(reader Reader, fanout int) (*Reconstructor, error) {
	if fanout <= 0 {
		fanout = 16
	}
	pool, err := ants.NewPool(fanout)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader pool of %d: %w", fanout, err)
	}
	return &Reconstructor{reader: reader, pool: pool}, nil
}

// Release 释放协程池
func (r *Reconstructor) Release() {
	r.pool.Release()
}

// fanOut runs n tasks on the shared pool and waits for all of them. Tasks never
// submit further tasks, so a saturated pool cannot deadlock.
func (r *Reconstructor) fanOut(n int, task func(i int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		if err := r.pool.Submit(func() {
			defer wg.Done()
			errs[i] = task(i)
		}); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("failed to submit ledger read: %w", err)
		}
	}
	wg.Wait()
	return errs
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ledgerPool is one pool as read from the ledger.
type ledgerPool struct {
	id      uint64
	address common.Address
	info    *PoolInfo
	members []common.Address
}

// loadRequired reads the pool info and member list of every address concurrently.
func (r *Reconstructor) loadRequired(ctx context.Context, pools []*ledgerPool) error {
	errs := r.fanOut(2*len(pools), func(i int) (err error) {
		p := pools[i/2]
		if i%2 == 0 {
			p.info, err = r.reader.PoolInfo(ctx, p.address)
		} else {
			p.members, err = r.reader.Members(ctx, p.address)
		}
		if err != nil {
			return fmt.Errorf("pool %d: %w", p.id, err)
		}
		return nil
	})
	return firstError(errs)
}

// records converts ledger data into the row form shared with the store path.
func (p *ledgerPool) records() (*query.PoolRecords, error) {
	status, ok := model.PoolStatusFromLedger(p.info.Status)
	if !ok {
		return nil, fmt.Errorf("pool %d: unknown status %d", p.id, p.info.Status)
	}
	return &query.PoolRecords{
		Pool: model.PoolModel{
			CreatedAt:          unix(p.info.CreatedAt),
			PoolId:             p.id,
			PoolAddress:        model.AddressKey(p.address),
			Name:               p.info.Name,
			Category:           p.info.Category,
			Admin:              model.AddressKey(p.info.Admin),
			ContributionAmount: amount(p.info.ContributionAmount),
			SecurityDeposit:    amount(p.info.SecurityDeposit),
			MaxMembers:         p.info.MaxMembers,
			PaymentDay:         p.info.PaymentDay,
			VouchRequired:      p.info.VouchRequired,
			RotationPeriod:     p.info.RotationPeriod,
			Status:             status,
			CurrentRound:       p.info.CurrentRound,
			TotalRounds:        p.info.TotalRounds,
		},
		Contributed: map[string]bool{},
	}, nil
}

// memberRows reads every member's info. Members whose info cannot be read are omitted.
func (r *Reconstructor) memberRows(ctx context.Context, pools []*ledgerPool) [][]model.MemberModel {
	type ref struct{ pool, member int }
	var refs []ref
	for pi, p := range pools {
		for mi := range p.members {
			refs = append(refs, ref{pi, mi})
		}
	}

	infos := make([]*MemberInfo, len(refs))
	errs := r.fanOut(len(refs), func(i int) (err error) {
		p := pools[refs[i].pool]
		infos[i], err = r.reader.MemberInfo(ctx, p.address, p.members[refs[i].member])
		return err
	})

	rows := make([][]model.MemberModel, len(pools))
	for i, ref := range refs {
		p := pools[ref.pool]
		addr := p.members[ref.member]
		if errs[i] != nil {
			logger.Warn("Omitting member %s of pool %d: %v", addr.Hex(), p.id, errs[i])
			continue
		}
		status, ok := model.MemberStatusFromLedger(infos[i].Status)
		if !ok {
			logger.Warn("Omitting member %s of pool %d: unknown status %d", addr.Hex(), p.id, infos[i].Status)
			continue
		}
		rows[ref.pool] = append(rows[ref.pool], model.MemberModel{
			PoolId:           p.id,
			Address:          model.AddressKey(addr),
			Status:           status,
			LockedStake:      amount(infos[i].LockedStake),
			LiquidBalance:    amount(infos[i].LiquidBalance),
			JoinedAt:         unixPtr(infos[i].JoinedAt),
			HasClaimedPayout: infos[i].HasClaimedPayout,
		})
	}
	return rows
}

// GetPools lists every pool known to the factory, or only those user administers or belongs to.
func (r *Reconstructor) GetPools(ctx context.Context, user string) ([]query.PoolSummary, error) {
	count, err := r.reader.PoolCount(ctx)
	if err != nil {
		return nil, err
	}

	// pool ids are 1-based
	all := make([]*ledgerPool, count)
	errs := r.fanOut(int(count), func(i int) (err error) {
		all[i] = &ledgerPool{id: uint64(i) + 1}
		all[i].address, err = r.reader.PoolAddress(ctx, all[i].id)
		return err
	})
	if err := firstError(errs); err != nil {
		return nil, err
	}

	var pools []*ledgerPool
	for _, p := range all {
		if p.address != (common.Address{}) {
			pools = append(pools, p)
		}
	}
	if err := r.loadRequired(ctx, pools); err != nil {
		return nil, err
	}

	if user != "" {
		pools = filterPools(pools, user)
	}

	members := r.memberRows(ctx, pools)
	contributed := make([]bool, len(pools))
	if user != "" {
		r.fanOut(len(pools), func(i int) error {
			ok, err := r.reader.HasContributed(ctx, pools[i].address, pools[i].info.CurrentRound, common.HexToAddress(user))
			if err != nil {
				logger.Warn("Defaulting contribution flag of %s in pool %d: %v", user, pools[i].id, err)
				return err
			}
			contributed[i] = ok
			return nil
		})
	}

	summaries := make([]query.PoolSummary, 0, len(pools))
	for i, p := range pools {
		records, err := p.records()
		if err != nil {
			return nil, err
		}
		records.Members = members[i]
		records.Contributed[user] = contributed[i]
		summaries = append(summaries, query.BuildSummary(records, user))
	}
	return summaries, nil
}

// filterPools keeps the pools where user is the admin or appears in the member list.
func filterPools(pools []*ledgerPool, user string) []*ledgerPool {
	var kept []*ledgerPool
	for _, p := range pools {
		if model.AddressKey(p.info.Admin) == user {
			kept = append(kept, p)
			continue
		}
		for _, m := range p.members {
			if model.AddressKey(m) == user {
				kept = append(kept, p)
				break
			}
		}
	}
	return kept
}

// GetPoolDetail reconstructs one pool with members, round history, rotation and vouches.
func (r *Reconstructor) GetPoolDetail(ctx context.Context, poolId uint64, user string) (*query.PoolDetail, error) {
	addr, err := r.reader.PoolAddress(ctx, poolId)
	if err != nil {
		return nil, err
	}
	if addr == (common.Address{}) {
		return nil, query.ErrPoolNotFound
	}

	p := &ledgerPool{id: poolId, address: addr}
	if err := r.loadRequired(ctx, []*ledgerPool{p}); err != nil {
		return nil, err
	}
	records, err := p.records()
	if err != nil {
		return nil, err
	}
	records.Members = r.memberRows(ctx, []*ledgerPool{p})[0]

	round := p.info.CurrentRound
	var (
		contributed = make([]bool, len(p.members))
		vouches     = make([][]VouchInfo, len(p.members))
		rounds      = make([]*RoundInfo, round)
		rotation    []common.Address
	)

	// optional sub-reads: per member contribution flag and vouches, every round, rotation
	var tasks []func() error
	for i, m := range p.members {
		i, m := i, m
		if round > 0 {
			tasks = append(tasks, func() (err error) {
				contributed[i], err = r.reader.HasContributed(ctx, addr, round, m)
				return err
			})
		}
		tasks = append(tasks, func() (err error) {
			vouches[i], err = r.reader.Vouches(ctx, addr, m)
			return err
		})
	}
	for n := uint64(1); n <= round; n++ {
		n := n
		tasks = append(tasks, func() (err error) {
			rounds[n-1], err = r.reader.RoundInfo(ctx, addr, n)
			return err
		})
	}
	tasks = append(tasks, func() (err error) {
		rotation, err = r.reader.RotationOrder(ctx, addr)
		return err
	})

	errs := r.fanOut(len(tasks), func(i int) error { return tasks[i]() })
	for _, err := range errs {
		if err != nil {
			logger.Warn("Pool %d detail degraded: %v", poolId, err)
		}
	}

	for i, m := range p.members {
		key := model.AddressKey(m)
		if contributed[i] {
			records.Contributed[key] = true
		}
		for _, v := range vouches[i] {
			records.Vouches = append(records.Vouches, model.VouchModel{
				PoolId:   poolId,
				Voucher:  model.AddressKey(v.Voucher),
				Vouchee:  key,
				Amount:   amount(v.Amount),
				Returned: v.Returned,
			})
		}
	}
	for i, info := range rounds {
		if info == nil || info.Winner == (common.Address{}) {
			continue
		}
		records.Winners = append(records.Winners, model.WinnerHistoryModel{
			PoolId:        poolId,
			Round:         uint64(i) + 1,
			WinnerAddress: model.AddressKey(info.Winner),
			PayoutAmount:  amount(info.PayoutAmount),
			ClaimedAt:     unixPtr(info.ClaimedAt),
		})
	}
	for _, a := range rotation {
		records.Rotation = append(records.Rotation, model.AddressKey(a))
	}

	return query.BuildDetail(records, user), nil
}

// GetUserDebts enumerates the debt tokens owned by address. Tokens whose info cannot be read are omitted.
func (r *Reconstructor) GetUserDebts(ctx context.Context, address string) ([]query.DebtView, error) {
	owner := common.HexToAddress(address)
	ids, err := r.reader.DebtTokensOf(ctx, owner)
	if err != nil {
		return nil, err
	}

	infos := make([]*DebtInfo, len(ids))
	errs := r.fanOut(len(ids), func(i int) (err error) {
		infos[i], err = r.reader.DebtInfo(ctx, ids[i])
		return err
	})

	tokens := make([]model.DebtTokenModel, 0, len(ids))
	for i, id := range ids {
		if errs[i] != nil {
			logger.Warn("Omitting debt token %s of %s: %v", id, address, errs[i])
			continue
		}
		tokens = append(tokens, model.DebtTokenModel{
			TokenId:         id.String(),
			Owner:           address,
			Member:          model.AddressKey(infos[i].Member),
			PoolId:          infos[i].PoolId,
			DefaultedAmount: amount(infos[i].DefaultedAmount),
			MintedAt:        unixPtr(infos[i].MintedAt),
		})
	}
	return query.BuildDebts(tokens), nil
}

// GetTransactions rebuilds the fund movements of address from its ledger events.
func (r *Reconstructor) GetTransactions(ctx context.Context, address string) ([]query.TxRecord, error) {
	envs, err := r.reader.UserEvents(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}

	records := []query.TxRecord{}
	for _, env := range envs {
		ev, err := event.Decode(env)
		if err != nil {
			logger.Warn("Skipping undecodable event %s: %v", env, err)
			continue
		}
		if rec, ok := txRecord(env, ev, address); ok {
			records = append(records, rec)
		}
	}
	return query.SortTransactions(records), nil
}

// txRecord maps one decoded event to the record the store path would hold for it.
func txRecord(env *event.Envelope, ev event.Event, address string) (query.TxRecord, bool) {
	txHash := env.TxHash.Hex()
	ts := env.Timestamp

	switch e := ev.(type) {
	case event.ContributionMade:
		if model.AddressKey(e.Member) != address {
			return query.TxRecord{}, false
		}
		return query.ContributionTx(model.ContributionModel{
			TxHash: txHash, PoolId: e.PoolId, Address: address, Round: e.Round,
			Amount: amount(e.Amount), Timestamp: ts, BlockNum: env.Block, LogIndex: env.LogIndex,
		}), true
	case event.PayoutClaimed:
		if model.AddressKey(e.Winner) != address {
			return query.TxRecord{}, false
		}
		return query.PayoutTx(model.WinnerHistoryModel{
			PoolId: e.PoolId, WinnerAddress: address, PayoutAmount: amount(e.Amount), ClaimedAt: &ts,
			ClaimTxHash: txHash, ClaimBlockNum: env.Block, ClaimLogIndex: env.LogIndex,
		}), true
	case event.FundsWithdrawn:
		if model.AddressKey(e.Member) != address {
			return query.TxRecord{}, false
		}
		return query.WithdrawalTx(model.WithdrawalModel{
			TxHash: txHash, LogIndex: env.LogIndex, PoolId: e.PoolId, Address: address,
			Amount: amount(e.Amount), WithdrawType: e.WithdrawType, Timestamp: ts, BlockNum: env.Block,
		}), true
	case event.TopUpCompleted:
		if model.AddressKey(e.User) != address {
			return query.TxRecord{}, false
		}
		return query.TopUpTx(model.TopUpModel{
			TxHash: txHash, LogIndex: env.LogIndex, User: address,
			Amount: amount(e.Amount), Timestamp: ts, BlockNum: env.Block,
		}), true
	case event.FaucetClaimed:
		if model.AddressKey(e.User) != address {
			return query.TxRecord{}, false
		}
		return query.FaucetTx(model.FaucetClaimModel{
			TxHash: txHash, LogIndex: env.LogIndex, User: address,
			Amount: amount(e.Amount), Timestamp: ts, BlockNum: env.Block,
		}), true
	}
	return query.TxRecord{}, false
}

// GetReputation reads the reputation counters of address.
func (r *Reconstructor) GetReputation(ctx context.Context, address string) (*query.ReputationView, error) {
	info, err := r.reader.Reputation(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	return &query.ReputationView{
		Address:        address,
		CompletedPools: info.CompletedPools,
		DefaultCount:   info.DefaultCount,
		LastUpdated:    unixPtr(info.LastUpdated),
	}, nil
}

func amount(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}

func unix(sec uint64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// unixPtr treats zero as unset.
func unixPtr(sec uint64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := unix(sec)
	return &t
}
