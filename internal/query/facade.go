package query

import (
	"context"

	"github.com/Howters/ArisanOnChain-sub000/internal/model"
	"github.com/Howters/ArisanOnChain-sub000/internal/repository"
)

// Facade serves the read model from the derived store. Every query runs in one snapshot transaction.
type Facade struct {
	store *repository.Store
}

var _ ReadModel = (*Facade)(nil)

// NewFacade returns a store-backed ReadModel.
func NewFacade(store *repository.Store) *Facade {
	return &Facade{store: store}
}

// GetPools lists every pool, or only the pools user administers or belongs to.
func (f *Facade) GetPools(ctx context.Context, user string) ([]PoolSummary, error) {
	summaries := []PoolSummary{}
	err := f.store.View(ctx, func(tx *repository.Tx) error {
		var (
			pools []model.PoolModel
			err   error
		)
		if user == "" {
			pools, err = tx.ListPools()
		} else {
			pools, err = tx.ListPoolsForAddress(user)
		}
		if err != nil {
			return err
		}

		for _, p := range pools {
			records := &PoolRecords{Pool: p, Contributed: map[string]bool{}}
			if records.Members, err = tx.ListMembers(p.PoolId); err != nil {
				return err
			}
			if user != "" {
				ok, err := tx.HasContribution(p.PoolId, p.CurrentRound, user)
				if err != nil {
					return err
				}
				records.Contributed[user] = ok
			}
			summaries = append(summaries, BuildSummary(records, user))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetPoolDetail returns the pool with members, round history, rotation and vouches.
func (f *Facade) GetPoolDetail(ctx context.Context, poolId uint64, user string) (*PoolDetail, error) {
	var detail *PoolDetail
	err := f.store.View(ctx, func(tx *repository.Tx) error {
		records, err := loadPool(tx, poolId)
		if err != nil {
			return err
		}
		detail = BuildDetail(records, user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func loadPool(tx *repository.Tx, poolId uint64) (*PoolRecords, error) {
	pool, err := tx.FindPool(poolId)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrPoolNotFound
	}

	records := &PoolRecords{Pool: *pool, Contributed: map[string]bool{}}
	if records.Members, err = tx.ListMembers(poolId); err != nil {
		return nil, err
	}
	if records.Winners, err = tx.ListWinners(poolId); err != nil {
		return nil, err
	}
	if records.Vouches, err = tx.ListVouches(poolId); err != nil {
		return nil, err
	}

	rotation, err := tx.ListRotation(poolId, pool.RotationSize)
	if err != nil {
		return nil, err
	}
	for _, e := range rotation {
		records.Rotation = append(records.Rotation, e.MemberAddress)
	}

	contributors, err := tx.ContributorsOf(poolId, pool.CurrentRound)
	if err != nil {
		return nil, err
	}
	for _, addr := range contributors {
		records.Contributed[addr] = true
	}
	return records, nil
}

// GetUserDebts returns the debt tokens currently owned by address.
func (f *Facade) GetUserDebts(ctx context.Context, address string) ([]DebtView, error) {
	var tokens []model.DebtTokenModel
	err := f.store.View(ctx, func(tx *repository.Tx) error {
		var err error
		tokens, err = tx.ListDebtTokensOwnedBy(address)
		return err
	})
	if err != nil {
		return nil, err
	}
	return BuildDebts(tokens), nil
}

// GetTransactions returns every fund movement of address, newest first.
func (f *Facade) GetTransactions(ctx context.Context, address string) ([]TxRecord, error) {
	records := []TxRecord{}
	err := f.store.View(ctx, func(tx *repository.Tx) error {
		contributions, err := tx.ListContributionsBy(address)
		if err != nil {
			return err
		}
		for _, c := range contributions {
			records = append(records, ContributionTx(c))
		}

		payouts, err := tx.ListPayoutsTo(address)
		if err != nil {
			return err
		}
		for _, w := range payouts {
			records = append(records, PayoutTx(w))
		}

		withdrawals, err := tx.ListWithdrawalsBy(address)
		if err != nil {
			return err
		}
		for _, w := range withdrawals {
			records = append(records, WithdrawalTx(w))
		}

		topUps, err := tx.ListTopUpsBy(address)
		if err != nil {
			return err
		}
		for _, t := range topUps {
			records = append(records, TopUpTx(t))
		}

		claims, err := tx.ListFaucetClaimsBy(address)
		if err != nil {
			return err
		}
		for _, c := range claims {
			records = append(records, FaucetTx(c))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return SortTransactions(records), nil
}

// GetReputation returns the reputation counters of address.
func (f *Facade) GetReputation(ctx context.Context, address string) (*ReputationView, error) {
	view := &ReputationView{Address: address}
	err := f.store.View(ctx, func(tx *repository.Tx) error {
		r, err := tx.FindReputation(address)
		if err != nil || r == nil {
			return err
		}
		view.CompletedPools = r.CompletedPools
		view.DefaultCount = r.DefaultCount
		view.LastUpdated = utc(&r.LastUpdated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}
