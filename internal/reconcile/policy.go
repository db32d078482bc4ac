// Package reconcile serves consumer queries from the derived store and falls
// back to the ledger reconstructor when the store path fails.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/metrics"
	"github.com/Howters/ArisanOnChain-sub000/internal/query"
)

// ErrUnavailable is returned when every enabled read path failed.
var ErrUnavailable = errors.New("read model unavailable")

// Serving sources, as reported in metrics.
const (
	SourceStore  = "store"
	SourceLedger = "ledger"
)

// Policy 查询协调策略：优先派生存储，失败时整体改由链上重建。
// 一次响应只来自一个数据源
type Policy struct {
	primary  query.ReadModel
	fallback query.ReadModel
	metrics  *metrics.Metrics
}

var _ query.ReadModel = (*Policy)(nil)

// NewPolicy creates a policy. Either path may be nil when disabled, not both.
func NewPolicy(primary, fallback query.ReadModel, m *metrics.Metrics) (*Policy, error) {
	if primary == nil && fallback == nil {
		return nil, errors.New("no query path enabled")
	}
	return &Policy{primary: primary, fallback: fallback, metrics: m}, nil
}

// serve runs fn against the primary and, on any error, against the fallback.
func serve[T any](p *Policy, name string, fn func(query.ReadModel) (T, error)) (T, error) {
	var (
		zero T
		errs []error
	)

	if p.primary != nil {
		v, err := fn(p.primary)
		if err == nil {
			p.metrics.QueryServed(name, SourceStore)
			return v, nil
		}
		if p.fallback == nil {
			if errors.Is(err, query.ErrPoolNotFound) {
				return zero, err
			}
		} else {
			logger.Warn("Query %s failed on the store, falling back to the ledger: %v", name, err)
			p.metrics.QueryFallback(name)
		}
		errs = append(errs, fmt.Errorf("%s: %w", SourceStore, err))
	}

	if p.fallback != nil {
		v, err := fn(p.fallback)
		if err == nil {
			p.metrics.QueryServed(name, SourceLedger)
			return v, nil
		}
		// the ledger is authoritative for absence
		if errors.Is(err, query.ErrPoolNotFound) {
			return zero, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", SourceLedger, err))
	}

	p.metrics.QueryFailed(name)
	logger.Error("Query %s failed on every path: %v", name, errors.Join(errs...))
	return zero, fmt.Errorf("%w: %s: %w", ErrUnavailable, name, errors.Join(errs...))
}

func (p *Policy) GetPools(ctx context.Context, user string) ([]query.PoolSummary, error) {
	return serve(p, "pools", func(m query.ReadModel) ([]query.PoolSummary, error) {
		return m.GetPools(ctx, user)
	})
}

func (p *Policy) GetPoolDetail(ctx context.Context, poolId uint64, user string) (*query.PoolDetail, error) {
	return serve(p, "pool_detail", func(m query.ReadModel) (*query.PoolDetail, error) {
		return m.GetPoolDetail(ctx, poolId, user)
	})
}

func (p *Policy) GetUserDebts(ctx context.Context, address string) ([]query.DebtView, error) {
	return serve(p, "user_debts", func(m query.ReadModel) ([]query.DebtView, error) {
		return m.GetUserDebts(ctx, address)
	})
}

func (p *Policy) GetTransactions(ctx context.Context, address string) ([]query.TxRecord, error) {
	return serve(p, "transactions", func(m query.ReadModel) ([]query.TxRecord, error) {
		return m.GetTransactions(ctx, address)
	})
}

func (p *Policy) GetReputation(ctx context.Context, address string) (*query.ReputationView, error) {
	return serve(p, "reputation", func(m query.ReadModel) (*query.ReputationView, error) {
		return m.GetReputation(ctx, address)
	})
}
