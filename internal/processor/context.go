package processor

import (
	"fmt"
	"math/big"

	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/metrics"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
	"github.com/Howters/ArisanOnChain-sub000/internal/repository"
	"github.com/shopspring/decimal"
)

// Context is the state handed to a processor for one envelope.
type Context struct {
	Tx   *repository.Tx
	Env  *event.Envelope
	Pool *model.PoolModel // set for pool contract events after the emitter check

	metrics *metrics.Metrics
	skipped bool
}

// Anomaly records an operator-visible anomaly and lets processing continue.
func (c *Context) Anomaly(kind model.AnomalyKind, format string, args ...interface{}) error {
	detail := fmt.Sprintf(format, args...)
	logger.Warn("Anomaly %s at %s (tx %s): %s", kind, c.Env, c.Env.TxHash.Hex(), detail)
	c.metrics.Anomaly(string(kind))

	return c.Tx.RecordAnomaly(&model.AnomalyModel{
		BlockNum:     c.Env.Block,
		LogIndex:     c.Env.LogIndex,
		TxHash:       c.Env.TxHash.Hex(),
		ContractName: c.Env.Contract,
		EventType:    c.Env.Name,
		Kind:         kind,
		Detail:       detail,
	})
}

// Skip records an anomaly and marks the event as not applied.
func (c *Context) Skip(kind model.AnomalyKind, format string, args ...interface{}) error {
	c.skipped = true
	return c.Anomaly(kind, format, args...)
}

// transition moves m to status along the member state machine. Re-entering the
// current state is a silent no-op; any other illegal edge is skipped as an anomaly.
func (c *Context) transition(m *model.MemberModel, to model.MemberStatus) (bool, error) {
	if m.Status == to {
		return false, nil
	}
	if !model.CanTransition(m.Status, to) {
		return false, c.Skip(model.AnomalyIllegalTransition, "member %s of pool %d: %s -> %s",
			m.Address, m.PoolId, m.Status, to)
	}
	m.Status = to
	return true, nil
}

// advanceRound moves the pool's current round forward. RoundStarted only counts
// while the pool is active; a determined winner also moves a pending pool.
func (c *Context) advanceRound(round uint64, allowPending bool) error {
	p := c.Pool
	if p.Status != model.PoolStatusActive && !(allowPending && p.Status == model.PoolStatusPending) {
		return c.Anomaly(model.AnomalyIllegalTransition, "pool %d is %s, round %d not applied", p.PoolId, p.Status, round)
	}
	if round < p.CurrentRound {
		return c.Anomaly(model.AnomalyStaleCounter, "pool %d round %d is behind current round %d", p.PoolId, round, p.CurrentRound)
	}
	if round == p.CurrentRound {
		return nil
	}
	p.CurrentRound = round
	return c.Tx.SavePool(p)
}

func amount(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}
