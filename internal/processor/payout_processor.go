package processor

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
	"github.com/shopspring/decimal"
)

// PayoutProcessor 中奖与领取事件处理器
type PayoutProcessor struct{}

// NewPayoutProcessor 创建中奖事件处理器
func NewPayoutProcessor() *PayoutProcessor {
	return &PayoutProcessor{}
}

// Process 处理中奖相关事件
func (p *PayoutProcessor) Process(c *Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.WinnerDetermined:
		return p.processWinnerDetermined(c, e)
	case event.PayoutClaimed:
		return p.processPayoutClaimed(c, e)
	default:
		logger.Warn("Unknown payout event type: %s", ev.EventName())
		return nil
	}
}

// processWinnerDetermined 创建本轮中奖记录并推进当前轮次
func (p *PayoutProcessor) processWinnerDetermined(c *Context, e event.WinnerDetermined) error {
	winner := model.AddressKey(e.Winner)
	w, err := c.Tx.FindWinner(e.PoolId, e.Round)
	if err != nil {
		return err
	}
	switch {
	case w == nil:
		if err := c.Tx.SaveWinner(&model.WinnerHistoryModel{
			PoolId:        e.PoolId,
			Round:         e.Round,
			WinnerAddress: winner,
			PayoutAmount:  decimal.Zero,
		}); err != nil {
			return err
		}
	case w.WinnerAddress != winner:
		return c.Skip(model.AnomalyIllegalTransition, "pool %d round %d already won by %s, not %s",
			e.PoolId, e.Round, w.WinnerAddress, winner)
	}

	logger.Info("Pool %d round %d won by %s", e.PoolId, e.Round, winner)
	return c.advanceRound(e.Round, true)
}

// processPayoutClaimed 在中奖记录上登记领取，并记入中奖者的可提余额。只更新已有记录
func (p *PayoutProcessor) processPayoutClaimed(c *Context, e event.PayoutClaimed) error {
	winner := model.AddressKey(e.Winner)

	w, err := c.Tx.FindWinner(e.PoolId, c.Pool.CurrentRound)
	if err != nil {
		return err
	}
	if w == nil || w.ClaimedAt != nil || w.WinnerAddress != winner {
		// 当前轮次对不上时，退回到该中奖者最近一次未领取的记录
		latest, err := c.Tx.LatestUnclaimedWin(e.PoolId, winner)
		if err != nil {
			return err
		}
		if latest == nil {
			if w != nil && w.ClaimedAt != nil && w.WinnerAddress == winner {
				return c.Skip(model.AnomalyIllegalTransition, "pool %d round %d payout already claimed in %s", e.PoolId, w.Round, w.ClaimTxHash)
			}
			return c.Skip(model.AnomalyMissingRow, "payout claimed by %s in pool %d without an unclaimed win (current round %d)",
				winner, e.PoolId, c.Pool.CurrentRound)
		}
		logger.Info("Pool %d payout of %s resolved to round %d (current round %d)", e.PoolId, winner, latest.Round, c.Pool.CurrentRound)
		w = latest
	}

	claimedAt := c.Env.Timestamp
	payout := amount(e.Amount)
	w.PayoutAmount = payout
	w.ClaimedAt = &claimedAt
	w.ClaimTxHash = c.Env.TxHash.Hex()
	w.ClaimBlockNum = c.Env.Block
	w.ClaimLogIndex = c.Env.LogIndex
	if err := c.Tx.SaveWinner(w); err != nil {
		return err
	}

	m, err := c.Tx.FindMember(e.PoolId, winner)
	if err != nil {
		return err
	}
	if m == nil {
		return c.Anomaly(model.AnomalyMissingRow, "payout winner %s is not a member of pool %d", winner, e.PoolId)
	}
	m.HasClaimedPayout = true
	m.LiquidBalance = m.LiquidBalance.Add(payout)
	return c.Tx.SaveMember(m)
}

// GetEventTypes 获取支持的事件类型
func (p *PayoutProcessor) GetEventTypes() []string {
	return []string{"WinnerDetermined", "PayoutClaimed"}
}
