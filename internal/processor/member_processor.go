package processor

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
	"github.com/shopspring/decimal"
)

// MemberProcessor 成员状态机、缴款与提现事件处理器
type MemberProcessor struct{}

// NewMemberProcessor 创建成员事件处理器
func NewMemberProcessor() *MemberProcessor {
	return &MemberProcessor{}
}

// Process 处理成员相关事件
func (p *MemberProcessor) Process(c *Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.MemberRequested:
		return p.processMemberRequested(c, e)
	case event.MemberApproved:
		return p.processMemberApproved(c, e)
	case event.SecurityDepositLocked:
		return p.processSecurityDepositLocked(c, e)
	case event.MemberReportedDefault:
		return p.processMemberReportedDefault(c, e)
	case event.MemberRemoved:
		return p.processMemberRemoved(c, e)
	case event.DefaultResolved:
		return p.processDefaultResolved(c, e)
	case event.ContributionMade:
		return p.processContributionMade(c, e)
	case event.FundsWithdrawn:
		return p.processFundsWithdrawn(c, e)
	default:
		logger.Warn("Unknown member event type: %s", ev.EventName())
		return nil
	}
}

// processMemberRequested 申请加入：None -> Pending
func (p *MemberProcessor) processMemberRequested(c *Context, e event.MemberRequested) error {
	addr := model.AddressKey(e.Member)
	m, err := c.Tx.FindMember(e.PoolId, addr)
	if err != nil {
		return err
	}
	if m == nil {
		m = &model.MemberModel{PoolId: e.PoolId, Address: addr, Status: model.MemberStatusNone}
	}
	changed, err := c.transition(m, model.MemberStatusPending)
	if err != nil || !changed {
		return err
	}
	return c.Tx.SaveMember(m)
}

// processMemberApproved Pending -> Approved，记录加入时间
func (p *MemberProcessor) processMemberApproved(c *Context, e event.MemberApproved) error {
	addr := model.AddressKey(e.Member)
	m, err := c.Tx.FindMember(e.PoolId, addr)
	if err != nil {
		return err
	}
	if m == nil {
		if err := c.Anomaly(model.AnomalyMissingRow, "approved member %s of pool %d was never requested", addr, e.PoolId); err != nil {
			return err
		}
		m = &model.MemberModel{PoolId: e.PoolId, Address: addr, Status: model.MemberStatusPending}
	}
	changed, err := c.transition(m, model.MemberStatusApproved)
	if err != nil || !changed {
		return err
	}
	joinedAt := c.Env.Timestamp
	m.JoinedAt = &joinedAt
	return c.Tx.SaveMember(m)
}

// processSecurityDepositLocked Approved -> Active，lockedStake = amount
func (p *MemberProcessor) processSecurityDepositLocked(c *Context, e event.SecurityDepositLocked) error {
	addr := model.AddressKey(e.Member)
	m, err := c.Tx.FindMember(e.PoolId, addr)
	if err != nil {
		return err
	}
	if m == nil {
		if err := c.Anomaly(model.AnomalyMissingRow, "deposit locked for unknown member %s of pool %d", addr, e.PoolId); err != nil {
			return err
		}
		joinedAt := c.Env.Timestamp
		m = &model.MemberModel{PoolId: e.PoolId, Address: addr, Status: model.MemberStatusApproved, JoinedAt: &joinedAt}
	}
	changed, err := c.transition(m, model.MemberStatusActive)
	if err != nil || !changed {
		return err
	}
	m.LockedStake = amount(e.Amount)
	return c.Tx.SaveMember(m)
}

// processMemberReportedDefault Active -> Defaulted；押金已在链上没收
func (p *MemberProcessor) processMemberReportedDefault(c *Context, e event.MemberReportedDefault) error {
	m, err := p.requireMember(c, e.PoolId, model.AddressKey(e.Member))
	if err != nil || m == nil {
		return err
	}
	changed, err := c.transition(m, model.MemberStatusDefaulted)
	if err != nil || !changed {
		return err
	}
	m.LockedStake = decimal.Zero
	logger.Info("Member %s of pool %d defaulted (reported by %s)", m.Address, m.PoolId, model.AddressKey(e.ReportedBy))
	return c.Tx.SaveMember(m)
}

// processMemberRemoved 移除成员：Pending|Approved -> Removed
func (p *MemberProcessor) processMemberRemoved(c *Context, e event.MemberRemoved) error {
	m, err := p.requireMember(c, e.PoolId, model.AddressKey(e.Member))
	if err != nil || m == nil {
		return err
	}
	changed, err := c.transition(m, model.MemberStatusRemoved)
	if err != nil || !changed {
		return err
	}
	return c.Tx.SaveMember(m)
}

// processDefaultResolved 记录违约处理审计
func (p *MemberProcessor) processDefaultResolved(c *Context, e event.DefaultResolved) error {
	return c.Tx.InsertDefaultRecord(&model.DefaultRecordModel{
		PoolId:          e.PoolId,
		Address:         model.AddressKey(e.Member),
		ResolvedAt:      c.Env.Timestamp,
		RecoveredAmount: amount(e.RecoveredAmount),
		BlockNum:        c.Env.Block,
		LogIndex:        c.Env.LogIndex,
	})
}

// processContributionMade 追加缴款记录，重复投递按自然键去重
func (p *MemberProcessor) processContributionMade(c *Context, e event.ContributionMade) error {
	addr := model.AddressKey(e.Member)
	inserted, err := c.Tx.InsertContribution(&model.ContributionModel{
		TxHash:    c.Env.TxHash.Hex(),
		PoolId:    e.PoolId,
		Address:   addr,
		Round:     e.Round,
		Amount:    amount(e.Amount),
		Timestamp: c.Env.Timestamp,
		BlockNum:  c.Env.Block,
		LogIndex:  c.Env.LogIndex,
	})
	if err != nil {
		return err
	}
	if !inserted {
		logger.Debug("Contribution of %s to pool %d round %d already recorded", addr, e.PoolId, e.Round)
		return nil
	}

	m, err := c.Tx.FindMember(e.PoolId, addr)
	if err != nil {
		return err
	}
	if m == nil {
		return c.Anomaly(model.AnomalyMissingRow, "contribution from unknown member %s of pool %d", addr, e.PoolId)
	}
	return nil
}

// processFundsWithdrawn 记录提现并扣减对应余额
func (p *MemberProcessor) processFundsWithdrawn(c *Context, e event.FundsWithdrawn) error {
	addr := model.AddressKey(e.Member)
	if e.WithdrawType != model.WithdrawTypeLiquid && e.WithdrawType != model.WithdrawTypeStake {
		return c.Skip(model.AnomalyMalformed, "unknown withdraw type %d", e.WithdrawType)
	}

	inserted, err := c.Tx.InsertWithdrawal(&model.WithdrawalModel{
		TxHash:       c.Env.TxHash.Hex(),
		LogIndex:     c.Env.LogIndex,
		PoolId:       e.PoolId,
		Address:      addr,
		Amount:       amount(e.Amount),
		WithdrawType: e.WithdrawType,
		Timestamp:    c.Env.Timestamp,
		BlockNum:     c.Env.Block,
	})
	if err != nil || !inserted {
		return err
	}

	m, err := p.requireMember(c, e.PoolId, addr)
	if err != nil || m == nil {
		return err
	}

	balance := &m.LiquidBalance
	if e.WithdrawType == model.WithdrawTypeStake {
		balance = &m.LockedStake
	}
	next := balance.Sub(amount(e.Amount))
	if next.IsNegative() {
		if err := c.Anomaly(model.AnomalyNegativeBalance, "withdrawal of %s exceeds balance %s of %s in pool %d",
			e.Amount, balance.String(), addr, e.PoolId); err != nil {
			return err
		}
		next = decimal.Zero
	}
	*balance = next
	return c.Tx.SaveMember(m)
}

// requireMember 加载必须已存在的成员，不存在时跳过该事件
func (p *MemberProcessor) requireMember(c *Context, poolId uint64, addr string) (*model.MemberModel, error) {
	m, err := c.Tx.FindMember(poolId, addr)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, c.Skip(model.AnomalyMissingRow, "member %s of pool %d not found", addr, poolId)
	}
	return m, nil
}

// GetEventTypes 获取支持的事件类型
func (p *MemberProcessor) GetEventTypes() []string {
	return []string{
		"MemberRequested", "MemberApproved", "SecurityDepositLocked", "MemberReportedDefault",
		"MemberRemoved", "DefaultResolved", "ContributionMade", "FundsWithdrawn",
	}
}
