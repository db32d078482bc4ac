package processor

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
)

// PoolProcessor 池生命周期事件处理器
type PoolProcessor struct{}

// NewPoolProcessor 创建池事件处理器
func NewPoolProcessor() *PoolProcessor {
	return &PoolProcessor{}
}

// Process 处理池相关事件
func (p *PoolProcessor) Process(c *Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.PoolCreated:
		return p.processPoolCreated(c, e)
	case event.PoolActivated:
		return p.processPoolActivated(c, e)
	case event.RoundStarted:
		return c.advanceRound(e.Round, false)
	case event.PoolCompleted:
		return p.processStatus(c, model.PoolStatusCompleted, model.PoolStatusActive)
	case event.PoolCancelled:
		return p.processStatus(c, model.PoolStatusCancelled, model.PoolStatusPending, model.PoolStatusActive)
	case event.RotationOrderSet:
		return p.processRotationOrderSet(c, e)
	default:
		logger.Warn("Unknown pool event type: %s", ev.EventName())
		return nil
	}
}

// processPoolCreated 创建池并把管理员登记为已批准成员
func (p *PoolProcessor) processPoolCreated(c *Context, e event.PoolCreated) error {
	existing, err := c.Tx.FindPool(e.PoolId)
	if err != nil {
		return err
	}
	if existing != nil {
		return c.Skip(model.AnomalyIllegalTransition, "pool %d already exists at %s", e.PoolId, existing.PoolAddress)
	}

	admin := model.AddressKey(e.Admin)
	pool := &model.PoolModel{
		CreatedAt:          c.Env.Timestamp,
		PoolId:             e.PoolId,
		PoolAddress:        model.AddressKey(e.PoolAddress),
		Name:               e.PoolName,
		Category:           e.Category,
		Admin:              admin,
		ContributionAmount: amount(e.ContributionAmount),
		SecurityDeposit:    amount(e.SecurityDeposit),
		MaxMembers:         e.MaxMembers,
		PaymentDay:         e.PaymentDay,
		VouchRequired:      e.VouchRequired,
		RotationPeriod:     e.RotationPeriod,
		Status:             model.PoolStatusPending,
		CreatedBlock:       c.Env.Block,
	}
	if err := c.Tx.SavePool(pool); err != nil {
		return err
	}

	joinedAt := c.Env.Timestamp
	if err := c.Tx.SaveMember(&model.MemberModel{
		PoolId:   e.PoolId,
		Address:  admin,
		Status:   model.MemberStatusApproved,
		JoinedAt: &joinedAt,
	}); err != nil {
		return err
	}

	logger.Info("Pool %d created at %s by %s", e.PoolId, pool.PoolAddress, admin)
	return nil
}

// processPoolActivated Pending -> Active，开始第一轮
func (p *PoolProcessor) processPoolActivated(c *Context, e event.PoolActivated) error {
	pool := c.Pool
	switch pool.Status {
	case model.PoolStatusActive:
		return nil
	case model.PoolStatusPending:
	default:
		return c.Skip(model.AnomalyIllegalTransition, "pool %d: %s -> %s", pool.PoolId, pool.Status, model.PoolStatusActive)
	}

	pool.Status = model.PoolStatusActive
	pool.TotalRounds = e.TotalRounds
	if pool.CurrentRound < 1 {
		pool.CurrentRound = 1
	}
	if err := c.Tx.SavePool(pool); err != nil {
		return err
	}
	logger.Info("Pool %d activated with %d rounds", pool.PoolId, e.TotalRounds)
	return nil
}

// processStatus 从允许的状态切换到终止状态
func (p *PoolProcessor) processStatus(c *Context, to model.PoolStatus, from ...model.PoolStatus) error {
	pool := c.Pool
	if pool.Status == to {
		return nil
	}
	allowed := false
	for _, s := range from {
		if pool.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return c.Skip(model.AnomalyIllegalTransition, "pool %d: %s -> %s", pool.PoolId, pool.Status, to)
	}

	pool.Status = to
	if err := c.Tx.SavePool(pool); err != nil {
		return err
	}
	logger.Info("Pool %d is now %s", pool.PoolId, to)
	return nil
}

// processRotationOrderSet 按位置覆盖轮换顺序
func (p *PoolProcessor) processRotationOrderSet(c *Context, e event.RotationOrderSet) error {
	for i, member := range e.Order {
		if err := c.Tx.UpsertRotationEntry(e.PoolId, i, model.AddressKey(member)); err != nil {
			return err
		}
	}
	c.Pool.RotationSize = len(e.Order)
	return c.Tx.SavePool(c.Pool)
}

// GetEventTypes 获取支持的事件类型
func (p *PoolProcessor) GetEventTypes() []string {
	return []string{"PoolCreated", "PoolActivated", "RoundStarted", "PoolCompleted", "PoolCancelled", "RotationOrderSet"}
}
