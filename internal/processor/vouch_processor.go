package processor

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
)

// VouchProcessor 担保事件处理器
type VouchProcessor struct{}

// NewVouchProcessor 创建担保事件处理器
func NewVouchProcessor() *VouchProcessor {
	return &VouchProcessor{}
}

// Process 处理担保相关事件
func (p *VouchProcessor) Process(c *Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.MemberVouched:
		return p.processMemberVouched(c, e)
	case event.VouchReturned:
		return p.processVouchReturned(c, e)
	default:
		logger.Warn("Unknown vouch event type: %s", ev.EventName())
		return nil
	}
}

// processMemberVouched 追加一条未退还的担保
func (p *VouchProcessor) processMemberVouched(c *Context, e event.MemberVouched) error {
	_, err := c.Tx.InsertVouch(&model.VouchModel{
		PoolId:    e.PoolId,
		Voucher:   model.AddressKey(e.Voucher),
		Vouchee:   model.AddressKey(e.Vouchee),
		VouchedAt: c.Env.Timestamp,
		BlockNum:  c.Env.Block,
		LogIndex:  c.Env.LogIndex,
		Amount:    amount(e.Amount),
	})
	return err
}

// processVouchReturned 每个事件只关闭一笔未退还的担保：优先金额相同的最早一笔，否则取最早一笔
func (p *VouchProcessor) processVouchReturned(c *Context, e event.VouchReturned) error {
	voucher, vouchee := model.AddressKey(e.Voucher), model.AddressKey(e.Vouchee)
	open, err := c.Tx.OutstandingVouches(e.PoolId, voucher, vouchee)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return c.Skip(model.AnomalyMissingRow, "no outstanding vouch from %s for %s in pool %d", voucher, vouchee, e.PoolId)
	}

	returned := amount(e.Amount)
	v := open[0]
	matched := false
	for _, candidate := range open {
		if candidate.Amount.Equal(returned) {
			v = candidate
			matched = true
			break
		}
	}
	if !matched {
		logger.Warn("Pool %d vouch return of %s from %s for %s matches no outstanding amount, closing the oldest (%s)",
			e.PoolId, returned, voucher, vouchee, v.Amount)
	}

	returnedAt := c.Env.Timestamp
	v.Returned = true
	v.ReturnedAt = &returnedAt
	return c.Tx.SaveVouch(&v)
}

// GetEventTypes 获取支持的事件类型
func (p *VouchProcessor) GetEventTypes() []string {
	return []string{"MemberVouched", "VouchReturned"}
}
