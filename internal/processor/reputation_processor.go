package processor

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
)

// ReputationProcessor 信誉事件处理器。链上给出的是累计值，直接覆盖而不是累加
type ReputationProcessor struct{}

// NewReputationProcessor 创建信誉事件处理器
func NewReputationProcessor() *ReputationProcessor {
	return &ReputationProcessor{}
}

// Process 处理信誉相关事件
func (p *ReputationProcessor) Process(c *Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.PoolCompletionRecorded:
		return p.set(c, model.AddressKey(e.User), e.TotalCompleted, func(r *model.ReputationModel) *uint64 { return &r.CompletedPools })
	case event.DefaultRecorded:
		return p.set(c, model.AddressKey(e.User), e.TotalDefaults, func(r *model.ReputationModel) *uint64 { return &r.DefaultCount })
	default:
		logger.Warn("Unknown reputation event type: %s", ev.EventName())
		return nil
	}
}

// set 写入累计值，计数不回退
func (p *ReputationProcessor) set(c *Context, addr string, total uint64, counter func(*model.ReputationModel) *uint64) error {
	r, err := c.Tx.FindReputation(addr)
	if err != nil {
		return err
	}
	if r == nil {
		r = &model.ReputationModel{Address: addr}
	}

	field := counter(r)
	if total < *field {
		return c.Skip(model.AnomalyStaleCounter, "%s counter for %s would decrease from %d to %d", c.Env.Name, addr, *field, total)
	}
	*field = total
	r.LastUpdated = c.Env.Timestamp
	return c.Tx.SaveReputation(r)
}

// GetEventTypes 获取支持的事件类型
func (p *ReputationProcessor) GetEventTypes() []string {
	return []string{"PoolCompletionRecorded", "DefaultRecorded"}
}
