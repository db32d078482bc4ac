package processor

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
)

// TokenProcessor 代币充值与水龙头事件处理器
type TokenProcessor struct{}

// NewTokenProcessor 创建代币事件处理器
func NewTokenProcessor() *TokenProcessor {
	return &TokenProcessor{}
}

// Process 处理代币相关事件
func (p *TokenProcessor) Process(c *Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.TopUpCompleted:
		_, err := c.Tx.InsertTopUp(&model.TopUpModel{
			TxHash:    c.Env.TxHash.Hex(),
			LogIndex:  c.Env.LogIndex,
			User:      model.AddressKey(e.User),
			Amount:    amount(e.Amount),
			Timestamp: c.Env.Timestamp,
			BlockNum:  c.Env.Block,
		})
		return err
	case event.FaucetClaimed:
		_, err := c.Tx.InsertFaucetClaim(&model.FaucetClaimModel{
			TxHash:    c.Env.TxHash.Hex(),
			LogIndex:  c.Env.LogIndex,
			User:      model.AddressKey(e.User),
			Amount:    amount(e.Amount),
			Timestamp: c.Env.Timestamp,
			BlockNum:  c.Env.Block,
		})
		return err
	default:
		logger.Warn("Unknown token event type: %s", ev.EventName())
		return nil
	}
}

// GetEventTypes 获取支持的事件类型
func (p *TokenProcessor) GetEventTypes() []string {
	return []string{"TopUpCompleted", "FaucetClaimed"}
}
