package processor

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DebtProcessor 债务 NFT 事件处理器
type DebtProcessor struct{}

// NewDebtProcessor 创建债务 NFT 事件处理器
func NewDebtProcessor() *DebtProcessor {
	return &DebtProcessor{}
}

// Process 处理债务 NFT 相关事件
func (p *DebtProcessor) Process(c *Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.DebtNFTMinted:
		return p.processDebtNFTMinted(c, e)
	case event.Transfer:
		return p.processTransfer(c, e)
	default:
		logger.Warn("Unknown debt event type: %s", ev.EventName())
		return nil
	}
}

// processDebtNFTMinted 登记债务 NFT，并关联最近一条未关联的违约记录
func (p *DebtProcessor) processDebtNFTMinted(c *Context, e event.DebtNFTMinted) error {
	tokenId := e.TokenId.String()
	member := model.AddressKey(e.Member)
	mintedAt := c.Env.Timestamp

	token, err := c.Tx.FindDebtToken(tokenId)
	if err != nil {
		return err
	}
	if token != nil && token.Member != "" {
		return c.Skip(model.AnomalyIllegalTransition, "debt token %s already minted", tokenId)
	}
	if token == nil {
		// 先到的 Transfer 会留下一条已记录持有人的占位行
		token = &model.DebtTokenModel{TokenId: tokenId, Owner: member}
	}
	token.Member = member
	token.PoolId = e.PoolId
	token.DefaultedAmount = amount(e.DefaultedAmount)
	token.MintedAt = &mintedAt
	if err := c.Tx.SaveDebtToken(token); err != nil {
		return err
	}

	record, err := c.Tx.LatestUnlinkedDefault(e.PoolId, member)
	if err != nil {
		return err
	}
	if record == nil {
		logger.Debug("No unlinked default record for %s in pool %d", member, e.PoolId)
		return nil
	}
	record.DebtNftId = &tokenId
	return c.Tx.SaveDefaultRecord(record)
}

// processTransfer 更新持有人；铸造产生的 Transfer(from=0) 忽略
func (p *DebtProcessor) processTransfer(c *Context, e event.Transfer) error {
	if e.From == (common.Address{}) {
		return nil
	}
	tokenId := e.TokenId.String()
	token, err := c.Tx.FindDebtToken(tokenId)
	if err != nil {
		return err
	}
	if token == nil {
		if err := c.Anomaly(model.AnomalyMissingRow, "transfer of unknown debt token %s", tokenId); err != nil {
			return err
		}
		token = &model.DebtTokenModel{TokenId: tokenId, DefaultedAmount: decimal.Zero}
	}
	token.Owner = model.AddressKey(e.To)
	return c.Tx.SaveDebtToken(token)
}

// GetEventTypes 获取支持的事件类型
func (p *DebtProcessor) GetEventTypes() []string {
	return []string{"DebtNFTMinted", "Transfer"}
}
