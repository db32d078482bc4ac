package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/metrics"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
	"github.com/Howters/ArisanOnChain-sub000/internal/repository"
	"gorm.io/datatypes"
)

// EventProcessor 事件处理器接口
type EventProcessor interface {
	Process(c *Context, ev event.Event) error
	GetEventTypes() []string
}

// ProcessorManager 事件处理器管理器，按 (合约, 事件) 路由
type ProcessorManager struct {
	mu         sync.RWMutex
	processors map[string]EventProcessor
	metrics    *metrics.Metrics
}

// NewProcessorManager 创建处理器管理器并注册所有处理器
func NewProcessorManager(m *metrics.Metrics) *ProcessorManager {
	manager := &ProcessorManager{
		processors: make(map[string]EventProcessor),
		metrics:    m,
	}

	manager.RegisterProcessor(chain.Factory, NewPoolProcessor())
	manager.RegisterProcessor(chain.Pool, NewPoolProcessor())
	manager.RegisterProcessor(chain.Pool, NewMemberProcessor())
	manager.RegisterProcessor(chain.Pool, NewVouchProcessor())
	manager.RegisterProcessor(chain.Pool, NewPayoutProcessor())
	manager.RegisterProcessor(chain.DebtNFT, NewDebtProcessor())
	manager.RegisterProcessor(chain.ReputationRegistry, NewReputationProcessor())
	manager.RegisterProcessor(chain.Token, NewTokenProcessor())

	logger.Info("ProcessorManager initialized with %d routes", len(manager.processors))
	return manager
}

func routeKey(contract, eventType string) string {
	return contract + "." + eventType
}

// RegisterProcessor 注册事件处理器。只登记 contract 的 ABI 中确实存在的事件
func (pm *ProcessorManager) RegisterProcessor(contract string, processor EventProcessor) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, eventType := range processor.GetEventTypes() {
		if !event.Supported(contract, eventType) {
			continue
		}
		pm.processors[routeKey(contract, eventType)] = processor
		logger.Debug("Registered processor for %s.%s", contract, eventType)
	}
}

// GetProcessor 获取指定事件类型的处理器
func (pm *ProcessorManager) GetProcessor(contract, eventType string) (EventProcessor, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	processor, exists := pm.processors[routeKey(contract, eventType)]
	return processor, exists
}

// GetSupportedEventTypes 获取支持的路由列表，形如 "pool.PayoutClaimed"，按字母排序
func (pm *ProcessorManager) GetSupportedEventTypes() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	keys := make([]string, 0, len(pm.processors))
	for key := range pm.processors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Outcome 单条事件的处理结果
type Outcome int

const (
	Applied Outcome = iota
	Skipped
	Replayed
)

// ProcessEvent 在事务内处理并记账一条事件。已记账的事件返回 Replayed，不改动存储；
// 只有存储错误作为 error 返回，其余问题记为异常
func (pm *ProcessorManager) ProcessEvent(tx *repository.Tx, env *event.Envelope) (Outcome, error) {
	seen, err := tx.EventRecorded(env.Block, env.LogIndex)
	if err != nil {
		return 0, err
	}
	if seen {
		logger.Debug("Event %s already applied", env)
		return Replayed, nil
	}

	c := &Context{Tx: tx, Env: env, metrics: pm.metrics}
	ev, err := pm.route(c)
	if err != nil {
		return 0, err
	}

	record := &model.EventModel{
		ContractAddress: model.AddressKey(env.Address),
		ContractName:    env.Contract,
		EventType:       env.Name,
		TxHash:          env.TxHash.Hex(),
		BlockNum:        env.Block,
		LogIndex:        env.LogIndex,
		Data:            journalData(env, ev),
		Processed:       !c.skipped,
	}
	if _, err := tx.RecordEvent(record); err != nil {
		return 0, fmt.Errorf("failed to journal %s: %w", env, err)
	}

	if c.skipped {
		return Skipped, nil
	}
	pm.metrics.EventApplied(env.Contract, env.Name)
	return Applied, nil
}

// route 解码事件并交给对应处理器；解码失败时返回的事件为 nil
func (pm *ProcessorManager) route(c *Context) (event.Event, error) {
	env := c.Env
	ev, err := event.Decode(env)
	if err != nil {
		kind := model.AnomalyMalformed
		if errors.Is(err, event.ErrUnknownEvent) {
			kind = model.AnomalyUnknownEvent
		}
		return nil, c.Skip(kind, "%v", err)
	}

	processor, ok := pm.GetProcessor(env.Contract, env.Name)
	if !ok {
		return ev, c.Skip(model.AnomalyUnknownEvent, "no processor for %s.%s", env.Contract, env.Name)
	}

	if scoped, ok := ev.(event.PoolScoped); ok {
		pool, err := c.Tx.FindPool(scoped.Pool())
		if err != nil {
			return ev, err
		}
		if pool == nil {
			return ev, c.Skip(model.AnomalyMissingRow, "pool %d is not indexed", scoped.Pool())
		}
		if pool.PoolAddress != model.AddressKey(env.Address) {
			return ev, c.Skip(model.AnomalyForeignEmitter, "pool %d is at %s, event emitted by %s",
				pool.PoolId, pool.PoolAddress, model.AddressKey(env.Address))
		}
		c.Pool = pool
	}

	if err := processor.Process(c, ev); err != nil {
		return ev, fmt.Errorf("failed to process %s: %w", env, err)
	}
	return ev, nil
}

func journalData(env *event.Envelope, ev event.Event) datatypes.JSON {
	var payload interface{} = ev
	if ev == nil {
		payload = env.Args
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("Failed to marshal event data for %s: %v", env, err)
		return nil
	}
	return datatypes.JSON(data)
}
