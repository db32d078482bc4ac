package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Howters/ArisanOnChain-sub000/internal/config"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Registry maps logs to the contract that understands them. Fixed contracts are
// matched by address; pool contracts are created by the factory at runtime and
// are matched by event signature.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
	byAddress map[common.Address]*Contract
	chainId   int64
}

// NewRegistry 初始化所有启用的合约
func NewRegistry(cfg config.ChainConfig) (*Registry, error) {
	r := &Registry{
		contracts: make(map[string]*Contract),
		byAddress: make(map[common.Address]*Contract),
		chainId:   cfg.ChainId,
	}

	for _, name := range []string{Factory, DebtNFT, ReputationRegistry, Token} {
		contractCfg, ok := cfg.Contracts[name]
		if !ok || !contractCfg.Enabled {
			logger.Info("Skipping disabled contract: %s", name)
			continue
		}
		if contractCfg.Address == "" {
			return nil, fmt.Errorf("contract %s is enabled but has no address", name)
		}

		contract, err := NewContract(name, contractCfg, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create contract %s: %w", name, err)
		}
		r.contracts[name] = contract
		r.byAddress[contract.GetAddress()] = contract
		logger.Info("Registered contract %s at %s", name, contract.GetAddress().Hex())
	}

	// pool 合约没有固定地址，只加载 ABI
	poolCfg := cfg.Contracts[Pool]
	poolCfg.Address = ""
	pool, err := NewContract(Pool, poolCfg, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract %s: %w", Pool, err)
	}
	r.contracts[Pool] = pool

	return r, nil
}

// GetContract 获取指定合约
func (r *Registry) GetContract(name string) (*Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contract, exists := r.contracts[name]
	if !exists {
		return nil, fmt.Errorf("contract %s not found", name)
	}
	return contract, nil
}

// Classify returns the contract responsible for log and the decoded event name.
// ok is false when no registered contract knows the emitter or the signature;
// a known contract with an unknown signature returns that contract and "".
func (r *Registry) Classify(log types.Log) (contract *Contract, eventName string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, found := r.byAddress[log.Address]; found {
		name, _ := c.EventName(log)
		return c, name, true
	}
	pool := r.contracts[Pool]
	if name, found := pool.EventName(log); found {
		return pool, name, true
	}
	return nil, "", false
}

// StaticAddresses returns the addresses of every fixed contract in a stable order.
func (r *Registry) StaticAddresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addrs := make([]common.Address, 0, len(r.byAddress))
	for addr := range r.byAddress {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })
	return addrs
}

// PoolTopics returns the signatures of every pool contract event.
func (r *Registry) PoolTopics() []common.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.contracts[Pool].GetABI().Events
	topics := make([]common.Hash, 0, len(events))
	for _, ev := range events {
		topics = append(topics, ev.ID)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Big().Cmp(topics[j].Big()) < 0 })
	return topics
}

// StartBlock is the lowest deployment block among the fixed contracts.
func (r *Registry) StartBlock() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var start uint64
	first := true
	for _, c := range r.byAddress {
		if first || c.GetBlockNum() < start {
			start = c.GetBlockNum()
			first = false
		}
	}
	return start
}

// GetChainId 获取链ID
func (r *Registry) GetChainId() int64 {
	return r.chainId
}

// Manager 单链管理器
type Manager struct {
	*Registry

	client *ethclient.Client // 链客户端
	config config.ChainConfig
}

// NewManager 创建单链管理器
func NewManager(ctx context.Context, cfg config.ChainConfig) (*Manager, error) {
	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize contracts: %w", err)
	}

	client, err := createChainClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	return &Manager{Registry: registry, client: client, config: cfg}, nil
}

// createChainClient 创建链客户端
func createChainClient(ctx context.Context, cfg config.ChainConfig) (*ethclient.Client, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}

	supported := false
	for _, chainType := range []string{"ethereum", "lisk", "polygon", "arbitrum", "optimism", "base"} {
		if cfg.ChainType == chainType {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported chain type %s", cfg.ChainType)
	}

	logger.Info("Creating %s client connection (chain id: %d)", cfg.ChainType, cfg.ChainId)
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.ChainType, err)
	}

	// 测试连接
	chainId, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("client connection test failed (%s): %w", cfg.ChainType, err)
	}
	if cfg.ChainId != 0 && chainId.Int64() != cfg.ChainId {
		client.Close()
		return nil, fmt.Errorf("rpc reports chain id %s, configured %d", chainId, cfg.ChainId)
	}

	logger.Info("Successfully created %s client", cfg.ChainType)
	return client, nil
}

// GetClient 获取客户端
func (m *Manager) GetClient() *ethclient.Client {
	return m.client
}

// GetHealthStatus 获取健康状态
func (m *Manager) GetHealthStatus(ctx context.Context) map[string]interface{} {
	health := map[string]interface{}{
		"chain_type":    m.config.ChainType,
		"chain_id":      m.config.ChainId,
		"client_status": "connected",
	}
	if _, err := m.client.BlockNumber(ctx); err != nil {
		health["client_status"] = "disconnected"
	}

	contracts := make(map[string]interface{})
	for _, addr := range m.StaticAddresses() {
		c := m.byAddress[addr]
		contracts[c.GetName()] = map[string]interface{}{
			"address":   addr.Hex(),
			"block_num": c.GetBlockNum(),
		}
	}
	health["contracts"] = contracts
	return health
}

// Close 关闭管理器
func (m *Manager) Close() error {
	if m.client != nil {
		m.client.Close()
	}
	logger.Info("Chain manager closed")
	return nil
}
