package chain

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Howters/ArisanOnChain-sub000/internal/config"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// 合约名称，与配置中的 key 一致
const (
	Factory            = "factory"
	Pool               = "pool"
	DebtNFT            = "debtnft"
	ReputationRegistry = "reputationregistry"
	Token              = "token"
)

//go:embed abi/*.json
var embeddedABIs embed.FS

// Contract 合约工具类
type Contract struct {
	address  common.Address // 合约地址，pool 合约为零地址
	abi      abi.ABI        // 合约ABI
	name     string         // 合约名称
	blockNum uint64         // 合约部署的区块号
	chainId  int64          // 链ID
}

// NewContract 创建合约实例
func NewContract(name string, contractCfg config.ContractConfig, chainCfg config.ChainConfig) (*Contract, error) {
	parsedABI, err := LoadABI(name, contractCfg.ABIPath)
	if err != nil {
		return nil, err
	}

	var addr common.Address
	if contractCfg.Address != "" {
		if !common.IsHexAddress(contractCfg.Address) {
			return nil, fmt.Errorf("invalid address %q for contract %s", contractCfg.Address, name)
		}
		addr = common.HexToAddress(contractCfg.Address)
	}

	return &Contract{
		address:  addr,
		abi:      parsedABI,
		name:     name,
		blockNum: contractCfg.BlockNum,
		chainId:  chainCfg.ChainId,
	}, nil
}

// LoadABI reads the ABI from path, or from the embedded copy when path is empty.
// Both a bare ABI array and a full compiler output with an "abi" field are accepted.
func LoadABI(name, path string) (abi.ABI, error) {
	var (
		abiData []byte
		err     error
	)
	if path != "" {
		abiData, err = os.ReadFile(path)
	} else {
		abiData, err = embeddedABIs.ReadFile("abi/" + name + ".json")
	}
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to load ABI for %s: %w", name, err)
	}

	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(abiData, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		abiData = compiledOutput.ABI
	}

	parsedABI, err := abi.JSON(bytes.NewReader(abiData))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
	}
	return parsedABI, nil
}

// GetAddress 获取合约地址
func (c *Contract) GetAddress() common.Address {
	return c.address
}

// GetABI 获取合约ABI
func (c *Contract) GetABI() abi.ABI {
	return c.abi
}

// GetName 获取合约名称
func (c *Contract) GetName() string {
	return c.name
}

// GetBlockNum 获取合约部署区块号
func (c *Contract) GetBlockNum() uint64 {
	return c.blockNum
}

// GetChainId 获取链ID
func (c *Contract) GetChainId() int64 {
	return c.chainId
}

// EventName returns the name of the event whose signature is the log's topic0.
func (c *Contract) EventName(log types.Log) (string, bool) {
	if len(log.Topics) == 0 {
		return "", false
	}
	ev, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		return "", false
	}
	return ev.Name, true
}

// Unpack 解析事件日志，返回事件名和按参数名索引的参数
func (c *Contract) Unpack(log types.Log) (string, map[string]interface{}, error) {
	if len(log.Topics) == 0 {
		return "", nil, fmt.Errorf("log %s#%d has no topics", log.TxHash.Hex(), log.Index)
	}
	ev, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		return "", nil, fmt.Errorf("unknown event signature %s in contract %s", log.Topics[0].Hex(), c.name)
	}

	args := make(map[string]interface{}, len(ev.Inputs))

	// 解析索引参数
	var indexed abi.Arguments
	for _, input := range ev.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
		return ev.Name, nil, fmt.Errorf("failed to parse topics of %s: %w", ev.Name, err)
	}

	// 解析非索引参数
	if err := ev.Inputs.UnpackIntoMap(args, log.Data); err != nil {
		return ev.Name, nil, fmt.Errorf("failed to unpack data of %s: %w", ev.Name, err)
	}

	return ev.Name, args, nil
}
