// Package chaintest builds registries and ABI-encoded logs for tests.
package chaintest

import (
	"math/big"
	"testing"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/Howters/ArisanOnChain-sub000/internal/config"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// Fixed contract addresses used by ChainConfig.
var (
	FactoryAddress    = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	DebtNFTAddress    = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	ReputationAddress = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	TokenAddress      = common.HexToAddress("0x00000000000000000000000000000000000000f4")
)

// ChainId of the test chain.
const ChainId int64 = 31337

// ChainConfig returns a chain config with every fixed contract enabled.
func ChainConfig() config.ChainConfig {
	contract := func(addr common.Address) config.ContractConfig {
		return config.ContractConfig{Address: addr.Hex(), Enabled: true, BlockNum: 1}
	}
	return config.ChainConfig{
		ChainType: "ethereum",
		ChainId:   ChainId,
		RpcUrl:    "http://127.0.0.1:8545",
		Contracts: map[string]config.ContractConfig{
			chain.Factory:            contract(FactoryAddress),
			chain.DebtNFT:            contract(DebtNFTAddress),
			chain.ReputationRegistry: contract(ReputationAddress),
			chain.Token:              contract(TokenAddress),
		},
	}
}

// Registry builds a registry over ChainConfig.
func Registry(t testing.TB) *chain.Registry {
	t.Helper()
	r, err := chain.NewRegistry(ChainConfig())
	require.NoError(t, err)
	return r
}

// Log ABI-encodes an event of contract name as emitted by addr. args are keyed
// by the ABI argument names. The returned log has no chain position set.
func Log(t testing.TB, r *chain.Registry, name string, addr common.Address, eventName string, args map[string]interface{}) types.Log {
	t.Helper()
	c, err := r.GetContract(name)
	require.NoError(t, err)
	ev, ok := c.GetABI().Events[eventName]
	require.True(t, ok, "event %s.%s", name, eventName)

	topics := []common.Hash{ev.ID}
	var data []interface{}
	for _, input := range ev.Inputs {
		v, ok := args[input.Name]
		require.True(t, ok, "missing argument %s", input.Name)
		if input.Indexed {
			encoded, err := abi.MakeTopics([]interface{}{v})
			require.NoError(t, err)
			topics = append(topics, encoded[0][0])
			continue
		}
		data = append(data, v)
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	require.NoError(t, err)

	return types.Log{Address: addr, Topics: topics, Data: packed}
}

// At places l at a chain position.
func At(l types.Log, block uint64, txIndex, logIndex uint) types.Log {
	l.BlockNumber = block
	l.TxIndex = txIndex
	l.Index = logIndex
	l.TxHash = common.BigToHash(new(big.Int).SetUint64(block<<16 | uint64(txIndex)))
	l.BlockHash = common.BigToHash(new(big.Int).SetUint64(block))
	return l
}
