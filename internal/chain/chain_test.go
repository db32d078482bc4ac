package chain_test

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/Howters/ArisanOnChain-sub000/internal/chain/chaintest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr = common.HexToAddress("0x0000000000000000000000000000000000000a07")
	member   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestRegistryClassify(t *testing.T) {
	r := chaintest.Registry(t)

	created := chaintest.Log(t, r, chain.Factory, chaintest.FactoryAddress, "PoolCreated", map[string]interface{}{
		"poolId":             big.NewInt(7),
		"poolAddress":        poolAddr,
		"admin":              member,
		"contributionAmount": big.NewInt(1000),
		"securityDeposit":    big.NewInt(2000),
		"maxMembers":         big.NewInt(5),
		"paymentDay":         big.NewInt(1),
		"vouchRequired":      big.NewInt(1),
		"rotationPeriod":     big.NewInt(2592000),
		"poolName":           "kantor",
		"category":           "office",
	})
	c, name, ok := r.Classify(created)
	require.True(t, ok)
	assert.Equal(t, chain.Factory, c.GetName())
	assert.Equal(t, "PoolCreated", name)

	// pool events are matched by signature from any emitter
	requested := chaintest.Log(t, r, chain.Pool, poolAddr, "MemberRequested", map[string]interface{}{
		"poolId": big.NewInt(7),
		"member": member,
	})
	c, name, ok = r.Classify(requested)
	require.True(t, ok)
	assert.Equal(t, chain.Pool, c.GetName())
	assert.Equal(t, "MemberRequested", name)

	// a fixed contract emitting a signature it does not declare
	foreign := requested
	foreign.Address = chaintest.TokenAddress
	c, name, ok = r.Classify(foreign)
	require.True(t, ok)
	assert.Equal(t, chain.Token, c.GetName())
	assert.Empty(t, name)

	stray := created
	stray.Address = common.HexToAddress("0x1234")
	_, _, ok = r.Classify(stray)
	assert.False(t, ok)
}

func TestContractUnpack(t *testing.T) {
	r := chaintest.Registry(t)
	pool, err := r.GetContract(chain.Pool)
	require.NoError(t, err)

	l := chaintest.Log(t, r, chain.Pool, poolAddr, "RotationOrderSet", map[string]interface{}{
		"poolId": big.NewInt(7),
		"order":  []common.Address{member, poolAddr},
	})
	name, args, err := pool.Unpack(l)
	require.NoError(t, err)
	assert.Equal(t, "RotationOrderSet", name)
	assert.Equal(t, 0, big.NewInt(7).Cmp(args["poolId"].(*big.Int)))
	assert.Equal(t, []common.Address{member, poolAddr}, args["order"])

	truncated := l
	truncated.Data = truncated.Data[:16]
	_, _, err = pool.Unpack(truncated)
	assert.Error(t, err)

	missingTopic := l
	missingTopic.Topics = missingTopic.Topics[:1]
	_, _, err = pool.Unpack(missingTopic)
	assert.Error(t, err)
}

func TestLogQueries(t *testing.T) {
	r := chaintest.Registry(t)
	queries := r.LogQueries(10, 20)
	require.Len(t, queries, 2)

	assert.Len(t, queries[0].Addresses, 4)
	assert.Equal(t, uint64(10), queries[0].FromBlock.Uint64())
	assert.Equal(t, uint64(20), queries[0].ToBlock.Uint64())

	require.Len(t, queries[1].Topics, 1)
	pool, err := r.GetContract(chain.Pool)
	require.NoError(t, err)
	assert.Len(t, queries[1].Topics[0], len(pool.GetABI().Events))
	assert.Empty(t, queries[1].Addresses)
}

func TestRegistryRejectsEnabledContractWithoutAddress(t *testing.T) {
	cfg := chaintest.ChainConfig()
	token := cfg.Contracts[chain.Token]
	token.Address = ""
	cfg.Contracts[chain.Token] = token

	_, err := chain.NewRegistry(cfg)
	assert.Error(t, err)
}

func TestLoadABIFromCompilerOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Token.json")
	body := `{"contractName":"Token","abi":[{"type":"event","name":"FaucetClaimed","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	parsed, err := chain.LoadABI(chain.Token, path)
	require.NoError(t, err)
	_, ok := parsed.Events["FaucetClaimed"]
	assert.True(t, ok)

	embedded, err := chain.LoadABI(chain.Factory, "")
	require.NoError(t, err)
	_, ok = embedded.Methods["getPool"]
	assert.True(t, ok)
}

func TestStartBlock(t *testing.T) {
	cfg := chaintest.ChainConfig()
	factory := cfg.Contracts[chain.Factory]
	factory.BlockNum = 50
	cfg.Contracts[chain.Factory] = factory
	debt := cfg.Contracts[chain.DebtNFT]
	debt.BlockNum = 40
	cfg.Contracts[chain.DebtNFT] = debt
	for _, name := range []string{chain.ReputationRegistry, chain.Token} {
		c := cfg.Contracts[name]
		c.BlockNum = 60
		cfg.Contracts[name] = c
	}

	r, err := chain.NewRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), r.StartBlock())
}

// ethService answers the eth_ methods the manager uses.
type ethService struct {
	down atomic.Bool
}

func (s *ethService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(chaintest.ChainId))
}

func (s *ethService) BlockNumber() (hexutil.Uint64, error) {
	if s.down.Load() {
		return 0, errors.New("node syncing")
	}
	return 1234, nil
}

func TestManagerHealthStatus(t *testing.T) {
	svc := &ethService{}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	ts := httptest.NewServer(server)
	t.Cleanup(func() {
		ts.Close()
		server.Stop()
	})

	cfg := chaintest.ChainConfig()
	cfg.RpcUrl = ts.URL
	m, err := chain.NewManager(context.Background(), cfg)
	require.NoError(t, err)
	defer m.Close()

	health := m.GetHealthStatus(context.Background())
	assert.Equal(t, "connected", health["client_status"])
	assert.Equal(t, chaintest.ChainId, health["chain_id"])

	contracts, ok := health["contracts"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, contracts, 4)
	factory, ok := contracts[chain.Factory].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, chaintest.FactoryAddress.Hex(), factory["address"])

	svc.down.Store(true)
	health = m.GetHealthStatus(context.Background())
	assert.Equal(t, "disconnected", health["client_status"])
}

func TestManagerRejectsWrongChainId(t *testing.T) {
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &ethService{}))
	ts := httptest.NewServer(server)
	t.Cleanup(func() {
		ts.Close()
		server.Stop()
	})

	cfg := chaintest.ChainConfig()
	cfg.RpcUrl = ts.URL
	cfg.ChainId = 4202
	_, err := chain.NewManager(context.Background(), cfg)
	assert.ErrorContains(t, err, "chain id")
}
