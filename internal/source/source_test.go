package source_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/Howters/ArisanOnChain-sub000/internal/chain/chaintest"
	"github.com/Howters/ArisanOnChain-sub000/internal/source"
	"github.com/Howters/ArisanOnChain-sub000/internal/source/sourcetest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr = common.HexToAddress("0x0000000000000000000000000000000000000a07")
	bb       = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	stranger = common.HexToAddress("0x000000000000000000000000000000000000dead")
)

func fastOptions() source.Options {
	return source.Options{
		Confirmations:  2,
		RPCTimeout:     time.Second,
		MaxRetries:     3,
		Concurrency:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestFetchOrdersAndDedups(t *testing.T) {
	r := chaintest.Registry(t)
	client := sourcetest.NewClient()

	requested := chaintest.Log(t, r, chain.Pool, poolAddr, "MemberRequested", map[string]interface{}{"poolId": big.NewInt(7), "member": bb})
	topUp := chaintest.Log(t, r, chain.Token, chaintest.TokenAddress, "TopUpCompleted", map[string]interface{}{"user": bb, "amount": big.NewInt(10)})
	faucet := chaintest.Log(t, r, chain.Token, chaintest.TokenAddress, "FaucetClaimed", map[string]interface{}{"user": bb, "amount": big.NewInt(3)})

	removed := chaintest.At(faucet, 12, 0, 9)
	removed.Removed = true

	client.AddLogs(
		chaintest.At(requested, 12, 1, 4),
		chaintest.At(topUp, 11, 0, 0),
		chaintest.At(faucet, 12, 0, 1),
		chaintest.At(faucet, 12, 0, 1), // duplicate delivery
		removed,
	)

	src := source.New(client, r, fastOptions())
	envs, err := src.Fetch(context.Background(), 10, 12)
	require.NoError(t, err)
	require.Len(t, envs, 3)

	assert.Equal(t, "TopUpCompleted", envs[0].Name)
	assert.Equal(t, "FaucetClaimed", envs[1].Name)
	assert.Equal(t, "MemberRequested", envs[2].Name)
	assert.Equal(t, chain.Pool, envs[2].Contract)
	assert.Equal(t, poolAddr, envs[2].Address)
	assert.Equal(t, time.Unix(int64(sourcetest.GenesisTime+12*12), 0).UTC(), envs[2].Timestamp)
	assert.NoError(t, envs[2].Err)
	assert.Contains(t, envs[2].Args, "member")

	assert.Equal(t, 2, client.Calls("HeaderByNumber"))
}

func TestFetchIgnoresUnknownEmitters(t *testing.T) {
	r := chaintest.Registry(t)
	client := sourcetest.NewClient()

	// a Transfer-shaped log from an address that is not the DebtNFT contract
	transfer := chaintest.Log(t, r, chain.DebtNFT, stranger, "Transfer", map[string]interface{}{
		"from": bb, "to": stranger, "tokenId": big.NewInt(1),
	})
	client.AddLogs(chaintest.At(transfer, 5, 0, 0))

	envs, err := source.New(client, r, fastOptions()).Fetch(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	r := chaintest.Registry(t)
	client := sourcetest.NewClient()
	topUp := chaintest.Log(t, r, chain.Token, chaintest.TokenAddress, "TopUpCompleted", map[string]interface{}{"user": bb, "amount": big.NewInt(10)})
	client.AddLogs(chaintest.At(topUp, 3, 0, 0))
	client.FailNext("HeaderByNumber", 2)

	var retries int
	opts := fastOptions()
	opts.OnRetry = func(method string) {
		assert.Equal(t, "eth_getBlockByNumber", method)
		retries++
	}

	envs, err := source.New(client, r, opts).Fetch(context.Background(), 0, 3)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, 2, retries)
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	r := chaintest.Registry(t)
	client := sourcetest.NewClient()
	client.FailNext("FilterLogs", 100)

	_, err := source.New(client, r, fastOptions()).Fetch(context.Background(), 0, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sourcetest.ErrUnavailable))
}

func TestHeadSubtractsConfirmations(t *testing.T) {
	r := chaintest.Registry(t)
	client := sourcetest.NewClient()
	src := source.New(client, r, fastOptions())

	client.SetLatest(1)
	head, err := src.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), head)

	client.SetLatest(100)
	head, err = src.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(98), head)
}
