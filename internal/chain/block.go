package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// LogQueries 构造一个区块区间的日志查询：固定合约按地址过滤，pool 合约按事件签名过滤
func (r *Registry) LogQueries(fromBlock, toBlock uint64) []ethereum.FilterQuery {
	from := new(big.Int).SetUint64(fromBlock)
	to := new(big.Int).SetUint64(toBlock)

	var queries []ethereum.FilterQuery
	if addrs := r.StaticAddresses(); len(addrs) > 0 {
		queries = append(queries, ethereum.FilterQuery{
			FromBlock: from,
			ToBlock:   to,
			Addresses: addrs,
		})
	}
	queries = append(queries, ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Topics:    [][]common.Hash{r.PoolTopics()},
	})
	return queries
}

// UserLogQueries 查询某个地址作为第一个索引参数出现的 pool 与 token 事件
func (r *Registry) UserLogQueries(user common.Address, fromBlock uint64, toBlock *big.Int) ([]ethereum.FilterQuery, error) {
	pool, err := r.GetContract(Pool)
	if err != nil {
		return nil, err
	}
	poolABI := pool.GetABI()
	userTopic := common.BytesToHash(common.LeftPadBytes(user.Bytes(), 32))
	from := new(big.Int).SetUint64(fromBlock)

	// ContributionMade / PayoutClaimed / FundsWithdrawn carry the member as topic2
	queries := []ethereum.FilterQuery{{
		FromBlock: from,
		ToBlock:   toBlock,
		Topics: [][]common.Hash{
			{
				poolABI.Events["ContributionMade"].ID,
				poolABI.Events["PayoutClaimed"].ID,
				poolABI.Events["FundsWithdrawn"].ID,
			},
			nil,
			{userTopic},
		},
	}}

	if token, err := r.GetContract(Token); err == nil {
		tokenABI := token.GetABI()
		queries = append(queries, ethereum.FilterQuery{
			FromBlock: from,
			ToBlock:   toBlock,
			Addresses: []common.Address{token.GetAddress()},
			Topics: [][]common.Hash{
				{tokenABI.Events["TopUpCompleted"].ID, tokenABI.Events["FaucetClaimed"].ID},
				{userTopic},
			},
		})
	}
	return queries, nil
}
