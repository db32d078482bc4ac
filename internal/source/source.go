// Package source reads ordered event envelopes from the ledger.
package source

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// Client is the subset of ethclient.Client the source needs.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Options 控制 RPC 超时、重试与并发
type Options struct {
	Confirmations  uint64
	RPCTimeout     time.Duration
	MaxRetries     uint64 // 0 disables retries
	Concurrency    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnRetry is called with the RPC method before every retry.
	OnRetry func(method string)
}

func (o *Options) setDefaults() {
	if o.RPCTimeout <= 0 {
		o.RPCTimeout = 10 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
}

// Source 事件源适配器
type Source struct {
	client   Client
	registry *chain.Registry
	opts     Options
}

// New creates a source over client.
func New(client Client, registry *chain.Registry, opts Options) *Source {
	opts.setDefaults()
	return &Source{client: client, registry: registry, opts: opts}
}

// Latest returns the latest block number reported by the node.
func (s *Source) Latest(ctx context.Context) (uint64, error) {
	var latest uint64
	err := s.call(ctx, "eth_blockNumber", func(ctx context.Context) (err error) {
		latest, err = s.client.BlockNumber(ctx)
		return err
	})
	return latest, err
}

// Head returns the newest block considered final.
func (s *Source) Head(ctx context.Context) (uint64, error) {
	latest, err := s.Latest(ctx)
	if err != nil {
		return 0, err
	}
	if latest < s.opts.Confirmations {
		return 0, nil
	}
	return latest - s.opts.Confirmations, nil
}

// Fetch returns every registered event in [fromBlock, toBlock] ordered by
// (block, txIndex, logIndex) with duplicate positions and removed logs dropped.
func (s *Source) Fetch(ctx context.Context, fromBlock, toBlock uint64) ([]*event.Envelope, error) {
	if fromBlock > toBlock {
		return nil, nil
	}
	envs, err := s.FetchQueries(ctx, s.registry.LogQueries(fromBlock, toBlock))
	if err != nil {
		return nil, fmt.Errorf("blocks %d-%d: %w", fromBlock, toBlock, err)
	}
	return envs, nil
}

// FetchQueries runs arbitrary log queries concurrently and returns the merged
// result with the same ordering, dedup and classification as Fetch.
func (s *Source) FetchQueries(ctx context.Context, queries []ethereum.FilterQuery) ([]*event.Envelope, error) {
	logs, err := s.fetchLogs(ctx, queries)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, nil
	}

	times, err := s.blockTimes(ctx, logs)
	if err != nil {
		return nil, err
	}

	envelopes := make([]*event.Envelope, 0, len(logs))
	for _, l := range logs {
		contract, name, ok := s.registry.Classify(l)
		if !ok {
			logger.Warn("Dropping log from unregistered emitter %s at %d:%d", l.Address.Hex(), l.BlockNumber, l.Index)
			continue
		}
		env := &event.Envelope{
			Block:     l.BlockNumber,
			BlockHash: l.BlockHash,
			Timestamp: times[l.BlockNumber],
			TxHash:    l.TxHash,
			TxIndex:   l.TxIndex,
			LogIndex:  l.Index,
			Address:   l.Address,
			Contract:  contract.GetName(),
			Name:      name,
		}
		if name != "" {
			_, env.Args, env.Err = contract.Unpack(l)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

// fetchLogs runs every log query concurrently and merges the results into one ordered slice.
func (s *Source) fetchLogs(ctx context.Context, queries []ethereum.FilterQuery) ([]types.Log, error) {
	results := make([][]types.Log, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			return s.call(gctx, "eth_getLogs", func(ctx context.Context) (err error) {
				results[i], err = s.client.FilterLogs(ctx, q)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}

	seen := make(map[event.Key]struct{})
	var merged []types.Log
	for _, logs := range results {
		for _, l := range logs {
			if l.Removed {
				continue
			}
			key := event.Key{Block: l.BlockNumber, LogIndex: l.Index}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, l)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.TxIndex != b.TxIndex {
			return a.TxIndex < b.TxIndex
		}
		return a.Index < b.Index
	})
	return merged, nil
}

// blockTimes resolves the timestamp of every distinct block in logs.
func (s *Source) blockTimes(ctx context.Context, logs []types.Log) (map[uint64]time.Time, error) {
	var (
		mu    sync.Mutex
		times = make(map[uint64]time.Time)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, l := range logs {
		if i > 0 && logs[i-1].BlockNumber == l.BlockNumber {
			continue
		}
		number := l.BlockNumber
		g.Go(func() error {
			var header *types.Header
			err := s.call(gctx, "eth_getBlockByNumber", func(ctx context.Context) (err error) {
				header, err = s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
				return err
			})
			if err != nil {
				return err
			}
			mu.Lock()
			times[number] = time.Unix(int64(header.Time), 0).UTC()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve block times: %w", err)
	}
	return times, nil
}

// call runs fn with a per-attempt timeout, retrying with exponential backoff.
func (s *Source) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.InitialBackoff
	exp.MaxInterval = s.opts.MaxBackoff
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, s.opts.MaxRetries), ctx)

	return backoff.RetryNotify(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.RPCTimeout)
		defer cancel()
		return fn(callCtx)
	}, policy, func(err error, wait time.Duration) {
		logger.Warn("RPC %s failed, retrying in %s: %v", method, wait, err)
		if s.opts.OnRetry != nil {
			s.opts.OnRetry(method)
		}
	})
}
