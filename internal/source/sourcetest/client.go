// Package sourcetest provides an in-memory ledger node for tests.
package sourcetest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrUnavailable is returned by injected failures.
var ErrUnavailable = errors.New("node unavailable")

// GenesisTime is the timestamp of block 0; each block adds 12 seconds.
const GenesisTime uint64 = 1700000000

// Client 内存链节点，按 FilterQuery 过滤日志
type Client struct {
	mu       sync.Mutex
	logs     []types.Log
	latest   uint64
	failures map[string]int
	calls    map[string]int
}

// NewClient returns an empty node at block 0.
func NewClient() *Client {
	return &Client{
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// AddLogs appends logs and moves the head to the highest block seen.
func (c *Client) AddLogs(logs ...types.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range logs {
		c.logs = append(c.logs, l)
		if l.BlockNumber > c.latest {
			c.latest = l.BlockNumber
		}
	}
}

// SetLatest sets the head block.
func (c *Client) SetLatest(block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = block
}

// FailNext makes the next n calls of method fail with ErrUnavailable.
// method is one of BlockNumber, FilterLogs, HeaderByNumber.
func (c *Client) FailNext(method string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method] = n
}

// Calls returns how many times method was invoked.
func (c *Client) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Client) enter(ctx context.Context, method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.failures[method] > 0 {
		c.failures[method]--
		return ErrUnavailable
	}
	return nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.enter(ctx, "BlockNumber"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, nil
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := c.enter(ctx, "HeaderByNumber"); err != nil {
		return nil, err
	}
	n := number.Uint64()
	return &types.Header{Number: new(big.Int).SetUint64(n), Time: GenesisTime + 12*n}, nil
}

func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := c.enter(ctx, "FilterLogs"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []types.Log
	for _, l := range c.logs {
		if matches(q, l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func matches(q ethereum.FilterQuery, l types.Log) bool {
	if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
		return false
	}
	if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
		return false
	}
	if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
		return false
	}
	for i, set := range q.Topics {
		if len(set) == 0 {
			continue
		}
		if i >= len(l.Topics) || !containsHash(set, l.Topics[i]) {
			return false
		}
	}
	return true
}

func containsAddress(set []common.Address, a common.Address) bool {
	for _, s := range set {
		if s == a {
			return true
		}
	}
	return false
}

func containsHash(set []common.Hash, h common.Hash) bool {
	for _, s := range set {
		if s == h {
			return true
		}
	}
	return false
}
