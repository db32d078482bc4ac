// Package monitor drives the ingestion loop: it pulls ordered envelopes from
// the event source and applies them block by block to the derived store.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/event"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/metrics"
	"github.com/Howters/ArisanOnChain-sub000/internal/processor"
	"github.com/Howters/ArisanOnChain-sub000/internal/repository"
	"github.com/Howters/ArisanOnChain-sub000/internal/source"
)

// Options 同步参数
type Options struct {
	ChainId    int64
	StartBlock uint64 // first block to read when no checkpoint exists
	BatchSize  uint64
}

// Indexer 事件同步器：从检查点之后读取事件并逐块写入派生存储
type Indexer struct {
	source     *source.Source
	store      *repository.Store
	processors *processor.ProcessorManager
	metrics    *metrics.Metrics
	opts       Options

	mu sync.Mutex // one sync at a time

	stateMu    sync.RWMutex
	head       uint64
	lastSyncAt time.Time
	lastErr    error
}

// NewIndexer 创建事件同步器
func NewIndexer(src *source.Source, store *repository.Store, processors *processor.ProcessorManager, m *metrics.Metrics, opts Options) *Indexer {
	if opts.BatchSize == 0 {
		opts.BatchSize = 500
	}
	return &Indexer{
		source:     src,
		store:      store,
		processors: processors,
		metrics:    m,
		opts:       opts,
	}
}

// SyncResult summarizes one Sync run.
type SyncResult struct {
	From     uint64
	To       uint64 // last block covered by the checkpoint
	Head     uint64
	Blocks   int
	Applied  int
	Skipped  int
	Replayed int
}

func (r *SyncResult) count(out processor.Outcome) {
	switch out {
	case processor.Applied:
		r.Applied++
	case processor.Skipped:
		r.Skipped++
	case processor.Replayed:
		r.Replayed++
	}
}

// Sync catches the store up to the source head. Blocks are applied in order,
// each in its own transaction together with the checkpoint. Cancellation is
// observed between blocks: the block in flight is always committed first.
func (ix *Indexer) Sync(ctx context.Context) (*SyncResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	started := time.Now()
	result, err := ix.sync(ctx)
	ix.metrics.ObserveSync(time.Since(started).Seconds())

	ix.stateMu.Lock()
	ix.lastSyncAt = started
	ix.lastErr = err
	ix.stateMu.Unlock()

	if err != nil {
		return result, err
	}
	if result.Blocks > 0 {
		logger.Info("Synced blocks %d-%d: %d applied, %d skipped, %d replayed",
			result.From, result.To, result.Applied, result.Skipped, result.Replayed)
	}
	return result, nil
}

func (ix *Indexer) sync(ctx context.Context) (*SyncResult, error) {
	next, err := ix.nextBlock(ctx)
	if err != nil {
		return &SyncResult{}, err
	}
	result := &SyncResult{From: next}
	if next > 0 {
		result.To = next - 1
	}

	head, err := ix.source.Head(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read chain head: %w", err)
	}
	result.Head = head
	ix.setHead(head, result.To)

	for from := next; from <= head; from += ix.opts.BatchSize {
		to := from + ix.opts.BatchSize - 1
		if to > head {
			to = head
		}

		logger.Debug("Processing batch blocks %d to %d", from, to)
		envs, err := ix.source.Fetch(ctx, from, to)
		if err != nil {
			return result, fmt.Errorf("failed to fetch blocks %d-%d: %w", from, to, err)
		}
		if err := ix.applyRange(ctx, to, envs, result); err != nil {
			return result, err
		}
		ix.setHead(head, result.To)
	}
	return result, nil
}

// applyRange applies envs, which all lie in a batch ending at to, one block at a time.
func (ix *Indexer) applyRange(ctx context.Context, to uint64, envs []*event.Envelope, result *SyncResult) error {
	for start := 0; start < len(envs); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start
		for end < len(envs) && envs[end].Block == envs[start].Block {
			end++
		}
		if err := ix.applyBlock(ctx, envs[start:end], result); err != nil {
			return err
		}
		start = end
	}

	if len(envs) > 0 && envs[len(envs)-1].Block == to {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// the tail of the batch has no events: move the checkpoint to its last block
	if err := ix.store.Update(context.WithoutCancel(ctx), func(tx *repository.Tx) error {
		return tx.SaveCheckpoint(ix.opts.ChainId, to, -1)
	}); err != nil {
		return fmt.Errorf("failed to save checkpoint at block %d: %w", to, err)
	}
	result.To = to
	return nil
}

// applyBlock commits every envelope of one block and the checkpoint atomically.
func (ix *Indexer) applyBlock(ctx context.Context, envs []*event.Envelope, result *SyncResult) error {
	block := envs[0].Block
	var outcomes []processor.Outcome

	err := ix.store.Update(context.WithoutCancel(ctx), func(tx *repository.Tx) error {
		outcomes = outcomes[:0]
		for _, env := range envs {
			out, err := ix.processors.ProcessEvent(tx, env)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, out)
		}
		last := envs[len(envs)-1]
		return tx.SaveCheckpoint(ix.opts.ChainId, block, int64(last.LogIndex))
	})
	if err != nil {
		return fmt.Errorf("failed to apply block %d: %w", block, err)
	}

	for _, out := range outcomes {
		result.count(out)
	}
	result.Blocks++
	result.To = block
	ix.metrics.BlockApplied(block)
	logger.Debug("Applied block %d with %d events", block, len(envs))
	return nil
}

// nextBlock is the first block not yet covered by the checkpoint.
func (ix *Indexer) nextBlock(ctx context.Context) (uint64, error) {
	var next uint64
	err := ix.store.View(ctx, func(tx *repository.Tx) error {
		cp, err := tx.LoadCheckpoint(ix.opts.ChainId)
		if err != nil {
			return err
		}
		if cp == nil {
			next = ix.opts.StartBlock
			return nil
		}
		next = cp.LastBlock + 1
		if next < ix.opts.StartBlock {
			next = ix.opts.StartBlock
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return next, nil
}

func (ix *Indexer) setHead(head, checkpoint uint64) {
	ix.stateMu.Lock()
	ix.head = head
	ix.stateMu.Unlock()
	ix.metrics.SetHead(head, checkpoint)
}

// RefreshHead reads the chain head and updates the lag gauges without syncing.
func (ix *Indexer) RefreshHead(ctx context.Context) error {
	head, err := ix.source.Head(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain head: %w", err)
	}
	status, err := ix.Status(ctx)
	if err != nil {
		return err
	}
	ix.setHead(head, status.CheckpointBlock)
	return nil
}
