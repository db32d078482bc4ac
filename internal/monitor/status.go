package monitor

import (
	"context"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/repository"
)

// Status 同步状态
type Status struct {
	ChainId            int64      `json:"chain_id"`
	Initialized        bool       `json:"initialized"` // false before the first checkpoint
	CheckpointBlock    uint64     `json:"checkpoint_block"`
	CheckpointLogIndex int64      `json:"checkpoint_log_index"`
	HeadBlock          uint64     `json:"head_block"`
	HeadLag            uint64     `json:"head_lag"`
	Anomalies          int64      `json:"anomalies"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
	Events             []string   `json:"events"` // routed contract.event pairs
}

// Status 获取同步状态：检查点来自存储，链头与最近一次同步结果来自内存
func (ix *Indexer) Status(ctx context.Context) (*Status, error) {
	status := &Status{ChainId: ix.opts.ChainId, Events: ix.processors.GetSupportedEventTypes()}
	err := ix.store.View(ctx, func(tx *repository.Tx) error {
		cp, err := tx.LoadCheckpoint(ix.opts.ChainId)
		if err != nil {
			return err
		}
		if cp != nil {
			status.Initialized = true
			status.CheckpointBlock = cp.LastBlock
			status.CheckpointLogIndex = cp.LastLogIndex
		}
		status.Anomalies, err = tx.CountAnomalies()
		return err
	})
	if err != nil {
		return nil, err
	}

	ix.stateMu.RLock()
	defer ix.stateMu.RUnlock()
	status.HeadBlock = ix.head
	if ix.head > status.CheckpointBlock {
		status.HeadLag = ix.head - status.CheckpointBlock
	}
	if !ix.lastSyncAt.IsZero() {
		at := ix.lastSyncAt
		status.LastSyncAt = &at
	}
	if ix.lastErr != nil {
		status.LastError = ix.lastErr.Error()
	}
	return status, nil
}
