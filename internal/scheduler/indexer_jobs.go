package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/monitor"
	"github.com/go-co-op/gocron/v2"
)

// Syncer is the part of monitor.Indexer the jobs drive.
type Syncer interface {
	Sync(ctx context.Context) (*monitor.SyncResult, error)
	RefreshHead(ctx context.Context) error
}

// IndexerSyncJob 周期性追赶链头
type IndexerSyncJob struct {
	indexer  Syncer
	interval time.Duration
}

// NewIndexerSyncJob 创建同步任务
func NewIndexerSyncJob(indexer Syncer, interval time.Duration) *IndexerSyncJob {
	return &IndexerSyncJob{indexer: indexer, interval: interval}
}

// GetName 获取任务名称
func (j *IndexerSyncJob) GetName() string {
	return "indexer_sync"
}

// GetSchedule 获取调度配置
func (j *IndexerSyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *IndexerSyncJob) Execute(ctx context.Context) {
	if _, err := j.indexer.Sync(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Indexer sync interrupted by shutdown")
			return
		}
		logger.Error("Indexer sync failed, retrying next run: %v", err)
	}
}

// HeadLagJob 刷新链头与落后区块数指标
type HeadLagJob struct {
	indexer  Syncer
	interval time.Duration
}

func NewHeadLagJob(indexer Syncer, interval time.Duration) *HeadLagJob {
	return &HeadLagJob{indexer: indexer, interval: interval}
}

func (j *HeadLagJob) GetName() string {
	return "head_lag"
}

func (j *HeadLagJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *HeadLagJob) Execute(ctx context.Context) {
	if err := j.indexer.RefreshHead(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Failed to refresh chain head: %v", err)
	}
}
