package repository

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
)

// RecordEvent journals an applied envelope. It returns false when the
// (block, logIndex) position was already journaled, i.e. the event is a replay.
func (t *Tx) RecordEvent(e *model.EventModel) (bool, error) {
	return t.insertOnce(e, "block_num", "log_index")
}

// EventRecorded reports whether the position is already in the journal.
func (t *Tx) EventRecorded(blockNum uint64, logIndex uint) (bool, error) {
	var count int64
	err := t.db.Model(&model.EventModel{}).
		Where("block_num = ? AND log_index = ?", blockNum, logIndex).
		Count(&count).Error
	return count > 0, err
}

// LoadCheckpoint returns the chain's checkpoint or nil before the first sync.
func (t *Tx) LoadCheckpoint(chainId int64) (*model.CheckpointModel, error) {
	var c model.CheckpointModel
	ok, err := t.first(&c, "chain_id = ?", chainId)
	if !ok || err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCheckpoint advances the chain's checkpoint.
func (t *Tx) SaveCheckpoint(chainId int64, block uint64, logIndex int64) error {
	return t.upsert(&model.CheckpointModel{
		ChainId:      chainId,
		LastBlock:    block,
		LastLogIndex: logIndex,
	}, "chain_id")
}

// RecordAnomaly appends an operator-visible anomaly.
func (t *Tx) RecordAnomaly(a *model.AnomalyModel) error {
	return t.db.Create(a).Error
}

// CountAnomalies returns the number of recorded anomalies.
func (t *Tx) CountAnomalies() (int64, error) {
	var count int64
	err := t.db.Model(&model.AnomalyModel{}).Count(&count).Error
	return count, err
}

// ListAnomalies returns the most recent anomalies, newest first.
func (t *Tx) ListAnomalies(limit int) ([]model.AnomalyModel, error) {
	var rows []model.AnomalyModel
	err := t.db.Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
