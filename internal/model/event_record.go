package model

import (
	"time"

	"gorm.io/datatypes"
)

// EventModel 已应用的链上事件日志，(block_num, log_index) 唯一
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContractAddress string         `json:"contract_address" gorm:"size:42;not null"`
	ContractName    string         `json:"contract_name" gorm:"size:32;not null"`
	EventType       string         `json:"event_type" gorm:"size:64;not null"`
	TxHash          string         `json:"tx_hash" gorm:"size:66;not null"`
	BlockNum        uint64         `json:"block_num" gorm:"uniqueIndex:idx_event_position;not null"`
	LogIndex        uint           `json:"log_index" gorm:"uniqueIndex:idx_event_position;not null"`
	Data            datatypes.JSON `json:"data"`
	Processed       bool           `json:"processed" gorm:"default:false"` // false means skipped as an anomaly
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}

// CheckpointModel 每条链一行，与区块写入在同一事务内更新
type CheckpointModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ChainId      int64  `json:"chain_id" gorm:"uniqueIndex:idx_checkpoint_chain;not null"`
	LastBlock    uint64 `json:"last_block"`
	LastLogIndex int64  `json:"last_log_index"` // -1 when the block had no events
}

func (CheckpointModel) TableName() string {
	return "checkpoint"
}

// AnomalyKind 异常类型
type AnomalyKind string

const (
	AnomalyMalformed         AnomalyKind = "malformed"
	AnomalyUnknownEvent      AnomalyKind = "unknown_event"
	AnomalyMissingRow        AnomalyKind = "missing_row"
	AnomalyIllegalTransition AnomalyKind = "illegal_transition"
	AnomalyForeignEmitter    AnomalyKind = "foreign_emitter"
	AnomalyNegativeBalance   AnomalyKind = "negative_balance"
	AnomalyStaleCounter      AnomalyKind = "stale_counter"
)

// AnomalyModel 需要运维关注的事件处理异常
type AnomalyModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	BlockNum     uint64      `json:"block_num" gorm:"index"`
	LogIndex     uint        `json:"log_index"`
	TxHash       string      `json:"tx_hash" gorm:"size:66"`
	ContractName string      `json:"contract_name" gorm:"size:32"`
	EventType    string      `json:"event_type" gorm:"size:64"`
	Kind         AnomalyKind `json:"kind" gorm:"size:32;index"`
	Detail       string      `json:"detail" gorm:"type:text"`
}

func (AnomalyModel) TableName() string {
	return "anomaly"
}

// MigrateModels lists every table of the derived store.
var MigrateModels = []interface{}{
	&PoolModel{},
	&MemberModel{},
	&ContributionModel{},
	&VouchModel{},
	&RotationOrderEntryModel{},
	&WinnerHistoryModel{},
	&DefaultRecordModel{},
	&DebtTokenModel{},
	&ReputationModel{},
	&TopUpModel{},
	&FaucetClaimModel{},
	&WithdrawalModel{},
	&EventModel{},
	&CheckpointModel{},
	&AnomalyModel{},
}
