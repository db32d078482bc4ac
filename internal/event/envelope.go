// Package event holds the ordered envelope produced by the event source and
// the typed events decoded from it.
package event

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Key is the position of a log on the chain.
type Key struct {
	Block    uint64
	LogIndex uint
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.Block, k.LogIndex)
}

// Less orders keys by block then log index.
func (k Key) Less(o Key) bool {
	if k.Block != o.Block {
		return k.Block < o.Block
	}
	return k.LogIndex < o.LogIndex
}

// Envelope 事件信封：一条已分类但尚未解释语义的链上日志
type Envelope struct {
	Block     uint64
	BlockHash common.Hash
	Timestamp time.Time
	TxHash    common.Hash
	TxIndex   uint
	LogIndex  uint
	Address   common.Address // emitter

	Contract string // registry name, e.g. "pool"
	Name     string // event name, empty when the signature is unknown

	Args map[string]interface{}
	Err  error // set when the log could not be unpacked against the ABI
}

// Key returns the envelope's chain position.
func (e *Envelope) Key() Key {
	return Key{Block: e.Block, LogIndex: e.LogIndex}
}

func (e *Envelope) String() string {
	return fmt.Sprintf("%s.%s@%s", e.Contract, e.Name, e.Key())
}
