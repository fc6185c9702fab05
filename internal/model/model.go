// Package model converts node-facing DTOs (internal/types) into the row
// shapes persisted by internal/store, matching the original indexer's
// conversion functions field-for-field.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/types"
)

// nullJSON is substituted for a field that fails to marshal, matching
// original_source/src/models/mod.rs's serde_json::to_value(...).unwrap_or_default():
// the conversion degrades the one field rather than failing the record.
var nullJSON = json.RawMessage("null")

// DefaultGroupNum is the default parent-index into Block.Deps; internal/config
// defaults GROUP_NUM to the same value (4) on its own. See DESIGN.md Open
// Question 1.
const DefaultGroupNum = 4

// Block is the persisted row shape for the blocks table.
type Block struct {
	Hash         string
	Timestamp    time.Time
	ChainFrom    int64
	ChainTo      int64
	Height       int64
	Deps         []string
	Nonce        string
	Version      string
	DepStateHash string
	TxsHash      string
	TxNumber     int64
	Target       string
	MainChain    bool
	GhostUncles  json.RawMessage
}

// Parent returns the hash of this block's parent in its own chain, found
// at groupNum within Deps. Height 0 (genesis) has no parent.
func (b Block) Parent(groupNum int) (string, bool) {
	if b.Height == 0 {
		return "", false
	}
	if groupNum < 0 || groupNum >= len(b.Deps) {
		return "", false
	}
	return b.Deps[groupNum], true
}

// Event is the persisted row shape for the events table.
type Event struct {
	TxID            string
	ContractAddress string
	EventIndex      int32
	Fields          json.RawMessage
}

// Transaction is the persisted row shape for the transactions table.
type Transaction struct {
	TxHash            string
	Unsigned          json.RawMessage
	ScriptExecutionOk bool
	ContractInputs    json.RawMessage
	GeneratedOutputs  json.RawMessage
	InputSignatures   []string
	ScriptSignatures  []string
	BlockHash         string
}

// ProcessorStatus is the persisted checkpoint row for a single processor.
type ProcessorStatus struct {
	Processor     string
	LastTimestamp int64
}

// TimestampMillisToTime converts a node timestamp (milliseconds since the
// Unix epoch) into a time.Time, matching
// original_source/src/utils/time.rs::timestamp_millis_to_naive_datetime:
// seconds = millis/1000, nanos = (millis%1000)*1e6. A negative value (which
// should never occur on a well-formed node response) yields the zero time
// rather than panicking or wrapping.
func TimestampMillisToTime(millis int64) time.Time {
	if millis < 0 {
		return time.Time{}
	}
	seconds := millis / 1000
	nanos := (millis % 1000) * int64(time.Millisecond)
	return time.Unix(seconds, nanos).UTC()
}

// BlocksFromEntries converts the node's nested blocks-and-events response
// into flat Block rows, matching convert_bwe_to_block_models. deps is
// validated per DESIGN.md Open Question 2: every entry must be a non-empty
// hash, nulls/empties are rejected rather than silently coerced.
func BlocksFromEntries(shards [][]types.BlockAndEvents) ([]Block, error) {
	var out []Block
	for _, shard := range shards {
		for _, be := range shard {
			b, err := BlockFromEntry(be.Block)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
	}
	return out, nil
}

// BlockFromEntry converts a single node block into its row shape.
func BlockFromEntry(b types.BlockEntry) (Block, error) {
	if err := validateDeps(b.Deps); err != nil {
		return Block{}, fmt.Errorf("block %s: %w", b.Hash, err)
	}
	ghostUncles, err := json.Marshal(b.GhostUncles)
	if err != nil {
		logrus.StandardLogger().WithError(err).WithField("block_hash", b.Hash).
			Warn("ghost uncles failed to marshal, defaulting to null")
		ghostUncles = nullJSON
	}
	return Block{
		Hash:         b.Hash,
		Timestamp:    TimestampMillisToTime(b.Timestamp),
		ChainFrom:    b.ChainFrom,
		ChainTo:      b.ChainTo,
		Height:       b.Height,
		Deps:         b.Deps,
		Nonce:        b.Nonce,
		Version:      fmt.Sprintf("%d", b.Version),
		DepStateHash: b.DepStateHash,
		TxsHash:      b.TxsHash,
		TxNumber:     int64(len(b.Transactions)),
		Target:       b.Target,
		MainChain:    false,
		GhostUncles:  ghostUncles,
	}, nil
}

func validateDeps(deps []string) error {
	if deps == nil {
		return fmt.Errorf("deps is required and must not be null")
	}
	for i, d := range deps {
		if d == "" {
			return fmt.Errorf("deps[%d] is empty", i)
		}
	}
	return nil
}

// EventsFromEntries flattens the node's nested blocks-and-events response
// into Event rows, matching convert_bwe_to_event_models. An event whose
// Fields fails to marshal is still kept (with Fields defaulted to null)
// rather than discarding the rest of the batch.
func EventsFromEntries(shards [][]types.BlockAndEvents) []Event {
	var out []Event
	for _, shard := range shards {
		for _, be := range shard {
			for _, e := range be.Events {
				fields, err := json.Marshal(e.Fields)
				if err != nil {
					logrus.StandardLogger().WithError(err).
						WithField("tx_id", e.TxID).WithField("event_index", e.EventIndex).
						Warn("event fields failed to marshal, defaulting to null")
					fields = nullJSON
				}
				out = append(out, Event{
					TxID:            e.TxID,
					ContractAddress: e.ContractAddress,
					EventIndex:      e.EventIndex,
					Fields:          fields,
				})
			}
		}
	}
	return out
}

// TransactionsFromBlock converts a single block's embedded transactions
// into row shapes, tagging each with its containing block's hash.
func TransactionsFromBlock(b types.BlockEntry) ([]Transaction, error) {
	out := make([]Transaction, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		unsigned, err := json.Marshal(tx.Unsigned)
		if err != nil {
			return nil, fmt.Errorf("tx %s: marshal unsigned: %w", tx.Hash(), err)
		}
		contractInputs, err := json.Marshal(tx.ContractInputs)
		if err != nil {
			return nil, fmt.Errorf("tx %s: marshal contract inputs: %w", tx.Hash(), err)
		}
		generatedOutputs, err := json.Marshal(tx.GeneratedOutputs)
		if err != nil {
			return nil, fmt.Errorf("tx %s: marshal generated outputs: %w", tx.Hash(), err)
		}
		out = append(out, Transaction{
			TxHash:            tx.Hash(),
			Unsigned:          unsigned,
			ScriptExecutionOk: tx.ScriptExecutionOk,
			ContractInputs:    contractInputs,
			GeneratedOutputs:  generatedOutputs,
			InputSignatures:   tx.InputSignatures,
			ScriptSignatures:  tx.ScriptSignatures,
			BlockHash:         b.Hash,
		})
	}
	return out, nil
}
