// Package processor implements the polymorphic processor dispatch
// (spec.md §4.4): a flat set of variants sharing one operation,
// process_blocks, each idempotent with respect to re-delivery of the same
// (from_ts, to_ts) range.
package processor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/model"
	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

// Processor is implemented by every processor variant. A flat interface,
// not a class hierarchy (SPEC_FULL.md §5.4).
type Processor interface {
	Name() string
	ProcessBlocks(ctx context.Context, fromTs, toTs int64, batch [][]types.BlockAndEvents) error
}

// base holds the Store handle and logger shared by every variant; no
// processor may outlive the Worker that owns the Store (spec.md §9
// "Ownership of the pool").
type base struct {
	store *store.Store
	log   *logrus.Logger
}

func newBase(s *store.Store, log *logrus.Logger) base {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return base{store: s, log: log}
}

// flattenBlocks converts every block in the batch to its row shape,
// logging and skipping (not failing the whole batch for) any single block
// that fails shape validation (spec.md §7 "Data shape" errors: log and
// skip the offending record).
func (b base) flattenBlocks(batch [][]types.BlockAndEvents) []model.Block {
	var out []model.Block
	for _, shard := range batch {
		for _, be := range shard {
			block, err := model.BlockFromEntry(be.Block)
			if err != nil {
				b.log.WithError(err).Warn("skipping malformed block")
				continue
			}
			out = append(out, block)
		}
	}
	return out
}

func (b base) flattenEvents(batch [][]types.BlockAndEvents) []model.Event {
	return model.EventsFromEntries(batch)
}

func (b base) flattenTransactions(batch [][]types.BlockAndEvents) []model.Transaction {
	var out []model.Transaction
	for _, shard := range batch {
		for _, be := range shard {
			txs, err := model.TransactionsFromBlock(be.Block)
			if err != nil {
				b.log.WithError(err).Warn("skipping malformed transactions for block")
				continue
			}
			out = append(out, txs...)
		}
	}
	return out
}
