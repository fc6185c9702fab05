package processor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

// TransactionProcessor extracts transactions from each block and
// batch-inserts them (spec.md §4.4).
type TransactionProcessor struct{ base }

// NewTransactionProcessor builds a TransactionProcessor.
func NewTransactionProcessor(s *store.Store, log *logrus.Logger) *TransactionProcessor {
	return &TransactionProcessor{base: newBase(s, log)}
}

func (p *TransactionProcessor) Name() string { return "transaction_processor" }

func (p *TransactionProcessor) ProcessBlocks(ctx context.Context, _, _ int64, batch [][]types.BlockAndEvents) error {
	txs := p.flattenTransactions(batch)
	if len(txs) == 0 {
		return nil
	}
	if err := p.store.InsertTransactions(ctx, txs); err != nil {
		return fmt.Errorf("transaction processor: %w", err)
	}
	return nil
}
