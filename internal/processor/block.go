package processor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

// BlockProcessor converts a batch to block rows and batch-inserts them
// with on-conflict-do-nothing semantics (spec.md §4.4).
type BlockProcessor struct{ base }

// NewBlockProcessor builds a BlockProcessor.
func NewBlockProcessor(s *store.Store, log *logrus.Logger) *BlockProcessor {
	return &BlockProcessor{base: newBase(s, log)}
}

func (p *BlockProcessor) Name() string { return "block_processor" }

func (p *BlockProcessor) ProcessBlocks(ctx context.Context, _, _ int64, batch [][]types.BlockAndEvents) error {
	blocks := p.flattenBlocks(batch)
	if len(blocks) == 0 {
		return nil
	}
	if err := p.store.InsertBlocks(ctx, blocks); err != nil {
		return fmt.Errorf("block processor: %w", err)
	}
	return nil
}
