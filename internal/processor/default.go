package processor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

// DefaultProcessor is a no-op: it exists to let the Worker Loop advance
// checkpoints without any side effect (spec.md §4.4).
type DefaultProcessor struct{ base }

// NewDefaultProcessor builds a DefaultProcessor.
func NewDefaultProcessor(s *store.Store, log *logrus.Logger) *DefaultProcessor {
	return &DefaultProcessor{base: newBase(s, log)}
}

func (p *DefaultProcessor) Name() string { return "default_processor" }

func (p *DefaultProcessor) ProcessBlocks(_ context.Context, _, _ int64, _ [][]types.BlockAndEvents) error {
	return nil
}
