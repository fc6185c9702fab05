package processor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

// EventProcessor converts a batch to event rows and batch-inserts them
// (spec.md §4.4).
type EventProcessor struct{ base }

// NewEventProcessor builds an EventProcessor.
func NewEventProcessor(s *store.Store, log *logrus.Logger) *EventProcessor {
	return &EventProcessor{base: newBase(s, log)}
}

func (p *EventProcessor) Name() string { return "event_processor" }

func (p *EventProcessor) ProcessBlocks(ctx context.Context, _, _ int64, batch [][]types.BlockAndEvents) error {
	events := p.flattenEvents(batch)
	if len(events) == 0 {
		return nil
	}
	if err := p.store.InsertEvents(ctx, events); err != nil {
		return fmt.Errorf("event processor: %w", err)
	}
	return nil
}
