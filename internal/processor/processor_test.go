package processor

import (
	"context"
	"testing"

	"github.com/synnergy-labs/shardindexer/internal/types"
)

func TestDefaultProcessorIsNoOp(t *testing.T) {
	p := NewDefaultProcessor(nil, nil)
	batch := [][]types.BlockAndEvents{{{Block: types.BlockEntry{Hash: "b1"}}}}
	if err := p.ProcessBlocks(context.Background(), 0, 1000, batch); err != nil {
		t.Fatalf("DefaultProcessor.ProcessBlocks returned error: %v", err)
	}
}

func TestBlockProcessorSkipsEmptyBatch(t *testing.T) {
	p := NewBlockProcessor(nil, nil)
	if err := p.ProcessBlocks(context.Background(), 0, 1000, nil); err != nil {
		t.Fatalf("empty batch should short-circuit before touching the store: %v", err)
	}
}

func TestEventProcessorSkipsEmptyBatch(t *testing.T) {
	p := NewEventProcessor(nil, nil)
	if err := p.ProcessBlocks(context.Background(), 0, 1000, nil); err != nil {
		t.Fatalf("empty batch should short-circuit before touching the store: %v", err)
	}
}

func TestTransactionProcessorSkipsEmptyBatch(t *testing.T) {
	p := NewTransactionProcessor(nil, nil)
	if err := p.ProcessBlocks(context.Background(), 0, 1000, nil); err != nil {
		t.Fatalf("empty batch should short-circuit before touching the store: %v", err)
	}
}

func TestNames(t *testing.T) {
	cases := map[string]Processor{
		"default_processor":     NewDefaultProcessor(nil, nil),
		"block_processor":       NewBlockProcessor(nil, nil),
		"event_processor":       NewEventProcessor(nil, nil),
		"transaction_processor": NewTransactionProcessor(nil, nil),
	}
	for want, p := range cases {
		if p.Name() != want {
			t.Errorf("Name() = %q, want %q", p.Name(), want)
		}
	}
}
