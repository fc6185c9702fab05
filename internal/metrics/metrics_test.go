package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveBlocksIngestedIncrementsLabelledCounter(t *testing.T) {
	m := New()
	m.ObserveBlocksIngested("block_processor", 5)
	m.ObserveBlocksIngested("block_processor", 3)
	m.ObserveBlocksIngested("event_processor", 1)

	got := testutil.ToFloat64(m.blocksIngested.WithLabelValues("block_processor"))
	if got != 8 {
		t.Fatalf("block_processor counter = %v, want 8", got)
	}
	got = testutil.ToFloat64(m.blocksIngested.WithLabelValues("event_processor"))
	if got != 1 {
		t.Fatalf("event_processor counter = %v, want 1", got)
	}
}

func TestObserveBlocksIngestedIgnoresNonPositive(t *testing.T) {
	m := New()
	m.ObserveBlocksIngested("block_processor", 0)
	m.ObserveBlocksIngested("block_processor", -1)

	got := testutil.ToFloat64(m.blocksIngested.WithLabelValues("block_processor"))
	if got != 0 {
		t.Fatalf("counter should stay at 0 for non-positive observations, got %v", got)
	}
}

func TestObserveProcessorError(t *testing.T) {
	m := New()
	m.ObserveProcessorError("lending_contract_processor")
	m.ObserveProcessorError("lending_contract_processor")

	got := testutil.ToFloat64(m.processorErrors.WithLabelValues("lending_contract_processor"))
	if got != 2 {
		t.Fatalf("processor error counter = %v, want 2", got)
	}
}

func TestSetCheckpointLag(t *testing.T) {
	m := New()
	m.SetCheckpointLag("block_processor", 42.5)

	got := testutil.ToFloat64(m.checkpointLagSec.WithLabelValues("block_processor"))
	if got != 42.5 {
		t.Fatalf("checkpoint lag gauge = %v, want 42.5", got)
	}
}
