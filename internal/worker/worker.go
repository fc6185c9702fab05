// Package worker implements the per-processor scheduling loop (spec.md
// §4.6): read checkpoint, poll a timestamp range, invoke the Chain Linker
// inside the reorg window, dispatch to the processor, advance the
// checkpoint, and retry on failure.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/chainlinker"
	"github.com/synnergy-labs/shardindexer/internal/config"
	"github.com/synnergy-labs/shardindexer/internal/metrics"
	"github.com/synnergy-labs/shardindexer/internal/model"
	"github.com/synnergy-labs/shardindexer/internal/nodeclient"
	"github.com/synnergy-labs/shardindexer/internal/processor"
	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

// checkpointStore is the narrow slice of *store.Store the Worker depends
// on, following the same narrow-interface-per-dependency idiom as
// internal/chainlinker so tests can supply a fake.
type checkpointStore interface {
	GetLastTimestamp(ctx context.Context, processor string) (int64, error)
	UpdateLastTimestamp(ctx context.Context, processor string, ts int64) error
}

// blockFetcher is the narrow slice of *nodeclient.Client the Worker polls.
type blockFetcher interface {
	GetBlocksAndEvents(ctx context.Context, fromTs, toTs int64) (types.BlocksAndEventsPerTimestampRange, error)
}

// blockLinker is the narrow slice of *chainlinker.Linker the Worker calls
// inside the reorg window.
type blockLinker interface {
	Link(ctx context.Context, block model.Block) error
}

// Worker drives one processor's ingestion loop against one Store/Client
// pair. One goroutine per processor; workers never share in-flight
// ranges (spec.md §5).
type Worker struct {
	store     checkpointStore
	client    blockFetcher
	processor processor.Processor
	linker    blockLinker
	sync      config.SyncOptions
	reorg     time.Duration
	metrics   *metrics.Metrics
	log       *logrus.Logger
}

// New builds a Worker for one processor. metrics may be nil, in which case
// no Prometheus observations are recorded.
func New(s *store.Store, client *nodeclient.Client, proc processor.Processor, linker *chainlinker.Linker, sync config.SyncOptions, reorgWindow time.Duration, m *metrics.Metrics, log *logrus.Logger) *Worker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if sync.Step == 0 {
		sync = config.DefaultSyncOptions()
	}
	if sync.SyncDuration == 0 {
		sync.SyncDuration = time.Second
	}
	w := &Worker{store: s, client: client, processor: proc, sync: sync, reorg: reorgWindow, metrics: m, log: log}
	if linker != nil {
		w.linker = linker
	}
	return w
}

// nowMillis is overridable in tests; production code uses wall-clock time.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Run executes the loop described in spec.md §4.6 until ctx is cancelled.
// Cancellation loses any in-progress range safely: the checkpoint is only
// advanced after a successful (poll, link, process) cycle.
func (w *Worker) Run(ctx context.Context) error {
	name := w.processor.Name()
	log := w.log.WithField("processor", name)

	lastTs, err := w.store.GetLastTimestamp(ctx, name)
	if err != nil {
		return err
	}
	currentTs := lastTs
	if w.sync.StartTs > currentTs {
		currentTs = w.sync.StartTs
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		toTs := currentTs + w.sync.Step
		if err := w.runRangeUntilSuccess(ctx, log, currentTs, toTs); err != nil {
			return err // only a cancelled context escapes the retry loop
		}
		currentTs = toTs + 1
		w.sleep(ctx, w.sync.SyncDuration)
	}
}

// runRangeUntilSuccess retries the same (fromTs, toTs) range forever on
// transient failure, per spec.md §4.6 steps (b) and (d): "log, sleep
// sync_duration, continue (do NOT advance)". backoff.ConstantBackOff with
// unlimited elapsed time reproduces that exactly (SPEC_FULL.md §2
// "Retry/backoff"); it returns early only when ctx is cancelled.
func (w *Worker) runRangeUntilSuccess(ctx context.Context, log *logrus.Entry, fromTs, toTs int64) error {
	policy := backoff.WithContext(backoff.NewConstantBackOff(w.sync.SyncDuration), ctx)
	return backoff.Retry(func() error {
		err := w.runOnce(ctx, log, fromTs, toTs)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		if w.metrics != nil {
			w.metrics.ObserveProcessorError(w.processor.Name())
		}
		log.WithError(err).Warn("cycle failed, retrying after sleep")
		return err
	}, policy)
}

// runOnce performs steps (b)-(e) of spec.md §4.6's run sequence for a
// single range. It never advances the checkpoint itself — the caller does
// that only on success, keeping re-delivery exactly the caller's concern.
func (w *Worker) runOnce(ctx context.Context, log *logrus.Entry, fromTs, toTs int64) error {
	start := time.Now()
	name := w.processor.Name()

	batch, err := w.client.GetBlocksAndEvents(ctx, fromTs, toTs)
	if err != nil {
		return err
	}

	if nowMillis()-toTs <= w.reorg.Milliseconds() {
		if err := w.linkBatch(ctx, batch.BlocksAndEvents); err != nil {
			return err
		}
	}

	if err := w.processor.ProcessBlocks(ctx, fromTs, toTs, batch.BlocksAndEvents); err != nil {
		return err
	}

	if err := w.store.UpdateLastTimestamp(ctx, name, toTs); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.ObserveBlocksIngested(name, countBlocks(batch.BlocksAndEvents))
		w.metrics.ObserveRangeCycleDuration(name, time.Since(start).Seconds())
		w.metrics.SetCheckpointLag(name, float64(nowMillis()-toTs)/1000)
	}
	log.WithFields(logrus.Fields{"from_ts": fromTs, "to_ts": toTs}).Debug("advanced checkpoint")
	return nil
}

func countBlocks(shards [][]types.BlockAndEvents) int {
	n := 0
	for _, shard := range shards {
		n += len(shard)
	}
	return n
}

func (w *Worker) linkBatch(ctx context.Context, shards [][]types.BlockAndEvents) error {
	if w.linker == nil {
		return nil
	}
	blocks, err := model.BlocksFromEntries(shards)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := w.linker.Link(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// sleep waits for d or until ctx is cancelled — step (f)'s plain
// between-ranges pause, distinct from runRangeUntilSuccess's retry policy.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
