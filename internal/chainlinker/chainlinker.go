// Package chainlinker resolves reorganizations: it walks parent pointers
// per shard, flipping main_chain flags on blocks (and their transactions)
// until it reaches a block that is missing locally or has no parent; blocks
// already on the main chain do not end the walk (spec.md §4.5).
package chainlinker

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/model"
	"github.com/synnergy-labs/shardindexer/internal/nodeclient"
	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

// ErrInvariantViolation is returned when a non-main block's recorded
// shard pair disagrees with the shard pair being linked — spec.md §7
// "Invariant violation", treated as fatal for the range by the caller.
var ErrInvariantViolation = errors.New("chainlinker: shard pair mismatch on non-main block")

// blockStore is the narrow slice of *store.Store the Linker depends on,
// following the teacher's narrow-interface-per-dependency idiom
// (core/cross_chain.go's KVStore) so tests can supply a fake.
type blockStore interface {
	GetBlockByHash(ctx context.Context, hash string) (model.Block, error)
	FetchBlockHashesAtHeightFilterOne(ctx context.Context, chainFrom, chainTo, height int64, ignoreHash string) ([]string, error)
	UpdateMainChainStatus(ctx context.Context, hashes []string, mainChain bool) error
	InsertBlocks(ctx context.Context, blocks []model.Block) error
	InsertBlockAndEvents(ctx context.Context, block model.Block, events []model.Event) error
}

// nodeFetcher is the narrow slice of *nodeclient.Client the Linker depends
// on to recover a missing parent.
type nodeFetcher interface {
	GetBlockAndEventsByHash(ctx context.Context, hash string) (types.BlockAndEvents, error)
}

// Linker walks parent pointers to resolve reorgs against the Store,
// fetching missing parents from the Node Client on demand.
type Linker struct {
	store    blockStore
	client   nodeFetcher
	groupNum int
	log      *logrus.Logger
}

// New builds a Linker. groupNum is the configured parent index into
// Block.Deps (DESIGN.md Open Question 1).
func New(s *store.Store, client *nodeclient.Client, groupNum int, log *logrus.Logger) *Linker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Linker{store: s, client: client, groupNum: groupNum, log: log}
}

// Link implements spec.md §4.5's link(block) algorithm.
func (l *Linker) Link(ctx context.Context, block model.Block) error {
	parentHash, hasParent := block.Parent(l.groupNum)
	if !hasParent {
		if block.Height != 0 {
			return fmt.Errorf("chainlinker: block %s has no parent but height %d != 0", block.Hash, block.Height)
		}
		if err := l.insertIfAbsent(ctx, block); err != nil {
			return err
		}
		_, err := l.UpdateMainChain(ctx, block.Hash, block.ChainFrom, block.ChainTo)
		return err
	}

	parent, err := l.store.GetBlockByHash(ctx, parentHash)
	switch {
	case errors.Is(err, store.ErrNotFound):
		parent, err = l.fetchAndInsertParent(ctx, parentHash)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("chainlinker: look up parent %s: %w", parentHash, err)
	default:
		if !parent.MainChain {
			if _, err := l.UpdateMainChain(ctx, parent.Hash, block.ChainFrom, block.ChainTo); err != nil {
				return err
			}
		}
	}

	if err := l.insertIfAbsent(ctx, block); err != nil {
		return err
	}
	_, err = l.UpdateMainChain(ctx, block.Hash, block.ChainFrom, block.ChainTo)
	return err
}

func (l *Linker) insertIfAbsent(ctx context.Context, block model.Block) error {
	_, err := l.store.GetBlockByHash(ctx, block.Hash)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("chainlinker: check existing block %s: %w", block.Hash, err)
	}
	if err := l.store.InsertBlocks(ctx, []model.Block{block}); err != nil {
		return fmt.Errorf("chainlinker: insert block %s: %w", block.Hash, err)
	}
	return nil
}

// fetchAndInsertParent fetches a missing parent via the Node Client and
// inserts it (block and events transactionally), per spec.md §4.5 step 2.
func (l *Linker) fetchAndInsertParent(ctx context.Context, hash string) (model.Block, error) {
	l.log.WithField("parent_hash", hash).Info("fetching missing parent block")
	be, err := l.client.GetBlockAndEventsByHash(ctx, hash)
	if err != nil {
		return model.Block{}, fmt.Errorf("chainlinker: fetch missing parent %s: %w", hash, err)
	}
	block, err := model.BlockFromEntry(be.Block)
	if err != nil {
		return model.Block{}, fmt.Errorf("chainlinker: convert fetched parent %s: %w", hash, err)
	}
	evs := model.EventsFromEntries([][]types.BlockAndEvents{{be}})
	if err := l.store.InsertBlockAndEvents(ctx, block, evs); err != nil {
		return model.Block{}, fmt.Errorf("chainlinker: insert fetched parent %s: %w", hash, err)
	}
	return block, nil
}

// UpdateMainChain implements spec.md §4.5's update_main_chain(hash,
// shard_from, shard_to) algorithm: walk parents, demoting stale siblings
// and promoting the given branch at each step, until a block is missing
// locally or has no parent. The loop is NOT globally transactional; each step's demote +
// promote is transactional per spec.md §4.5, and partial progress is
// recoverable because the algorithm is idempotent.
func (l *Linker) UpdateMainChain(ctx context.Context, hash string, shardFrom, shardTo int64) (string, error) {
	current := hash
	for {
		b, err := l.store.GetBlockByHash(ctx, current)
		if errors.Is(err, store.ErrNotFound) {
			return current, nil
		}
		if err != nil {
			return "", fmt.Errorf("chainlinker: look up %s: %w", current, err)
		}

		if !b.MainChain {
			if b.ChainFrom != shardFrom || b.ChainTo != shardTo {
				return "", fmt.Errorf("%w: block %s has (%d,%d), expected (%d,%d)",
					ErrInvariantViolation, b.Hash, b.ChainFrom, b.ChainTo, shardFrom, shardTo)
			}
		}

		siblings, err := l.store.FetchBlockHashesAtHeightFilterOne(ctx, b.ChainFrom, b.ChainTo, b.Height, b.Hash)
		if err != nil {
			return "", fmt.Errorf("chainlinker: fetch siblings of %s: %w", b.Hash, err)
		}
		if err := l.store.UpdateMainChainStatus(ctx, siblings, false); err != nil {
			return "", fmt.Errorf("chainlinker: demote siblings of %s: %w", b.Hash, err)
		}
		if err := l.store.UpdateMainChainStatus(ctx, []string{current}, true); err != nil {
			return "", fmt.Errorf("chainlinker: promote %s: %w", current, err)
		}

		parent, hasParent := b.Parent(l.groupNum)
		if !hasParent {
			return current, nil
		}
		current = parent
	}
}
