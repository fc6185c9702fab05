package chainlinker

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/model"
	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

type fakeStore struct {
	blocks         map[string]model.Block
	demoted        [][]string
	promoted       [][]string
	fetchSiblingsV []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{blocks: map[string]model.Block{}}
}

func (f *fakeStore) GetBlockByHash(_ context.Context, hash string) (model.Block, error) {
	b, ok := f.blocks[hash]
	if !ok {
		return model.Block{}, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) FetchBlockHashesAtHeightFilterOne(_ context.Context, chainFrom, chainTo, height int64, ignoreHash string) ([]string, error) {
	var out []string
	for h, b := range f.blocks {
		if b.ChainFrom == chainFrom && b.ChainTo == chainTo && b.Height == height && h != ignoreHash {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateMainChainStatus(_ context.Context, hashes []string, mainChain bool) error {
	if mainChain {
		f.promoted = append(f.promoted, append([]string{}, hashes...))
	} else {
		f.demoted = append(f.demoted, append([]string{}, hashes...))
	}
	for _, h := range hashes {
		if b, ok := f.blocks[h]; ok {
			b.MainChain = mainChain
			f.blocks[h] = b
		}
	}
	return nil
}

func (f *fakeStore) InsertBlocks(_ context.Context, blocks []model.Block) error {
	for _, b := range blocks {
		if _, exists := f.blocks[b.Hash]; !exists {
			f.blocks[b.Hash] = b
		}
	}
	return nil
}

func (f *fakeStore) InsertBlockAndEvents(_ context.Context, block model.Block, _ []model.Event) error {
	f.blocks[block.Hash] = block
	return nil
}

type fakeFetcher struct {
	calls int
	resp  types.BlockAndEvents
	err   error
}

func (f *fakeFetcher) GetBlockAndEventsByHash(_ context.Context, _ string) (types.BlockAndEvents, error) {
	f.calls++
	return f.resp, f.err
}

func newLinker(s *fakeStore, c *fakeFetcher) *Linker {
	return &Linker{store: s, client: c, groupNum: 4, log: logrus.StandardLogger()}
}

func TestLinkGenesisBlock(t *testing.T) {
	s := newFakeStore()
	l := newLinker(s, &fakeFetcher{})
	block := model.Block{Hash: "genesis", Height: 0, ChainFrom: 0, ChainTo: 0}

	if err := l.Link(context.Background(), block); err != nil {
		t.Fatalf("Link returned error: %v", err)
	}
	got, ok := s.blocks["genesis"]
	if !ok {
		t.Fatalf("genesis block was not inserted")
	}
	if !got.MainChain {
		t.Fatalf("genesis block should be promoted to main chain")
	}
}

func TestUpdateMainChainDemotesSiblingsAndPromotesBranch(t *testing.T) {
	s := newFakeStore()
	deps := []string{"d0", "d1", "d2", "d3", "parent"}
	grandparentDeps := []string{"g0", "g1", "g2", "g3", "not-in-store"}
	s.blocks["A"] = model.Block{Hash: "A", Height: 100, ChainFrom: 0, ChainTo: 0, MainChain: true, Deps: deps}
	s.blocks["B"] = model.Block{Hash: "B", Height: 100, ChainFrom: 0, ChainTo: 0, MainChain: false, Deps: deps}
	s.blocks["parent"] = model.Block{Hash: "parent", Height: 99, ChainFrom: 0, ChainTo: 0, MainChain: true, Deps: grandparentDeps}

	l := newLinker(s, &fakeFetcher{})
	if _, err := l.UpdateMainChain(context.Background(), "B", 0, 0); err != nil {
		t.Fatalf("UpdateMainChain returned error: %v", err)
	}
	if s.blocks["A"].MainChain {
		t.Fatalf("A should have been demoted")
	}
	if !s.blocks["B"].MainChain {
		t.Fatalf("B should have been promoted")
	}
}

func TestLinkFetchesMissingParentExactlyOnce(t *testing.T) {
	s := newFakeStore()
	deps := []string{"d0", "d1", "d2", "d3", "missing-parent"}
	fetcher := &fakeFetcher{resp: types.BlockAndEvents{
		Block: types.BlockEntry{Hash: "missing-parent", Height: 5, ChainFrom: 0, ChainTo: 0, Deps: []string{"g0", "g1", "g2", "g3", "g4"}},
	}}
	l := newLinker(s, fetcher)

	child := model.Block{Hash: "child", Height: 6, ChainFrom: 0, ChainTo: 0, Deps: deps}
	if err := l.Link(context.Background(), child); err != nil {
		t.Fatalf("Link returned error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected exactly one fetch for the missing parent, got %d", fetcher.calls)
	}
	if _, ok := s.blocks["missing-parent"]; !ok {
		t.Fatalf("missing parent was not inserted")
	}
	if _, ok := s.blocks["child"]; !ok {
		t.Fatalf("child was not inserted")
	}
}

func TestUpdateMainChainInvariantViolation(t *testing.T) {
	s := newFakeStore()
	s.blocks["B"] = model.Block{Hash: "B", Height: 10, ChainFrom: 1, ChainTo: 1, MainChain: false}
	l := newLinker(s, &fakeFetcher{})

	_, err := l.UpdateMainChain(context.Background(), "B", 0, 0)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}
