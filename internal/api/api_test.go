package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/model"
	"github.com/synnergy-labs/shardindexer/internal/store"
)

type fakeReader struct {
	blocks      []model.Block
	blockByHash map[string]model.Block
	txs         []model.Transaction
	txByHash    map[string]model.Transaction
	events      []model.Event
	lastLimit   int
	lastOffset  int
}

func (f *fakeReader) ListBlocks(_ context.Context, limit, offset int) ([]model.Block, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return f.blocks, nil
}

func (f *fakeReader) GetBlockByHash(_ context.Context, hash string) (model.Block, error) {
	b, ok := f.blockByHash[hash]
	if !ok {
		return model.Block{}, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeReader) ListBlocksByHeight(_ context.Context, height int64, limit, offset int) ([]model.Block, error) {
	var out []model.Block
	for _, b := range f.blocks {
		if b.Height == height {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeReader) ListTransactionsByBlockHash(_ context.Context, hash string, limit, offset int) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, tx := range f.txs {
		if tx.BlockHash == hash {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeReader) ListTransactions(_ context.Context, limit, offset int) ([]model.Transaction, error) {
	return f.txs, nil
}

func (f *fakeReader) GetTransactionByHash(_ context.Context, hash string) (model.Transaction, error) {
	tx, ok := f.txByHash[hash]
	if !ok {
		return model.Transaction{}, store.ErrNotFound
	}
	return tx, nil
}

func (f *fakeReader) ListEvents(_ context.Context, limit, offset int) ([]model.Event, error) {
	return f.events, nil
}

func (f *fakeReader) ListEventsByContract(_ context.Context, address string, limit, offset int) ([]model.Event, error) {
	var out []model.Event
	for _, e := range f.events {
		if e.ContractAddress == address {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeReader) ListEventsByTxID(_ context.Context, txID string) ([]model.Event, error) {
	var out []model.Event
	for _, e := range f.events {
		if e.TxID == txID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestServer(r *fakeReader) *Server {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	s := &Server{router: mux.NewRouter(), store: r, log: log}
	s.routes()
	return s
}

func TestHandleGetBlockByHashFound(t *testing.T) {
	r := &fakeReader{blockByHash: map[string]model.Block{"abc": {Hash: "abc", Height: 5}}}
	s := newTestServer(r)

	req := httptest.NewRequest(http.MethodGet, "/blocks/hash/abc", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got model.Block
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Hash != "abc" || got.Height != 5 {
		t.Fatalf("unexpected block: %+v", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header to be set")
	}
}

func TestHandleGetBlockByHashNotFound(t *testing.T) {
	r := &fakeReader{blockByHash: map[string]model.Block{}}
	s := newTestServer(r)

	req := httptest.NewRequest(http.MethodGet, "/blocks/hash/missing", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleListBlocksPassesPageParams(t *testing.T) {
	r := &fakeReader{blocks: []model.Block{{Hash: "a"}, {Hash: "b"}}}
	s := newTestServer(r)

	req := httptest.NewRequest(http.MethodGet, "/blocks?limit=10&offset=20", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if r.lastLimit != 10 || r.lastOffset != 20 {
		t.Fatalf("limit/offset not forwarded: got (%d, %d)", r.lastLimit, r.lastOffset)
	}
	var got []model.Block
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(got))
	}
}

func TestHandleListEventsByContract(t *testing.T) {
	r := &fakeReader{events: []model.Event{
		{TxID: "tx1", ContractAddress: "0xabc", EventIndex: 1},
		{TxID: "tx2", ContractAddress: "0xother", EventIndex: 2},
	}}
	s := newTestServer(r)

	req := httptest.NewRequest(http.MethodGet, "/events/contract/0xabc", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var got []model.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].TxID != "tx1" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestHandleListBlocksByHeightRejectsNonNumeric(t *testing.T) {
	s := newTestServer(&fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/blocks/height/notanumber", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (route shouldn't match non-numeric height)", rec.Code)
	}
}
