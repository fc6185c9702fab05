package nodeclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/synnergy-labs/shardindexer/internal/types"
)

func TestGetBlocksAndEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blockflow/blocks-with-events" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("fromTs"); got != "1" {
			t.Fatalf("fromTs = %q, want 1", got)
		}
		resp := types.BlocksAndEventsPerTimestampRange{
			BlocksAndEvents: [][]types.BlockAndEvents{
				{{Block: types.BlockEntry{Hash: "h1"}}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL, nil, nil)
	out, err := c.GetBlocksAndEvents(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetBlocksAndEvents returned error: %v", err)
	}
	if len(out.BlocksAndEvents) != 1 || out.BlocksAndEvents[0][0].Block.Hash != "h1" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestGetBlockErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil, nil)
	if _, err := c.GetBlock(context.Background(), "h1"); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestParseNetworkDefaultsToMainnet(t *testing.T) {
	if ParseNetwork("garbage") != Mainnet {
		t.Fatalf("unrecognized environment should default to Mainnet")
	}
	if ParseNetwork("testnet") != Testnet {
		t.Fatalf("expected Testnet")
	}
}
