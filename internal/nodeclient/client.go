// Package nodeclient talks to a single shard node's REST surface.
// It performs no retries of its own: on any error the caller (the worker
// loop) decides whether and how to retry.
package nodeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"golang.org/x/time/rate"

	"github.com/synnergy-labs/shardindexer/internal/types"
	"github.com/synnergy-labs/shardindexer/pkg/utils"
)

// Network selects which node base URL a Client talks to.
type Network int

const (
	Development Network = iota
	Testnet
	Mainnet
	Custom
)

// ParseNetwork maps an ENVIRONMENT value onto a Network, defaulting to
// Mainnet for anything unrecognized, matching the original's Default impl.
func ParseNetwork(env string) Network {
	switch env {
	case "development":
		return Development
	case "testnet":
		return Testnet
	case "mainnet":
		return Mainnet
	default:
		return Mainnet
	}
}

// BaseURL resolves a Network (other than Custom) to its node URL, reading
// the per-network override env var the original client.rs honors.
func (n Network) BaseURL() string {
	switch n {
	case Development:
		return utils.EnvOrDefault("DEV_NODE_URL", "http://127.0.0.1:12973")
	case Testnet:
		return utils.EnvOrDefault("TESTNET_NODE_URL", "https://node.testnet.alephium.org")
	case Mainnet:
		return utils.EnvOrDefault("MAINNET_NODE_URL", "https://node.mainnet.alephium.org")
	default:
		return ""
	}
}

// Client is a thin, rate-limited HTTP client over one node's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// New builds a Client against baseURL. limiter may be nil, in which case
// requests are never throttled. httpClient, when nil, defaults to a client
// with no Timeout: the client does not time out remote calls itself, per
// spec.md §5 — cancellation is by the caller's context (worker loop retry,
// or task abort at shutdown).
func New(baseURL string, httpClient *http.Client, limiter *rate.Limiter) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, limiter: limiter}
}

// NewForNetwork builds a Client for the given Network, resolving its base
// URL via the per-network env var overrides. customURL is used only when
// network == Custom.
func NewForNetwork(network Network, customURL string, httpClient *http.Client, limiter *rate.Limiter) *Client {
	base := customURL
	if network != Custom {
		base = network.BaseURL()
	}
	return New(base, httpClient, limiter)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return utils.Wrap(err, "rate limiter")
		}
	}
	u := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(query) > 0 {
		u = u + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response for %s: %w", path, err)
	}
	return nil
}

// GetBlocks lists blocks (without events) in the given millisecond
// timestamp range. GET /blockflow/blocks?fromTs=..&toTs=..
func (c *Client) GetBlocks(ctx context.Context, fromTs, toTs int64) (types.BlocksPerTimestampRange, error) {
	var out types.BlocksPerTimestampRange
	q := url.Values{"fromTs": {fmt.Sprint(fromTs)}, "toTs": {fmt.Sprint(toTs)}}
	err := c.get(ctx, "blockflow/blocks", q, &out)
	return out, err
}

// GetBlocksAndEvents lists blocks with their events in the given
// millisecond timestamp range.
// GET /blockflow/blocks-with-events?fromTs=..&toTs=..
func (c *Client) GetBlocksAndEvents(ctx context.Context, fromTs, toTs int64) (types.BlocksAndEventsPerTimestampRange, error) {
	var out types.BlocksAndEventsPerTimestampRange
	q := url.Values{"fromTs": {fmt.Sprint(fromTs)}, "toTs": {fmt.Sprint(toTs)}}
	err := c.get(ctx, "blockflow/blocks-with-events", q, &out)
	return out, err
}

// GetBlock fetches a single block by hash, without events.
// GET /blockflow/blocks/{hash}
func (c *Client) GetBlock(ctx context.Context, hash string) (types.BlockEntry, error) {
	var out types.BlockEntry
	err := c.get(ctx, fmt.Sprintf("blockflow/blocks/%s", hash), nil, &out)
	return out, err
}

// GetBlockAndEventsByHash fetches a single block together with its events.
// GET /blockflow/blocks-with-events/{hash}
func (c *Client) GetBlockAndEventsByHash(ctx context.Context, hash string) (types.BlockAndEvents, error) {
	var out types.BlockAndEvents
	err := c.get(ctx, fmt.Sprintf("blockflow/blocks-with-events/%s", hash), nil, &out)
	return out, err
}

// GetBlockHeader fetches a single block's header.
// GET /blockflow/headers/{hash}
func (c *Client) GetBlockHeader(ctx context.Context, hash string) (types.BlockHeaderEntry, error) {
	var out types.BlockHeaderEntry
	err := c.get(ctx, fmt.Sprintf("blockflow/headers/%s", hash), nil, &out)
	return out, err
}

// GetTransaction fetches a single transaction's details.
// GET /transactions/details/{txId}
func (c *Client) GetTransaction(ctx context.Context, txID string) (types.Transaction, error) {
	var out types.Transaction
	err := c.get(ctx, fmt.Sprintf("transactions/details/%s", txID), nil, &out)
	return out, err
}

// DefaultNetwork reads ENVIRONMENT and resolves the matching Network.
func DefaultNetwork() Network {
	return ParseNetwork(os.Getenv("ENVIRONMENT"))
}
