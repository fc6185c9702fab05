// Package store is the pgx-backed persistence layer: batch insert, point
// lookups, main-chain flips, and per-processor checkpoints.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/model"
)

// ErrNotFound is returned by point lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// Store is the connection-pooled persistence handle shared by the Worker
// and every Processor (spec.md §9 "Ownership of the pool").
type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// New wraps an already-connected pool, following the teacher's
// logger-injected constructor idiom (core/storage.go's NewStorage(cfg, lg, ...)).
func New(pool *pgxpool.Pool, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{pool: pool, log: log}
}

// Connect builds a pgxpool.Pool for databaseURL with maxConns, matching
// r2d2::Pool::builder() in the original's db.rs::initialize_db_pool.
func Connect(ctx context.Context, databaseURL string, maxConns int32, log *logrus.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return New(pool, log), nil
}

// Close releases the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// acquire retries on pool exhaustion with a structured-log warning rather
// than failing fast, per spec.md §4.2 ("does not time out"). The caller's
// context still bounds how long this can run.
func (s *Store) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	for {
		conn, err := s.pool.Acquire(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire connection: %w", err)
		}
		s.log.WithError(err).Warn("pool exhausted, retrying acquire")
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire connection: %w", ctx.Err())
		}
	}
}

// InsertBlocks batch-inserts block rows, ignoring rows whose hash already
// exists (spec.md §4.2 "no-op on conflict").
func (s *Store) InsertBlocks(ctx context.Context, blocks []model.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	batch := &pgx.Batch{}
	for _, b := range blocks {
		batch.Queue(insertBlockSQL,
			b.Hash, b.Timestamp, b.ChainFrom, b.ChainTo, b.Height, b.Deps,
			b.Nonce, b.Version, b.DepStateHash, b.TxsHash, b.TxNumber, b.Target,
			b.MainChain, b.GhostUncles)
	}
	br := conn.SendBatch(ctx, batch)
	defer br.Close()
	for range blocks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert blocks: %w", err)
		}
	}
	s.log.WithField("count", len(blocks)).Info("inserted blocks")
	return nil
}

const insertBlockSQL = `
INSERT INTO blocks (hash, timestamp, chain_from, chain_to, height, deps, nonce,
	version, dep_state_hash, txs_hash, tx_number, target, main_chain, ghost_uncles)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (hash) DO NOTHING`

// InsertEvents batch-inserts event rows.
func (s *Store) InsertEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(insertEventSQL, e.TxID, e.ContractAddress, e.EventIndex, e.Fields)
	}
	br := conn.SendBatch(ctx, batch)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
	}
	return nil
}

const insertEventSQL = `
INSERT INTO events (tx_id, contract_address, event_index, fields)
VALUES ($1,$2,$3,$4)
ON CONFLICT (tx_id, event_index) DO NOTHING`

// InsertTransactions batch-inserts transaction rows.
func (s *Store) InsertTransactions(ctx context.Context, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(insertTxSQL, tx.TxHash, tx.Unsigned, tx.ScriptExecutionOk,
			tx.ContractInputs, tx.GeneratedOutputs, tx.InputSignatures,
			tx.ScriptSignatures, tx.BlockHash)
	}
	br := conn.SendBatch(ctx, batch)
	defer br.Close()
	for range txs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
	}
	return nil
}

const insertTxSQL = `
INSERT INTO transactions (tx_hash, unsigned, script_execution_ok, contract_inputs,
	generated_outputs, input_signatures, script_signatures, block_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (tx_hash) DO NOTHING`

// InsertBlockAndEvents inserts one block and its events as a single
// transaction: either both succeed or neither (spec.md §4.2).
func (s *Store) InsertBlockAndEvents(ctx context.Context, block model.Block, events []model.Event) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertBlockSQL,
		block.Hash, block.Timestamp, block.ChainFrom, block.ChainTo, block.Height,
		block.Deps, block.Nonce, block.Version, block.DepStateHash, block.TxsHash,
		block.TxNumber, block.Target, block.MainChain, block.GhostUncles); err != nil {
		return fmt.Errorf("insert block %s: %w", block.Hash, err)
	}
	for _, e := range events {
		if _, err := tx.Exec(ctx, insertEventSQL, e.TxID, e.ContractAddress, e.EventIndex, e.Fields); err != nil {
			return fmt.Errorf("insert event %s#%d: %w", e.TxID, e.EventIndex, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit block %s: %w", block.Hash, err)
	}
	return nil
}

// GetBlockByHash looks up a single block row, returning ErrNotFound if
// absent.
func (s *Store) GetBlockByHash(ctx context.Context, hash string) (model.Block, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return model.Block{}, err
	}
	defer conn.Release()

	var b model.Block
	row := conn.QueryRow(ctx, `
SELECT hash, timestamp, chain_from, chain_to, height, deps, nonce, version,
	dep_state_hash, txs_hash, tx_number, target, main_chain, ghost_uncles
FROM blocks WHERE hash = $1`, hash)
	err = row.Scan(&b.Hash, &b.Timestamp, &b.ChainFrom, &b.ChainTo, &b.Height,
		&b.Deps, &b.Nonce, &b.Version, &b.DepStateHash, &b.TxsHash, &b.TxNumber,
		&b.Target, &b.MainChain, &b.GhostUncles)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Block{}, ErrNotFound
	}
	if err != nil {
		return model.Block{}, fmt.Errorf("get block %s: %w", hash, err)
	}
	return b, nil
}

// FetchBlockHashesAtHeightFilterOne returns every block hash at
// (chainFrom, chainTo, height) other than ignoreHash, used by the Chain
// Linker to find stale main-chain siblings to demote.
func (s *Store) FetchBlockHashesAtHeightFilterOne(ctx context.Context, chainFrom, chainTo, height int64, ignoreHash string) ([]string, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
SELECT hash FROM blocks
WHERE chain_from = $1 AND chain_to = $2 AND height = $3 AND hash <> $4`,
		chainFrom, chainTo, height, ignoreHash)
	if err != nil {
		return nil, fmt.Errorf("fetch siblings at height %d: %w", height, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan sibling hash: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpdateMainChainStatus flips main_chain on the given blocks AND on every
// transaction belonging to them, atomically per hash (spec.md §4.2 and
// §4.5: "transactional per (block, its transactions)").
func (s *Store) UpdateMainChainStatus(ctx context.Context, hashes []string, mainChain bool) error {
	if len(hashes) == 0 {
		return nil
	}
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, hash := range hashes {
		if err := s.flipOneHash(ctx, conn, hash, mainChain); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) flipOneHash(ctx context.Context, conn *pgxpool.Conn, hash string, mainChain bool) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin main-chain flip for %s: %w", hash, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE blocks SET main_chain = $1 WHERE hash = $2`, mainChain, hash); err != nil {
		return fmt.Errorf("flip block %s: %w", hash, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE transactions SET main_chain = $1 WHERE block_hash = $2`, mainChain, hash); err != nil {
		return fmt.Errorf("flip transactions for block %s: %w", hash, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit main-chain flip for %s: %w", hash, err)
	}
	return nil
}

// GetLastTimestamp reads a processor's checkpoint, returning 0 if absent
// (spec.md §4.6 step 2).
func (s *Store) GetLastTimestamp(ctx context.Context, processor string) (int64, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var ts int64
	row := conn.QueryRow(ctx, `SELECT last_timestamp FROM processor_status WHERE processor = $1`, processor)
	err = row.Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get checkpoint for %s: %w", processor, err)
	}
	return ts, nil
}

// UpdateLastTimestamp advances a processor's checkpoint.
func (s *Store) UpdateLastTimestamp(ctx context.Context, processor string, ts int64) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
INSERT INTO processor_status (processor, last_timestamp) VALUES ($1, $2)
ON CONFLICT (processor) DO UPDATE SET last_timestamp = EXCLUDED.last_timestamp`,
		processor, ts)
	if err != nil {
		return fmt.Errorf("update checkpoint for %s: %w", processor, err)
	}
	return nil
}
