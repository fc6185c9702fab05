package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"

	"github.com/synnergy-labs/shardindexer/internal/model"
)

// clampPage normalizes limit/offset for the Read API (spec.md §6): a
// non-positive limit defaults to 50 and is capped at 500; offset below 0
// clamps to 0.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

const blockColumns = `hash, timestamp, chain_from, chain_to, height, deps, nonce, version,
	dep_state_hash, txs_hash, tx_number, target, main_chain, ghost_uncles`

func scanBlock(row pgx.Row) (model.Block, error) {
	var b model.Block
	err := row.Scan(&b.Hash, &b.Timestamp, &b.ChainFrom, &b.ChainTo, &b.Height,
		&b.Deps, &b.Nonce, &b.Version, &b.DepStateHash, &b.TxsHash, &b.TxNumber,
		&b.Target, &b.MainChain, &b.GhostUncles)
	return b, err
}

// ListBlocks returns the most recent blocks, newest first.
func (s *Store) ListBlocks(ctx context.Context, limit, offset int) ([]model.Block, error) {
	limit, offset = clampPage(limit, offset)
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+blockColumns+`
FROM blocks ORDER BY timestamp DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var out []model.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBlocksByHeight returns every block at height across all shard pairs
// (several shards can reach the same height independently).
func (s *Store) ListBlocksByHeight(ctx context.Context, height int64, limit, offset int) ([]model.Block, error) {
	limit, offset = clampPage(limit, offset)
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+blockColumns+`
FROM blocks WHERE height = $1 ORDER BY timestamp DESC LIMIT $2 OFFSET $3`, height, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list blocks at height %d: %w", height, err)
	}
	defer rows.Close()

	var out []model.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const txColumns = `tx_hash, unsigned, script_execution_ok, contract_inputs,
	generated_outputs, input_signatures, script_signatures, block_hash`

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var tx model.Transaction
	err := row.Scan(&tx.TxHash, &tx.Unsigned, &tx.ScriptExecutionOk, &tx.ContractInputs,
		&tx.GeneratedOutputs, &tx.InputSignatures, &tx.ScriptSignatures, &tx.BlockHash)
	return tx, err
}

// ListTransactions returns transactions ordered by tx_hash.
func (s *Store) ListTransactions(ctx context.Context, limit, offset int) ([]model.Transaction, error) {
	limit, offset = clampPage(limit, offset)
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+txColumns+`
FROM transactions ORDER BY tx_hash LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// GetTransactionByHash looks up a single transaction, returning ErrNotFound
// if absent.
func (s *Store) GetTransactionByHash(ctx context.Context, hash string) (model.Transaction, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE tx_hash = $1`, hash)
	tx, err := scanTransaction(row)
	if err == pgx.ErrNoRows {
		return model.Transaction{}, ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("get transaction %s: %w", hash, err)
	}
	return tx, nil
}

// ListTransactionsByBlockHash returns every transaction belonging to block
// hash.
func (s *Store) ListTransactionsByBlockHash(ctx context.Context, hash string, limit, offset int) ([]model.Transaction, error) {
	limit, offset = clampPage(limit, offset)
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+txColumns+`
FROM transactions WHERE block_hash = $1 ORDER BY tx_hash LIMIT $2 OFFSET $3`, hash, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions for block %s: %w", hash, err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

const eventColumns = `tx_id, contract_address, event_index, fields`

func scanEvent(row pgx.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.TxID, &e.ContractAddress, &e.EventIndex, &e.Fields)
	return e, err
}

// ListEvents returns events ordered by tx_id, then event_index.
func (s *Store) ListEvents(ctx context.Context, limit, offset int) ([]model.Event, error) {
	limit, offset = clampPage(limit, offset)
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+eventColumns+`
FROM events ORDER BY tx_id, event_index LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListEventsByContract returns events emitted by contractAddress.
func (s *Store) ListEventsByContract(ctx context.Context, contractAddress string, limit, offset int) ([]model.Event, error) {
	limit, offset = clampPage(limit, offset)
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+eventColumns+`
FROM events WHERE contract_address = $1 ORDER BY tx_id, event_index LIMIT $2 OFFSET $3`,
		contractAddress, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events for contract %s: %w", contractAddress, err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListEventsByTxID returns every event emitted by transaction txID.
func (s *Store) ListEventsByTxID(ctx context.Context, txID string) ([]model.Event, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+eventColumns+`
FROM events WHERE tx_id = $1 ORDER BY event_index`, txID)
	if err != nil {
		return nil, fmt.Errorf("list events for tx %s: %w", txID, err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
