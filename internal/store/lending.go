package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
)

// LoanActionType mirrors spec.md §3 "Domain tables" LoanAction.action_type.
type LoanActionType int16

const (
	LoanActionCreated LoanActionType = iota + 1
	LoanActionCancelled
	LoanActionPaid
	LoanActionAccepted
	LoanActionLiquidated
)

// LoanAction is a persisted row for the LendingContractProcessor's
// event_index 2..6 classification.
type LoanAction struct {
	LoanSubcontractID string
	LoanID            *string // numeric, carried as decimal string; nil unless LoanCreated
	By                string
	TimestampMs       int64
	ActionType        LoanActionType
}

// LoanDetail is a persisted row for event_index 1 (spec.md §3, SPEC_FULL §4).
type LoanDetail struct {
	LoanSubcontractID string
	LendingTokenID    string
	CollateralTokenID string
	LendingAmount     string // numeric, decimal string
	CollateralAmount  string
	InterestRate      string
	Duration          string
	Lender            string
}

// InsertLoanDetails batch-inserts loan_details rows.
func (s *Store) InsertLoanDetails(ctx context.Context, details []LoanDetail) error {
	if len(details) == 0 {
		return nil
	}
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	batch := &pgx.Batch{}
	for _, d := range details {
		batch.Queue(`
INSERT INTO loan_details (loan_subcontract_id, lending_token_id, collateral_token_id,
	lending_amount, collateral_amount, interest_rate, duration, lender)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			d.LoanSubcontractID, d.LendingTokenID, d.CollateralTokenID,
			d.LendingAmount, d.CollateralAmount, d.InterestRate, d.Duration, d.Lender)
	}
	br := conn.SendBatch(ctx, batch)
	defer br.Close()
	for range details {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert loan details: %w", err)
		}
	}
	return nil
}

// InsertLoanActions batch-inserts loan_actions rows.
func (s *Store) InsertLoanActions(ctx context.Context, actions []LoanAction) error {
	if len(actions) == 0 {
		return nil
	}
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	batch := &pgx.Batch{}
	for _, a := range actions {
		batch.Queue(`
INSERT INTO loan_actions (loan_subcontract_id, loan_id, by, timestamp, action_type)
VALUES ($1,$2,$3, to_timestamp($4::double precision / 1000.0), $5)`,
			a.LoanSubcontractID, a.LoanID, a.By, a.TimestampMs, int16(a.ActionType))
	}
	br := conn.SendBatch(ctx, batch)
	defer br.Close()
	for range actions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert loan actions: %w", err)
		}
	}
	return nil
}
