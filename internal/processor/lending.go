package processor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

// LendingContractProcessor filters events emitted by one watched contract
// address and classifies them by event_index into loan_details (index 1)
// or loan_actions (index 2..6); anything else is silently ignored for
// forward compatibility (spec.md §4.4, DESIGN.md Open Question 3).
type LendingContractProcessor struct {
	base
	contractAddress string
}

// NewLendingContractProcessor builds a LendingContractProcessor watching
// contractAddress.
func NewLendingContractProcessor(s *store.Store, log *logrus.Logger, contractAddress string) *LendingContractProcessor {
	return &LendingContractProcessor{base: newBase(s, log), contractAddress: contractAddress}
}

func (p *LendingContractProcessor) Name() string { return "lending_contract_processor" }

func (p *LendingContractProcessor) ProcessBlocks(ctx context.Context, _, _ int64, batch [][]types.BlockAndEvents) error {
	var details []store.LoanDetail
	var actions []store.LoanAction

	for _, shard := range batch {
		for _, be := range shard {
			for _, event := range be.Events {
				if event.ContractAddress != p.contractAddress {
					continue
				}
				switch event.EventIndex {
				case 1:
					if d, ok := p.loanDetailFromEvent(event); ok {
						details = append(details, d)
					}
				case 2, 3, 4, 5, 6:
					if a, ok := p.loanActionFromEvent(event); ok {
						actions = append(actions, a)
					}
				default:
					// event_index outside 1..6: ignored, preserved for
					// forward compatibility with new event kinds.
				}
			}
		}
	}

	if len(details) > 0 {
		if err := p.store.InsertLoanDetails(ctx, details); err != nil {
			return fmt.Errorf("lending contract processor: %w", err)
		}
	}
	if len(actions) > 0 {
		if err := p.store.InsertLoanActions(ctx, actions); err != nil {
			return fmt.Errorf("lending contract processor: %w", err)
		}
	}
	return nil
}

// loanDetailFromEvent decodes event_index 1's 8-field layout: subcontract_id,
// lending_token, collateral_token, lending_amt, collateral_amt, rate,
// duration, lender (spec.md §4.4 field layout table).
func (p *LendingContractProcessor) loanDetailFromEvent(event types.ContractEventByBlockHash) (store.LoanDetail, bool) {
	if len(event.Fields) != 8 {
		p.log.WithFields(logrus.Fields{"tx_id": event.TxID, "event_index": event.EventIndex, "field_count": len(event.Fields)}).
			Warn("loan detail event has unexpected field count, skipping")
		return store.LoanDetail{}, false
	}
	f := event.Fields
	return store.LoanDetail{
		LoanSubcontractID: f[0].Value,
		LendingTokenID:    f[1].Value,
		CollateralTokenID: f[2].Value,
		LendingAmount:     f[3].Value,
		CollateralAmount:  f[4].Value,
		InterestRate:      f[5].Value,
		Duration:          f[6].Value,
		Lender:            f[7].Value,
	}, true
}

// loanActionFromEvent decodes event_index 2..6. LoanCreated (index 2)
// carries [subcontract_id, loan_id, by, timestamp_ms]; the other four
// action kinds carry [subcontract_id, by, timestamp_ms] with no loan_id
// (spec.md §4.4, original_source/src/processors/lending_marketplace_processor.rs).
func (p *LendingContractProcessor) loanActionFromEvent(event types.ContractEventByBlockHash) (store.LoanAction, bool) {
	actionType := store.LoanActionType(event.EventIndex - 1) // 2->Created(1) .. 6->Liquidated(5)
	f := event.Fields

	if event.EventIndex == 2 {
		if len(f) != 4 {
			p.log.WithFields(logrus.Fields{"tx_id": event.TxID, "field_count": len(f)}).
				Warn("loan created event has unexpected field count, skipping")
			return store.LoanAction{}, false
		}
		loanID := f[1].Value
		ts, err := parseMillis(f[3].Value)
		if err != nil {
			p.log.WithError(err).Warn("loan created event has unparseable timestamp, skipping")
			return store.LoanAction{}, false
		}
		return store.LoanAction{
			LoanSubcontractID: f[0].Value,
			LoanID:            &loanID,
			By:                f[2].Value,
			TimestampMs:       ts,
			ActionType:        actionType,
		}, true
	}

	if len(f) != 3 {
		p.log.WithFields(logrus.Fields{"tx_id": event.TxID, "event_index": event.EventIndex, "field_count": len(f)}).
			Warn("loan action event has unexpected field count, skipping")
		return store.LoanAction{}, false
	}
	ts, err := parseMillis(f[2].Value)
	if err != nil {
		p.log.WithError(err).Warn("loan action event has unparseable timestamp, skipping")
		return store.LoanAction{}, false
	}
	return store.LoanAction{
		LoanSubcontractID: f[0].Value,
		LoanID:            nil,
		By:                f[1].Value,
		TimestampMs:       ts,
		ActionType:        actionType,
	}, true
}

func parseMillis(s string) (int64, error) {
	var ms int64
	_, err := fmt.Sscanf(s, "%d", &ms)
	return ms, err
}
