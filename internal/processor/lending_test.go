package processor

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/store"
	"github.com/synnergy-labs/shardindexer/internal/types"
)

func val(v string) types.Val { return types.Val{Type: "U256", Value: v} }

func TestLoanDetailFromEvent(t *testing.T) {
	p := NewLendingContractProcessor(nil, logrus.StandardLogger(), "0xcontract")
	event := types.ContractEventByBlockHash{
		TxID:            "tx1",
		ContractAddress: "0xcontract",
		EventIndex:      1,
		Fields: []types.Val{
			val("sub1"), val("lendTok"), val("collTok"), val("100"),
			val("50"), val("5"), val("30"), val("lender1"),
		},
	}
	d, ok := p.loanDetailFromEvent(event)
	if !ok {
		t.Fatalf("expected loan detail to decode")
	}
	if d.LoanSubcontractID != "sub1" || d.Lender != "lender1" || d.LendingAmount != "100" {
		t.Fatalf("unexpected loan detail: %+v", d)
	}
}

func TestLoanDetailFromEventWrongFieldCount(t *testing.T) {
	p := NewLendingContractProcessor(nil, logrus.StandardLogger(), "0xcontract")
	event := types.ContractEventByBlockHash{EventIndex: 1, Fields: []types.Val{val("a")}}
	if _, ok := p.loanDetailFromEvent(event); ok {
		t.Fatalf("expected decode failure for wrong field count")
	}
}

func TestLoanActionFromEventCreated(t *testing.T) {
	p := NewLendingContractProcessor(nil, logrus.StandardLogger(), "0xcontract")
	event := types.ContractEventByBlockHash{
		EventIndex: 2,
		Fields:     []types.Val{val("sub1"), val("777"), val("alice"), val("1000")},
	}
	a, ok := p.loanActionFromEvent(event)
	if !ok {
		t.Fatalf("expected loan action to decode")
	}
	if a.ActionType != store.LoanActionCreated {
		t.Fatalf("ActionType = %v, want Created", a.ActionType)
	}
	if a.LoanID == nil || *a.LoanID != "777" {
		t.Fatalf("LoanCreated should carry loan id, got %+v", a.LoanID)
	}
}

func TestLoanActionFromEventOtherKindHasNoLoanID(t *testing.T) {
	p := NewLendingContractProcessor(nil, logrus.StandardLogger(), "0xcontract")
	event := types.ContractEventByBlockHash{
		EventIndex: 4, // LoanPaid
		Fields:     []types.Val{val("sub1"), val("alice"), val("1000")},
	}
	a, ok := p.loanActionFromEvent(event)
	if !ok {
		t.Fatalf("expected loan action to decode")
	}
	if a.ActionType != store.LoanActionPaid {
		t.Fatalf("ActionType = %v, want Paid", a.ActionType)
	}
	if a.LoanID != nil {
		t.Fatalf("non-Created action should have nil loan id, got %v", *a.LoanID)
	}
}

func TestProcessBlocksIgnoresUnknownEventIndex(t *testing.T) {
	p := NewLendingContractProcessor(nil, logrus.StandardLogger(), "0xcontract")
	batch := [][]types.BlockAndEvents{
		{
			{
				Block: types.BlockEntry{Hash: "b1"},
				Events: []types.ContractEventByBlockHash{
					{ContractAddress: "0xcontract", EventIndex: 99, Fields: []types.Val{val("x")}},
					{ContractAddress: "0xother", EventIndex: 2, Fields: []types.Val{val("a"), val("b"), val("c"), val("d")}},
				},
			},
		},
	}
	// Only events matching the watched contract address with event_index in
	// 1..6 would reach the store; neither event here qualifies, so
	// ProcessBlocks must return without touching a nil store.
	if err := p.ProcessBlocks(context.Background(), 0, 0, batch); err != nil {
		t.Fatalf("ProcessBlocks returned error: %v", err)
	}
}
