package core

import (
	"testing"
)

func registerOrFail(t *testing.T, r *Registry, p *PredicateInstance) {
	t.Helper()
	if _, errs := r.Register(p); len(errs) != 0 {
		t.Fatalf("unexpected registration errors: %v", errs)
	}
}

func TestEngineEvaluateBitcoinBlockHeightMatch(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 2}})
	registerOrFail(t, r, p)

	e := NewEngine(r)
	ev := BitcoinChainEvent{
		Kind: EventApplyBlocks,
		ApplyBlocks: []BitcoinBlock{
			bitcoinBlock(1, "0x01", "0x00"),
			bitcoinBlock(2, "0x02", "0x01"),
		},
	}
	occurrences := e.EvaluateBitcoin(ev)
	if len(occurrences) != 1 {
		t.Fatalf("expected exactly one occurrence, got %d", len(occurrences))
	}
	occ := occurrences[0]
	if occ.Predicate.UUID != p.UUID {
		t.Fatalf("expected the matching predicate to be %s, got %s", p.UUID, occ.Predicate.UUID)
	}
	if len(occ.Apply) != 1 || occ.Apply[0].BitcoinBlock.BlockIdentifier.Index != 2 {
		t.Fatalf("expected a single apply match at height 2, got %+v", occ.Apply)
	}
	if len(occ.Rollback) != 0 {
		t.Fatalf("expected no rollback matches, got %+v", occ.Rollback)
	}
}

func TestEngineEvaluateBitcoinNoMatchWhenHeightDiffers(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 99}})
	registerOrFail(t, r, p)

	e := NewEngine(r)
	ev := BitcoinChainEvent{
		Kind:        EventApplyBlocks,
		ApplyBlocks: []BitcoinBlock{bitcoinBlock(1, "0x01", "0x00")},
	}
	occurrences := e.EvaluateBitcoin(ev)
	if len(occurrences) != 0 {
		t.Fatalf("expected no occurrences, got %d", len(occurrences))
	}
}

func TestEngineEvaluateBitcoinRespectsStartAndEndBlock(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightHigherThan, A: 0}})
	start := uint64(5)
	end := uint64(10)
	p.StartBlock = &start
	p.EndBlock = &end
	registerOrFail(t, r, p)

	e := NewEngine(r)

	// Below start_block: gated out even though the height-height rule matches.
	below := e.EvaluateBitcoin(BitcoinChainEvent{
		Kind:        EventApplyBlocks,
		ApplyBlocks: []BitcoinBlock{bitcoinBlock(3, "0x03", "0x02")},
	})
	if len(below) != 0 {
		t.Fatalf("expected no occurrence below start_block, got %d", len(below))
	}

	// Inside the window: matches.
	inside := e.EvaluateBitcoin(BitcoinChainEvent{
		Kind:        EventApplyBlocks,
		ApplyBlocks: []BitcoinBlock{bitcoinBlock(7, "0x07", "0x06")},
	})
	if len(inside) != 1 {
		t.Fatalf("expected one occurrence inside the start/end window, got %d", len(inside))
	}

	// Above end_block: also gated out (the tip passing end_block expires the
	// predicate, so this check comes last).
	above := e.EvaluateBitcoin(BitcoinChainEvent{
		Kind:        EventApplyBlocks,
		ApplyBlocks: []BitcoinBlock{bitcoinBlock(11, "0x0b", "0x0a")},
	})
	if len(above) != 0 {
		t.Fatalf("expected no occurrence above end_block, got %d", len(above))
	}
}

func TestEngineEvaluateBitcoinBlockListGating(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightHigherThan, A: 0}})
	p.BlockList = []uint64{4, 9}
	registerOrFail(t, r, p)

	e := NewEngine(r)

	ev := BitcoinChainEvent{
		Kind: EventApplyBlocks,
		ApplyBlocks: []BitcoinBlock{
			bitcoinBlock(4, "0x04", "0x03"),
			bitcoinBlock(5, "0x05", "0x04"),
			bitcoinBlock(9, "0x09", "0x08"),
		},
	}
	occurrences := e.EvaluateBitcoin(ev)
	if len(occurrences) != 1 {
		t.Fatalf("expected exactly one occurrence, got %d", len(occurrences))
	}
	if len(occurrences[0].Apply) != 2 {
		t.Fatalf("expected only the block_list heights (4 and 9) to match, got %d matches", len(occurrences[0].Apply))
	}
	for _, m := range occurrences[0].Apply {
		h := m.BitcoinBlock.BlockIdentifier.Index
		if h != 4 && h != 9 {
			t.Fatalf("unexpected matched height %d outside block_list", h)
		}
	}
}

func TestEngineEvaluateBitcoinReportsApplyAndRollbackTogether(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightHigherThan, A: 0}})
	registerOrFail(t, r, p)

	e := NewEngine(r)
	ev := BitcoinChainEvent{
		Kind:           EventReorgBlocks,
		ApplyBlocks:    []BitcoinBlock{bitcoinBlock(2, "0xb2", "0xb1")},
		RollbackBlocks: []BitcoinBlock{bitcoinBlock(2, "0xa2", "0xa1")},
	}
	occurrences := e.EvaluateBitcoin(ev)
	if len(occurrences) != 1 {
		t.Fatalf("expected exactly one occurrence, got %d", len(occurrences))
	}
	occ := occurrences[0]
	if len(occ.Apply) != 1 || len(occ.Rollback) != 1 {
		t.Fatalf("expected one apply and one rollback match on the same occurrence, got apply=%d rollback=%d", len(occ.Apply), len(occ.Rollback))
	}
}

func TestEngineEvaluateBitcoinExpiresPredicateBeforeMatching(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightHigherThan, A: 0}})
	end := uint64(5)
	p.EndBlock = &end
	registerOrFail(t, r, p)

	e := NewEngine(r)
	// The apply block itself is past end_block, so ExpireAgainst (run against
	// this event's own tip) should retire the predicate before it gets a
	// chance to match its own triggering block.
	ev := BitcoinChainEvent{
		Kind:        EventApplyBlocks,
		ApplyBlocks: []BitcoinBlock{bitcoinBlock(6, "0x06", "0x05")},
	}
	occurrences := e.EvaluateBitcoin(ev)
	if len(occurrences) != 0 {
		t.Fatalf("expected the predicate to expire before matching, got %d occurrences", len(occurrences))
	}
	if p.Eligible() {
		t.Fatal("expected predicate to be marked expired after evaluation")
	}
}

func TestEngineEvaluateBitcoinTxidScope(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeTxid, Txid: &TxidScope{Hex: "0xaa"}})
	registerOrFail(t, r, p)

	e := NewEngine(r)
	block := bitcoinBlock(1, "0x01", "0x00")
	block.Transactions = []BitcoinTransaction{
		{TransactionIdentifier: TransactionIdentifier{Hash: "0xaa"}},
		{TransactionIdentifier: TransactionIdentifier{Hash: "0xbb"}},
	}
	ev := BitcoinChainEvent{Kind: EventApplyBlocks, ApplyBlocks: []BitcoinBlock{block}}
	occurrences := e.EvaluateBitcoin(ev)
	if len(occurrences) != 1 {
		t.Fatalf("expected exactly one occurrence, got %d", len(occurrences))
	}
	if len(occurrences[0].Apply) != 1 {
		t.Fatalf("expected exactly one matched block, got %d", len(occurrences[0].Apply))
	}
	matched := occurrences[0].Apply[0].BitcoinBlock
	if len(matched.Transactions) != 1 || matched.Transactions[0].TransactionIdentifier.Hash != "0xaa" {
		t.Fatalf("expected the matched block to retain only the txid-matching transaction, got %+v", matched.Transactions)
	}
}
