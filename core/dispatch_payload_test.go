package core

import (
	"math/big"
	"testing"
)

func TestBuildPayloadBitcoinOccurrence(t *testing.T) {
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	block := bitcoinBlock(1, "0x01", "0x00")
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{BitcoinBlock: &block}}}

	payload := BuildPayload(occ, false)
	if payload.Chainhook.UUID != p.UUID {
		t.Fatalf("expected chainhook envelope to name the predicate uuid, got %s", payload.Chainhook.UUID)
	}
	if len(payload.Apply) != 1 || payload.Apply[0].BitcoinBlock == nil {
		t.Fatalf("expected one bitcoin apply entry, got %+v", payload.Apply)
	}
	if payload.Apply[0].StacksBlock != nil {
		t.Fatal("expected no stacks block populated on a bitcoin occurrence")
	}
}

func TestBuildPayloadDecodesClarityValuesWhenRequested(t *testing.T) {
	cv := ClarityValue{TypeID: ClarityUInt, Int: big.NewInt(7)}
	p := newTestPredicate(PredicateScope{Kind: ScopeTxid, Txid: &TxidScope{Hex: "0xaa"}})
	p.DecodeValues = true

	block := StacksBlock{
		BlockIdentifier: BlockIdentifier{Index: 1, Hash: "0x01"},
		Transactions: []StacksTransaction{
			{
				TransactionIdentifier: TransactionIdentifier{Hash: "0xaa"},
				Metadata:              StacksTransactionMeta{Result: cv.EncodeHex()},
			},
		},
	}
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{StacksBlock: &block}}}

	payload := BuildPayload(occ, false)
	if len(payload.Apply) != 1 || payload.Apply[0].StacksBlock == nil {
		t.Fatalf("expected one stacks apply entry, got %+v", payload.Apply)
	}
	result := payload.Apply[0].StacksBlock.Transactions[0].Metadata.Result
	if result == cv.EncodeHex() {
		t.Fatal("expected decode_values to replace the raw hex result with its decoded JSON form")
	}
}

func TestBuildPayloadLeavesRawHexWhenDecodeValuesDisabled(t *testing.T) {
	cv := ClarityValue{TypeID: ClarityUInt, Int: big.NewInt(7)}
	p := newTestPredicate(PredicateScope{Kind: ScopeTxid, Txid: &TxidScope{Hex: "0xaa"}})
	p.DecodeValues = false

	block := StacksBlock{
		BlockIdentifier: BlockIdentifier{Index: 1, Hash: "0x01"},
		Transactions: []StacksTransaction{
			{
				TransactionIdentifier: TransactionIdentifier{Hash: "0xaa"},
				Metadata:              StacksTransactionMeta{Result: cv.EncodeHex()},
			},
		},
	}
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{StacksBlock: &block}}}

	payload := BuildPayload(occ, false)
	result := payload.Apply[0].StacksBlock.Transactions[0].Metadata.Result
	if result != cv.EncodeHex() {
		t.Fatalf("expected raw hex to pass through unchanged, got %s", result)
	}
}

func TestBuildPayloadStripsContractABIWhenNotRequested(t *testing.T) {
	abi := `{"functions":[]}`
	p := newTestPredicate(PredicateScope{Kind: ScopeTxid, Txid: &TxidScope{Hex: "0xaa"}})
	p.IncludeContractABI = false

	block := StacksBlock{
		BlockIdentifier: BlockIdentifier{Index: 1, Hash: "0x01"},
		Transactions: []StacksTransaction{
			{
				TransactionIdentifier: TransactionIdentifier{Hash: "0xaa"},
				Metadata:              StacksTransactionMeta{ContractABI: &abi},
			},
		},
	}
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{StacksBlock: &block}}}

	payload := BuildPayload(occ, false)
	if payload.Apply[0].StacksBlock.Transactions[0].Metadata.ContractABI != nil {
		t.Fatal("expected contract_abi to be stripped when include_contract_abi is false")
	}
}

func TestDecodedOrRawFallsBackOnMalformedHex(t *testing.T) {
	out := decodedOrRaw("not-valid-hex")
	if out != "not-valid-hex" {
		t.Fatalf("expected malformed hex to pass through unchanged, got %s", out)
	}
}
