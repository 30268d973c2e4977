package core

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
)

// matchBlockHeight implements the block-height scope of spec.md §4.3.
func matchBlockHeight(s BlockHeightScope, index uint64) bool {
	switch s.Rule {
	case HeightEquals:
		return index == s.A
	case HeightHigherThan:
		return index > s.A
	case HeightLowerThan:
		return index < s.A
	case HeightBetween:
		lo, hi := s.A, s.B
		if lo > hi {
			lo, hi = hi, lo
		}
		return index >= lo && index <= hi
	default:
		return false
	}
}

// matchTxid implements the txid scope: compare transaction.identifier.hash,
// tolerating a missing "0x" prefix and case on either side.
func matchTxid(s TxidScope, txid string) bool {
	return normalizeHex(s.Hex) == normalizeHex(txid)
}

func normalizeHex(s string) string {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strings.ToLower(s)
}

// matchContractCall implements the contract-call scope: the transaction
// kind alone short-circuits the match (spec.md §4.3 evaluation order item 3).
func matchContractCall(s ContractCallScope, tx StacksTransaction) bool {
	if tx.Metadata.Kind != KindContractCall || tx.Metadata.ContractCall == nil {
		return false
	}
	cc := tx.Metadata.ContractCall
	return cc.ContractID == s.ContractID && cc.Method == s.Method
}

// matchContractDeployment implements the contract-deployment scope.
// Trait-based matching is reserved per spec.md §9's Open Question and never
// matches; callers should have surfaced a registration-time warning already.
func matchContractDeployment(s ContractDeploymentScope, tx StacksTransaction) bool {
	if tx.Metadata.Kind != KindContractDeployment || tx.Metadata.ContractDeployment == nil {
		return false
	}
	if s.Trait != TraitNone {
		return false
	}
	if s.Deployer == "" || s.Deployer == "*" {
		return true
	}
	return tx.Metadata.ContractDeployment.Deployer == s.Deployer
}

func assetActionOf(kind EventKind) (AssetAction, bool) {
	switch kind {
	case EventFTMint, EventNFTMint, EventSTXMint:
		return ActionMint, true
	case EventFTTransfer, EventNFTTransfer, EventSTXTransfer:
		return ActionTransfer, true
	case EventFTBurn, EventNFTBurn, EventSTXBurn:
		return ActionBurn, true
	case EventSTXLock:
		return ActionLock, true
	default:
		return "", false
	}
}

func actionsContain(actions []AssetAction, a AssetAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

// matchFTEvent implements the ft-event scope over one event.
func matchFTEvent(s AssetEventScope, ev TransactionEvent) bool {
	if ev.FT == nil {
		return false
	}
	action, ok := assetActionOf(ev.Kind)
	if !ok || !actionsContain(s.Actions, action) {
		return false
	}
	return ev.FT.AssetClassIdentifier == s.AssetID
}

// matchNFTEvent implements the nft-event scope over one event.
func matchNFTEvent(s AssetEventScope, ev TransactionEvent) bool {
	if ev.NFT == nil {
		return false
	}
	action, ok := assetActionOf(ev.Kind)
	if !ok || !actionsContain(s.Actions, action) {
		return false
	}
	return ev.NFT.AssetClassIdentifier == s.AssetID
}

// matchSTXEvent implements the stx-event scope over one event. There is no
// asset id to compare: STX is singular.
func matchSTXEvent(s STXEventScope, ev TransactionEvent) bool {
	if ev.STX == nil {
		return false
	}
	action, ok := assetActionOf(ev.Kind)
	if !ok {
		return false
	}
	return actionsContain(s.Actions, action)
}

// matchPrintEvent implements the print-event scope over one event, given a
// regex already compiled at registration time (nil when the scope uses
// Contains instead).
func matchPrintEvent(s PrintEventScope, re *regexp.Regexp, ev TransactionEvent) bool {
	if ev.Kind != EventSmartContract || ev.SmartContractEvent == nil {
		return false
	}
	sc := ev.SmartContractEvent
	if sc.Topic != "print" {
		return false
	}
	if s.ContractID != "*" && sc.ContractIdentifier != s.ContractID {
		return false
	}

	cv, err := DecodeClarityValueHex(sc.Value)
	if err != nil {
		return false
	}
	display := cv.Display()

	if re != nil {
		return re.MatchString(display)
	}
	if s.Contains == "" || s.Contains == "*" {
		return true
	}
	return strings.Contains(display, s.Contains)
}

// matchSignerMessage implements the signer-message scope. The pubkey form is
// reserved and never matches (spec.md §4.3).
func matchSignerMessage(s SignerMessageScope, ev NonConsensusEvent) bool {
	if s.FromSignerPubkey != nil {
		return false
	}
	if s.AfterTimestampMS != nil {
		return ev.ReceivedAtMS >= *s.AfterTimestampMS
	}
	return false
}

// matchBitcoinScript implements the base-chain script scopes. Only
// p2pkh+equals has implemented semantics; every other (kind, rule)
// combination is accepted at registration but never matches.
func matchBitcoinScript(s BitcoinScriptScope, op BitcoinOperation) (bool, error) {
	if op.Kind != "output" {
		return false, nil
	}
	if s.ScriptKind != ScopeP2PKH || s.Rule != ScriptEquals {
		return false, nil
	}
	script, err := p2pkhScriptHex(s.Value)
	if err != nil {
		return false, err
	}
	return normalizeHex(op.ScriptPubkey) == normalizeHex(script), nil
}

// p2pkhScriptHex decodes a base58check P2PKH address and builds the
// canonical script OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG,
// per spec.md §4.3.
func p2pkhScriptHex(addr string) (string, error) {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return "", fmt.Errorf("%w: base58 decode: %v", ErrMalformedPayload, err)
	}
	if len(decoded) != 25 {
		return "", fmt.Errorf("%w: expected 25-byte base58check payload, got %d", ErrMalformedPayload, len(decoded))
	}
	hash160 := decoded[1:21]

	script := make([]byte, 0, 25)
	script = append(script, 0x76, 0xa9, 0x14)
	script = append(script, hash160...)
	script = append(script, 0x88, 0xac)
	return hex.EncodeToString(script), nil
}
