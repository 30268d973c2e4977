package core

import "encoding/json"

// OccurrencePayload is the wire shape POSTed or file-appended for one
// triggered predicate (spec.md §4.4): the matched blocks split into apply
// and rollback, any decoded Clarity values requested via decode_values, and
// a chainhook envelope naming which predicate fired.
type OccurrencePayload struct {
	Apply     []BlockPayload    `json:"apply"`
	Rollback  []BlockPayload    `json:"rollback"`
	Chainhook ChainhookEnvelope `json:"chainhook"`
}

// ChainhookEnvelope names the predicate behind an occurrence payload.
type ChainhookEnvelope struct {
	UUID             string `json:"uuid"`
	PredicateName    string `json:"predicate"`
	IsStreamingBlocks bool  `json:"is_streaming_blocks"`
}

// BlockPayload is one matched block, serialized either as a bitcoin block or
// a stacks block depending on which side of MatchedBlock is populated.
type BlockPayload struct {
	BitcoinBlock *BitcoinBlock `json:"block,omitempty"`
	StacksBlock  *StacksBlock  `json:"metadata,omitempty"`
}

// BuildPayload turns one Occurrence into its wire form. The predicate's
// DecodeValues flag controls whether smart-contract-event and result values
// are expanded into their ClarityValue JSON form instead of left as raw
// hex; contract_abi is cleared unless the predicate's IncludeContractABI
// flag is set.
func BuildPayload(o Occurrence, streaming bool) OccurrencePayload {
	p := OccurrencePayload{
		Chainhook: ChainhookEnvelope{
			UUID:              o.Predicate.UUID,
			PredicateName:     o.Predicate.Name,
			IsStreamingBlocks: streaming,
		},
	}
	for _, m := range o.Apply {
		p.Apply = append(p.Apply, buildBlockPayload(o.Predicate, m))
	}
	for _, m := range o.Rollback {
		p.Rollback = append(p.Rollback, buildBlockPayload(o.Predicate, m))
	}
	return p
}

func buildBlockPayload(p *PredicateInstance, m MatchedBlock) BlockPayload {
	if m.BitcoinBlock != nil {
		b := *m.BitcoinBlock
		return BlockPayload{BitcoinBlock: &b}
	}
	if m.StacksBlock == nil {
		return BlockPayload{}
	}
	b := *m.StacksBlock
	if p.DecodeValues || !p.IncludeContractABI {
		b.Transactions = decorateTransactions(b.Transactions, p)
	}
	return BlockPayload{StacksBlock: &b}
}

// decorateTransactions rewrites result/event hex fields into decoded JSON
// when the predicate asked for it. The underlying hex is always preserved
// internally (standardize_stacks.go never eagerly decodes); this is strictly
// a dispatch-time presentation step.
func decorateTransactions(txs []StacksTransaction, p *PredicateInstance) []StacksTransaction {
	out := make([]StacksTransaction, len(txs))
	for i, tx := range txs {
		out[i] = tx
		if p.DecodeValues {
			out[i].Metadata.Result = decodedOrRaw(tx.Metadata.Result)
			events := make([]TransactionEvent, len(tx.Metadata.Receipt.Events))
			copy(events, tx.Metadata.Receipt.Events)
			for j, ev := range events {
				if ev.SmartContractEvent != nil {
					sc := *ev.SmartContractEvent
					sc.Value = decodedOrRaw(sc.Value)
					events[j].SmartContractEvent = &sc
				}
			}
			out[i].Metadata.Receipt.Events = events
		}
		if !p.IncludeContractABI {
			out[i].Metadata.ContractABI = nil
		}
	}
	return out
}

// decodedOrRaw returns the JSON-encoded decoded Clarity value for hex, or
// hex unchanged if it fails to decode (e.g. already-decoded or malformed
// upstream data should never break delivery).
func decodedOrRaw(hex string) string {
	cv, err := DecodeClarityValueHex(hex)
	if err != nil {
		return hex
	}
	encoded, err := json.Marshal(cv.JSON())
	if err != nil {
		return hex
	}
	return string(encoded)
}
