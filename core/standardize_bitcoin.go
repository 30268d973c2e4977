package core

import (
	"fmt"
	"regexp"
)

// RawBitcoinBlock is the wire shape of a base-chain block, as reported in
// a full JSON breakdown. Hash-only notifications are not handled: nothing
// refetches a block by RPC.
type RawBitcoinBlock struct {
	Height       uint64                  `json:"height"`
	Hash         string                  `json:"hash"`
	ParentHash   string                  `json:"parent_hash"`
	ParentHeight uint64                  `json:"parent_height"`
	Timestamp    int64                   `json:"timestamp"`
	Transactions []RawBitcoinTransaction `json:"transactions"`
}

// RawBitcoinTransaction is the wire shape of a base-chain transaction.
type RawBitcoinTransaction struct {
	Txid          string            `json:"txid"`
	Inputs        []RawBitcoinInput  `json:"inputs"`
	Outputs       []RawBitcoinOutput `json:"outputs"`
	Confirmations int64              `json:"confirmations"`
	Fee           uint64             `json:"fee"`
}

// RawBitcoinInput mirrors a previous-output reference.
type RawBitcoinInput struct {
	PreviousTxid  string `json:"previous_txid"`
	PreviousIndex int    `json:"previous_index"`
}

// RawBitcoinOutput mirrors a spendable output.
type RawBitcoinOutput struct {
	ScriptPubkey string `json:"script_pubkey"` // hex
	Value        uint64 `json:"value"`
}

var txidPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// StandardizeBitcoinBlock verifies sentinels (txid format, script hex
// length) and converts a raw payload into the normalized BitcoinBlock.
// Proof-gathering is deferred to dispatch time (spec.md §4.2).
func StandardizeBitcoinBlock(raw RawBitcoinBlock) (BitcoinBlock, error) {
	txs := make([]BitcoinTransaction, 0, len(raw.Transactions))
	for _, rtx := range raw.Transactions {
		if !txidPattern.MatchString(rtx.Txid) {
			return BitcoinBlock{}, fmt.Errorf("%w: malformed txid %q", ErrMalformedPayload, rtx.Txid)
		}
		var ops []BitcoinOperation
		for i, in := range rtx.Inputs {
			ops = append(ops, BitcoinOperation{Kind: "input", Index: i, PreviousTxid: in.PreviousTxid, PreviousIndex: in.PreviousIndex})
		}
		for i, out := range rtx.Outputs {
			if len(out.ScriptPubkey)%2 != 0 {
				return BitcoinBlock{}, fmt.Errorf("%w: odd-length script_pubkey hex in %s", ErrMalformedPayload, rtx.Txid)
			}
			ops = append(ops, BitcoinOperation{Kind: "output", Index: i, ScriptPubkey: out.ScriptPubkey, Value: out.Value})
		}
		txs = append(txs, BitcoinTransaction{
			TransactionIdentifier: TransactionIdentifier{Hash: rtx.Txid},
			Operations:            ops,
			Metadata:              BitcoinTransactionMeta{Confirmations: rtx.Confirmations, Fee: rtx.Fee},
		})
	}

	return BitcoinBlock{
		BlockIdentifier:       BlockIdentifier{Index: raw.Height, Hash: raw.Hash},
		ParentBlockIdentifier: BlockIdentifier{Index: raw.ParentHeight, Hash: raw.ParentHash},
		Timestamp:             raw.Timestamp,
		Transactions:          txs,
	}, nil
}
