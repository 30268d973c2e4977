package core

import (
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// RawSignerDBChunk is the wire shape of one modified stackerdb slot, per
// spec.md §4.2 "Signer-DB chunk authentication". Data carries the JSON body
// that decodes into one of NonConsensusEvent's typed sub-variants.
type RawSignerDBChunk struct {
	SlotID                   uint32          `json:"slot_id"`
	SlotVersion              uint32          `json:"slot_version"`
	Data                     string          `json:"data"` // hex
	Signature                string          `json:"sig"`  // hex, 65-byte recoverable ECDSA signature
	ObservingBlockIdentifier BlockIdentifier `json:"observing_block_identifier"`
	ReceivedAtMS             int64           `json:"received_at_ms"`
}

// signerDBChunkBody is the JSON shape carried inside a decoded slot's Data,
// tagging which of NonConsensusEvent's sub-variants it holds.
type signerDBChunkBody struct {
	Kind          NonConsensusKind      `json:"kind"`
	BlockProposal *BlockProposalPayload `json:"block_proposal,omitempty"`
	BlockResponse *BlockResponsePayload `json:"block_response,omitempty"`
	BlockPushed   *BlockPushedPayload   `json:"block_pushed,omitempty"`
}

// StandardizeSignerDBChunk authenticates one signer-DB chunk and decodes its
// typed sub-variant from the slot data. Per spec.md §4.2, a signature that
// fails to recover never aborts the batch: the chunk is still returned, with
// AuthError set and SignerPublicKey left empty.
func StandardizeSignerDBChunk(raw RawSignerDBChunk) (NonConsensusEvent, error) {
	ev := NonConsensusEvent{
		ObservingBlockIdentifier: raw.ObservingBlockIdentifier,
		ReceivedAtMS:             raw.ReceivedAtMS,
	}

	data, err := decodeHexPrefixed(raw.Data)
	if err != nil {
		return NonConsensusEvent{}, fmt.Errorf("%w: slot data: %v", ErrMalformedPayload, err)
	}
	sig, err := decodeHexPrefixed(raw.Signature)
	if err != nil {
		return NonConsensusEvent{}, fmt.Errorf("%w: slot signature: %v", ErrMalformedPayload, err)
	}

	digest := signerDBChunkDigest(raw.SlotID, raw.SlotVersion, data)
	if pub, err := RecoverSignerPubkeyRecoverable(sig, digest); err != nil {
		ev.AuthError = err.Error()
	} else {
		ev.SignerPublicKey = hex.EncodeToString(pub)
	}

	var body signerDBChunkBody
	if err := json.Unmarshal(data, &body); err != nil {
		return NonConsensusEvent{}, fmt.Errorf("%w: slot body: %v", ErrMalformedPayload, err)
	}
	ev.Kind = body.Kind
	ev.BlockProposal = body.BlockProposal
	ev.BlockResponse = body.BlockResponse
	ev.BlockPushed = body.BlockPushed
	return ev, nil
}

// signerDBChunkDigest computes
// SHA512/256(be4(slot_id) || be4(slot_version) || SHA512/256(data)).
func signerDBChunkDigest(slotID, slotVersion uint32, data []byte) []byte {
	dataDigest := sha512.Sum512_256(data)
	buf := make([]byte, 0, 4+4+len(dataDigest))
	buf = binary.BigEndian.AppendUint32(buf, slotID)
	buf = binary.BigEndian.AppendUint32(buf, slotVersion)
	buf = append(buf, dataDigest[:]...)
	digest := sha512.Sum512_256(buf)
	return digest[:]
}
