package core

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

func signSignerDBChunk(t *testing.T, priv *secp256k1.PrivateKey, slotID, slotVersion uint32, data []byte) string {
	t.Helper()
	digest := signerDBChunkDigest(slotID, slotVersion, data)
	compact := ecdsa.SignCompact(priv, digest, true)
	recoveryID := compact[0] - 27 - 4
	sig := make([]byte, 65)
	sig[0] = recoveryID
	copy(sig[1:], compact[1:])
	return hexPrefixed(sig)
}

func TestStandardizeSignerDBChunkRecoversPubkeyAndDecodesBody(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey failed: %v", err)
	}

	body := signerDBChunkBody{
		Kind:        NCBlockPushed,
		BlockPushed: &BlockPushedPayload{BlockIdentifier: BlockIdentifier{Index: 5, Hash: "0x05"}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	raw := RawSignerDBChunk{
		SlotID:       1,
		SlotVersion:  2,
		Data:         hexPrefixed(data),
		Signature:    signSignerDBChunk(t, priv, 1, 2, data),
		ReceivedAtMS: 1000,
	}

	ev, err := StandardizeSignerDBChunk(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.AuthError != "" {
		t.Fatalf("expected no auth error, got %q", ev.AuthError)
	}
	wantPub := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	if ev.SignerPublicKey != wantPub {
		t.Fatalf("expected recovered pubkey %s, got %s", wantPub, ev.SignerPublicKey)
	}
	if ev.Kind != NCBlockPushed || ev.BlockPushed == nil || ev.BlockPushed.BlockIdentifier.Index != 5 {
		t.Fatalf("expected the block_pushed body to decode through, got %+v", ev)
	}
}

func TestStandardizeSignerDBChunkSurfacesAuthErrorWithoutAborting(t *testing.T) {
	body := signerDBChunkBody{
		Kind:        NCBlockPushed,
		BlockPushed: &BlockPushedPayload{BlockIdentifier: BlockIdentifier{Index: 9, Hash: "0x09"}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	badSig := make([]byte, 65) // all-zero: well-formed length, invalid signature
	raw := RawSignerDBChunk{
		SlotID:      1,
		SlotVersion: 1,
		Data:        hexPrefixed(data),
		Signature:   hexPrefixed(badSig),
	}

	ev, err := StandardizeSignerDBChunk(raw)
	if err != nil {
		t.Fatalf("expected the chunk to surface rather than fail outright, got %v", err)
	}
	if ev.AuthError == "" {
		t.Fatal("expected an auth error for an unrecoverable signature")
	}
	if ev.SignerPublicKey != "" {
		t.Fatal("expected no signer public key when recovery fails")
	}
	if ev.Kind != NCBlockPushed || ev.BlockPushed == nil || ev.BlockPushed.BlockIdentifier.Index != 9 {
		t.Fatalf("expected the body to still decode despite the auth failure, got %+v", ev)
	}
}

func TestStandardizeSignerDBChunkRejectsMalformedHex(t *testing.T) {
	raw := RawSignerDBChunk{Data: "not-hex", Signature: hexPrefixed(make([]byte, 65))}
	if _, err := StandardizeSignerDBChunk(raw); err == nil {
		t.Fatal("expected an error for malformed slot data hex")
	}
}
