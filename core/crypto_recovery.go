package core

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// RecoverSignerPubkeyRecoverable recovers the compressed secp256k1 public
// key from a 65-byte recoverable ECDSA signature over digest: a leading
// recovery-id byte (0-3) followed by the 32-byte R and 32-byte S values, per
// spec.md §4.2 item 7 and the Signer-DB chunk authentication section.
//
// decred's RecoverCompact expects its own compact-signature header byte
// (27+recid, +4 when the recovered key should be serialized compressed), so
// the wire's bare recovery-id byte is translated rather than passed through.
// The returned key is always the 33-byte compressed encoding, regardless of
// which form the signer originally used.
func RecoverSignerPubkeyRecoverable(sig, digest []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, fmt.Errorf("%w: recoverable signature must be 65 bytes, got %d", ErrSignatureRecovery, len(sig))
	}
	recoveryID := sig[0]
	if recoveryID > 3 {
		return nil, fmt.Errorf("%w: recovery id %d out of range", ErrSignatureRecovery, recoveryID)
	}

	compact := make([]byte, 65)
	compact[0] = 27 + 4 + recoveryID
	copy(compact[1:], sig[1:])

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureRecovery, err)
	}
	return pub.SerializeCompressed(), nil
}
