package signature

import (
	"fmt"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// CheckMalleability rejects signatures whose s has its most significant bit set.
//
// This is a proxy for s > n/2: every s >= 2^255 is high, but values in
// (n/2, 2^255) pass here and are rejected later by raw form verification,
// which enforces the exact bound.
func CheckMalleability(sig *types.ParsedSignature) error {
	if sig.S[0]&0x80 != 0 {
		return fmt.Errorf("%w: s has its top bit set", types.ErrMalleableSignature)
	}
	return nil
}

// IsHighS reports whether s is above half the curve order (or not a valid scalar at all)
func IsHighS(s [types.SignatureComponentLength]byte) bool {
	var sc secp256k1.ModNScalar
	if overflow := sc.SetByteSlice(s[:]); overflow {
		return true
	}
	return sc.IsOverHalfOrder()
}
