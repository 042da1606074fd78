package signature

import (
	"bytes"
	"fmt"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
)

const maxRecoveryID = 3

// ResolveRecoveryID finds the smallest v in [0, 3] for which public key
// recovery over (r, s, v) and digest yields expected.
func ResolveRecoveryID(sig *types.ParsedSignature, digest []byte, expected *secp256k1.PublicKey) (byte, error) {
	want := expected.SerializeUncompressed()

	candidate := make([]byte, 0, 2*types.SignatureComponentLength+1)
	candidate = append(candidate, sig.Bytes()...)
	candidate = append(candidate, 0)

	for v := byte(0); v <= maxRecoveryID; v++ {
		candidate[len(candidate)-1] = v
		recovered, err := crypto.Ecrecover(digest, candidate)
		if err != nil {
			continue
		}
		if bytes.Equal(recovered, want) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: no recovery id in [0, %d] matches the public key", types.ErrRecoveryFailed, maxRecoveryID)
}

// Canonicalize resolves the recovery id and returns the canonical signature
// with v unbiased (0-3).
func Canonicalize(sig *types.ParsedSignature, digest []byte, expected *secp256k1.PublicKey) (*types.CanonicalSignature, error) {
	v, err := ResolveRecoveryID(sig, digest, expected)
	if err != nil {
		return nil, err
	}
	return &types.CanonicalSignature{R: sig.R, S: sig.S, V: v}, nil
}

// Normalize runs ParseAndVerify followed by Canonicalize
func Normalize(raw types.RawSignature, digest []byte, expected *secp256k1.PublicKey) (*types.CanonicalSignature, error) {
	sig, err := ParseAndVerify(raw, digest, expected)
	if err != nil {
		return nil, err
	}
	return Canonicalize(sig, digest, expected)
}
