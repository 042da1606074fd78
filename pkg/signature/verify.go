package signature

import (
	"fmt"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifyDER checks the DER bytes with decred's strict parser and verifier,
// independent of ParseDER. Encodings decred refuses (long form lengths, padded
// integers) are checked from the scalars in sig instead.
func VerifyDER(der []byte, sig *types.ParsedSignature, digest []byte, pub *secp256k1.PublicKey) error {
	strict, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return VerifyScalars(sig, digest, pub)
	}
	if !strict.Verify(digest, pub) {
		return fmt.Errorf("%w: DER signature does not match public key", types.ErrSignatureVerificationFailed)
	}
	return nil
}

// VerifyScalars checks the parsed r and s with decred's verifier
func VerifyScalars(sig *types.ParsedSignature, digest []byte, pub *secp256k1.PublicKey) error {
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig.R[:]); overflow || r.IsZero() {
		return fmt.Errorf("%w: r is not a valid scalar", types.ErrSignatureVerificationFailed)
	}
	if overflow := s.SetByteSlice(sig.S[:]); overflow || s.IsZero() {
		return fmt.Errorf("%w: s is not a valid scalar", types.ErrSignatureVerificationFailed)
	}
	if !ecdsa.NewSignature(&r, &s).Verify(digest, pub) {
		return fmt.Errorf("%w: signature does not match public key", types.ErrSignatureVerificationFailed)
	}
	return nil
}

// VerifyRaw checks r || s against the uncompressed public key. Signatures with
// s above half the curve order are rejected.
func VerifyRaw(sig *types.ParsedSignature, digest []byte, pub *secp256k1.PublicKey) error {
	if !crypto.VerifySignature(pub.SerializeUncompressed(), digest, sig.Bytes()) {
		return fmt.Errorf("%w: raw signature does not match public key", types.ErrSignatureVerificationFailed)
	}
	return nil
}

// ParseAndVerify runs the whole acceptance path for a raw secure element
// response: trailer strip, DER parse, malleability guard, then DER and raw
// form verification against pub.
func ParseAndVerify(raw types.RawSignature, digest []byte, pub *secp256k1.PublicKey) (*types.ParsedSignature, error) {
	if len(digest) != types.DigestLength {
		return nil, fmt.Errorf("%w: digest must be %d bytes, got %d", types.ErrSignatureVerificationFailed, types.DigestLength, len(digest))
	}
	der, err := StripCounterSuffix(raw)
	if err != nil {
		return nil, err
	}
	sig, err := ParseDER(der)
	if err != nil {
		return nil, err
	}
	if err := CheckMalleability(sig); err != nil {
		return nil, err
	}
	if err := VerifyDER(der, sig, digest, pub); err != nil {
		return nil, err
	}
	if err := VerifyRaw(sig, digest, pub); err != nil {
		return nil, err
	}
	return sig, nil
}
