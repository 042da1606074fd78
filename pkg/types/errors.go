package types

import (
	"encoding/hex"
	"errors"
)

var (
	ErrMalformedSignature          = errors.New("malformed signature")
	ErrMalleableSignature          = errors.New("signature is vulnerable to malleability attack")
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
	ErrRecoveryFailed              = errors.New("could not determine recovery id")
	ErrUnsupportedSignRequest      = errors.New("unsupported sign request")
	ErrUnsupportedTransactionType  = errors.New("transaction type is not supported")
	ErrMissingField                = errors.New("missing field")
	ErrSignerUnavailable           = errors.New("signer unavailable")
	ErrSignerBusy                  = errors.New("signer busy")

	ErrInvalidHex       = errors.New("invalid hex")
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrBroadcastFailed  = errors.New("broadcast failed")
)

const ErrorKind_SignerError = "SignerError"

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrMalformedSignature, "MalformedSignature"},
	{ErrMalleableSignature, "MalleableSignature"},
	{ErrSignatureVerificationFailed, "SignatureVerificationFailed"},
	{ErrRecoveryFailed, "RecoveryFailed"},
	{ErrUnsupportedSignRequest, "UnsupportedSignRequest"},
	{ErrUnsupportedTransactionType, "UnsupportedTransactionType"},
	{ErrMissingField, "MissingField"},
	{ErrSignerUnavailable, "SignerUnavailable"},
	{ErrSignerBusy, "SignerBusy"},
	{ErrInvalidHex, "InvalidHex"},
	{ErrInvalidPublicKey, "InvalidPublicKey"},
	{ErrUnsupportedChain, "UnsupportedChain"},
	{ErrBroadcastFailed, "BroadcastFailed"},
}

// ErrorKind maps err onto the stable name reported to the request source.
// Errors outside the taxonomy come from the secure element or the chain and
// are reported as SignerError.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return ErrorKind_SignerError
}

// EncodeHex returns b as a 0x prefixed lower case hex string
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
