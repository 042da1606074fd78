package types

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// SignatureComponentLength is the fixed width of r and s.
	SignatureComponentLength = 32

	// DigestLength is the size of every digest submitted to the secure element.
	DigestLength = 32

	// MessageRecoveryOffset is added to the recovery id of message signatures.
	MessageRecoveryOffset = 27
)

// SignRequestKind identifies how the digest of a signing request is derived
type SignRequestKind string

func (k SignRequestKind) String() string {
	return string(k)
}

const (
	SignRequestKind_RawMessage      SignRequestKind = "raw-message"
	SignRequestKind_PersonalMessage SignRequestKind = "personal-message"
	SignRequestKind_TypedData       SignRequestKind = "typed-data"
	SignRequestKind_Transaction     SignRequestKind = "transaction"
)

// IsMessage reports whether the kind produces a message signature (v offset by 27)
func (k SignRequestKind) IsMessage() bool {
	switch k {
	case SignRequestKind_RawMessage, SignRequestKind_PersonalMessage, SignRequestKind_TypedData:
		return true
	default:
		return false
	}
}

// RawSignature is the response of the secure element: a DER encoded ECDSA
// signature followed by a fixed size trailer.
type RawSignature []byte

// SignatureCounters are the monotonic counters the secure element returns with
// every signature. They are carried through untouched.
type SignatureCounters struct {
	SigCounter       []byte
	GlobalSigCounter []byte
}

// ParsedSignature holds r and s as fixed width big-endian values
type ParsedSignature struct {
	R [SignatureComponentLength]byte
	S [SignatureComponentLength]byte
}

// Bytes returns r || s
func (p *ParsedSignature) Bytes() []byte {
	out := make([]byte, 0, 2*SignatureComponentLength)
	out = append(out, p.R[:]...)
	return append(out, p.S[:]...)
}

// CanonicalSignature is a verified, low-s signature with its recovery discriminant
type CanonicalSignature struct {
	R [SignatureComponentLength]byte
	S [SignatureComponentLength]byte
	V byte
}

// Bytes returns r || s || v
func (c *CanonicalSignature) Bytes() []byte {
	out := make([]byte, 0, 2*SignatureComponentLength+1)
	out = append(out, c.R[:]...)
	out = append(out, c.S[:]...)
	return append(out, c.V)
}

// WithOffset returns a copy of the signature with offset added to v
func (c *CanonicalSignature) WithOffset(offset byte) *CanonicalSignature {
	cp := *c
	cp.V += offset
	return &cp
}

// RawTransactionFields is a legacy transaction ready to be hashed and signed
type RawTransactionFields struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       *common.Address // nil for contract creation
	Value    *big.Int
	Data     []byte
}

// TransactionRequest carries the transaction fields exactly as the request
// source delivered them. Hex quantities may or may not carry a 0x prefix and
// an empty string means the field is absent.
type TransactionRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice"`
	Value    string `json:"value"`
	Data     string `json:"data"`
	Type     string `json:"type"`
}

// SignRequest is a single signing request routed through the orchestrator
type SignRequest struct {
	ID          int64
	Kind        SignRequestKind
	KeyHandle   int
	Pin         []byte // nil when the key is not PIN protected
	Payload     []byte // message bytes for raw/personal messages
	TypedData   json.RawMessage
	Transaction *TransactionRequest
	Send        bool // broadcast the signed transaction
}

// SignResult is the outcome of a successful signing request
type SignResult struct {
	RequestID      int64
	JournalID      string
	Kind           SignRequestKind
	Digest         []byte
	Signature      *CanonicalSignature
	Counters       *SignatureCounters
	RawTransaction []byte       // set for transactions
	TxHash         *common.Hash // set when the transaction was broadcast
}

// SignatureWithMessageOffset returns r || s || v with v offset by 27, the form
// handed back to the request source for every kind, transactions included.
func (r *SignResult) SignatureWithMessageOffset() []byte {
	if r.Signature == nil {
		return nil
	}
	if r.Kind.IsMessage() {
		return r.Signature.Bytes()
	}
	return r.Signature.WithOffset(MessageRecoveryOffset).Bytes()
}

// Result returns the value approved back to the request source: the
// canonical signature for messages, the serialized transaction for sign-only
// transactions and the transaction hash for broadcast ones.
func (r *SignResult) Result() string {
	switch {
	case r.TxHash != nil:
		return r.TxHash.Hex()
	case r.RawTransaction != nil:
		return EncodeHex(r.RawTransaction)
	case r.Signature != nil:
		return EncodeHex(r.Signature.Bytes())
	default:
		return ""
	}
}
