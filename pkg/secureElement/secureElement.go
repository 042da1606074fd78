package secureElement

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
)

// StatusWordOK is the ISO 7816 success trailer appended to every signature response
var StatusWordOK = []byte{0x90, 0x00}

var (
	// ErrNoCardPresented is returned when no card answered before the request gave up
	ErrNoCardPresented = errors.New("no card presented")
	ErrWrongPin        = errors.New("wrong pin")
	ErrUnknownKey      = errors.New("unknown key handle")
)

// ISecureElement is the signing channel to a single secure element. It cannot
// service concurrent commands; callers serialize access.
type ISecureElement interface {
	// Sign signs a 32 byte digest with the key at keyHandle. pin may be nil.
	Sign(ctx context.Context, keyHandle int, digest []byte, pin []byte) (types.RawSignature, *types.SignatureCounters, error)

	// GetPublicKey returns the SEC1 public key (33 or 65 bytes) of keyHandle
	GetPublicKey(ctx context.Context, keyHandle int) ([]byte, error)
}

// FrameSignature appends the status word trailer to a DER signature
func FrameSignature(der []byte) types.RawSignature {
	raw := make([]byte, 0, len(der)+len(StatusWordOK))
	raw = append(raw, der...)
	return append(raw, StatusWordOK...)
}

// EncodeCounter renders a counter the way the card reports it: four bytes, big-endian
func EncodeCounter(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}
