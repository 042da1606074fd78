// Package signature turns the DER encoded output of a secure element into a
// verified, recoverable (r, s, v) signature.
package signature

import (
	"fmt"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
)

const (
	// CounterSuffixLength is the size of the trailer the secure element appends
	// to every DER signature (4 hex characters).
	CounterSuffixLength = 2

	derSequenceTag = 0x30
	derIntegerTag  = 0x02

	// derLongFormOneByte announces a single length byte following the length octet
	derLongFormOneByte = 0x81
)

// StripCounterSuffix drops the fixed size trailer from a raw secure element response
func StripCounterSuffix(raw types.RawSignature) ([]byte, error) {
	if len(raw) <= CounterSuffixLength {
		return nil, fmt.Errorf("%w: response of %d bytes is too short", types.ErrMalformedSignature, len(raw))
	}
	return raw[:len(raw)-CounterSuffixLength], nil
}

// ParseRawSignature strips the counter trailer and parses the remaining DER signature
func ParseRawSignature(raw types.RawSignature) (*types.ParsedSignature, error) {
	der, err := StripCounterSuffix(raw)
	if err != nil {
		return nil, err
	}
	return ParseDER(der)
}

type derCursor struct {
	buf []byte
	pos int
}

func (c *derCursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *derCursor) readByte() (byte, error) {
	if c.remaining() < 1 {
		return 0, fmt.Errorf("%w: unexpected end of input at offset %d", types.ErrMalformedSignature, c.pos)
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *derCursor) readN(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", types.ErrMalformedSignature, n, c.pos, c.remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *derCursor) expect(tag byte) error {
	b, err := c.readByte()
	if err != nil {
		return err
	}
	if b != tag {
		return fmt.Errorf("%w: expected tag 0x%02x at offset %d, got 0x%02x", types.ErrMalformedSignature, tag, c.pos-1, b)
	}
	return nil
}

// readLength reads a short form length or the single byte long form (0x81 nn)
func (c *derCursor) readLength() (int, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, err
	}
	if b&0x80 == 0 {
		return int(b), nil
	}
	if b != derLongFormOneByte {
		return 0, fmt.Errorf("%w: unsupported length encoding 0x%02x", types.ErrMalformedSignature, b)
	}
	l, err := c.readByte()
	if err != nil {
		return 0, err
	}
	return int(l), nil
}

// readInteger reads a DER INTEGER and fits it into 32 bytes. Longer encodings
// may only carry leading zero bytes; shorter ones are left padded.
func (c *derCursor) readInteger(name string) ([types.SignatureComponentLength]byte, error) {
	var out [types.SignatureComponentLength]byte
	if err := c.expect(derIntegerTag); err != nil {
		return out, err
	}
	l, err := c.readLength()
	if err != nil {
		return out, err
	}
	if l == 0 {
		return out, fmt.Errorf("%w: empty %s component", types.ErrMalformedSignature, name)
	}
	v, err := c.readN(l)
	if err != nil {
		return out, err
	}
	if excess := len(v) - types.SignatureComponentLength; excess > 0 {
		for _, b := range v[:excess] {
			if b != 0 {
				return out, fmt.Errorf("%w: %s component does not fit in %d bytes", types.ErrMalformedSignature, name, types.SignatureComponentLength)
			}
		}
		v = v[excess:]
	}
	copy(out[types.SignatureComponentLength-len(v):], v)
	return out, nil
}

// ParseDER parses SEQUENCE { INTEGER r, INTEGER s } into fixed width components.
// Every read is bounds checked; any inconsistency yields ErrMalformedSignature.
func ParseDER(der []byte) (*types.ParsedSignature, error) {
	c := &derCursor{buf: der}
	if err := c.expect(derSequenceTag); err != nil {
		return nil, err
	}
	seqLen, err := c.readLength()
	if err != nil {
		return nil, err
	}
	if seqLen != c.remaining() {
		return nil, fmt.Errorf("%w: sequence length %d does not match %d remaining bytes", types.ErrMalformedSignature, seqLen, c.remaining())
	}

	r, err := c.readInteger("r")
	if err != nil {
		return nil, err
	}
	s, err := c.readInteger("s")
	if err != nil {
		return nil, err
	}
	if c.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after s", types.ErrMalformedSignature, c.remaining())
	}
	return &types.ParsedSignature{R: r, S: s}, nil
}
