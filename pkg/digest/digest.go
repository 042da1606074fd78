// Package digest computes the 32 byte value submitted to the secure element
// for each kind of signing request.
package digest

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/Layr-Labs/secora-signer-go/pkg/transactionAssembler"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"golang.org/x/crypto/sha3"
)

const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// Input carries the payload relevant to Kind; other fields are ignored
type Input struct {
	Kind        types.SignRequestKind
	Payload     []byte
	TypedData   json.RawMessage
	Transaction *types.RawTransactionFields
	ChainID     *big.Int
}

// Build returns the digest for in
func Build(in *Input) ([]byte, error) {
	switch in.Kind {
	case types.SignRequestKind_RawMessage:
		return RawMessage(in.Payload), nil
	case types.SignRequestKind_PersonalMessage:
		return PersonalMessage(in.Payload), nil
	case types.SignRequestKind_TypedData:
		return TypedData(in.TypedData)
	case types.SignRequestKind_Transaction:
		if in.ChainID == nil {
			return nil, fmt.Errorf("%w: chainId", types.ErrMissingField)
		}
		return transactionAssembler.SigningHash(in.Transaction, in.ChainID)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedSignRequest, in.Kind)
	}
}

// RawMessage passes 32 byte payloads through as already hashed and prefixes
// everything else like a personal message.
func RawMessage(payload []byte) []byte {
	if len(payload) == types.DigestLength {
		out := make([]byte, types.DigestLength)
		copy(out, payload)
		return out
	}
	return PersonalMessage(payload)
}

// PersonalMessage is keccak256("\x19Ethereum Signed Message:\n" + len(payload) + payload)
func PersonalMessage(payload []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(personalMessagePrefix))
	h.Write([]byte(strconv.Itoa(len(payload))))
	h.Write(payload)
	return h.Sum(nil)
}

// TypedData hashes an EIP-712 document
func TypedData(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: typedData", types.ErrMissingField)
	}
	var td apitypes.TypedData
	if err := json.Unmarshal(raw, &td); err != nil {
		return nil, fmt.Errorf("%w: invalid typed data: %v", types.ErrUnsupportedSignRequest, err)
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hash typed data: %v", types.ErrUnsupportedSignRequest, err)
	}
	return hash, nil
}
