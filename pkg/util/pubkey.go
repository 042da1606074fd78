package util

import (
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ParsePublicKey accepts a compressed (33 byte) or uncompressed (65 byte)
// SEC1 encoded secp256k1 public key.
func ParsePublicKey(b []byte) (*secp256k1.PublicKey, error) {
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, errors.Wrap(types.ErrInvalidPublicKey, err.Error())
	}
	return pub, nil
}

// PublicKeyToAddress derives the account address controlled by pub
func PublicKeyToAddress(pub *secp256k1.PublicKey) common.Address {
	return common.BytesToAddress(crypto.Keccak256(pub.SerializeUncompressed()[1:])[12:])
}
