package testutil

import (
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Well known development keys, never use them for real funds
var FixturePrivateKeys = []string{
	"fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19",
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
}

// FixtureKey returns development key i as a secp256k1 private key
func FixtureKey(t *testing.T, i int) *secp256k1.PrivateKey {
	b, err := hex.DecodeString(FixturePrivateKeys[i])
	if err != nil {
		t.Fatalf("Failed to decode fixture key %d: %v", i, err)
	}
	return secp256k1.PrivKeyFromBytes(b)
}

// FixtureAddress returns the address controlled by development key i
func FixtureAddress(t *testing.T, i int) common.Address {
	ethKey, err := crypto.ToECDSA(FixtureKey(t, i).Serialize())
	if err != nil {
		t.Fatalf("Failed to convert fixture key %d: %v", i, err)
	}
	return crypto.PubkeyToAddress(ethKey.PublicKey)
}
