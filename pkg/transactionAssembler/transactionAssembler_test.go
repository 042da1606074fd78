package transactionAssembler

import (
	"context"
	"math/big"
	"testing"

	"github.com/Layr-Labs/secora-signer-go/pkg/testutil"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_ParseTransactionRequest(t *testing.T) {
	t.Run("Should fail without a value", func(t *testing.T) {
		_, err := ParseTransactionRequest(&types.TransactionRequest{To: "0x00000000000000000000000000000000000000aa"})
		assert.ErrorIs(t, err, types.ErrMissingField)
	})
	t.Run("Should treat a zero value as present", func(t *testing.T) {
		parsed, err := ParseTransactionRequest(&types.TransactionRequest{Value: "0x0"})
		require.NoError(t, err)
		assert.Equal(t, 0, parsed.Value.Sign())
		assert.Nil(t, parsed.To)
	})
	t.Run("Should parse prefixed and bare hex identically", func(t *testing.T) {
		prefixed, err := ParseTransactionRequest(&types.TransactionRequest{
			To:       "0x00000000000000000000000000000000000000aa",
			Gas:      "0x5208",
			GasPrice: "0x3b9aca00",
			Value:    "0xde0b6b3a7640000",
			Data:     "0xcafe",
		})
		require.NoError(t, err)
		bare, err := ParseTransactionRequest(&types.TransactionRequest{
			To:       "00000000000000000000000000000000000000aa",
			Gas:      "5208",
			GasPrice: "3b9aca00",
			Value:    "de0b6b3a7640000",
			Data:     "cafe",
		})
		require.NoError(t, err)
		assert.Equal(t, prefixed, bare)
		assert.Equal(t, uint64(21000), *bare.Gas)
		assert.Equal(t, []byte{0xca, 0xfe}, bare.Data)
	})
	t.Run("Should accept only the legacy type", func(t *testing.T) {
		for _, typ := range []string{"", "0", "0x0", "0x00"} {
			_, err := ParseTransactionRequest(&types.TransactionRequest{Value: "1", Type: typ})
			assert.NoError(t, err, typ)
		}
		for _, typ := range []string{"0x1", "0x2", "2", "eip1559"} {
			_, err := ParseTransactionRequest(&types.TransactionRequest{Value: "1", Type: typ})
			assert.ErrorIs(t, err, types.ErrUnsupportedTransactionType, typ)
		}
	})
	t.Run("Should reject bad addresses and quantities", func(t *testing.T) {
		_, err := ParseTransactionRequest(&types.TransactionRequest{Value: "1", To: "0x1234"})
		assert.ErrorIs(t, err, types.ErrInvalidHex)
		_, err = ParseTransactionRequest(&types.TransactionRequest{Value: "0xzz"})
		assert.ErrorIs(t, err, types.ErrInvalidHex)
		_, err = ParseTransactionRequest(&types.TransactionRequest{Value: "1", Gas: "0x10000000000000000"})
		assert.ErrorIs(t, err, types.ErrInvalidHex)
	})
	t.Run("Should reject gas fields with no digits", func(t *testing.T) {
		for _, empty := range []string{"0x", "0X", " 0x "} {
			_, err := ParseTransactionRequest(&types.TransactionRequest{Value: "1", Gas: empty})
			assert.ErrorIs(t, err, types.ErrInvalidHex, empty)
			_, err = ParseTransactionRequest(&types.TransactionRequest{Value: "1", GasPrice: empty})
			assert.ErrorIs(t, err, types.ErrInvalidHex, empty)
		}
		parsed, err := ParseTransactionRequest(&types.TransactionRequest{Value: "0x"})
		require.NoError(t, err)
		assert.Equal(t, 0, parsed.Value.Sign())
	})
	t.Run("Should fail on a nil request", func(t *testing.T) {
		_, err := ParseTransactionRequest(nil)
		assert.ErrorIs(t, err, types.ErrMissingField)
	})
}

func Test_TransactionAssembler(t *testing.T) {
	l := zaptest.NewLogger(t)
	ctx := context.Background()
	chainID := big.NewInt(1)
	from := testutil.FixtureAddress(t, 0)
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	cs := testutil.NewMockChainState(l)
	cs.SetNonce(from, 9)
	cs.SetGasPrice(big.NewInt(2_000_000_000))
	cs.SetGasLimit(25_000_000)
	assembler := NewTransactionAssembler(cs, chainID, l)

	t.Run("Should take nonce from the chain and fall back for gas", func(t *testing.T) {
		parsed, err := ParseTransactionRequest(&types.TransactionRequest{To: to.Hex(), Value: "0x1"})
		require.NoError(t, err)
		fields, err := assembler.Assemble(ctx, from, parsed)
		require.NoError(t, err)

		assert.Equal(t, uint64(9), fields.Nonce)
		assert.Equal(t, int64(2_000_000_000), fields.GasPrice.Int64())
		assert.Equal(t, uint64(25_000_000), fields.GasLimit)
		assert.Equal(t, to, *fields.To)
	})
	t.Run("Should prefer request supplied gas values", func(t *testing.T) {
		parsed, err := ParseTransactionRequest(&types.TransactionRequest{Gas: "5208", GasPrice: "0x7", Value: "0x1"})
		require.NoError(t, err)
		fields, err := assembler.Assemble(ctx, from, parsed)
		require.NoError(t, err)

		assert.Equal(t, int64(7), fields.GasPrice.Int64())
		assert.Equal(t, uint64(21000), fields.GasLimit)
	})
	t.Run("Should reject a from that is not the signing key", func(t *testing.T) {
		parsed, err := ParseTransactionRequest(&types.TransactionRequest{From: testutil.FixtureAddress(t, 1).Hex(), Value: "0x1"})
		require.NoError(t, err)
		_, err = assembler.Assemble(ctx, from, parsed)
		assert.ErrorIs(t, err, types.ErrUnsupportedSignRequest)
	})
	t.Run("Should hash like the go-ethereum EIP-155 signer", func(t *testing.T) {
		for _, recipient := range []*common.Address{&to, nil} {
			fields := &types.RawTransactionFields{
				Nonce:    3,
				GasPrice: big.NewInt(1_000_000_000),
				GasLimit: 21000,
				To:       recipient,
				Value:    big.NewInt(12345),
				Data:     []byte{0x01, 0x02},
			}
			hash, err := assembler.SigningHash(fields)
			require.NoError(t, err)

			tx := ethtypes.NewTx(&ethtypes.LegacyTx{
				Nonce:    fields.Nonce,
				GasPrice: fields.GasPrice,
				Gas:      fields.GasLimit,
				To:       fields.To,
				Value:    fields.Value,
				Data:     fields.Data,
			})
			assert.Equal(t, ethtypes.NewEIP155Signer(chainID).Hash(tx).Bytes(), hash)
		}
	})
	t.Run("Should serialize a transaction nodes accept", func(t *testing.T) {
		fields := &types.RawTransactionFields{
			Nonce:    9,
			GasPrice: big.NewInt(1_000_000_000),
			GasLimit: 21000,
			To:       &to,
			Value:    big.NewInt(1),
		}
		hash, err := assembler.SigningHash(fields)
		require.NoError(t, err)

		ethKey, err := crypto.ToECDSA(testutil.FixtureKey(t, 0).Serialize())
		require.NoError(t, err)
		sigBytes, err := crypto.Sign(hash, ethKey)
		require.NoError(t, err)
		sig := &types.CanonicalSignature{V: sigBytes[64]}
		copy(sig.R[:], sigBytes[:32])
		copy(sig.S[:], sigBytes[32:64])

		raw, err := assembler.Serialize(fields, sig)
		require.NoError(t, err)

		tx := new(ethtypes.Transaction)
		require.NoError(t, tx.UnmarshalBinary(raw))
		assert.Equal(t, uint8(ethtypes.LegacyTxType), tx.Type())
		assert.Equal(t, uint64(9), tx.Nonce())
		assert.Equal(t, 0, chainID.Cmp(tx.ChainId()))

		sender, err := ethtypes.Sender(ethtypes.NewEIP155Signer(chainID), tx)
		require.NoError(t, err)
		assert.Equal(t, from, sender)

		v, _, _ := tx.RawSignatureValues()
		assert.Equal(t, int64(37+int64(sig.V)), v.Int64())
		assert.Contains(t, []int64{37, 38}, v.Int64())
	})
	t.Run("Should refuse recovery ids that cannot be replay protected", func(t *testing.T) {
		fields := &types.RawTransactionFields{GasPrice: big.NewInt(1), Value: big.NewInt(1)}
		_, err := Serialize(fields, chainID, &types.CanonicalSignature{V: 2})
		assert.ErrorIs(t, err, types.ErrRecoveryFailed)
	})
	t.Run("Should refuse fields without a value", func(t *testing.T) {
		_, err := SigningHash(&types.RawTransactionFields{GasPrice: big.NewInt(1)}, chainID)
		assert.ErrorIs(t, err, types.ErrMissingField)
	})
}

func Test_ReplayProtectedV(t *testing.T) {
	assert.Equal(t, int64(37), ReplayProtectedV(big.NewInt(1), 0).Int64())
	assert.Equal(t, int64(38), ReplayProtectedV(big.NewInt(1), 1).Int64())
	assert.Equal(t, int64(11155111*2+35+1), ReplayProtectedV(big.NewInt(11155111), 1).Int64())
}
