package digest

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Mail": {
				{Name: "from", Type: "address"},
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: apitypes.TypedDataDomain{
			Name:    "Secora",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(1),
		},
		Message: apitypes.TypedDataMessage{
			"from":     "0x00000000000000000000000000000000000000aa",
			"contents": "hello",
		},
	}
}

func Test_Build(t *testing.T) {
	t.Run("Should pass a 32 byte raw payload through unchanged", func(t *testing.T) {
		payload := crypto.Keccak256([]byte("already hashed"))
		d, err := Build(&Input{Kind: types.SignRequestKind_RawMessage, Payload: payload})
		require.NoError(t, err)
		assert.Equal(t, payload, d)
	})
	t.Run("Should prefix a 31 byte raw payload", func(t *testing.T) {
		payload := make([]byte, 31)
		d, err := Build(&Input{Kind: types.SignRequestKind_RawMessage, Payload: payload})
		require.NoError(t, err)
		want := crypto.Keccak256(append([]byte("\x19Ethereum Signed Message:\n31"), payload...))
		assert.Equal(t, want, d)
	})
	t.Run("Should hash personal messages like go-ethereum", func(t *testing.T) {
		for _, msg := range [][]byte{nil, []byte("hello"), make([]byte, 32), make([]byte, 1000)} {
			d, err := Build(&Input{Kind: types.SignRequestKind_PersonalMessage, Payload: msg})
			require.NoError(t, err)
			assert.Equal(t, accounts.TextHash(msg), d)
		}
	})
	t.Run("Should hash typed data", func(t *testing.T) {
		td := sampleTypedData()
		raw, err := json.Marshal(td)
		require.NoError(t, err)

		want, _, err := apitypes.TypedDataAndHash(td)
		require.NoError(t, err)

		d, err := Build(&Input{Kind: types.SignRequestKind_TypedData, TypedData: raw})
		require.NoError(t, err)
		assert.Equal(t, want, d)
		assert.Len(t, d, 32)
	})
	t.Run("Should reject broken typed data", func(t *testing.T) {
		_, err := Build(&Input{Kind: types.SignRequestKind_TypedData, TypedData: json.RawMessage(`{"types":`)})
		assert.ErrorIs(t, err, types.ErrUnsupportedSignRequest)
		_, err = Build(&Input{Kind: types.SignRequestKind_TypedData})
		assert.ErrorIs(t, err, types.ErrMissingField)
	})
	t.Run("Should hash transactions with replay protection", func(t *testing.T) {
		to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
		fields := &types.RawTransactionFields{
			Nonce:    1,
			GasPrice: big.NewInt(10),
			GasLimit: 21000,
			To:       &to,
			Value:    big.NewInt(5),
		}
		d, err := Build(&Input{Kind: types.SignRequestKind_Transaction, Transaction: fields, ChainID: big.NewInt(1)})
		require.NoError(t, err)

		tx := ethtypes.NewTx(&ethtypes.LegacyTx{Nonce: 1, GasPrice: big.NewInt(10), Gas: 21000, To: &to, Value: big.NewInt(5)})
		assert.Equal(t, ethtypes.NewEIP155Signer(big.NewInt(1)).Hash(tx).Bytes(), d)
	})
	t.Run("Should reject unknown kinds", func(t *testing.T) {
		_, err := Build(&Input{Kind: "orders"})
		assert.ErrorIs(t, err, types.ErrUnsupportedSignRequest)
	})
}
