package localSecureElement

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/secora-signer-go/pkg/logger"
	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/signature"
	"github.com/Layr-Labs/secora-signer-go/pkg/testutil"
	"github.com/Layr-Labs/secora-signer-go/pkg/util"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*LocalSecureElement, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{
		Debug: true,
	})
	if err != nil {
		return nil, err
	}
	return NewLocalSecureElement(l), nil
}

func Test_LocalSecureElement(t *testing.T) {
	se, err := setup()
	if err != nil {
		t.Fatalf("Failed to setup test: %v", err)
	}
	ctx := context.Background()
	digest := crypto.Keccak256([]byte("digest"))

	require.NoError(t, se.LoadPrivateKeyFromHex(1, "0x"+testutil.FixturePrivateKeys[0], nil))
	require.NoError(t, se.LoadPrivateKey(2, testutil.FixtureKey(t, 1), []byte{1, 2, 3, 4}))

	t.Run("Should expose the uncompressed public key", func(t *testing.T) {
		pub, err := se.GetPublicKey(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, pub, 65)

		parsed, err := util.ParsePublicKey(pub)
		require.NoError(t, err)
		assert.Equal(t, testutil.FixtureAddress(t, 0), util.PublicKeyToAddress(parsed))
	})
	t.Run("Should return DER with a status word trailer", func(t *testing.T) {
		raw, counters, err := se.Sign(ctx, 1, digest, nil)
		require.NoError(t, err)
		require.NotNil(t, counters)
		assert.Equal(t, secureElement.StatusWordOK, []byte(raw[len(raw)-2:]))

		pub, err := util.ParsePublicKey(testutil.FixtureKey(t, 0).PubKey().SerializeUncompressed())
		require.NoError(t, err)
		_, err = signature.ParseAndVerify(raw, digest, pub)
		require.NoError(t, err)
	})
	t.Run("Should advance counters on every signature", func(t *testing.T) {
		_, first, err := se.Sign(ctx, 1, digest, nil)
		require.NoError(t, err)
		_, second, err := se.Sign(ctx, 2, digest, []byte{1, 2, 3, 4})
		require.NoError(t, err)
		_, third, err := se.Sign(ctx, 1, digest, nil)
		require.NoError(t, err)

		assert.Len(t, first.SigCounter, 4)
		assert.Equal(t, []byte{0, 0, 0, 1}, second.SigCounter)
		assert.Equal(t, first.SigCounter[3]+1, third.SigCounter[3])
		assert.Equal(t, first.GlobalSigCounter[3]+2, third.GlobalSigCounter[3])
	})
	t.Run("Should enforce the pin", func(t *testing.T) {
		_, _, err := se.Sign(ctx, 2, digest, nil)
		assert.ErrorIs(t, err, secureElement.ErrWrongPin)
		_, _, err = se.Sign(ctx, 2, digest, []byte{4, 3, 2, 1})
		assert.ErrorIs(t, err, secureElement.ErrWrongPin)
	})
	t.Run("Should reject unknown key handles", func(t *testing.T) {
		_, _, err := se.Sign(ctx, 99, digest, nil)
		assert.ErrorIs(t, err, secureElement.ErrUnknownKey)
		_, err = se.GetPublicKey(ctx, 99)
		assert.ErrorIs(t, err, secureElement.ErrUnknownKey)
	})
	t.Run("Should reject digests of the wrong size", func(t *testing.T) {
		_, _, err := se.Sign(ctx, 1, digest[:16], nil)
		assert.Error(t, err)
	})
	t.Run("Should refuse to load a handle twice", func(t *testing.T) {
		assert.Error(t, se.LoadPrivateKey(1, testutil.FixtureKey(t, 2), nil))
		assert.Error(t, se.LoadPrivateKey(3, nil, nil))
		assert.Equal(t, 2, se.GetKeyCount())
	})
	t.Run("Should report a missing card", func(t *testing.T) {
		se.SetCardPresent(false)
		defer se.SetCardPresent(true)

		_, _, err := se.Sign(ctx, 1, digest, nil)
		assert.ErrorIs(t, err, secureElement.ErrNoCardPresented)
	})
	t.Run("Should give up when the context ends before the tap", func(t *testing.T) {
		se.SetSignDelay(time.Second)
		defer se.SetSignDelay(0)

		timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, _, err := se.Sign(timeoutCtx, 1, digest, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("Should generate fresh keys", func(t *testing.T) {
		pub, err := se.GenerateAndLoadKey(7, nil)
		require.NoError(t, err)
		assert.True(t, se.KeyExists(7))

		raw, _, err := se.Sign(ctx, 7, digest, nil)
		require.NoError(t, err)
		_, err = signature.ParseAndVerify(raw, digest, pub)
		require.NoError(t, err)
	})
}
