package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *SignerServerConfig {
	return &SignerServerConfig{
		Port:          DefaultPort,
		ChainID:       ChainId_EthereumMainnet,
		Backend:       SignerBackend_Local,
		LocalKeys:     map[int]string{1: "0xfad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19"},
		Journal:       JournalBackend_Memory,
		SignerTimeout: DefaultSignerTimeout,
		BusyPolicy:    "reject",
	}
}

func Test_SignerServerConfig(t *testing.T) {
	t.Run("Should accept a minimal local configuration", func(t *testing.T) {
		c := validConfig()
		require.NoError(t, c.Validate())
		assert.Equal(t, ChainName_EthereumMainnet, c.ChainName)
	})
	t.Run("Should accept the aws-kms backend with key ids", func(t *testing.T) {
		c := validConfig()
		c.Backend = SignerBackend_AWSKMS
		c.LocalKeys = nil
		c.KMSKeyIds = map[int]string{1: "alias/hot"}
		assert.NoError(t, c.Validate())
	})
	t.Run("Should report every problem at once", func(t *testing.T) {
		c := validConfig()
		c.Port = 0
		c.ChainID = 5
		c.Journal = JournalBackend_Badger
		c.SignerTimeout = 0

		err := c.Validate()
		require.Error(t, err)
		for _, f := range []string{"port", "chainId", "journalPath", "signerTimeout"} {
			assert.Contains(t, err.Error(), f)
		}
	})
	t.Run("Should reject malformed local keys without echoing them", func(t *testing.T) {
		c := validConfig()
		c.LocalKeys = map[int]string{2: "0xdeadbeef"}
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "localKeys[2]")
		assert.NotContains(t, err.Error(), "deadbeef")
	})
	t.Run("Should require settings for the chosen backends", func(t *testing.T) {
		c := validConfig()
		c.Backend = SignerBackend_AWSKMS
		c.Journal = JournalBackend_Redis
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kmsKeyIds")
		assert.Contains(t, err.Error(), "redisAddress")
	})
	t.Run("Should reject unknown enums", func(t *testing.T) {
		c := validConfig()
		c.Backend = "pkcs11"
		c.Journal = "sqlite"
		c.BusyPolicy = "drop"
		err := c.Validate()
		require.Error(t, err)
		for _, f := range []string{"backend", "journal", "busyPolicy"} {
			assert.Contains(t, err.Error(), f)
		}
	})
	t.Run("Should require a burst when rate limiting", func(t *testing.T) {
		c := validConfig()
		c.RateLimit = 2
		assert.ErrorContains(t, c.Validate(), "rateLimitBurst")
		c.RateLimitBurst = 4
		assert.NoError(t, c.Validate())
	})
	t.Run("Should fill in the chain name for every supported chain", func(t *testing.T) {
		for id, name := range ChainIdToName {
			c := validConfig()
			c.ChainID = id
			require.NoError(t, c.Validate())
			assert.Equal(t, name, c.ChainName)
			assert.True(t, IsSupportedChainId(uint64(id)))
		}
		assert.False(t, IsSupportedChainId(5))
	})
}

func Test_ParseKeyMap(t *testing.T) {
	t.Run("Should parse handle value pairs", func(t *testing.T) {
		m, err := ParseKeyMap(" 1=alias/hot, 2=arn:aws:kms:us-east-1:000000000000:key/abc=def ,")
		require.NoError(t, err)
		assert.Equal(t, map[int]string{
			1: "alias/hot",
			2: "arn:aws:kms:us-east-1:000000000000:key/abc=def",
		}, m)
	})
	t.Run("Should return an empty map for an empty string", func(t *testing.T) {
		m, err := ParseKeyMap("")
		require.NoError(t, err)
		assert.Empty(t, m)
	})
	for _, bad := range []string{"1", "x=alias/a", "-1=alias/a", "1=", "1=a,1=b"} {
		t.Run("Should reject "+strings.ReplaceAll(bad, "=", " eq "), func(t *testing.T) {
			_, err := ParseKeyMap(bad)
			assert.Error(t, err)
		})
	}
}
