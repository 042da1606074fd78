package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Layr-Labs/secora-signer-go/pkg/util"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the signer server configuration
const (
	EnvSignerPort           = "SIGNER_PORT"
	EnvSignerChainID        = "SIGNER_CHAIN_ID"
	EnvSignerRPCURL         = "SIGNER_RPC_URL"
	EnvSignerBackend        = "SIGNER_BACKEND"
	EnvSignerAWSRegion      = "SIGNER_AWS_REGION"
	EnvSignerKMSKeyIds      = "SIGNER_KMS_KEY_IDS"
	EnvSignerLocalKeys      = "SIGNER_LOCAL_KEYS"
	EnvSignerJournal        = "SIGNER_JOURNAL"
	EnvSignerJournalPath    = "SIGNER_JOURNAL_PATH"
	EnvSignerRedisAddress   = "SIGNER_REDIS_ADDRESS"
	EnvSignerRedisPassword  = "SIGNER_REDIS_PASSWORD"
	EnvSignerRedisDB        = "SIGNER_REDIS_DB"
	EnvSignerTimeout        = "SIGNER_TIMEOUT"
	EnvSignerBusyPolicy     = "SIGNER_BUSY_POLICY"
	EnvSignerRateLimit      = "SIGNER_RATE_LIMIT"
	EnvSignerRateLimitBurst = "SIGNER_RATE_LIMIT_BURST"
	EnvSignerVerbose        = "SIGNER_VERBOSE"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// IsSupportedChainId reports whether transactions may be signed for chainId
func IsSupportedChainId(chainId uint64) bool {
	_, ok := ChainIdToName[ChainId(chainId)]
	return ok
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

type SignerBackend string

const (
	SignerBackend_Local  SignerBackend = "local"
	SignerBackend_AWSKMS SignerBackend = "aws-kms"
)

type JournalBackend string

const (
	JournalBackend_Memory JournalBackend = "memory"
	JournalBackend_Badger JournalBackend = "badger"
	JournalBackend_Redis  JournalBackend = "redis"
)

const (
	DefaultPort          = 8080
	DefaultSignerTimeout = 60 * time.Second
	DefaultRateLimit     = 5.0
	DefaultRateBurst     = 10
)

// SignerServerConfig represents the complete configuration for a signer server
type SignerServerConfig struct {
	Port int `json:"port"`

	// Chain configuration
	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`
	RpcUrl    string    `json:"rpc_url"` // empty disables transaction signing

	// Secure element
	Backend   SignerBackend  `json:"backend"`
	AWSRegion string         `json:"aws_region"`
	KMSKeyIds map[int]string `json:"kms_key_ids"`
	LocalKeys map[int]string `json:"-"` // hex private keys, development only

	// Signing journal
	Journal       JournalBackend `json:"journal"`
	JournalPath   string         `json:"journal_path"`
	RedisAddress  string         `json:"redis_address"`
	RedisPassword string         `json:"-"`
	RedisDB       int            `json:"redis_db"`

	// Operational settings
	SignerTimeout  time.Duration `json:"signer_timeout"`
	BusyPolicy     string        `json:"busy_policy"`
	RateLimit      float64       `json:"rate_limit"` // requests per second, 0 disables
	RateLimitBurst int           `json:"rate_limit_burst"`
	Debug          bool          `json:"debug"`
	Verbose        bool          `json:"verbose"`
}

// Validate validates the signer server configuration and fills in ChainName
func (c *SignerServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be between 1-65535"))
	}

	chainName, exists := ChainIdToName[c.ChainID]
	if !exists {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("chainId"), c.ChainID,
			[]string{GetSupportedChainIDsString()}))
	}
	c.ChainName = chainName

	switch c.Backend {
	case SignerBackend_Local:
		if len(c.LocalKeys) == 0 {
			allErrors = append(allErrors, field.Required(field.NewPath("localKeys"), "at least one key is required for the local backend"))
		}
		for handle, key := range c.LocalKeys {
			b, err := util.DecodeHexBytes(key)
			if err != nil || len(b) != 32 {
				allErrors = append(allErrors, field.Invalid(field.NewPath("localKeys").Key(strconv.Itoa(handle)), "<redacted>", "must be a 32 byte hex private key"))
			}
		}
	case SignerBackend_AWSKMS:
		if len(c.KMSKeyIds) == 0 {
			allErrors = append(allErrors, field.Required(field.NewPath("kmsKeyIds"), "at least one key id is required for the aws-kms backend"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("backend"), c.Backend,
			[]string{string(SignerBackend_Local), string(SignerBackend_AWSKMS)}))
	}

	switch c.Journal {
	case JournalBackend_Memory:
	case JournalBackend_Badger:
		if c.JournalPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("journalPath"), "journalPath is required for the badger journal"))
		}
	case JournalBackend_Redis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for the redis journal"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("journal"), c.Journal,
			[]string{string(JournalBackend_Memory), string(JournalBackend_Badger), string(JournalBackend_Redis)}))
	}

	if c.SignerTimeout <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("signerTimeout"), c.SignerTimeout.String(), "must be positive"))
	}
	if c.BusyPolicy != "reject" && c.BusyPolicy != "queue" {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("busyPolicy"), c.BusyPolicy, []string{"reject", "queue"}))
	}
	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "cannot be negative"))
	}
	if c.RateLimit > 0 && c.RateLimitBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimitBurst"), c.RateLimitBurst, "must be at least 1 when rate limiting"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ParseKeyMap parses "handle=value" pairs separated by commas, e.g.
// "1=alias/hot,2=arn:aws:kms:...". Values may contain '='.
func ParseKeyMap(s string) (map[int]string, error) {
	out := make(map[int]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		handle, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			return nil, fmt.Errorf("invalid key mapping %q, expected handle=value", pair)
		}
		h, err := strconv.Atoi(strings.TrimSpace(handle))
		if err != nil || h < 0 {
			return nil, fmt.Errorf("invalid key handle %q", handle)
		}
		if _, dup := out[h]; dup {
			return nil, fmt.Errorf("duplicate key handle %d", h)
		}
		out[h] = strings.TrimSpace(value)
	}
	return out, nil
}
