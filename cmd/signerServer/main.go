package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	internalAws "github.com/Layr-Labs/secora-signer-go/internal/aws"
	"github.com/Layr-Labs/secora-signer-go/pkg/chainState"
	"github.com/Layr-Labs/secora-signer-go/pkg/config"
	"github.com/Layr-Labs/secora-signer-go/pkg/logger"
	"github.com/Layr-Labs/secora-signer-go/pkg/metrics"
	"github.com/Layr-Labs/secora-signer-go/pkg/orchestrator"
	"github.com/Layr-Labs/secora-signer-go/pkg/persistence"
	"github.com/Layr-Labs/secora-signer-go/pkg/persistence/badger"
	"github.com/Layr-Labs/secora-signer-go/pkg/persistence/memory"
	"github.com/Layr-Labs/secora-signer-go/pkg/persistence/redis"
	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement/awsKmsSecureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement/localSecureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/server"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/Layr-Labs/secora-signer-go/pkg/util"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "signer-server",
		Usage: "Secure element signing server",
		Description: `Signs Ethereum messages and legacy transactions with keys held by a secure element.

Every signature returned by the secure element is parsed, checked for
malleability, verified against the key's public key and given a recovery id
before it is released.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:    "chain-id",
				Aliases: []string{"chain"},
				Value:   uint64(config.ChainId_EthereumMainnet),
				Usage:   fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
				EnvVars: []string{config.EnvSignerChainID},
			},
			&cli.StringFlag{
				Name:    "backend",
				Value:   string(config.SignerBackend_Local),
				Usage:   "Secure element backend: local or aws-kms",
				EnvVars: []string{config.EnvSignerBackend},
			},
			&cli.StringFlag{
				Name:    "local-keys",
				Usage:   "Local backend keys as handle=hexPrivateKey pairs, development only",
				EnvVars: []string{config.EnvSignerLocalKeys},
			},
			&cli.StringFlag{
				Name:    "kms-key-ids",
				Usage:   "AWS KMS key ids as handle=keyId pairs",
				EnvVars: []string{config.EnvSignerKMSKeyIds},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region override for the aws-kms backend",
				EnvVars: []string{config.EnvSignerAWSRegion},
			},
			&cli.DurationFlag{
				Name:    "signer-timeout",
				Value:   config.DefaultSignerTimeout,
				Usage:   "Upper bound for a single secure element command",
				EnvVars: []string{config.EnvSignerTimeout},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvSignerVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP signing server",
				Action: runServe,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{config.EnvSignerPort},
					},
					&cli.StringFlag{
						Name:    "rpc-url",
						Aliases: []string{"rpc"},
						Usage:   "Ethereum RPC endpoint URL, transactions are rejected without one",
						EnvVars: []string{config.EnvSignerRPCURL},
					},
					&cli.StringFlag{
						Name:    "journal",
						Value:   string(config.JournalBackend_Memory),
						Usage:   "Signing journal: memory, badger or redis",
						EnvVars: []string{config.EnvSignerJournal},
					},
					&cli.StringFlag{
						Name:    "journal-path",
						Usage:   "Data directory of the badger journal",
						EnvVars: []string{config.EnvSignerJournalPath},
					},
					&cli.StringFlag{
						Name:    "redis-address",
						Usage:   "Redis address of the redis journal",
						EnvVars: []string{config.EnvSignerRedisAddress},
					},
					&cli.StringFlag{
						Name:    "redis-password",
						EnvVars: []string{config.EnvSignerRedisPassword},
					},
					&cli.IntFlag{
						Name:    "redis-db",
						EnvVars: []string{config.EnvSignerRedisDB},
					},
					&cli.StringFlag{
						Name:    "busy-policy",
						Value:   string(orchestrator.BusyPolicy_Reject),
						Usage:   "What to do with requests while the secure element is in use: reject or queue",
						EnvVars: []string{config.EnvSignerBusyPolicy},
					},
					&cli.Float64Flag{
						Name:    "rate-limit",
						Value:   config.DefaultRateLimit,
						Usage:   "Sustained /sign requests per second, 0 disables limiting",
						EnvVars: []string{config.EnvSignerRateLimit},
					},
					&cli.IntFlag{
						Name:    "rate-limit-burst",
						Value:   config.DefaultRateBurst,
						EnvVars: []string{config.EnvSignerRateLimitBurst},
					},
				},
			},
			{
				Name:   "pubkey",
				Usage:  "Print the public key and address of a key handle",
				Action: runPublicKey,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "key-handle", Aliases: []string{"k"}, Value: 1},
				},
			},
			{
				Name:   "sign-message",
				Usage:  "Sign a message or a 32 byte digest and print r, s, v and the counters",
				Action: runSignMessage,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "key-handle", Aliases: []string{"k"}, Value: 1},
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Text signed as a personal message"},
					&cli.StringFlag{Name: "digest", Aliases: []string{"d"}, Usage: "Hex digest signed without any prefix"},
					&cli.StringFlag{Name: "pin", Usage: "Hex encoded PIN"},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

// parseSignerConfig reads the flags shared by every command plus those of
// serve when present.
func parseSignerConfig(c *cli.Context) (*config.SignerServerConfig, error) {
	cfg := &config.SignerServerConfig{
		Port:           config.DefaultPort,
		ChainID:        config.ChainId(c.Uint64("chain-id")),
		Backend:        config.SignerBackend(c.String("backend")),
		AWSRegion:      c.String("aws-region"),
		Journal:        config.JournalBackend_Memory,
		SignerTimeout:  c.Duration("signer-timeout"),
		BusyPolicy:     string(orchestrator.BusyPolicy_Reject),
		RateLimit:      config.DefaultRateLimit,
		RateLimitBurst: config.DefaultRateBurst,
		Debug:          c.Bool("verbose"),
		Verbose:        c.Bool("verbose"),
	}
	var err error
	if cfg.LocalKeys, err = config.ParseKeyMap(c.String("local-keys")); err != nil {
		return nil, fmt.Errorf("local-keys: %w", err)
	}
	if cfg.KMSKeyIds, err = config.ParseKeyMap(c.String("kms-key-ids")); err != nil {
		return nil, fmt.Errorf("kms-key-ids: %w", err)
	}

	if c.Command.Name == "serve" {
		cfg.Port = c.Int("port")
		cfg.RpcUrl = c.String("rpc-url")
		cfg.Journal = config.JournalBackend(c.String("journal"))
		cfg.JournalPath = c.String("journal-path")
		cfg.RedisAddress = c.String("redis-address")
		cfg.RedisPassword = c.String("redis-password")
		cfg.RedisDB = c.Int("redis-db")
		cfg.BusyPolicy = c.String("busy-policy")
		cfg.RateLimit = c.Float64("rate-limit")
		cfg.RateLimitBurst = c.Int("rate-limit-burst")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newSecureElement(ctx context.Context, cfg *config.SignerServerConfig, l *zap.Logger) (secureElement.ISecureElement, error) {
	switch cfg.Backend {
	case config.SignerBackend_AWSKMS:
		awsCfg, err := internalAws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		identity, err := internalAws.GetCallerIdentity(ctx, awsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to verify AWS credentials: %w", err)
		}
		l.Sugar().Infow("Using AWS KMS secure element",
			"account", derefString(identity.Account),
			"region", awsCfg.Region,
			"keys", len(cfg.KMSKeyIds))
		return awsKmsSecureElement.NewAWSKMSSecureElement(awsCfg, cfg.KMSKeyIds, l), nil
	default:
		se := localSecureElement.NewLocalSecureElement(l)
		for handle, key := range cfg.LocalKeys {
			if err := se.LoadPrivateKeyFromHex(handle, key, nil); err != nil {
				return nil, fmt.Errorf("failed to load local key %d: %w", handle, err)
			}
		}
		l.Sugar().Warnw("Using local secure element, private keys are held in process memory", "keys", se.GetKeyCount())
		return se, nil
	}
}

func newJournal(cfg *config.SignerServerConfig, l *zap.Logger) (persistence.ISigningJournal, error) {
	switch cfg.Journal {
	case config.JournalBackend_Badger:
		return badger.NewBadgerJournal(cfg.JournalPath, l)
	case config.JournalBackend_Redis:
		return redis.NewRedisJournal(&redis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, l)
	default:
		return memory.NewMemoryJournal(), nil
	}
}

func runServe(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg, err := parseSignerConfig(c)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	l.Sugar().Infow("Using chain", "name", cfg.ChainName, "chain_id", cfg.ChainID)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	se, err := newSecureElement(ctx, cfg, l)
	if err != nil {
		return err
	}

	journal, err := newJournal(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to open signing journal: %w", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			l.Sugar().Errorw("Failed to close signing journal", "error", err)
		}
	}()

	var cs chainState.IChainStateProvider
	if cfg.RpcUrl != "" {
		ethState, err := chainState.NewEthChainState(ctx, cfg.RpcUrl, l)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", cfg.RpcUrl, err)
		}
		defer ethState.Close()
		cs = ethState
	} else {
		l.Sugar().Warn("No RPC URL configured, transaction requests will be rejected")
	}

	m := metrics.NewMetrics()
	o := orchestrator.NewOrchestrator(se, cs, journal, m, &orchestrator.Config{
		ChainID:       new(big.Int).SetUint64(uint64(cfg.ChainID)),
		SignerTimeout: cfg.SignerTimeout,
		BusyPolicy:    orchestrator.BusyPolicy(cfg.BusyPolicy),
	}, l)

	s := server.NewServer(o, journal, m, &server.Config{
		Port:           cfg.Port,
		RateLimit:      cfg.RateLimit,
		RateLimitBurst: cfg.RateLimitBurst,
	}, l)
	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Signer server running", "port", cfg.Port, "backend", cfg.Backend, "journal", cfg.Journal)
	l.Sugar().Infow("Available endpoints",
		"sign", "POST /sign",
		"pubkey", "GET /pubkey",
		"journal", "GET /journal/{id}",
		"metrics", "GET /metrics")

	<-ctx.Done()
	l.Sugar().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

func runPublicKey(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg, err := parseSignerConfig(c)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	se, err := newSecureElement(c.Context, cfg, l)
	if err != nil {
		return err
	}
	o := orchestrator.NewOrchestrator(se, nil, nil, nil, &orchestrator.Config{SignerTimeout: cfg.SignerTimeout}, l)

	pub, addr, err := o.PublicKey(c.Context, c.Int("key-handle"))
	if err != nil {
		return err
	}
	fmt.Printf("Public key: %s\n", types.EncodeHex(pub.SerializeUncompressed()))
	fmt.Printf("Address:    %s\n", addr.Hex())
	return nil
}

func runSignMessage(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg, err := parseSignerConfig(c)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	req := &types.SignRequest{KeyHandle: c.Int("key-handle")}
	switch {
	case c.IsSet("digest") && c.IsSet("message"):
		return fmt.Errorf("only one of --message and --digest may be given")
	case c.IsSet("digest"):
		req.Kind = types.SignRequestKind_RawMessage
		if req.Payload, err = util.DecodeHexBytes(c.String("digest")); err != nil {
			return err
		}
		if len(req.Payload) != types.DigestLength {
			return fmt.Errorf("digest must be %d bytes, got %d", types.DigestLength, len(req.Payload))
		}
	case c.IsSet("message"):
		req.Kind = types.SignRequestKind_PersonalMessage
		req.Payload = []byte(c.String("message"))
	default:
		return fmt.Errorf("one of --message or --digest is required")
	}
	if c.IsSet("pin") {
		if req.Pin, err = util.DecodeHexBytes(c.String("pin")); err != nil {
			return fmt.Errorf("pin: %w", err)
		}
	}

	se, err := newSecureElement(c.Context, cfg, l)
	if err != nil {
		return err
	}
	o := orchestrator.NewOrchestrator(se, nil, nil, nil, &orchestrator.Config{
		ChainID:       new(big.Int).SetUint64(uint64(cfg.ChainID)),
		SignerTimeout: cfg.SignerTimeout,
	}, l)

	res, err := o.Sign(c.Context, req)
	if err != nil {
		return fmt.Errorf("%s: %w", types.ErrorKind(err), err)
	}

	fmt.Printf("Digest:           %s\n", types.EncodeHex(res.Digest))
	fmt.Printf("r:                %s\n", types.EncodeHex(res.Signature.R[:]))
	fmt.Printf("s:                %s\n", types.EncodeHex(res.Signature.S[:]))
	fmt.Printf("v:                %d\n", res.Signature.V)
	fmt.Printf("Signature:        %s\n", res.Result())
	if res.Counters != nil {
		fmt.Printf("Sig counter:      %s\n", new(big.Int).SetBytes(res.Counters.SigCounter).String())
		fmt.Printf("Global counter:   %s\n", new(big.Int).SetBytes(res.Counters.GlobalSigCounter).String())
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
