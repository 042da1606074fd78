package localSecureElement

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/Layr-Labs/secora-signer-go/pkg/util"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"go.uber.org/zap"
)

type keyEntry struct {
	privateKey *secp256k1.PrivateKey
	pin        []byte // nil when the key is not PIN protected
	sigCounter uint32
}

// LocalSecureElement emulates a card in process: DER signatures with a
// status word trailer and per key and global signature counters.
type LocalSecureElement struct {
	logger        *zap.Logger
	keyStore      map[int]*keyEntry // keyHandle -> keyEntry
	globalCounter uint32
	cardPresent   bool
	signDelay     time.Duration
	mu            sync.RWMutex
}

func NewLocalSecureElement(logger *zap.Logger) *LocalSecureElement {
	return &LocalSecureElement{
		logger:      logger,
		keyStore:    make(map[int]*keyEntry),
		cardPresent: true,
	}
}

func (l *LocalSecureElement) Sign(ctx context.Context, keyHandle int, digest []byte, pin []byte) (types.RawSignature, *types.SignatureCounters, error) {
	if len(digest) != types.DigestLength {
		return nil, nil, fmt.Errorf("digest must be exactly %d bytes, got %d", types.DigestLength, len(digest))
	}

	l.mu.RLock()
	present, delay := l.cardPresent, l.signDelay
	l.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if !present {
		return nil, nil, secureElement.ErrNoCardPresented
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.keyStore[keyHandle]
	if !exists {
		return nil, nil, fmt.Errorf("%w: %d", secureElement.ErrUnknownKey, keyHandle)
	}
	if entry.pin != nil && subtle.ConstantTimeCompare(entry.pin, pin) != 1 {
		return nil, nil, secureElement.ErrWrongPin
	}

	der := ecdsa.Sign(entry.privateKey, digest).Serialize()
	entry.sigCounter++
	l.globalCounter++

	l.logger.Debug("Signed digest with local key",
		zap.Int("keyHandle", keyHandle),
		zap.String("digest", hex.EncodeToString(digest)),
		zap.Int("signatureLen", len(der)),
		zap.Uint32("sigCounter", entry.sigCounter),
		zap.Uint32("globalSigCounter", l.globalCounter),
	)

	return secureElement.FrameSignature(der), &types.SignatureCounters{
		SigCounter:       secureElement.EncodeCounter(entry.sigCounter),
		GlobalSigCounter: secureElement.EncodeCounter(l.globalCounter),
	}, nil
}

func (l *LocalSecureElement) GetPublicKey(ctx context.Context, keyHandle int) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.cardPresent {
		return nil, secureElement.ErrNoCardPresented
	}
	entry, exists := l.keyStore[keyHandle]
	if !exists {
		return nil, fmt.Errorf("%w: %d", secureElement.ErrUnknownKey, keyHandle)
	}
	return entry.privateKey.PubKey().SerializeUncompressed(), nil
}

// LoadPrivateKey installs privateKey at keyHandle. A nil pin leaves the key unprotected.
func (l *LocalSecureElement) LoadPrivateKey(keyHandle int, privateKey *secp256k1.PrivateKey, pin []byte) error {
	if privateKey == nil {
		return fmt.Errorf("private key cannot be nil")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.keyStore[keyHandle]; exists {
		return fmt.Errorf("key handle %d already in use", keyHandle)
	}

	var storedPin []byte
	if pin != nil {
		storedPin = append([]byte{}, pin...)
	}
	l.keyStore[keyHandle] = &keyEntry{
		privateKey: privateKey,
		pin:        storedPin,
	}

	l.logger.Info("Loaded private key into local secure element",
		zap.Int("keyHandle", keyHandle),
		zap.Bool("pinProtected", storedPin != nil),
		zap.String("address", util.PublicKeyToAddress(privateKey.PubKey()).Hex()),
	)
	return nil
}

// LoadPrivateKeyFromHex is LoadPrivateKey for a hex key with an optional 0x prefix
func (l *LocalSecureElement) LoadPrivateKeyFromHex(keyHandle int, privateKeyHex string, pin []byte) error {
	b, err := util.DecodeHexBytes(privateKeyHex)
	if err != nil {
		return fmt.Errorf("failed to parse private key from hex: %w", err)
	}
	if len(b) != 32 {
		return fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	return l.LoadPrivateKey(keyHandle, secp256k1.PrivKeyFromBytes(b), pin)
}

// GenerateAndLoadKey installs a fresh random key at keyHandle
func (l *LocalSecureElement) GenerateAndLoadKey(keyHandle int, pin []byte) (*secp256k1.PublicKey, error) {
	privateKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := l.LoadPrivateKey(keyHandle, privateKey, pin); err != nil {
		return nil, err
	}
	return privateKey.PubKey(), nil
}

// SetCardPresent toggles whether the emulated card answers commands
func (l *LocalSecureElement) SetCardPresent(present bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cardPresent = present
}

// SetSignDelay makes Sign wait d before answering, like a user taking time to tap
func (l *LocalSecureElement) SetSignDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.signDelay = d
}

func (l *LocalSecureElement) GetKeyCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keyStore)
}

func (l *LocalSecureElement) KeyExists(keyHandle int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.keyStore[keyHandle]
	return exists
}
