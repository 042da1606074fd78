package awsKmsSecureElement

import (
	"context"
	"encoding/asn1"
	"fmt"
	"sync"

	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/signature"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// kmsAPI is the subset of the KMS client used for signing
type kmsAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// AWSKMSSecureElement signs with ECC_SECG_P256K1 keys held in AWS KMS. KMS
// answers with a DER signature whose s may be high; it is folded to low s and
// framed like a card's response. Counters are kept per process and PINs are
// not used.
type AWSKMSSecureElement struct {
	logger    *zap.Logger
	kmsClient kmsAPI
	awsRegion string
	keyIds    map[int]string // keyHandle -> KMS key id, ARN or alias

	mu            sync.Mutex
	publicKeys    map[int][]byte
	sigCounters   map[int]uint32
	globalCounter uint32
}

func NewAWSKMSSecureElement(awsCfg aws.Config, keyIds map[int]string, logger *zap.Logger) *AWSKMSSecureElement {
	return newAWSKMSSecureElement(kms.NewFromConfig(awsCfg), awsCfg.Region, keyIds, logger)
}

func newAWSKMSSecureElement(client kmsAPI, awsRegion string, keyIds map[int]string, logger *zap.Logger) *AWSKMSSecureElement {
	ids := make(map[int]string, len(keyIds))
	for handle, id := range keyIds {
		ids[handle] = id
	}
	return &AWSKMSSecureElement{
		logger:      logger,
		kmsClient:   client,
		awsRegion:   awsRegion,
		keyIds:      ids,
		publicKeys:  make(map[int][]byte),
		sigCounters: make(map[int]uint32),
	}
}

func (a *AWSKMSSecureElement) keyId(keyHandle int) (string, error) {
	keyId, ok := a.keyIds[keyHandle]
	if !ok {
		return "", fmt.Errorf("%w: %d", secureElement.ErrUnknownKey, keyHandle)
	}
	return keyId, nil
}

func (a *AWSKMSSecureElement) Sign(ctx context.Context, keyHandle int, digest []byte, _ []byte) (types.RawSignature, *types.SignatureCounters, error) {
	if len(digest) != types.DigestLength {
		return nil, nil, fmt.Errorf("hash must be exactly %d bytes, got %d", types.DigestLength, len(digest))
	}
	keyId, err := a.keyId(keyHandle)
	if err != nil {
		return nil, nil, err
	}

	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyId),
		Message:          digest,
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to sign with key %s in region %s", keyId, a.awsRegion)
	}
	der, err := lowS(signOutput.Signature)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid signature from key %s", keyId)
	}

	a.mu.Lock()
	a.sigCounters[keyHandle]++
	a.globalCounter++
	counters := &types.SignatureCounters{
		SigCounter:       secureElement.EncodeCounter(a.sigCounters[keyHandle]),
		GlobalSigCounter: secureElement.EncodeCounter(a.globalCounter),
	}
	a.mu.Unlock()

	a.logger.Debug("Signed digest with KMS key",
		zap.Int("keyHandle", keyHandle),
		zap.String("keyId", keyId),
		zap.Int("signatureLen", len(der)),
	)
	return secureElement.FrameSignature(der), counters, nil
}

// lowS re-encodes a KMS DER signature with s = n - s when s is above half
// the curve order.
func lowS(der []byte) ([]byte, error) {
	parsed, err := signature.ParseDER(der)
	if err != nil {
		return nil, err
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetBytes(&parsed.R); overflow != 0 || r.IsZero() {
		return nil, fmt.Errorf("%w: r is not a valid scalar", types.ErrMalformedSignature)
	}
	if overflow := s.SetBytes(&parsed.S); overflow != 0 || s.IsZero() {
		return nil, fmt.Errorf("%w: s is not a valid scalar", types.ErrMalformedSignature)
	}
	if s.IsOverHalfOrder() {
		s.Negate()
	}
	return ecdsa.NewSignature(&r, &s).Serialize(), nil
}

func (a *AWSKMSSecureElement) GetPublicKey(ctx context.Context, keyHandle int) ([]byte, error) {
	a.mu.Lock()
	cached, ok := a.publicKeys[keyHandle]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	keyId, err := a.keyId(keyHandle)
	if err != nil {
		return nil, err
	}
	out, err := a.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s in region %s", keyId, a.awsRegion)
	}
	pub, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s in region %s", keyId, a.awsRegion)
	}

	a.mu.Lock()
	a.publicKeys[keyHandle] = pub
	a.mu.Unlock()
	return pub, nil
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// parseECDSAPublicKey turns the SubjectPublicKeyInfo returned by KMS into a
// 65 byte uncompressed point.
func parseECDSAPublicKey(derBytes []byte) ([]byte, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	pub, err := crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
	if err != nil {
		return nil, err
	}
	return crypto.FromECDSAPub(pub), nil
}
