package main

import (
	"context"
	"os"

	"github.com/Layr-Labs/secora-signer-go/internal/aws"
	"github.com/Layr-Labs/secora-signer-go/pkg/logger"
	"github.com/Layr-Labs/secora-signer-go/pkg/orchestrator"
	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement/awsKmsSecureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
)

// Prints the address behind KEY_ID and signs the all zero digest with it,
// the same check the card test action performs.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	awsCfg, err := aws.LoadAWSConfig(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		panic(err)
	}

	keyId := os.Getenv("KEY_ID")
	if keyId == "" {
		l.Sugar().Fatal("KEY_ID environment variable is not set")
	}

	se := awsKmsSecureElement.NewAWSKMSSecureElement(awsCfg, map[int]string{0: keyId}, l)
	o := orchestrator.NewOrchestrator(se, nil, nil, nil, &orchestrator.Config{}, l)

	pub, addr, err := o.PublicKey(ctx, 0)
	if err != nil {
		l.Sugar().Fatalw("failed to read public key", "error", err)
	}

	res, err := o.Sign(ctx, &types.SignRequest{
		Kind:    types.SignRequestKind_RawMessage,
		Payload: make([]byte, types.DigestLength),
	})
	if err != nil {
		l.Sugar().Fatalw("test signature rejected", "errorKind", types.ErrorKind(err), "error", err)
	}

	l.Sugar().Infow("KMS key",
		"keyId", keyId,
		"publicKeyHex", types.EncodeHex(pub.SerializeUncompressed()),
		"address", addr.Hex(),
		"testSignature", res.Result(),
	)
}
