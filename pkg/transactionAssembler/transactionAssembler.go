// Package transactionAssembler builds legacy transactions from request fields
// and chain state, and serializes them with replay protected (EIP-155)
// signatures.
package transactionAssembler

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/secora-signer-go/pkg/chainState"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/Layr-Labs/secora-signer-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"
)

const legacyTxType = 0

// ParsedTransaction is a TransactionRequest with every field decoded. Nil
// Gas and GasPrice mean the chain state fallback is used.
type ParsedTransaction struct {
	From     *common.Address
	To       *common.Address
	Gas      *uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
}

// ParseTransactionRequest decodes the request fields without touching the
// chain, so malformed requests fail before any signer or node is involved.
func ParseTransactionRequest(req *types.TransactionRequest) (*ParsedTransaction, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: transaction", types.ErrMissingField)
	}
	if req.Type != "" {
		txType, err := util.ParseHexUint64(req.Type)
		if err != nil || txType != legacyTxType {
			return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedTransactionType, req.Type)
		}
	}
	if strings.TrimSpace(req.Value) == "" {
		return nil, fmt.Errorf("%w: value", types.ErrMissingField)
	}

	parsed := &ParsedTransaction{}
	var err error
	if parsed.Value, err = util.ParseHexQuantity(req.Value); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	if req.From != "" {
		if parsed.From, err = parseAddress(req.From); err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
	}
	if req.To != "" {
		if parsed.To, err = parseAddress(req.To); err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
	}
	if req.Gas != "" {
		if err := requireDigits(req.Gas); err != nil {
			return nil, fmt.Errorf("gas: %w", err)
		}
		gas, err := util.ParseHexUint64(req.Gas)
		if err != nil {
			return nil, fmt.Errorf("gas: %w", err)
		}
		parsed.Gas = &gas
	}
	if req.GasPrice != "" {
		if err := requireDigits(req.GasPrice); err != nil {
			return nil, fmt.Errorf("gasPrice: %w", err)
		}
		if parsed.GasPrice, err = util.ParseHexQuantity(req.GasPrice); err != nil {
			return nil, fmt.Errorf("gasPrice: %w", err)
		}
	}
	if req.Data != "" {
		if parsed.Data, err = util.DecodeHexBytes(req.Data); err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
	}
	return parsed, nil
}

// requireDigits rejects a quantity that is only a prefix, which would
// otherwise read as zero.
func requireDigits(s string) error {
	if util.StripHexPrefix(strings.TrimSpace(s)) == "" {
		return fmt.Errorf("%w: no digits in %q", types.ErrInvalidHex, s)
	}
	return nil
}

func parseAddress(s string) (*common.Address, error) {
	b, err := util.DecodeHexBytes(s)
	if err != nil {
		return nil, err
	}
	if len(b) != common.AddressLength {
		return nil, fmt.Errorf("%w: address must be %d bytes, got %d", types.ErrInvalidHex, common.AddressLength, len(b))
	}
	addr := common.BytesToAddress(b)
	return &addr, nil
}

type TransactionAssembler struct {
	chainState chainState.IChainStateProvider
	chainID    *big.Int
	logger     *zap.Logger
}

func NewTransactionAssembler(cs chainState.IChainStateProvider, chainID *big.Int, logger *zap.Logger) *TransactionAssembler {
	return &TransactionAssembler{
		chainState: cs,
		chainID:    new(big.Int).Set(chainID),
		logger:     logger,
	}
}

func (a *TransactionAssembler) ChainID() *big.Int {
	return new(big.Int).Set(a.chainID)
}

// Assemble completes a parsed request with the sender's nonce and any gas
// values the request left out.
func (a *TransactionAssembler) Assemble(ctx context.Context, from common.Address, tx *ParsedTransaction) (*types.RawTransactionFields, error) {
	if tx.From != nil && *tx.From != from {
		return nil, fmt.Errorf("%w: from %s does not match signing key %s", types.ErrUnsupportedSignRequest, tx.From.Hex(), from.Hex())
	}

	nonce, err := a.chainState.GetNonce(ctx, from)
	if err != nil {
		return nil, err
	}

	gasPrice := tx.GasPrice
	if gasPrice == nil {
		if gasPrice, err = a.chainState.GetGasPrice(ctx); err != nil {
			return nil, err
		}
	}

	var gasLimit uint64
	if tx.Gas != nil {
		gasLimit = *tx.Gas
	} else if gasLimit, err = a.chainState.GetGasLimit(ctx); err != nil {
		return nil, err
	}

	fields := &types.RawTransactionFields{
		Nonce:    nonce,
		GasPrice: new(big.Int).Set(gasPrice),
		GasLimit: gasLimit,
		To:       tx.To,
		Value:    new(big.Int).Set(tx.Value),
		Data:     tx.Data,
	}
	a.logger.Debug("Assembled transaction",
		zap.String("from", from.Hex()),
		zap.Uint64("nonce", fields.Nonce),
		zap.String("gasPrice", fields.GasPrice.String()),
		zap.Uint64("gasLimit", fields.GasLimit),
		zap.String("value", fields.Value.String()),
	)
	return fields, nil
}

// SigningHash is keccak256 over the RLP list of the fields followed by
// (chainId, 0, 0).
func (a *TransactionAssembler) SigningHash(fields *types.RawTransactionFields) ([]byte, error) {
	return SigningHash(fields, a.chainID)
}

// Serialize encodes fields and sig as a broadcastable legacy transaction
func (a *TransactionAssembler) Serialize(fields *types.RawTransactionFields, sig *types.CanonicalSignature) ([]byte, error) {
	return Serialize(fields, a.chainID, sig)
}

type unsignedLegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
	R, S     uint
}

type signedLegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

func SigningHash(fields *types.RawTransactionFields, chainID *big.Int) ([]byte, error) {
	if err := checkFields(fields); err != nil {
		return nil, err
	}
	enc, err := rlp.EncodeToBytes(&unsignedLegacyTx{
		Nonce:    fields.Nonce,
		GasPrice: fields.GasPrice,
		Gas:      fields.GasLimit,
		To:       fields.To,
		Value:    fields.Value,
		Data:     fields.Data,
		ChainID:  chainID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return crypto.Keccak256(enc), nil
}

// ReplayProtectedV returns chainId*2 + 35 + v
func ReplayProtectedV(chainID *big.Int, v byte) *big.Int {
	out := new(big.Int).Lsh(chainID, 1)
	return out.Add(out, big.NewInt(35+int64(v)))
}

func Serialize(fields *types.RawTransactionFields, chainID *big.Int, sig *types.CanonicalSignature) ([]byte, error) {
	if err := checkFields(fields); err != nil {
		return nil, err
	}
	if sig.V > 1 {
		return nil, fmt.Errorf("%w: recovery id %d cannot be replay protected", types.ErrRecoveryFailed, sig.V)
	}
	enc, err := rlp.EncodeToBytes(&signedLegacyTx{
		Nonce:    fields.Nonce,
		GasPrice: fields.GasPrice,
		Gas:      fields.GasLimit,
		To:       fields.To,
		Value:    fields.Value,
		Data:     fields.Data,
		V:        ReplayProtectedV(chainID, sig.V),
		R:        new(big.Int).SetBytes(sig.R[:]),
		S:        new(big.Int).SetBytes(sig.S[:]),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return enc, nil
}

func checkFields(fields *types.RawTransactionFields) error {
	if fields == nil {
		return fmt.Errorf("%w: transaction", types.ErrMissingField)
	}
	if fields.Value == nil {
		return fmt.Errorf("%w: value", types.ErrMissingField)
	}
	if fields.GasPrice == nil {
		return fmt.Errorf("%w: gasPrice", types.ErrMissingField)
	}
	return nil
}
