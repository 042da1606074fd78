package chainState

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// EthChainState implements IChainStateProvider against a JSON-RPC node
type EthChainState struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	logger    *zap.Logger
}

// NewEthChainState dials the node at rpcUrl
func NewEthChainState(ctx context.Context, rpcUrl string, logger *zap.Logger) (*EthChainState, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcUrl, err)
	}
	return &EthChainState{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		logger:    logger,
	}, nil
}

func (e *EthChainState) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := e.ethClient.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce for %s: %w", address.Hex(), err)
	}
	e.logger.Sugar().Debugw("Fetched pending nonce", "address", address.Hex(), "nonce", nonce)
	return nonce, nil
}

func (e *EthChainState) GetGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := e.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

type blockGasLimit struct {
	GasLimit hexutil.Uint64 `json:"gasLimit"`
}

// GetGasLimit returns the gas limit of the latest block. Only the one field
// is decoded so nodes that return non standard headers still work.
func (e *EthChainState) GetGasLimit(ctx context.Context) (uint64, error) {
	var block *blockGasLimit
	if err := e.rpcClient.CallContext(ctx, &block, "eth_getBlockByNumber", "latest", false); err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	if block == nil {
		return 0, fmt.Errorf("failed to get latest block: node returned no block")
	}
	return uint64(block.GasLimit), nil
}

func (e *EthChainState) Broadcast(ctx context.Context, signedTx []byte) (common.Hash, error) {
	var hash common.Hash
	if err := e.rpcClient.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(signedTx)); err != nil {
		return common.Hash{}, err
	}
	e.logger.Sugar().Infow("Broadcast transaction", "txHash", hash.Hex())
	return hash, nil
}

func (e *EthChainState) Close() {
	e.rpcClient.Close()
}
