package chainState

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// IChainStateProvider supplies the chain state a legacy transaction needs and
// relays the signed result to the network.
type IChainStateProvider interface {
	// GetNonce returns the next nonce for address, pending transactions included
	GetNonce(ctx context.Context, address common.Address) (uint64, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	// GetGasLimit returns the fallback gas limit for requests that omit one
	GetGasLimit(ctx context.Context) (uint64, error)
	Broadcast(ctx context.Context, signedTx []byte) (common.Hash, error)
}
