package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// MockChainState implements IChainStateProvider in memory
type MockChainState struct {
	mu     sync.Mutex
	logger *zap.Logger

	nonces   map[common.Address]uint64
	gasPrice *big.Int
	gasLimit uint64

	// BroadcastErr, when set, is returned by every Broadcast call
	BroadcastErr error

	broadcast [][]byte
	calls     int
}

func NewMockChainState(logger *zap.Logger) *MockChainState {
	return &MockChainState{
		logger:   logger,
		nonces:   make(map[common.Address]uint64),
		gasPrice: big.NewInt(1_000_000_000),
		gasLimit: 30_000_000,
	}
}

func (m *MockChainState) SetNonce(address common.Address, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[address] = nonce
}

func (m *MockChainState) SetGasPrice(gasPrice *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gasPrice = new(big.Int).Set(gasPrice)
}

func (m *MockChainState) SetGasLimit(gasLimit uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gasLimit = gasLimit
}

func (m *MockChainState) GetNonce(_ context.Context, address common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.nonces[address], nil
}

func (m *MockChainState) GetGasPrice(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return new(big.Int).Set(m.gasPrice), nil
}

func (m *MockChainState) GetGasLimit(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.gasLimit, nil
}

// Broadcast records signedTx and returns its keccak hash, like a node would
func (m *MockChainState) Broadcast(_ context.Context, signedTx []byte) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.BroadcastErr != nil {
		return common.Hash{}, m.BroadcastErr
	}
	m.broadcast = append(m.broadcast, append([]byte{}, signedTx...))
	m.logger.Sugar().Debugf("MockChainState accepted transaction of %d bytes", len(signedTx))
	return crypto.Keccak256Hash(signedTx), nil
}

// Broadcasted returns every transaction accepted so far
func (m *MockChainState) Broadcasted() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.broadcast))
	copy(out, m.broadcast)
	return out
}

// Calls returns the total number of provider calls
func (m *MockChainState) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
