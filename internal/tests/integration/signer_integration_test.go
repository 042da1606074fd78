package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Layr-Labs/secora-signer-go/internal/tests"
	"github.com/Layr-Labs/secora-signer-go/pkg/chainState"
	"github.com/Layr-Labs/secora-signer-go/pkg/logger"
	"github.com/Layr-Labs/secora-signer-go/pkg/metrics"
	"github.com/Layr-Labs/secora-signer-go/pkg/orchestrator"
	"github.com/Layr-Labs/secora-signer-go/pkg/persistence"
	"github.com/Layr-Labs/secora-signer-go/pkg/persistence/badger"
	"github.com/Layr-Labs/secora-signer-go/pkg/secureElement/localSecureElement"
	"github.com/Layr-Labs/secora-signer-go/pkg/server"
	"github.com/Layr-Labs/secora-signer-go/pkg/testutil"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// Test_SignerAgainstAnvil signs and broadcasts a transfer from the first
// anvil development account through the HTTP request source, then checks the
// devnet mined it and the badger journal kept the approval.
func Test_SignerAgainstAnvil(t *testing.T) {
	tests.RequireAnvil(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	anvilCfg := tests.DefaultAnvilConfig()
	anvil, err := tests.StartAnvil(ctx, anvilCfg)
	require.NoError(t, err)
	defer func() {
		if err := tests.KillAnvil(anvil); err != nil {
			t.Logf("Warning: failed to kill anvil: %v", err)
		}
	}()

	cs, err := chainState.NewEthChainState(ctx, anvilCfg.RpcUrl(), l)
	require.NoError(t, err)
	defer cs.Close()

	journal, err := badger.NewBadgerJournal(t.TempDir(), l)
	require.NoError(t, err)
	defer func() { _ = journal.Close() }()

	// fixture key 1 is anvil's first funded account
	se := localSecureElement.NewLocalSecureElement(l)
	require.NoError(t, se.LoadPrivateKey(1, testutil.FixtureKey(t, 1), nil))

	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry(reg)
	o := orchestrator.NewOrchestrator(se, cs, journal, m, &orchestrator.Config{
		ChainID: big.NewInt(31337),
	}, l)
	s := server.NewServer(o, journal, m, &server.Config{Gatherer: reg}, l)

	httpServer := httptest.NewServer(s.GetHandler())
	defer httpServer.Close()

	from := testutil.FixtureAddress(t, 1)
	to := testutil.FixtureAddress(t, 2)

	client, err := ethclient.DialContext(ctx, anvilCfg.RpcUrl())
	require.NoError(t, err)
	defer client.Close()

	balanceBefore, err := client.BalanceAt(ctx, to, nil)
	require.NoError(t, err)

	oneEther := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	resp := postSign(t, httpServer.URL, &types.SignRequestV1{
		ID:        1,
		Kind:      types.SignRequestKind_Transaction,
		Send:      true,
		KeyHandle: 1,
		Transaction: &types.TransactionRequest{
			From:  from.Hex(),
			To:    to.Hex(),
			Gas:   "0x5208",
			Value: "0x" + oneEther.Text(16),
		},
	})
	require.True(t, resp.Approved, resp.Reason)
	txHash := common.HexToHash(resp.Result)

	var status uint64
	require.Eventually(t, func() bool {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err != nil {
			return false
		}
		status = receipt.Status
		return true
	}, 30*time.Second, 500*time.Millisecond)
	require.Equal(t, uint64(1), status)

	balanceAfter, err := client.BalanceAt(ctx, to, nil)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(balanceBefore, oneEther), balanceAfter)

	// the next transaction picks up the new nonce from the chain
	resp = postSign(t, httpServer.URL, &types.SignRequestV1{
		ID:        2,
		Kind:      types.SignRequestKind_Transaction,
		KeyHandle: 1,
		Transaction: &types.TransactionRequest{
			To:    to.Hex(),
			Gas:   "0x5208",
			Value: "0x1",
		},
	})
	require.True(t, resp.Approved, resp.Reason)

	record, err := journal.LoadRecord(resp.JournalID)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.True(t, record.Approved)
	require.Equal(t, resp.Result, record.Result)

	records, err := journal.ListRecords()
	require.NoError(t, err)
	require.Len(t, records, 2)
	persistence.SortRecords(records)
	require.Equal(t, txHash.Hex(), records[0].Result)
}

func postSign(t *testing.T, baseUrl string, body *types.SignRequestV1) *types.SignResponseV1 {
	data, err := json.Marshal(body)
	require.NoError(t, err)

	res, err := http.Post(baseUrl+"/sign", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp types.SignResponseV1
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	return &resp
}
