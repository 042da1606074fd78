package tests

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	AnvilChainId = "31337"
	AnvilPort    = "18545"
)

type AnvilConfig struct {
	BlockTime  string `json:"blockTime"`
	PortNumber string `json:"portNumber"`
	ChainId    string `json:"chainId"`
}

func (c *AnvilConfig) RpcUrl() string {
	return fmt.Sprintf("http://127.0.0.1:%s", c.PortNumber)
}

// DefaultAnvilConfig is a fresh devnet with one second blocks
func DefaultAnvilConfig() *AnvilConfig {
	return &AnvilConfig{
		BlockTime:  "1",
		PortNumber: AnvilPort,
		ChainId:    AnvilChainId,
	}
}

// RequireAnvil skips t when anvil is not installed or in short mode
func RequireAnvil(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping anvil test in short mode")
	}
	if _, err := exec.LookPath("anvil"); err != nil {
		t.Skip("anvil not found in PATH")
	}
}

func StartAnvil(ctx context.Context, cfg *AnvilConfig) (*exec.Cmd, error) {
	args := []string{
		"--chain-id", cfg.ChainId,
		"--port", cfg.PortNumber,
		"--block-time", cfg.BlockTime,
	}
	fmt.Printf("Starting anvil with args: %v\n", args)
	cmd := exec.CommandContext(ctx, "anvil", args...)
	cmd.Stderr = os.Stderr

	if os.Getenv("JOIN_ANVIL_OUTPUT") == "true" {
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start anvil: %w", err)
	}

	if err := WaitForAnvil(ctx, cfg.RpcUrl()); err != nil {
		_ = KillAnvil(cmd)
		return nil, err
	}
	return cmd, nil
}

// WaitForAnvil polls rpcUrl until it answers eth_chainId
func WaitForAnvil(ctx context.Context, rpcUrl string) error {
	for i := 1; i < 10; i++ {
		client, err := ethclient.DialContext(ctx, rpcUrl)
		if err == nil {
			_, err = client.ChainID(ctx)
			client.Close()
			if err == nil {
				fmt.Println("Anvil is up and running")
				return nil
			}
		}
		fmt.Printf("Anvil not ready yet, retrying... %d\n", i)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to start anvil: %w", ctx.Err())
		case <-time.After(time.Duration(i) * 500 * time.Millisecond):
		}
	}
	return fmt.Errorf("failed to start anvil")
}

func KillAnvil(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("anvil command is not running")
	}

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill anvil process: %w", err)
	}
	_ = cmd.Wait()

	fmt.Println("Anvil process killed successfully")
	return nil
}
