package signerClient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Layr-Labs/secora-signer-go/pkg/persistence"
	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"go.uber.org/zap"
)

// ClientConfig holds the configuration for the signer client
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client // http.Client with a 90 second timeout when nil
	Logger     *zap.Logger
}

// Client talks to a signer server over its HTTP JSON API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new signer client instance
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		// long enough for the card tap the server is waiting for
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     config.Logger,
	}, nil
}

// Sign submits req. A rejection is not an error: check Approved and Reason.
func (c *Client) Sign(ctx context.Context, req *types.SignRequestV1) (*types.SignResponseV1, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp types.SignResponseV1
	if err := c.do(ctx, http.MethodPost, "/sign", body, &resp); err != nil {
		return nil, err
	}

	if resp.Approved {
		c.logger.Sugar().Debugw("Sign request approved", "id", resp.ID, "journalId", resp.JournalID)
	} else {
		c.logger.Sugar().Infow("Sign request rejected", "id", resp.ID, "reason", resp.Reason)
	}
	return &resp, nil
}

// SignPersonalMessage signs msg as an Ethereum personal message
func (c *Client) SignPersonalMessage(ctx context.Context, id int64, keyHandle int, msg []byte) (*types.SignResponseV1, error) {
	return c.Sign(ctx, &types.SignRequestV1{
		ID:        id,
		Kind:      types.SignRequestKind_PersonalMessage,
		KeyHandle: keyHandle,
		Data:      types.EncodeHex(msg),
	})
}

func (c *Client) GetPublicKey(ctx context.Context, keyHandle int) (*types.PublicKeyResponseV1, error) {
	var resp types.PublicKeyResponseV1
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/pubkey?keyHandle=%d", keyHandle), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetJournalRecord(ctx context.Context, journalID string) (*persistence.SigningRecord, error) {
	var rec persistence.SigningRecord
	if err := c.do(ctx, http.MethodGet, "/journal/"+journalID, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to contact signer at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("signer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
