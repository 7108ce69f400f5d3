package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sand/definition-staking/backend/internal/entities"
)

// EmbeddedClientType is the wallet_client_type the provider reports for wallets it custodies.
const EmbeddedClientType = "privy"

const defaultChainType = "ethereum"

// ProviderWallet is the subset of the provider's wallet object this service reads.
type ProviderWallet struct {
	Address          string `json:"address"`
	WalletClientType string `json:"wallet_client_type"`
	ChainType        string `json:"chain_type,omitempty"`
}

// Embedded reports whether the provider custodies the wallet.
func (w ProviderWallet) Embedded() bool {
	return w.WalletClientType == EmbeddedClientType
}

// ProviderClient talks to the identity/wallet provider REST API.
type ProviderClient struct {
	logger    *slog.Logger
	apiURL    string
	appID     string
	appSecret string
	client    *http.Client
}

// NewProviderClient creates a client for the wallet provider API.
func NewProviderClient(logger *slog.Logger, apiURL, appID, appSecret string, timeout time.Duration) *ProviderClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger.Info("Wallet provider client initialized", "api_url", apiURL)

	return &ProviderClient{
		logger:    logger,
		apiURL:    strings.TrimRight(strings.TrimSpace(apiURL), "/"),
		appID:     appID,
		appSecret: appSecret,
		client:    &http.Client{Timeout: timeout},
	}
}

// ListWallets returns every wallet currently linked to the user.
func (c *ProviderClient) ListWallets(ctx context.Context, userID string) ([]ProviderWallet, error) {
	var response struct {
		Wallets []ProviderWallet `json:"wallets"`
	}
	if err := c.do(ctx, http.MethodGet, c.userPath(userID, "wallets"), nil, &response); err != nil {
		return nil, err
	}
	return response.Wallets, nil
}

// UnlinkWallet revokes the link between the user and an external wallet.
func (c *ProviderClient) UnlinkWallet(ctx context.Context, userID, address string) error {
	body := map[string]string{"address": address}
	return c.do(ctx, http.MethodPost, c.userPath(userID, "wallets", "unlink"), body, nil)
}

// CreateWallet asks the provider to create an embedded wallet for the user.
func (c *ProviderClient) CreateWallet(ctx context.Context, userID string) (ProviderWallet, error) {
	var wallet ProviderWallet
	body := map[string]string{"chain_type": defaultChainType}
	if err := c.do(ctx, http.MethodPost, c.userPath(userID, "wallets"), body, &wallet); err != nil {
		return ProviderWallet{}, err
	}
	if wallet.WalletClientType == "" {
		wallet.WalletClientType = EmbeddedClientType
	}
	return wallet, nil
}

// LinkWallet links an external wallet address to the user.
func (c *ProviderClient) LinkWallet(ctx context.Context, userID, address string) (ProviderWallet, error) {
	var wallet ProviderWallet
	body := map[string]string{"address": address}
	if err := c.do(ctx, http.MethodPost, c.userPath(userID, "wallets", "link"), body, &wallet); err != nil {
		return ProviderWallet{}, err
	}
	if wallet.Address == "" {
		wallet.Address = address
	}
	return wallet, nil
}

func (c *ProviderClient) userPath(userID string, segments ...string) string {
	parts := append([]string{c.apiURL, "users", url.PathEscape(userID)}, segments...)
	return strings.Join(parts, "/")
}

func (c *ProviderClient) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode provider request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create provider request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("privy-app-id", c.appID)
	req.SetBasicAuth(c.appID, c.appSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "Calling wallet provider", "method", method, "url", endpoint, "request_id", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return &entities.AuthorityError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeProviderError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &entities.AuthorityError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to decode provider response: %v", err)}
	}

	return nil
}

func decodeProviderError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	authErr := &entities.AuthorityError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, authErr); err != nil || (authErr.Code == "" && authErr.Message == "") {
		authErr.Message = strings.TrimSpace(string(raw))
	}
	if authErr.Message == "" {
		authErr.Message = http.StatusText(resp.StatusCode)
	}

	return authErr
}
