package mocked

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sand/definition-staking/backend/internal/authority/clients"
	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/shared"
)

// Provider is an in-memory identity/wallet provider. It serves local development when no
// provider URL is configured and doubles as the provider in tests.
type Provider struct {
	logger *slog.Logger

	keys *keyring

	mu       sync.Mutex
	wallets  map[string][]clients.ProviderWallet
	embedded map[string]int

	listErr   error
	unlinkErr error
	calls     map[string]int
}

// NewProvider creates an empty in-memory provider whose embedded wallets get random keys.
func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{
		logger:   logger,
		wallets:  make(map[string][]clients.ProviderWallet),
		embedded: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// NewDerivingProvider creates an in-memory provider that derives embedded wallets from
// mnemonic. When mnemonic is empty a throwaway one is generated and addresses will not
// survive a restart.
func NewDerivingProvider(logger *slog.Logger, mnemonic string) (*Provider, error) {
	keys, err := newKeyring(mnemonic)
	if err != nil {
		return nil, err
	}

	if mnemonic == "" {
		logger.Warn("No wallet mnemonic configured, embedded wallet addresses will change on restart")
	}

	p := NewProvider(logger)
	p.keys = keys
	return p, nil
}

// Seed adds wallets for a user as if they were created outside this service.
func (p *Provider) Seed(userID string, wallets ...clients.ProviderWallet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wallets[userID] = append(p.wallets[userID], wallets...)
}

// Drop removes a wallet out of band, the way a user revoking it elsewhere would.
func (p *Provider) Drop(userID, address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drop(userID, address)
}

// FailList makes ListWallets return err until cleared with nil.
func (p *Provider) FailList(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErr = err
}

// FailUnlink makes UnlinkWallet return err until cleared with nil.
func (p *Provider) FailUnlink(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlinkErr = err
}

// Calls returns how many times the named method was invoked.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *Provider) ListWallets(_ context.Context, userID string) ([]clients.ProviderWallet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["ListWallets"]++

	if p.listErr != nil {
		return nil, p.listErr
	}

	wallets := make([]clients.ProviderWallet, len(p.wallets[userID]))
	copy(wallets, p.wallets[userID])
	return wallets, nil
}

func (p *Provider) UnlinkWallet(_ context.Context, userID, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["UnlinkWallet"]++

	if p.unlinkErr != nil {
		return p.unlinkErr
	}

	if !p.drop(userID, address) {
		return &entities.AuthorityError{
			StatusCode: 404,
			Code:       entities.AuthorityCodeLinkedAccountNotFound,
			Message:    "linked account not found",
		}
	}

	p.logger.Debug("Mock provider unlinked wallet", "user_id", userID, "address", address)
	return nil
}

func (p *Provider) CreateWallet(_ context.Context, userID string) (clients.ProviderWallet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["CreateWallet"]++

	address, err := p.nextAddress(userID)
	if err != nil {
		return clients.ProviderWallet{}, err
	}

	wallet := clients.ProviderWallet{
		Address:          address.Hex(),
		WalletClientType: clients.EmbeddedClientType,
		ChainType:        "ethereum",
	}
	p.wallets[userID] = append(p.wallets[userID], wallet)

	p.logger.Debug("Mock provider created embedded wallet", "user_id", userID, "address", wallet.Address)
	return wallet, nil
}

// nextAddress picks the key of a new embedded wallet. Callers hold p.mu.
func (p *Provider) nextAddress(userID string) (common.Address, error) {
	if p.keys == nil {
		key, err := crypto.GenerateKey()
		if err != nil {
			return common.Address{}, err
		}
		return crypto.PubkeyToAddress(key.PublicKey), nil
	}

	n := p.embedded[userID]
	p.embedded[userID] = n + 1
	return p.keys.derive(userID, n)
}

func (p *Provider) LinkWallet(_ context.Context, userID, address string) (clients.ProviderWallet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["LinkWallet"]++

	for _, existing := range p.wallets[userID] {
		if shared.SameAddress(existing.Address, address) {
			return existing, nil
		}
	}

	wallet := clients.ProviderWallet{Address: address, WalletClientType: "injected", ChainType: "ethereum"}
	p.wallets[userID] = append(p.wallets[userID], wallet)
	return wallet, nil
}

func (p *Provider) drop(userID, address string) bool {
	wallets := p.wallets[userID]
	for i, wallet := range wallets {
		if shared.SameAddress(wallet.Address, address) {
			p.wallets[userID] = append(wallets[:i:i], wallets[i+1:]...)
			return true
		}
	}
	return false
}
