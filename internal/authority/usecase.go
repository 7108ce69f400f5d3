package authority

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sand/definition-staking/backend/internal/authority/clients"
	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/entities"
)

var (
	_ Provider                = (*clients.ProviderClient)(nil)
	_ ports.AuthorityView     = (*AuthorityService)(nil)
	_ ports.WalletProvisioner = (*AuthorityService)(nil)
)

// Provider is the raw wallet API of the identity provider.
type Provider interface {
	ListWallets(ctx context.Context, userID string) ([]clients.ProviderWallet, error)
	UnlinkWallet(ctx context.Context, userID, address string) error
	CreateWallet(ctx context.Context, userID string) (clients.ProviderWallet, error)
	LinkWallet(ctx context.Context, userID, address string) (clients.ProviderWallet, error)
}

// AuthorityService narrows the provider's wallet objects to authority entries.
type AuthorityService struct {
	logger   *slog.Logger
	provider Provider
}

// NewAuthorityService creates the authority view over a provider.
func NewAuthorityService(logger *slog.Logger, provider Provider) *AuthorityService {
	return &AuthorityService{
		logger:   logger,
		provider: provider,
	}
}

// ListWallets reads the user's current wallet list from the provider.
func (s *AuthorityService) ListWallets(ctx context.Context, userID string) ([]entities.AuthorityEntry, error) {
	wallets, err := s.provider.ListWallets(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to list provider wallets", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list provider wallets: %w", err)
	}

	entries := make([]entities.AuthorityEntry, 0, len(wallets))
	for _, wallet := range wallets {
		if entry, ok := toEntry(wallet); ok {
			entries = append(entries, entry)
		}
	}

	s.logger.DebugContext(ctx, "Provider wallets listed", "user_id", userID, "count", len(entries))
	return entries, nil
}

// Unlink revokes an external wallet link at the provider.
func (s *AuthorityService) Unlink(ctx context.Context, userID, address string) error {
	if err := s.provider.UnlinkWallet(ctx, userID, address); err != nil {
		return fmt.Errorf("failed to unlink wallet at provider: %w", err)
	}

	s.logger.InfoContext(ctx, "Wallet unlinked at provider", "user_id", userID, "address", address)
	return nil
}

// CreateEmbeddedWallet asks the provider for a new custodied wallet.
func (s *AuthorityService) CreateEmbeddedWallet(ctx context.Context, userID string) (entities.AuthorityEntry, error) {
	wallet, err := s.provider.CreateWallet(ctx, userID)
	if err != nil {
		return entities.AuthorityEntry{}, fmt.Errorf("failed to create embedded wallet: %w", err)
	}

	entry, ok := toEntry(wallet)
	if !ok {
		return entities.AuthorityEntry{}, fmt.Errorf("provider returned a wallet without address: %w", entities.ErrAuthority)
	}

	s.logger.InfoContext(ctx, "Embedded wallet created", "user_id", userID, "address", entry.Address)
	return entry, nil
}

// LinkExternalWallet links a user-owned wallet at the provider.
func (s *AuthorityService) LinkExternalWallet(ctx context.Context, userID, address string) (entities.AuthorityEntry, error) {
	wallet, err := s.provider.LinkWallet(ctx, userID, address)
	if err != nil {
		return entities.AuthorityEntry{}, fmt.Errorf("failed to link external wallet: %w", err)
	}

	entry, ok := toEntry(wallet)
	if !ok {
		return entities.AuthorityEntry{}, fmt.Errorf("provider returned a wallet without address: %w", entities.ErrAuthority)
	}

	s.logger.InfoContext(ctx, "External wallet linked", "user_id", userID, "address", entry.Address)
	return entry, nil
}

func toEntry(wallet clients.ProviderWallet) (entities.AuthorityEntry, bool) {
	address := strings.TrimSpace(wallet.Address)
	if address == "" {
		return entities.AuthorityEntry{}, false
	}

	kind := entities.WalletKindExternal
	if wallet.Embedded() {
		kind = entities.WalletKindEmbedded
	}

	return entities.AuthorityEntry{Address: address, Kind: kind}, true
}
