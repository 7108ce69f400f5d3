package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/shared"
)

// WalletService serves wallet listings and provisions new wallets through the provider.
type WalletService struct {
	logger      *slog.Logger
	store       WalletRecordStore
	authority   ports.AuthorityView
	provisioner ports.WalletProvisioner
	syncer      ports.WalletSyncer
}

func NewWalletService(
	logger *slog.Logger,
	store WalletRecordStore,
	authority ports.AuthorityView,
	provisioner ports.WalletProvisioner,
	syncer ports.WalletSyncer,
) *WalletService {
	return &WalletService{
		logger:      logger,
		store:       store,
		authority:   authority,
		provisioner: provisioner,
		syncer:      syncer,
	}
}

// ListWallets returns the user's mirrored records, newest first.
func (s *WalletService) ListWallets(ctx context.Context, userID string) ([]entities.WalletRecord, error) {
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return records, nil
}

// DefaultWallet resolves the user's default wallet against the mirror and a fresh provider read.
func (s *WalletService) DefaultWallet(ctx context.Context, userID, preferred string) (string, error) {
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to list wallets: %w", err)
	}

	entries, err := s.authority.ListWallets(ctx, userID)
	if err != nil {
		return "", err
	}

	address := ResolveDefaultWallet(preferred, records, entries)
	if preferred != "" && address != "" && !shared.SameAddress(address, preferred) {
		s.logger.DebugContext(ctx, "Preferred wallet no longer valid, falling back",
			"user_id", userID, "preferred", preferred, "resolved", address)
	}
	return address, nil
}

// CreateEmbeddedWallet creates a custodied wallet at the provider and syncs it into the mirror.
func (s *WalletService) CreateEmbeddedWallet(ctx context.Context, userID string) (entities.AuthorityEntry, entities.SyncReport, error) {
	entry, err := s.provisioner.CreateEmbeddedWallet(ctx, userID)
	if err != nil {
		return entities.AuthorityEntry{}, entities.SyncReport{}, err
	}

	report, err := s.syncAfterProvision(ctx, userID)
	return entry, report, err
}

// LinkExternalWallet links a user-owned wallet at the provider and syncs it into the mirror.
func (s *WalletService) LinkExternalWallet(ctx context.Context, userID, address string) (entities.AuthorityEntry, entities.SyncReport, error) {
	entry, err := s.provisioner.LinkExternalWallet(ctx, userID, address)
	if err != nil {
		return entities.AuthorityEntry{}, entities.SyncReport{}, err
	}

	report, err := s.syncAfterProvision(ctx, userID)
	return entry, report, err
}

// syncAfterProvision treats a busy user as success: the next pass picks the wallet up.
func (s *WalletService) syncAfterProvision(ctx context.Context, userID string) (entities.SyncReport, error) {
	report, err := s.syncer.SyncNow(ctx, userID)
	if errors.Is(err, entities.ErrBusy) {
		s.logger.InfoContext(ctx, "Sync deferred, wallet operation in progress", "user_id", userID)
		return entities.SyncReport{UserID: userID}, nil
	}
	if err != nil {
		return entities.SyncReport{UserID: userID}, fmt.Errorf("wallet provisioned but sync failed: %w", err)
	}
	return report, nil
}
