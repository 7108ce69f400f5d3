package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/sand/definition-staking/backend/internal/entities"
)

// AuthorityView is the provider's read-only wallet list plus its unlink mutator.
type AuthorityView interface {
	ListWallets(ctx context.Context, userID string) ([]entities.AuthorityEntry, error)
	Unlink(ctx context.Context, userID, address string) error
}

// WalletProvisioner creates or links wallets at the provider.
type WalletProvisioner interface {
	CreateEmbeddedWallet(ctx context.Context, userID string) (entities.AuthorityEntry, error)
	LinkExternalWallet(ctx context.Context, userID, address string) (entities.AuthorityEntry, error)
}

// WalletSyncer serializes reconciliation passes and wallet operations per user.
type WalletSyncer interface {
	SyncNow(ctx context.Context, userID string) (entities.SyncReport, error)
	PerformUnlink(ctx context.Context, userID, address string) entities.Outcome
	PerformDelete(ctx context.Context, userID, address string) entities.Outcome
	Status(userID string) entities.SyncStatus
	Subscribe(fn func(entities.SyncStatus)) (unsubscribe func())
}

// WalletService defines the interface for wallet queries and provisioning.
type WalletService interface {
	ListWallets(ctx context.Context, userID string) ([]entities.WalletRecord, error)
	DefaultWallet(ctx context.Context, userID, preferred string) (string, error)
	CreateEmbeddedWallet(ctx context.Context, userID string) (entities.AuthorityEntry, entities.SyncReport, error)
	LinkExternalWallet(ctx context.Context, userID, address string) (entities.AuthorityEntry, entities.SyncReport, error)
}

// DefinitionService defines the interface for definition operations.
type DefinitionService interface {
	GetUserDefinitions(ctx context.Context, userID string) ([]entities.Definition, error)
	CreateDefinition(ctx context.Context, userID, description string, stakeAmount float64) (entities.Definition, error)
	UpdateDefinition(ctx context.Context, userID string, id uuid.UUID, patch entities.DefinitionPatch) (entities.Definition, error)
	DeleteDefinition(ctx context.Context, userID string, id uuid.UUID) error
}

// ContractService defines the interface for staking contract deployment.
type ContractService interface {
	Deploy(ctx context.Context, userID string, definitionID uuid.UUID, walletAddress string) (entities.Deployment, error)
	Deployments(ctx context.Context, userID string, definitionID uuid.UUID) ([]entities.Deployment, error)
	ContractAddress() string
}
