package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/shared"
)

// StakeDecimals is the number of decimals of the staked token (USDC).
const StakeDecimals = 6

type DeploymentsRepository interface {
	RecordDeployment(ctx context.Context, deployment entities.Deployment) (entities.Deployment, error)
	FindDeploymentsByDefinition(ctx context.Context, userID string, definitionID uuid.UUID) ([]entities.Deployment, error)
}

// ContractService pushes draft definitions to the staking contract. The chain call itself is
// simulated: hashes and units are computed exactly, the transaction hash is synthetic.
type ContractService struct {
	logger *slog.Logger

	definitions DefinitionsRepository
	deployments DeploymentsRepository
	wallets     ports.WalletService

	contractAddress common.Address
	delay           time.Duration
}

func NewContractService(
	logger *slog.Logger,
	definitions DefinitionsRepository,
	deployments DeploymentsRepository,
	wallets ports.WalletService,
	contractAddress string,
	delay time.Duration,
) *ContractService {
	return &ContractService{
		logger:          logger,
		definitions:     definitions,
		deployments:     deployments,
		wallets:         wallets,
		contractAddress: common.HexToAddress(contractAddress),
		delay:           delay,
	}
}

func (s *ContractService) ContractAddress() string {
	return s.contractAddress.Hex()
}

// Deploy stakes a draft definition from walletAddress, or from the user's default wallet when
// walletAddress is empty. The wallet must be one the provider currently lists for the user.
func (s *ContractService) Deploy(ctx context.Context, userID string, definitionID uuid.UUID, walletAddress string) (entities.Deployment, error) {
	definition, err := s.definitions.FindDefinition(ctx, userID, definitionID)
	if err != nil {
		return entities.Deployment{}, err
	}
	if definition.Status != entities.DefinitionStatusDraft {
		return entities.Deployment{}, entities.ErrDefinitionDeployed
	}

	wallet, err := s.wallets.DefaultWallet(ctx, userID, walletAddress)
	if err != nil {
		return entities.Deployment{}, fmt.Errorf("failed to resolve deploy wallet: %w", err)
	}
	if wallet == "" || (walletAddress != "" && !shared.SameAddress(wallet, walletAddress)) {
		return entities.Deployment{}, entities.ErrNoWallet
	}

	deployment := entities.Deployment{
		ID:              uuid.New(),
		DefinitionID:    definition.ID,
		UserID:          userID,
		WalletAddress:   wallet,
		DefinitionHash:  crypto.Keccak256Hash([]byte(definition.Description)).Hex(),
		WalletHash:      crypto.Keccak256Hash(common.HexToAddress(wallet).Bytes()).Hex(),
		StakeAmountUnit: StakeUnits(definition.StakeAmount),
		ContractAddress: s.contractAddress.Hex(),
	}

	s.logger.InfoContext(ctx, "Deploying definition",
		"user_id", userID,
		"definition_id", definition.ID,
		"wallet", shared.ShortAddress(wallet),
		"definition_hash", deployment.DefinitionHash,
		"stake_units", deployment.StakeAmountUnit)

	select {
	case <-ctx.Done():
		return entities.Deployment{}, ctx.Err()
	case <-time.After(s.delay):
	}

	deployment.TxHash = crypto.Keccak256Hash(
		deployment.ID[:],
		common.HexToHash(deployment.DefinitionHash).Bytes(),
		common.HexToHash(deployment.WalletHash).Bytes(),
	).Hex()

	recorded, err := s.deployments.RecordDeployment(ctx, deployment)
	if err != nil {
		return entities.Deployment{}, fmt.Errorf("failed to record deployment: %w", err)
	}

	return recorded, nil
}

// Deployments lists the recorded deployments of a definition.
func (s *ContractService) Deployments(ctx context.Context, userID string, definitionID uuid.UUID) ([]entities.Deployment, error) {
	if _, err := s.definitions.FindDefinition(ctx, userID, definitionID); err != nil {
		return nil, err
	}
	return s.deployments.FindDeploymentsByDefinition(ctx, userID, definitionID)
}

// StakeUnits converts a token amount to its integer base units, rounding down.
// Amounts beyond the int64 range saturate.
func StakeUnits(amount float64) int64 {
	units := math.Floor(amount*math.Pow10(StakeDecimals) + 1e-9)
	switch {
	case units >= math.MaxInt64:
		return math.MaxInt64
	case units <= math.MinInt64:
		return math.MinInt64
	}
	return int64(units)
}
