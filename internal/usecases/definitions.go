package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/sand/definition-staking/backend/internal/entities"
)

const (
	MaxDescriptionLength = 2000
	// MaxStakeAmount keeps the stake representable in int64 base units.
	MaxStakeAmount = 1_000_000_000_000
)

type DefinitionsRepository interface {
	FindUserDefinitions(ctx context.Context, userID string) ([]entities.Definition, error)
	FindDefinition(ctx context.Context, userID string, id uuid.UUID) (entities.Definition, error)
	InsertDefinition(ctx context.Context, definition entities.Definition) (entities.Definition, error)
	UpdateDraft(ctx context.Context, userID string, id uuid.UUID, patch entities.DefinitionPatch) (entities.Definition, error)
	DeleteDefinition(ctx context.Context, userID string, id uuid.UUID) error
}

type DefinitionService struct {
	logger *slog.Logger
	repo   DefinitionsRepository
}

func NewDefinitionService(logger *slog.Logger, repo DefinitionsRepository) *DefinitionService {
	return &DefinitionService{logger: logger, repo: repo}
}

func (s *DefinitionService) GetUserDefinitions(ctx context.Context, userID string) ([]entities.Definition, error) {
	return s.repo.FindUserDefinitions(ctx, userID)
}

func (s *DefinitionService) CreateDefinition(ctx context.Context, userID, description string, stakeAmount float64) (entities.Definition, error) {
	description = strings.TrimSpace(description)
	if err := validateDefinition(description, stakeAmount); err != nil {
		return entities.Definition{}, err
	}

	definition, err := s.repo.InsertDefinition(ctx, entities.Definition{
		ID:          uuid.New(),
		UserID:      userID,
		Description: description,
		StakeAmount: stakeAmount,
		Status:      entities.DefinitionStatusDraft,
	})
	if err != nil {
		return entities.Definition{}, fmt.Errorf("failed to create definition: %w", err)
	}

	s.logger.InfoContext(ctx, "Definition created", "user_id", userID, "definition_id", definition.ID)
	return definition, nil
}

// UpdateDefinition applies patch to a draft. Deployed definitions are immutable.
func (s *DefinitionService) UpdateDefinition(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	patch entities.DefinitionPatch,
) (entities.Definition, error) {
	current, err := s.repo.FindDefinition(ctx, userID, id)
	if err != nil {
		return entities.Definition{}, err
	}
	if current.Status != entities.DefinitionStatusDraft {
		return entities.Definition{}, entities.ErrDefinitionDeployed
	}

	if patch.Description != nil {
		trimmed := strings.TrimSpace(*patch.Description)
		patch.Description = &trimmed
	}

	description, stake := current.Description, current.StakeAmount
	if patch.Description != nil {
		description = *patch.Description
	}
	if patch.StakeAmount != nil {
		stake = *patch.StakeAmount
	}
	if err = validateDefinition(description, stake); err != nil {
		return entities.Definition{}, err
	}

	updated, err := s.repo.UpdateDraft(ctx, userID, id, patch)
	if errors.Is(err, entities.ErrNotFound) {
		// Deployed between the read and the write.
		return entities.Definition{}, entities.ErrDefinitionDeployed
	}
	if err != nil {
		return entities.Definition{}, fmt.Errorf("failed to update definition: %w", err)
	}

	return updated, nil
}

func (s *DefinitionService) DeleteDefinition(ctx context.Context, userID string, id uuid.UUID) error {
	if err := s.repo.DeleteDefinition(ctx, userID, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Definition deleted", "user_id", userID, "definition_id", id)
	return nil
}

func validateDefinition(description string, stakeAmount float64) error {
	if description == "" {
		return fmt.Errorf("%w: description is required", entities.ErrInvalidDefinition)
	}
	if len(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", entities.ErrInvalidDefinition, MaxDescriptionLength)
	}
	if math.IsNaN(stakeAmount) || math.IsInf(stakeAmount, 0) || stakeAmount <= 0 {
		return fmt.Errorf("%w: stake amount must be positive", entities.ErrInvalidDefinition)
	}
	if stakeAmount > MaxStakeAmount {
		return fmt.Errorf("%w: stake amount exceeds %d", entities.ErrInvalidDefinition, int64(MaxStakeAmount))
	}
	return nil
}
