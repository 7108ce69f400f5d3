package mocked

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sand/definition-staking/backend/internal/entities"
)

// DefinitionStore keeps definitions and their deployments in memory. It satisfies both the
// definitions and the deployments repository contracts.
type DefinitionStore struct {
	mu          sync.Mutex
	definitions map[uuid.UUID]entities.Definition
	deployments []entities.Deployment
	now         func() time.Time
}

func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{
		definitions: make(map[uuid.UUID]entities.Definition),
		now:         time.Now,
	}
}

func (s *DefinitionStore) FindUserDefinitions(_ context.Context, userID string) ([]entities.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	definitions := make([]entities.Definition, 0)
	for _, definition := range s.definitions {
		if definition.UserID == userID {
			definitions = append(definitions, definition)
		}
	}

	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].CreatedAt.After(definitions[j].CreatedAt)
	})
	return definitions, nil
}

func (s *DefinitionStore) FindDefinition(_ context.Context, userID string, id uuid.UUID) (entities.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	definition, ok := s.definitions[id]
	if !ok || definition.UserID != userID {
		return entities.Definition{}, entities.ErrNotFound
	}
	return definition, nil
}

func (s *DefinitionStore) InsertDefinition(_ context.Context, definition entities.Definition) (entities.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.definitions[definition.ID]; exists {
		return entities.Definition{}, fmt.Errorf("definition %s already exists", definition.ID)
	}

	now := s.now()
	definition.CreatedAt = now
	definition.UpdatedAt = now
	s.definitions[definition.ID] = definition
	return definition, nil
}

func (s *DefinitionStore) UpdateDraft(_ context.Context, userID string, id uuid.UUID, patch entities.DefinitionPatch) (entities.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	definition, ok := s.definitions[id]
	if !ok || definition.UserID != userID || definition.Status != entities.DefinitionStatusDraft {
		return entities.Definition{}, entities.ErrNotFound
	}

	if patch.Description != nil {
		definition.Description = *patch.Description
	}
	if patch.StakeAmount != nil {
		definition.StakeAmount = *patch.StakeAmount
	}
	definition.UpdatedAt = s.now()

	s.definitions[id] = definition
	return definition, nil
}

func (s *DefinitionStore) DeleteDefinition(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	definition, ok := s.definitions[id]
	if !ok || definition.UserID != userID {
		return entities.ErrNotFound
	}

	delete(s.definitions, id)

	kept := s.deployments[:0]
	for _, deployment := range s.deployments {
		if deployment.DefinitionID != id {
			kept = append(kept, deployment)
		}
	}
	s.deployments = kept

	return nil
}

func (s *DefinitionStore) RecordDeployment(_ context.Context, deployment entities.Deployment) (entities.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	definition, ok := s.definitions[deployment.DefinitionID]
	if !ok || definition.UserID != deployment.UserID || definition.Status != entities.DefinitionStatusDraft {
		return entities.Deployment{}, fmt.Errorf("definition %s is not a draft: %w", deployment.DefinitionID, entities.ErrNotFound)
	}

	now := s.now()
	definition.Status = entities.DefinitionStatusDeployed
	definition.UpdatedAt = now
	s.definitions[definition.ID] = definition

	deployment.CreatedAt = now
	s.deployments = append(s.deployments, deployment)
	return deployment, nil
}

func (s *DefinitionStore) FindDeploymentsByDefinition(_ context.Context, userID string, definitionID uuid.UUID) ([]entities.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployments := make([]entities.Deployment, 0)
	for i := len(s.deployments) - 1; i >= 0; i-- {
		deployment := s.deployments[i]
		if deployment.DefinitionID == definitionID && deployment.UserID == userID {
			deployments = append(deployments, deployment)
		}
	}
	return deployments, nil
}
