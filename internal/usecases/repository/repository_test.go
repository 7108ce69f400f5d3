package repository

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/sand/definition-staking/backend/config"
	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/pkg/database"
)

// newTestPostgres connects to TEST_DATABASE_URL and migrates it. The test is skipped when the
// variable is unset or in short mode.
func newTestPostgres(t *testing.T) (*database.Postgres, *slog.Logger) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{DB: config.DB{DatabaseURL: url}}

	pg, err := database.New(cfg, database.Isolation(pgx.ReadCommitted))
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	require.NoError(t, database.RunMigrations(logger, url, database.ResolveMigrationsPath("../../../migrations")))
	return pg, logger
}

func TestWalletsRepositoryUpsertAndRemove(t *testing.T) {
	pg, logger := newTestPostgres(t)
	repo := NewWalletsRepository(logger, pg)
	ctx := context.Background()
	userID := "test-" + uuid.NewString()

	first, err := repo.Upsert(ctx, userID, "0xAbCd000000000000000000000000000000000001", entities.WalletKindExternal)
	require.NoError(t, err)
	require.True(t, first.Active)

	time.Sleep(5 * time.Millisecond)

	// Same address, different casing: one record, original casing and created_at kept, updated_at advanced.
	second, err := repo.Upsert(ctx, userID, "0xabcd000000000000000000000000000000000001", entities.WalletKindExternal)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Address, second.Address)
	require.True(t, first.CreatedAt.Equal(second.CreatedAt))
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))

	records, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Contains(t, users, userID)

	require.NoError(t, repo.Remove(ctx, userID, "0XABCD000000000000000000000000000000000001"))
	// Removing an absent record is not an error.
	require.NoError(t, repo.Remove(ctx, userID, "0XABCD000000000000000000000000000000000001"))

	records, err = repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestWalletsRepositoryTransactionRollsBack(t *testing.T) {
	pg, logger := newTestPostgres(t)
	repo := NewWalletsRepository(logger, pg)
	ctx := context.Background()
	userID := "test-" + uuid.NewString()

	err := repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.Upsert(ctx, userID, "0x00000000000000000000000000000000000000f1", entities.WalletKindEmbedded); err != nil {
			return err
		}
		return entities.NewStoreError("test", io.ErrUnexpectedEOF)
	})
	require.ErrorIs(t, err, entities.ErrStore)

	records, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestDefinitionsAndDeployments(t *testing.T) {
	pg, logger := newTestPostgres(t)
	definitions := NewDefinitionsRepository(logger, pg)
	deployments := NewDeploymentsRepository(logger, pg)
	ctx := context.Background()
	userID := "test-" + uuid.NewString()

	definition, err := definitions.InsertDefinition(ctx, entities.Definition{
		ID:          uuid.New(),
		UserID:      userID,
		Description: "approval phishing",
		StakeAmount: 10,
		Status:      entities.DefinitionStatusDraft,
	})
	require.NoError(t, err)

	description := "approval phishing kits"
	updated, err := definitions.UpdateDraft(ctx, userID, definition.ID, entities.DefinitionPatch{Description: &description})
	require.NoError(t, err)
	require.Equal(t, description, updated.Description)

	deployment, err := deployments.RecordDeployment(ctx, entities.Deployment{
		ID:              uuid.New(),
		DefinitionID:    definition.ID,
		UserID:          userID,
		WalletAddress:   "0x00000000000000000000000000000000000000f1",
		TxHash:          "0x" + uuid.NewString(),
		DefinitionHash:  "0xdef",
		WalletHash:      "0xwal",
		StakeAmountUnit: 10_000_000,
		ContractAddress: "0x1234567890123456789012345678901234567890",
	})
	require.NoError(t, err)
	require.False(t, deployment.CreatedAt.IsZero())

	stored, err := definitions.FindDefinition(ctx, userID, definition.ID)
	require.NoError(t, err)
	require.Equal(t, entities.DefinitionStatusDeployed, stored.Status)

	_, err = definitions.UpdateDraft(ctx, userID, definition.ID, entities.DefinitionPatch{Description: &description})
	require.ErrorIs(t, err, entities.ErrNotFound)

	found, err := deployments.FindDeploymentsByDefinition(ctx, userID, definition.ID)
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, definitions.DeleteDefinition(ctx, userID, definition.ID))
	require.ErrorIs(t, definitions.DeleteDefinition(ctx, userID, definition.ID), entities.ErrNotFound)
}
