package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/pkg/database"
)

const deploymentsTable = "deployments"

var deploymentColumns = []string{
	"id",
	"definition_id",
	"user_id",
	"wallet_address",
	"tx_hash",
	"definition_hash",
	"wallet_hash",
	"stake_amount_unit",
	"contract_address",
	"created_at",
}

// DeploymentsRepository stores contract deployment results.
type DeploymentsRepository struct {
	logger *slog.Logger

	db         tx.DBGetter
	transactor *tx.Transactor
	builder    sq.StatementBuilderType
}

// NewDeploymentsRepository creates a new deployments repository.
func NewDeploymentsRepository(logger *slog.Logger, pg *database.Postgres) *DeploymentsRepository {
	return &DeploymentsRepository{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
		builder:    pg.Builder,
	}
}

// RecordDeployment stores the deployment and flips the definition to deployed in one transaction.
func (r *DeploymentsRepository) RecordDeployment(ctx context.Context, deployment entities.Deployment) (entities.Deployment, error) {
	err := r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		update, args, err := r.builder.
			Update(definitionsTable).
			Set("status", entities.DefinitionStatusDeployed).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{
				"id":      deployment.DefinitionID,
				"user_id": deployment.UserID,
				"status":  entities.DefinitionStatusDraft,
			}).
			ToSql()
		if err != nil {
			return err
		}

		tag, err := r.db(ctx).Exec(ctx, update, args...)
		if err != nil {
			return fmt.Errorf("failed to mark definition deployed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("definition %s is not a draft: %w", deployment.DefinitionID, entities.ErrNotFound)
		}

		insert, args, err := r.builder.
			Insert(deploymentsTable).
			Columns(deploymentColumns[:len(deploymentColumns)-1]...).
			Values(
				deployment.ID,
				deployment.DefinitionID,
				deployment.UserID,
				deployment.WalletAddress,
				deployment.TxHash,
				deployment.DefinitionHash,
				deployment.WalletHash,
				deployment.StakeAmountUnit,
				deployment.ContractAddress,
			).
			Suffix("RETURNING created_at").
			ToSql()
		if err != nil {
			return err
		}

		if err = r.db(ctx).QueryRow(ctx, insert, args...).Scan(&deployment.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert deployment: %w", err)
		}

		return nil
	})
	if err != nil {
		return entities.Deployment{}, err
	}

	r.logger.Info("Deployment recorded", "definition_id", deployment.DefinitionID, "tx_hash", deployment.TxHash)
	return deployment, nil
}

// FindDeploymentsByDefinition returns deployments of a definition, newest first.
func (r *DeploymentsRepository) FindDeploymentsByDefinition(ctx context.Context, userID string, definitionID uuid.UUID) ([]entities.Deployment, error) {
	query, args, err := r.builder.
		Select(deploymentColumns...).
		From(deploymentsTable).
		Where(sq.Eq{"definition_id": definitionID, "user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}

	deployments, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Deployment])
	if err != nil {
		r.logger.Error("failed to collect deployments rows", "error", err)
		return nil, err
	}

	return deployments, nil
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
