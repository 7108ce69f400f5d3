package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/pkg/database"
)

const definitionsTable = "definitions"

var definitionColumns = []string{"id", "user_id", "description", "stake_amount", "status", "created_at", "updated_at"}

type DefinitionsRepository struct {
	logger *slog.Logger

	db         tx.DBGetter
	transactor *tx.Transactor
	builder    sq.StatementBuilderType
}

func NewDefinitionsRepository(logger *slog.Logger, pg *database.Postgres) *DefinitionsRepository {
	return &DefinitionsRepository{logger: logger, db: pg.DBGetter, transactor: pg.Transactor, builder: pg.Builder}
}

func (r *DefinitionsRepository) FindUserDefinitions(ctx context.Context, userID string) ([]entities.Definition, error) {
	query, args, err := r.builder.
		Select(definitionColumns...).
		From(definitionsTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}

	definitions, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Definition])
	if err != nil {
		r.logger.Error("failed to collect definitions rows", "error", err)
		return nil, err
	}

	return definitions, nil
}

// FindDefinition returns the definition owned by userID, or entities.ErrNotFound.
func (r *DefinitionsRepository) FindDefinition(ctx context.Context, userID string, id uuid.UUID) (entities.Definition, error) {
	query, args, err := r.builder.
		Select(definitionColumns...).
		From(definitionsTable).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return entities.Definition{}, err
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return entities.Definition{}, fmt.Errorf("failed to query definition: %w", err)
	}

	definition, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.Definition])
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Definition{}, entities.ErrNotFound
	}
	if err != nil {
		return entities.Definition{}, fmt.Errorf("failed to collect definition: %w", err)
	}

	return definition, nil
}

func (r *DefinitionsRepository) InsertDefinition(ctx context.Context, definition entities.Definition) (entities.Definition, error) {
	query, args, err := r.builder.
		Insert(definitionsTable).
		Columns("id", "user_id", "description", "stake_amount", "status").
		Values(definition.ID, definition.UserID, definition.Description, definition.StakeAmount, definition.Status).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return entities.Definition{}, err
	}

	if err = r.db(ctx).QueryRow(ctx, query, args...).Scan(&definition.CreatedAt, &definition.UpdatedAt); err != nil {
		return entities.Definition{}, fmt.Errorf("failed to insert definition: %w", err)
	}

	return definition, nil
}

// UpdateDraft applies the patch to a draft definition only.
func (r *DefinitionsRepository) UpdateDraft(ctx context.Context, userID string, id uuid.UUID, patch entities.DefinitionPatch) (entities.Definition, error) {
	update := r.builder.
		Update(definitionsTable).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "user_id": userID, "status": entities.DefinitionStatusDraft}).
		Suffix("RETURNING " + joinColumns(definitionColumns))

	if patch.Description != nil {
		update = update.Set("description", *patch.Description)
	}
	if patch.StakeAmount != nil {
		update = update.Set("stake_amount", *patch.StakeAmount)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return entities.Definition{}, err
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return entities.Definition{}, fmt.Errorf("failed to update definition: %w", err)
	}

	definition, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.Definition])
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Definition{}, entities.ErrNotFound
	}
	if err != nil {
		return entities.Definition{}, fmt.Errorf("failed to collect updated definition: %w", err)
	}

	return definition, nil
}

func (r *DefinitionsRepository) DeleteDefinition(ctx context.Context, userID string, id uuid.UUID) error {
	query, args, err := r.builder.
		Delete(definitionsTable).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}

	return nil
}
