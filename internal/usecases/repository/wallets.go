package repository

import (
	"context"
	"errors"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/shared"
	"github.com/sand/definition-staking/backend/internal/usecases"
	"github.com/sand/definition-staking/backend/pkg/database"
)

var (
	_ usecases.WalletRecordStore     = (*WalletsRepository)(nil)
	_ usecases.DefinitionsRepository = (*DefinitionsRepository)(nil)
	_ usecases.DeploymentsRepository = (*DeploymentsRepository)(nil)
)

const walletsTable = "user_wallets"

var walletColumns = []string{
	"id",
	"user_id",
	"wallet_address",
	"address_normalized",
	"wallet_type",
	"is_active",
	"created_at",
	"updated_at",
}

// WalletsRepository is the Postgres-backed mirror of the provider's wallet list.
type WalletsRepository struct {
	logger     *slog.Logger
	db         tx.DBGetter
	transactor *tx.Transactor
	builder    sq.StatementBuilderType
}

// NewWalletsRepository creates a new wallet repository.
func NewWalletsRepository(logger *slog.Logger, pg *database.Postgres) *WalletsRepository {
	return &WalletsRepository{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
		builder:    pg.Builder,
	}
}

// Upsert inserts the record for the normalized address or, on conflict, overwrites kind,
// active flag and updated_at. created_at and the display casing of the address are kept.
func (r *WalletsRepository) Upsert(ctx context.Context, userID, address string, kind entities.WalletKind) (entities.WalletRecord, error) {
	query, args, err := r.builder.
		Insert(walletsTable).
		Columns("user_id", "wallet_address", "address_normalized", "wallet_type", "is_active").
		Values(userID, address, shared.NormalizeAddress(address), kind, true).
		Suffix(`ON CONFLICT (user_id, address_normalized) DO UPDATE
			SET wallet_type = EXCLUDED.wallet_type,
			    is_active = EXCLUDED.is_active,
			    updated_at = NOW()
			RETURNING ` + joinColumns(walletColumns)).
		ToSql()
	if err != nil {
		return entities.WalletRecord{}, entities.NewStoreError("upsert", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return entities.WalletRecord{}, entities.NewStoreError("upsert", err)
	}

	record, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.WalletRecord])
	if err != nil {
		return entities.WalletRecord{}, entities.NewStoreError("upsert", err)
	}

	r.logger.Debug("Wallet record upserted", "user_id", userID, "address", address, "kind", kind)
	return record, nil
}

// Remove deletes the record for the normalized address. A missing record is not an error.
func (r *WalletsRepository) Remove(ctx context.Context, userID, address string) error {
	query, args, err := r.builder.
		Delete(walletsTable).
		Where(sq.Eq{"user_id": userID, "address_normalized": shared.NormalizeAddress(address)}).
		ToSql()
	if err != nil {
		return entities.NewStoreError("remove", err)
	}

	tag, err := r.db(ctx).Exec(ctx, query, args...)
	if err != nil {
		return entities.NewStoreError("remove", err)
	}

	r.logger.Debug("Wallet record removed", "user_id", userID, "address", address, "rows", tag.RowsAffected())
	return nil
}

// ListByUser returns all records of the user, newest first.
func (r *WalletsRepository) ListByUser(ctx context.Context, userID string) ([]entities.WalletRecord, error) {
	query, args, err := r.builder.
		Select(walletColumns...).
		From(walletsTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, entities.NewStoreError("list", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, entities.NewStoreError("list", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.WalletRecord])
	if err != nil {
		r.logger.Error("failed to collect wallet records rows", "error", err, "user_id", userID)
		return nil, entities.NewStoreError("list", err)
	}

	return records, nil
}

// ListUsers returns every user that has at least one mirrored wallet.
func (r *WalletsRepository) ListUsers(ctx context.Context) ([]string, error) {
	query, args, err := r.builder.
		Select("DISTINCT user_id").
		From(walletsTable).
		OrderBy("user_id").
		ToSql()
	if err != nil {
		return nil, entities.NewStoreError("list users", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, entities.NewStoreError("list users", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, entities.NewStoreError("list users", err)
	}

	return users, nil
}

// WithinTransaction runs fn so that all of its writes commit or none do.
func (r *WalletsRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := r.transactor.WithinTransaction(ctx, fn)
	if err != nil && !errors.Is(err, entities.ErrStore) {
		return entities.NewStoreError("transaction", err)
	}
	return err
}
