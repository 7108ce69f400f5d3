package mocked

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sand/definition-staking/backend/internal/entities"
)

const (
	storeUser  = "did:privy:store-user"
	otherUser  = "did:privy:other-user"
	walletAddr = "0xA11CE00000000000000000000000000000000001"
	otherAddr  = "0xB0B0000000000000000000000000000000000002"
)

func steppingClock() func() time.Time {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	return func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
}

func TestUpsertIsIdempotentAndAdvancesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := NewWalletStore()
	store.SetClock(steppingClock())

	first, err := store.Upsert(ctx, storeUser, walletAddr, entities.WalletKindEmbedded)
	require.NoError(t, err)

	second, err := store.Upsert(ctx, storeUser, walletAddr, entities.WalletKindEmbedded)
	require.NoError(t, err)

	records, err := store.ListByUser(ctx, storeUser)
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.Equal(t, first.ID, second.ID)
	require.True(t, second.CreatedAt.Equal(first.CreatedAt))
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
	require.True(t, records[0].UpdatedAt.Equal(second.UpdatedAt))
}

func TestFailedTransactionKeepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	store := NewWalletStore()

	_, err := store.Upsert(ctx, storeUser, walletAddr, entities.WalletKindExternal)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithinTransaction(ctx, func(txCtx context.Context) error {
		// A writer that is not part of the transaction.
		if _, err := store.Upsert(ctx, otherUser, otherAddr, entities.WalletKindExternal); err != nil {
			return err
		}

		if err := store.Remove(txCtx, storeUser, walletAddr); err != nil {
			return err
		}
		if _, err := store.Upsert(txCtx, storeUser, otherAddr, entities.WalletKindExternal); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	records, err := store.ListByUser(ctx, storeUser)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, walletAddr, records[0].Address)
	require.Equal(t, entities.WalletKindExternal, records[0].Kind)

	others, err := store.ListByUser(ctx, otherUser)
	require.NoError(t, err)
	require.Len(t, others, 1)
}

func TestCommittedTransactionKeepsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewWalletStore()

	err := store.WithinTransaction(ctx, func(txCtx context.Context) error {
		_, err := store.Upsert(txCtx, storeUser, walletAddr, entities.WalletKindEmbedded)
		return err
	})
	require.NoError(t, err)

	records, err := store.ListByUser(ctx, storeUser)
	require.NoError(t, err)
	require.Len(t, records, 1)
}
