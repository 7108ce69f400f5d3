package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sand/definition-staking/backend/internal/entities"
)

func TestReconcileUpsertsAuthorityWallets(t *testing.T) {
	f := newFixture(t)
	f.provider.Seed(testUser, embeddedWallet(embeddedAddr), externalWallet(externalAddr))

	report := f.sync(t)
	require.ElementsMatch(t, []string{embeddedAddr, externalAddr}, report.Upserted)
	require.Empty(t, report.Removed)

	records := f.records(t)
	require.Len(t, records, 2)
	kinds := map[string]entities.WalletKind{}
	for _, record := range records {
		require.True(t, record.Active)
		kinds[record.Address] = record.Kind
	}
	require.Equal(t, entities.WalletKindEmbedded, kinds[embeddedAddr])
	require.Equal(t, entities.WalletKindExternal, kinds[externalAddr])
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.provider.Seed(testUser, embeddedWallet(embeddedAddr), externalWallet(externalAddr))

	f.sync(t)
	before := f.records(t)
	writes := f.store.Writes()

	report := f.sync(t)
	require.False(t, report.Changed())
	require.Equal(t, 2, report.Unchanged)
	require.Equal(t, writes, f.store.Writes())
	require.Equal(t, before, f.records(t))
}

func TestReconcileIgnoresAddressCasing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, testUser, strings.ToLower(externalAddr), entities.WalletKindExternal)
	require.NoError(t, err)
	f.provider.Seed(testUser, externalWallet("0x"+strings.ToUpper(externalAddr[2:])))

	report := f.sync(t)
	require.False(t, report.Changed())
	require.Equal(t, 1, report.Unchanged)
	require.Len(t, f.records(t), 1)
}

func TestReconcileCollapsesDuplicateCasing(t *testing.T) {
	f := newFixture(t)
	f.provider.Seed(testUser,
		externalWallet(externalAddr),
		externalWallet(strings.ToLower(externalAddr)),
	)

	report := f.sync(t)
	require.Equal(t, []string{externalAddr}, report.Upserted)
	require.Equal(t, []string{externalAddr}, f.addresses(t))
}

func TestReconcileConvergesToAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, testUser, otherAddr, entities.WalletKindExternal)
	require.NoError(t, err)
	_, err = f.store.Upsert(ctx, testUser, embeddedAddr, entities.WalletKindEmbedded)
	require.NoError(t, err)
	f.provider.Seed(testUser, embeddedWallet(embeddedAddr), externalWallet(externalAddr))

	report := f.sync(t)
	require.Equal(t, []string{externalAddr}, report.Upserted)
	require.Equal(t, []string{otherAddr}, report.Removed)
	require.Equal(t, 1, report.Unchanged)

	require.ElementsMatch(t, []string{embeddedAddr, externalAddr}, f.addresses(t))
}

func TestReconcileSweepsOrphans(t *testing.T) {
	f := newFixture(t)
	f.provider.Seed(testUser, embeddedWallet(embeddedAddr), externalWallet(externalAddr))
	f.sync(t)

	// Revoked somewhere else.
	f.provider.Drop(testUser, externalAddr)

	report := f.sync(t)
	require.Equal(t, []string{externalAddr}, report.Removed)
	require.Equal(t, []string{embeddedAddr}, f.addresses(t))
}

func TestReconcileReactivatesWithoutChangingKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, testUser, externalAddr, entities.WalletKindExternal)
	require.NoError(t, err)
	f.store.SetActive(testUser, externalAddr, false)

	// The provider now reports a different kind for the same address.
	f.provider.Seed(testUser, embeddedWallet(externalAddr))

	report := f.sync(t)
	require.Equal(t, []string{externalAddr}, report.Reactivated)

	records := f.records(t)
	require.Len(t, records, 1)
	require.True(t, records[0].Active)
	require.Equal(t, entities.WalletKindExternal, records[0].Kind)
}

func TestReconcileAuthorityFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, testUser, otherAddr, entities.WalletKindExternal)
	require.NoError(t, err)
	writes := f.store.Writes()

	f.provider.FailList(&entities.AuthorityError{StatusCode: 503, Message: "unavailable"})

	report, err := f.coordinator.SyncNow(ctx, testUser)
	require.Error(t, err)
	require.ErrorIs(t, err, entities.ErrAuthority)
	require.False(t, report.Changed())
	require.Equal(t, writes, f.store.Writes())
	require.Equal(t, []string{otherAddr}, f.addresses(t))
}

func TestReconcileRollsBackOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, testUser, otherAddr, entities.WalletKindExternal)
	require.NoError(t, err)
	f.provider.Seed(testUser, externalWallet(externalAddr))

	// Upserts run before removals, so the pass fails halfway through.
	f.store.FailNext("remove", errors.New("connection reset"))

	report, err := f.coordinator.SyncNow(ctx, testUser)
	require.ErrorIs(t, err, entities.ErrStore)
	require.False(t, report.Changed())
	require.Equal(t, []string{otherAddr}, f.addresses(t))

	// The next pass converges.
	report = f.sync(t)
	require.Equal(t, []string{externalAddr}, report.Upserted)
	require.Equal(t, []string{otherAddr}, report.Removed)
}

func TestReconcileSkipsEmptyAddresses(t *testing.T) {
	f := newFixture(t)
	f.provider.Seed(testUser, externalWallet("  "), externalWallet(externalAddr))

	report := f.sync(t)
	require.Equal(t, []string{externalAddr}, report.Upserted)
}
