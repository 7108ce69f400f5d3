package usecases

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sand/definition-staking/backend/internal/authority"
	"github.com/sand/definition-staking/backend/internal/authority/clients"
	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/usecases/mocked"
)

const (
	testUser = "did:privy:user-1"

	embeddedAddr = "0xA11CE00000000000000000000000000000000001"
	externalAddr = "0xB0B0000000000000000000000000000000000002"
	otherAddr    = "0xCAFE000000000000000000000000000000000003"
)

func embeddedWallet(address string) clients.ProviderWallet {
	return clients.ProviderWallet{Address: address, WalletClientType: clients.EmbeddedClientType, ChainType: "ethereum"}
}

func externalWallet(address string) clients.ProviderWallet {
	return clients.ProviderWallet{Address: address, WalletClientType: "metamask", ChainType: "ethereum"}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatedAuthority blocks ListWallets while armed so a pass or operation can be held in flight.
type gatedAuthority struct {
	ports.AuthorityView

	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAuthority) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
	g.entered = make(chan struct{})
	g.release = make(chan struct{})
}

func (g *gatedAuthority) ListWallets(ctx context.Context, userID string) ([]entities.AuthorityEntry, error) {
	g.mu.Lock()
	armed, entered, release := g.armed, g.entered, g.release
	g.armed = false
	g.mu.Unlock()

	if armed {
		close(entered)
		<-release
	}
	return g.AuthorityView.ListWallets(ctx, userID)
}

type fixture struct {
	provider    *mocked.Provider
	store       *mocked.WalletStore
	authority   *authority.AuthorityService
	gate        *gatedAuthority
	reconciler  *Reconciler
	executor    *OperationExecutor
	coordinator *SyncCoordinator
	wallets     *WalletService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := discardLogger()
	provider := mocked.NewProvider(logger)
	store := mocked.NewWalletStore()

	// Strictly increasing timestamps keep ordering assertions deterministic.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	var tickMu sync.Mutex
	store.SetClock(func() time.Time {
		tickMu.Lock()
		defer tickMu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	authorityService := authority.NewAuthorityService(logger, provider)
	gate := &gatedAuthority{AuthorityView: authorityService}

	reconciler := NewReconciler(logger, gate, store)
	executor := NewOperationExecutor(logger, gate, store)
	coordinator := NewSyncCoordinator(logger, reconciler, executor)

	return &fixture{
		provider:    provider,
		store:       store,
		authority:   authorityService,
		gate:        gate,
		reconciler:  reconciler,
		executor:    executor,
		coordinator: coordinator,
		wallets:     NewWalletService(logger, store, gate, authorityService, coordinator),
	}
}

func (f *fixture) records(t *testing.T) []entities.WalletRecord {
	t.Helper()
	records, err := f.store.ListByUser(context.Background(), testUser)
	require.NoError(t, err)
	return records
}

func (f *fixture) addresses(t *testing.T) []string {
	t.Helper()
	records := f.records(t)
	addresses := make([]string, 0, len(records))
	for _, record := range records {
		addresses = append(addresses, record.Address)
	}
	return addresses
}

func (f *fixture) sync(t *testing.T) entities.SyncReport {
	t.Helper()
	report, err := f.coordinator.SyncNow(context.Background(), testUser)
	require.NoError(t, err)
	return report
}
