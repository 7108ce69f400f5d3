package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/sand/definition-staking/backend/internal/authority"
	"github.com/sand/definition-staking/backend/internal/authority/clients"
	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/models"
	"github.com/sand/definition-staking/backend/internal/usecases"
	"github.com/sand/definition-staking/backend/internal/usecases/mocked"
)

const (
	testUser     = "did:privy:handler-user"
	embeddedAddr = "0xA11CE00000000000000000000000000000000001"
	externalAddr = "0xB0B0000000000000000000000000000000000002"
)

type testServer struct {
	*httptest.Server
	provider *mocked.Provider
	store    *mocked.WalletStore
	hub      *models.StatusHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := mocked.NewProvider(logger)
	store := mocked.NewWalletStore()
	definitionStore := mocked.NewDefinitionStore()
	view := authority.NewAuthorityService(logger, provider)

	coordinator := usecases.NewSyncCoordinator(logger,
		usecases.NewReconciler(logger, view, store),
		usecases.NewOperationExecutor(logger, view, store),
	)
	wallets := usecases.NewWalletService(logger, store, view, view, coordinator)
	definitions := usecases.NewDefinitionService(logger, definitionStore)
	contract := usecases.NewContractService(logger, definitionStore, definitionStore, wallets,
		"0x1234567890123456789012345678901234567890", 0)

	hub := models.NewStatusHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	unsubscribe := coordinator.Subscribe(hub.Publish)

	router := mux.NewRouter()
	NewHTTPHandler(logger, coordinator, wallets, definitions, contract).RegisterRoutes(router)
	NewWebSocketHandler(logger, coordinator, hub, func(*http.Request) bool { return true }).RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		unsubscribe()
		cancel()
		server.Close()
	})

	return &testServer{Server: server, provider: provider, store: store, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestMissingUserIsRejected(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/wallets", "")
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/wallets/sync", "")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestSyncAndListWallets(t *testing.T) {
	s := newTestServer(t)
	s.provider.Seed(testUser,
		clients.ProviderWallet{Address: embeddedAddr, WalletClientType: clients.EmbeddedClientType},
		clients.ProviderWallet{Address: externalAddr, WalletClientType: "metamask"},
	)

	status, body := s.do(t, http.MethodPost, "/wallets/sync?user_id="+testUser, "")
	require.Equal(t, http.StatusOK, status)
	report := decode[entities.SyncReport](t, body)
	require.Len(t, report.Upserted, 2)

	status, body = s.do(t, http.MethodGet, "/wallets?user_id="+testUser, "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, decode[[]entities.WalletRecord](t, body), 2)

	status, body = s.do(t, http.MethodGet, "/wallets/status?user_id="+testUser, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, entities.SyncStatus{UserID: testUser}, decode[entities.SyncStatus](t, body))
}

func TestSyncProviderFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t)
	s.provider.FailList(&entities.AuthorityError{StatusCode: 503, Message: "maintenance"})

	status, _ := s.do(t, http.MethodPost, "/wallets/sync?user_id="+testUser, "")
	require.Equal(t, http.StatusBadGateway, status)
}

func TestSyncStoreFailureHidesErrorDetail(t *testing.T) {
	s := newTestServer(t)
	s.provider.Seed(testUser,
		clients.ProviderWallet{Address: embeddedAddr, WalletClientType: clients.EmbeddedClientType},
	)
	s.store.FailNext("list", errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	status, body := s.do(t, http.MethodPost, "/wallets/sync?user_id="+testUser, "")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.NotContains(t, string(body), "10.0.0.5")
	require.NotContains(t, string(body), "record store")
	require.Equal(t, "Failed to sync wallets", decode[map[string]string](t, body)["error"])
}

func TestUnlinkWalletOutcomes(t *testing.T) {
	s := newTestServer(t)
	s.provider.Seed(testUser,
		clients.ProviderWallet{Address: embeddedAddr, WalletClientType: clients.EmbeddedClientType},
		clients.ProviderWallet{Address: externalAddr, WalletClientType: "metamask"},
	)
	s.do(t, http.MethodPost, "/wallets/sync?user_id="+testUser, "")

	status, body := s.do(t, http.MethodPost, "/wallets/"+embeddedAddr+"/unlink?user_id="+testUser, "")
	require.Equal(t, http.StatusBadRequest, status)
	outcome := decode[entities.Outcome](t, body)
	require.Equal(t, entities.OutcomeRejected, outcome.Kind)
	require.Equal(t, entities.ReasonInvalidOperation, outcome.Reason)

	status, body = s.do(t, http.MethodPost, "/wallets/"+externalAddr+"/unlink?user_id="+testUser, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, entities.OutcomeSuccess, decode[entities.Outcome](t, body).Kind)

	status, _ = s.do(t, http.MethodPost, "/wallets/not-an-address/unlink?user_id="+testUser, "")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestDeleteWalletRequiresConfirmation(t *testing.T) {
	s := newTestServer(t)
	s.provider.Seed(testUser, clients.ProviderWallet{Address: embeddedAddr, WalletClientType: clients.EmbeddedClientType})
	s.do(t, http.MethodPost, "/wallets/sync?user_id="+testUser, "")

	status, _ := s.do(t, http.MethodDelete, "/wallets/"+embeddedAddr+"?user_id="+testUser, "")
	require.Equal(t, http.StatusPreconditionRequired, status)

	status, body := s.do(t, http.MethodDelete, "/wallets/"+embeddedAddr+"?user_id="+testUser+"&confirm_empty=true", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, entities.OutcomeInfoOnly, decode[entities.Outcome](t, body).Kind)
}

func TestCreateAndLinkWallets(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/wallets/embedded?user_id="+testUser, "")
	require.Equal(t, http.StatusCreated, status)

	status, _ = s.do(t, http.MethodPost, "/wallets/external?user_id="+testUser+"&address=nope", "")
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/wallets/external?user_id="+testUser+"&address="+externalAddr, "")
	require.Equal(t, http.StatusCreated, status)

	_, body := s.do(t, http.MethodGet, "/wallets?user_id="+testUser, "")
	require.Len(t, decode[[]entities.WalletRecord](t, body), 2)

	_, body = s.do(t, http.MethodGet, "/wallets/default?user_id="+testUser+"&preferred="+externalAddr, "")
	resolved := decode[map[string]any](t, body)
	require.Equal(t, externalAddr, resolved["address"])
	require.Equal(t, true, resolved["preferred_valid"])
}

func TestDefinitionDeployFlow(t *testing.T) {
	s := newTestServer(t)
	s.provider.Seed(testUser, clients.ProviderWallet{Address: externalAddr, WalletClientType: "metamask"})
	s.do(t, http.MethodPost, "/wallets/sync?user_id="+testUser, "")

	status, _ := s.do(t, http.MethodPost, "/definitions?user_id="+testUser, `{"description":"","stake_amount":5}`)
	require.Equal(t, http.StatusBadRequest, status)

	status, body := s.do(t, http.MethodPost, "/definitions?user_id="+testUser, `{"description":"seed phrase scams","stake_amount":5}`)
	require.Equal(t, http.StatusCreated, status)
	definition := decode[entities.Definition](t, body)

	path := fmt.Sprintf("/definitions/%s?user_id=%s", definition.ID, testUser)
	status, body = s.do(t, http.MethodPut, path, `{"stake_amount":7.25}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 7.25, decode[entities.Definition](t, body).StakeAmount)

	status, body = s.do(t, http.MethodPost, fmt.Sprintf("/definitions/%s/deploy?user_id=%s", definition.ID, testUser), "")
	require.Equal(t, http.StatusCreated, status)
	deployment := decode[entities.Deployment](t, body)
	require.Equal(t, int64(7_250_000), deployment.StakeAmountUnit)
	require.Equal(t, externalAddr, deployment.WalletAddress)

	status, _ = s.do(t, http.MethodPut, path, `{"stake_amount":8}`)
	require.Equal(t, http.StatusConflict, status)

	status, body = s.do(t, http.MethodGet, fmt.Sprintf("/definitions/%s/deployments?user_id=%s", definition.ID, testUser), "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, decode[[]entities.Deployment](t, body), 1)

	status, _ = s.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, status)

	status, _ = s.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPut, "/definitions/not-a-uuid?user_id="+testUser, `{}`)
	require.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/contract", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "0x1234567890123456789012345678901234567890", decode[map[string]string](t, body)["address"])
}

func TestStatusStream(t *testing.T) {
	s := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/wallets/" + testUser
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() entities.SyncStatus {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var status entities.SyncStatus
		require.NoError(t, conn.ReadJSON(&status))
		return status
	}

	require.Equal(t, entities.SyncStatus{UserID: testUser}, read())
	require.Eventually(t, func() bool { return s.hub.SubscriberCount(testUser) == 1 }, time.Second, 10*time.Millisecond)

	status, _ := s.do(t, http.MethodPost, "/wallets/sync?user_id="+testUser, "")
	require.Equal(t, http.StatusOK, status)

	require.Equal(t, entities.SyncStatus{UserID: testUser, IsSyncing: true}, read())
	require.Equal(t, entities.SyncStatus{UserID: testUser}, read())
}

func TestOutcomeStatus(t *testing.T) {
	tests := []struct {
		outcome entities.Outcome
		want    int
	}{
		{entities.Success("0x1", "ok"), http.StatusOK},
		{entities.InfoOnly("0x1", "info"), http.StatusOK},
		{entities.PartialFailure("0x1", "partial"), http.StatusOK},
		{entities.Rejected("0x1", entities.ReasonBusy, "busy"), http.StatusConflict},
		{entities.Rejected("0x1", entities.ReasonInvalidOperation, "no"), http.StatusBadRequest},
		{entities.Rejected("0x1", entities.ReasonAuthorityUnavailable, "down"), http.StatusBadGateway},
		{entities.Rejected("0x1", entities.ReasonAuthorityError, "err"), http.StatusBadGateway},
		{entities.Rejected("0x1", entities.ReasonStoreError, "db"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, outcomeStatus(tt.outcome), "%s/%s", tt.outcome.Kind, tt.outcome.Reason)
	}

	require.Equal(t, http.StatusConflict, errorStatus(entities.ErrBusy))
	require.Equal(t, http.StatusServiceUnavailable, errorStatus(entities.NewStoreError("list", io.EOF)))
}
