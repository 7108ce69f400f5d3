package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/usecases"
)

var (
	_ ports.WalletSyncer      = (*usecases.SyncCoordinator)(nil)
	_ ports.WalletService     = (*usecases.WalletService)(nil)
	_ ports.DefinitionService = (*usecases.DefinitionService)(nil)
	_ ports.ContractService   = (*usecases.ContractService)(nil)
)

type HTTPHandler struct {
	logger *slog.Logger

	syncer      ports.WalletSyncer
	wallets     ports.WalletService
	definitions ports.DefinitionService
	contract    ports.ContractService
}

func NewHTTPHandler(
	logger *slog.Logger,
	syncer ports.WalletSyncer,
	wallets ports.WalletService,
	definitions ports.DefinitionService,
	contract ports.ContractService,
) *HTTPHandler {
	return &HTTPHandler{
		logger:      logger,
		syncer:      syncer,
		wallets:     wallets,
		definitions: definitions,
		contract:    contract,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// Wallets
	router.HandleFunc("/wallets", h.ListWallets).Methods("GET")
	router.HandleFunc("/wallets/sync", h.SyncWallets).Methods("POST")
	router.HandleFunc("/wallets/status", h.WalletStatus).Methods("GET")
	router.HandleFunc("/wallets/default", h.DefaultWallet).Methods("GET")
	router.HandleFunc("/wallets/embedded", h.CreateEmbeddedWallet).Methods("POST")
	router.HandleFunc("/wallets/external", h.LinkExternalWallet).Methods("POST")
	router.HandleFunc("/wallets/{address}/unlink", h.UnlinkWallet).Methods("POST")
	router.HandleFunc("/wallets/{address}", h.DeleteWallet).Methods("DELETE")

	// Definitions
	router.HandleFunc("/definitions", h.GetUserDefinitions).Methods("GET")
	router.HandleFunc("/definitions", h.CreateDefinition).Methods("POST")
	router.HandleFunc("/definitions/{id}", h.UpdateDefinition).Methods("PUT")
	router.HandleFunc("/definitions/{id}", h.DeleteDefinition).Methods("DELETE")
	router.HandleFunc("/definitions/{id}/deploy", h.DeployDefinition).Methods("POST")
	router.HandleFunc("/definitions/{id}/deployments", h.GetDeployments).Methods("GET")

	// Contract
	router.HandleFunc("/contract", h.GetContract).Methods("GET")
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Error encoding response", "error", err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// requireUser reads the mandatory user_id query parameter.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing required parameter: user_id", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

// errorMessage returns text safe to show the client. Validation errors keep
// their detail; infrastructure failures are replaced by the fallback.
func errorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, entities.ErrStore), errors.Is(err, entities.ErrAuthority):
		return fallback
	case errors.Is(err, entities.ErrBusy):
		return "A wallet sync or operation is already running for this user"
	case errors.Is(err, entities.ErrInvalidDefinition),
		errors.Is(err, entities.ErrDefinitionDeployed),
		errors.Is(err, entities.ErrNotFound),
		errors.Is(err, entities.ErrNoWallet),
		errors.Is(err, entities.ErrInvalidOperation):
		return err.Error()
	default:
		return fallback
	}
}

// outcomeStatus maps an operation outcome to its HTTP status code.
func outcomeStatus(outcome entities.Outcome) int {
	if outcome.Kind != entities.OutcomeRejected {
		return http.StatusOK
	}

	switch outcome.Reason {
	case entities.ReasonBusy:
		return http.StatusConflict
	case entities.ReasonInvalidOperation:
		return http.StatusBadRequest
	case entities.ReasonAuthorityUnavailable, entities.ReasonAuthorityError:
		return http.StatusBadGateway
	case entities.ReasonStoreError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorStatus maps a classified service error to its HTTP status code.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, entities.ErrBusy), errors.Is(err, entities.ErrDefinitionDeployed):
		return http.StatusConflict
	case errors.Is(err, entities.ErrInvalidDefinition), errors.Is(err, entities.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrNoWallet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entities.ErrAuthority):
		return http.StatusBadGateway
	case errors.Is(err, entities.ErrStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
