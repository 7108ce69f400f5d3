package handlers

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/sand/definition-staking/backend/internal/shared"
)

// ListWallets returns the mirrored wallet records of a user
func (h *HTTPHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	records, err := h.wallets.ListWallets(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error listing wallets", "error", err, "user_id", userID)
		h.writeError(w, errorStatus(err), "Failed to retrieve wallets")
		return
	}

	h.writeJSON(w, http.StatusOK, records)
}

// SyncWallets runs a reconciliation pass for the user
func (h *HTTPHandler) SyncWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	report, err := h.syncer.SyncNow(r.Context(), userID)
	if err != nil {
		h.logger.Warn("[Sync] Wallet sync failed", "error", err, "user_id", userID)
		h.writeError(w, errorStatus(err), errorMessage(err, "Failed to sync wallets"))
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) WalletStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, h.syncer.Status(userID))
}

// DefaultWallet resolves the wallet used for deployments, honouring the client's preference when still valid
func (h *HTTPHandler) DefaultWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	preferred := r.URL.Query().Get("preferred")
	address, err := h.wallets.DefaultWallet(r.Context(), userID, preferred)
	if err != nil {
		h.logger.Error("Error resolving default wallet", "error", err, "user_id", userID)
		h.writeError(w, errorStatus(err), "Failed to resolve default wallet")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"address":         address,
		"preferred_valid": preferred != "" && shared.SameAddress(preferred, address),
	})
}

func (h *HTTPHandler) CreateEmbeddedWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entry, report, err := h.wallets.CreateEmbeddedWallet(r.Context(), userID)
	if err != nil {
		h.logger.Error("[Create Wallet] Error creating embedded wallet", "error", err, "user_id", userID)
		h.writeError(w, errorStatus(err), "Failed to create embedded wallet")
		return
	}

	h.logger.Info("[Create Wallet] Embedded wallet created", "user_id", userID, "wallet", entry.Address)
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"wallet": entry,
		"sync":   report,
	})
}

func (h *HTTPHandler) LinkExternalWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	address := r.URL.Query().Get("address")
	if !common.IsHexAddress(address) {
		http.Error(w, "Invalid wallet address", http.StatusBadRequest)
		return
	}

	entry, report, err := h.wallets.LinkExternalWallet(r.Context(), userID, address)
	if err != nil {
		h.logger.Error("[Link Wallet] Error linking external wallet", "error", err, "user_id", userID, "wallet", address)
		h.writeError(w, errorStatus(err), "Failed to link external wallet")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"wallet": entry,
		"sync":   report,
	})
}

// UnlinkWallet revokes an external wallet at the provider and drops its record
func (h *HTTPHandler) UnlinkWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	address := mux.Vars(r)["address"]
	if !common.IsHexAddress(address) {
		http.Error(w, "Invalid wallet address", http.StatusBadRequest)
		return
	}

	outcome := h.syncer.PerformUnlink(r.Context(), userID, address)
	h.writeJSON(w, outcomeStatus(outcome), outcome)
}

// DeleteWallet stops tracking an embedded wallet. The caller must confirm the wallet is empty.
func (h *HTTPHandler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	address := mux.Vars(r)["address"]
	if !common.IsHexAddress(address) {
		http.Error(w, "Invalid wallet address", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("confirm_empty") != "true" {
		http.Error(w, "Deleting an embedded wallet requires confirm_empty=true", http.StatusPreconditionRequired)
		return
	}

	outcome := h.syncer.PerformDelete(r.Context(), userID, address)
	h.writeJSON(w, outcomeStatus(outcome), outcome)
}
