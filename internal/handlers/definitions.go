package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sand/definition-staking/backend/internal/entities"
)

type createDefinitionRequest struct {
	Description string  `json:"description"`
	StakeAmount float64 `json:"stake_amount"`
}

func (h *HTTPHandler) GetUserDefinitions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	definitions, err := h.definitions.GetUserDefinitions(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error listing definitions", "error", err, "user_id", userID)
		h.writeError(w, errorStatus(err), "Failed to retrieve definitions")
		return
	}

	h.writeJSON(w, http.StatusOK, definitions)
}

func (h *HTTPHandler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	definition, err := h.definitions.CreateDefinition(r.Context(), userID, req.Description, req.StakeAmount)
	if err != nil {
		h.logger.Warn("[Create Definition] Error creating definition", "error", err, "user_id", userID)
		h.writeError(w, errorStatus(err), errorMessage(err, "Failed to create definition"))
		return
	}

	h.writeJSON(w, http.StatusCreated, definition)
}

func (h *HTTPHandler) UpdateDefinition(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, ok := definitionID(w, r)
	if !ok {
		return
	}

	var patch entities.DefinitionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	definition, err := h.definitions.UpdateDefinition(r.Context(), userID, id, patch)
	if err != nil {
		h.writeError(w, errorStatus(err), errorMessage(err, "Failed to update definition"))
		return
	}

	h.writeJSON(w, http.StatusOK, definition)
}

func (h *HTTPHandler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, ok := definitionID(w, r)
	if !ok {
		return
	}

	if err := h.definitions.DeleteDefinition(r.Context(), userID, id); err != nil {
		h.writeError(w, errorStatus(err), errorMessage(err, "Failed to delete definition"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeployDefinition stakes a draft definition from the given wallet, or the default one
func (h *HTTPHandler) DeployDefinition(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, ok := definitionID(w, r)
	if !ok {
		return
	}

	wallet := r.URL.Query().Get("wallet")
	if wallet != "" && !common.IsHexAddress(wallet) {
		http.Error(w, "Invalid wallet address", http.StatusBadRequest)
		return
	}

	deployment, err := h.contract.Deploy(r.Context(), userID, id, wallet)
	if err != nil {
		h.logger.Error("[Deploy] Error deploying definition", "error", err, "user_id", userID, "definition_id", id)
		h.writeError(w, errorStatus(err), errorMessage(err, "Failed to deploy definition"))
		return
	}

	h.logger.Info("[Deploy] Definition deployed", "user_id", userID, "definition_id", id, "tx_hash", deployment.TxHash)
	h.writeJSON(w, http.StatusCreated, deployment)
}

func (h *HTTPHandler) GetDeployments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, ok := definitionID(w, r)
	if !ok {
		return
	}

	deployments, err := h.contract.Deployments(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, errorStatus(err), errorMessage(err, "Failed to retrieve deployments"))
		return
	}

	h.writeJSON(w, http.StatusOK, deployments)
}

func (h *HTTPHandler) GetContract(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"address": h.contract.ContractAddress()})
}

func definitionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid definition ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
