package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/models"
)

type WebSocketHandler struct {
	logger   *slog.Logger
	syncer   ports.WalletSyncer
	hub      *models.StatusHub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(
	logger *slog.Logger,
	syncer ports.WalletSyncer,
	hub *models.StatusHub,
	checkOrigin func(r *http.Request) bool,
) *WebSocketHandler {
	return &WebSocketHandler{
		logger: logger,
		syncer: syncer,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/wallets/{userId}", h.HandleConnection)
}

// HandleConnection streams sync status changes of one user until the client disconnects.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		http.Error(w, "Missing user ID", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Error upgrading connection", "error", err)
		return
	}

	h.logger.Info("New WebSocket connection", "user_id", userID)

	if err = h.hub.AddSubscriber(userID, conn, h.syncer.Status(userID)); err != nil {
		h.logger.Error("Error adding subscriber", "error", err)
		h.hub.RemoveSubscriber(userID, conn)
		return
	}

	// Keep connection open and handle disconnection
	for {
		if _, _, readErr := conn.ReadMessage(); readErr != nil {
			h.logger.Debug("WebSocket connection closed", "user_id", userID, "error", readErr)
			h.hub.RemoveSubscriber(userID, conn)
			return
		}
	}
}
