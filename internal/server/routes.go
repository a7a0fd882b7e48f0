package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/medzoom/internal/config"
	"github.com/BioHazard786/medzoom/internal/session"
	"github.com/BioHazard786/medzoom/internal/signaling"
	"github.com/BioHazard786/medzoom/internal/wire"
)

// NewRouter mounts the websocket endpoint and the health and stats probes.
func NewRouter(coord *session.Coordinator, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ServeWs(signaling.NewHandler(coord), cfg))
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("GET /stats", statsHandler(coord))
	return mux
}

// ServeWs returns an http.HandlerFunc that upgrades requests to websocket
// connections and hands them to the signaling handler.
func ServeWs(handler *signaling.Handler, cfg *config.Config) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		Subprotocols:    wire.Subprotocols(),
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}
	opts := signaling.ClientOptions{
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error.
			slog.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"), "error", err)
			return
		}

		codec := wire.ForSubprotocol(conn.Subprotocol())
		client := signaling.NewClient(uuid.NewString(), conn, codec, handler, opts)
		client.Start()
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type statsResponse struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
	Clients int `json:"clients"`
}

func statsHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, members, clients := coord.Stats()
		writeJSON(w, statsResponse{Rooms: rooms, Members: members, Clients: clients})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}
