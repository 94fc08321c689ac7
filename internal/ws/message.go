package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/internal/auth"
	"chat-relay/internal/hub"
)

// OriginChecker admits or rejects browser origins.
type OriginChecker interface {
	AuthorizeOrigin(origin string) bool
}

// Server upgrades HTTP requests to WebSocket sessions on a hub.
type Server struct {
	hub            *hub.Hub
	upgrader       websocket.Upgrader
	identitySecret string
	sendBuffer     int
}

// NewServer builds the /ws handler. When identitySecret is set every
// connection must present an identity token and may only announce the name
// it grants.
func NewServer(h *hub.Hub, origins OriginChecker, identitySecret string, sendBuffer int) *Server {
	return &Server{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origins.AuthorizeOrigin(origin) {
					return true
				}
				slog.Warn("[WS] Origin not allowed", "origin", origin, "from", r.RemoteAddr)
				return false
			},
		},
		identitySecret: identitySecret,
		sendBuffer:     sendBuffer,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.ServeWS(w, r)
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	slog.Debug("[WS] New WebSocket connection request", "from", remoteAddr)

	var opts []hub.SessionOption
	if s.identitySecret != "" {
		name, err := auth.ValidateIdentityToken(s.identitySecret, auth.ExtractTokenFromRequest(r))
		if err != nil {
			slog.Warn("[WS] Identity token rejected", "from", remoteAddr, "error", err)
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}
		slog.Debug("[WS] Identity token accepted", "user", name, "from", remoteAddr)
		opts = append(opts, hub.WithClaim(name))
	}

	// A denied origin fails here with 403, before any session exists.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[WS] Failed to upgrade connection", "from", remoteAddr, "error", err)
		return
	}

	client := newClient(uuid.New().String(), remoteAddr, conn, s.sendBuffer)
	client.session = s.hub.Open(client, opts...)

	slog.Info("[WS] Connection upgraded", "client", client.id, "session", client.session.ID(), "from", remoteAddr)

	go client.WritePump()
	go client.ReadPump()
}
