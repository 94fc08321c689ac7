package hub

import (
	"log/slog"

	"github.com/google/uuid"

	"chat-relay/internal/models"
)

// TypingKind distinguishes typing start from typing stop.
type TypingKind int

const (
	TypingStart TypingKind = iota
	TypingStop
)

// Session is one live client connection. It starts unbound, may be bound to
// an identity by Announce, and ends with Close. All state is guarded by the
// owning hub's lock.
type Session struct {
	hub  *Hub
	id   string
	conn Conn

	// identity is the name last announced, "" while unbound.
	identity string

	// claim, when set, is the only identity this session may announce.
	claim string

	closed bool
}

type SessionOption func(*Session)

// WithClaim restricts the session to announcing name.
func WithClaim(name string) SessionOption {
	return func(s *Session) { s.claim = name }
}

// Open registers a new unbound session for conn.
func (h *Hub) Open(conn Conn, opts ...SessionOption) *Session {
	s := &Session{
		hub:  h,
		id:   uuid.New().String(),
		conn: conn,
	}
	for _, opt := range opts {
		opt(s)
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	count := len(h.sessions)
	h.mu.Unlock()

	h.recorder.SessionOpened()
	slog.Info("[SESSION] Opened", "session", s.id, "conn", conn.ID(), "sessions", count)

	return s
}

func (s *Session) ID() string {
	return s.id
}

// Identity returns the bound identity, or "" if unbound.
func (s *Session) Identity() string {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.identity
}

func (s *Session) Closed() bool {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.closed
}

// Announce binds the session to identity, replacing any earlier binding, and
// sends the new presence snapshot to everyone. Empty identities are ignored.
func (s *Session) Announce(identity string) {
	if identity == "" {
		return
	}

	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.closed {
		return
	}

	if s.claim != "" && identity != s.claim {
		slog.Warn("[SESSION] Announce does not match token", "session", s.id, "claim", s.claim, "announced", identity)
		return
	}

	if s.identity != identity {
		if s.identity != "" {
			h.presence.Remove(s.identity)
		}
		s.identity = identity
		h.presence.Add(identity)
	}

	slog.Info("[SESSION] User online", "session", s.id, "user", identity, "online", h.presence.Len())
	h.broadcastPresenceLocked()
}

// RelayTyping forwards a typing notification carrying the caller-supplied
// identity to every other session. The session need not be bound.
func (s *Session) RelayTyping(kind TypingKind, identity string) {
	if s.Closed() {
		return
	}

	h := s.hub
	event := models.EventUserTyping
	if kind == TypingStop {
		event = models.EventUserStoppedTyping
		h.typing.Stop(identity)
	} else {
		h.typing.Start(identity, h.now())
	}

	h.BroadcastOthers(s.id, event, identity)
}

// Close ends the session. The bound identity, if any, leaves presence and
// everyone receives the new snapshot. Calling Close more than once, or from
// several goroutines, has the effect of a single call.
func (s *Session) Close() {
	h := s.hub
	h.mu.Lock()

	if s.closed {
		h.mu.Unlock()
		return
	}

	s.closed = true
	delete(h.sessions, s.id)
	count := len(h.sessions)

	if s.identity != "" {
		h.presence.Remove(s.identity)
		h.typing.Stop(s.identity)
		slog.Info("[SESSION] User offline", "session", s.id, "user", s.identity, "online", h.presence.Len())
		h.broadcastPresenceLocked()
	}
	h.mu.Unlock()

	if err := s.conn.Close(); err != nil {
		slog.Debug("[SESSION] Transport close", "session", s.id, "error", err)
	}

	h.recorder.SessionClosed()
	slog.Info("[SESSION] Closed", "session", s.id, "sessions", count)
}
