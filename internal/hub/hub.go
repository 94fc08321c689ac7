package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"chat-relay/internal/models"
	"chat-relay/internal/presence"
	"chat-relay/internal/typing"
)

const publishTimeout = 5 * time.Second

// Hub owns the live sessions and the presence registry and fans events out
// to every open session.
type Hub struct {
	// Guards sessions, presence, every session's state, and serializes
	// delivery so each session sees frames in the order the hub issued them.
	mu sync.Mutex

	sessions map[string]*Session
	presence *presence.Registry
	typing   *typing.Tracker

	gate      Authorizer
	publisher Publisher
	recorder  Recorder

	instance string
	now      func() time.Time

	delivered uint64
	dropped   uint64
}

type Option func(*Hub)

func WithPresenceMode(mode presence.Mode) Option {
	return func(h *Hub) { h.presence = presence.NewRegistry(mode) }
}

func WithTypingTTL(ttl time.Duration) Option {
	return func(h *Hub) { h.typing = typing.NewTracker(ttl) }
}

func WithGate(gate Authorizer) Option {
	return func(h *Hub) { h.gate = gate }
}

// WithPublisher routes message and typing broadcasts through a shared
// channel so other hub instances deliver them too.
func WithPublisher(p Publisher) Option {
	return func(h *Hub) { h.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(h *Hub) { h.recorder = r }
}

func WithInstanceID(id string) Option {
	return func(h *Hub) { h.instance = id }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		sessions: make(map[string]*Session),
		presence: presence.NewRegistry(presence.ModeSet),
		typing:   typing.NewTracker(typing.DefaultTTL),
		recorder: nopRecorder{},
		instance: uuid.New().String(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InstanceID identifies this hub on the shared fan-out channel.
func (h *Hub) InstanceID() string {
	return h.instance
}

// BroadcastAll delivers event to every open session.
func (h *Hub) BroadcastAll(event string, payload any) {
	h.fanout(context.Background(), "", event, payload)
}

// BroadcastOthers delivers event to every open session except id.
func (h *Hub) BroadcastOthers(id string, event string, payload any) {
	h.fanout(context.Background(), id, event, payload)
}

// IngestExternal is the entry point for callers that hold no session, such
// as the REST tier after it has persisted a message. Rejected calls leave
// the hub untouched.
func (h *Hub) IngestExternal(ctx context.Context, event string, data json.RawMessage, credential string) error {
	if h.gate == nil || !h.gate.AuthorizeExternalEvent(credential) {
		slog.Warn("[HUB] Rejected external event", "event", event, "reason", "bad credential")
		h.recorder.Ingested(event, "unauthorized")
		return ErrUnauthorized
	}

	if event == "" {
		h.recorder.Ingested(event, "bad_request")
		return ErrBadRequest
	}

	if err := h.fanout(ctx, "", event, data); err != nil {
		h.recorder.Ingested(event, "error")
		return err
	}

	slog.Info("[HUB] Emitted external event", "event", event)
	h.recorder.Ingested(event, "ok")
	return nil
}

// Deliver hands an event received from the shared channel to local
// sessions. Exclude only applies on the instance that published it.
func (h *Hub) Deliver(ev models.FanoutEvent) {
	exclude := ""
	if ev.Origin == h.instance {
		exclude = ev.Exclude
	}

	frame, err := models.EncodeFrame(ev.Event, ev.Data)
	if err != nil {
		slog.Error("[HUB] Failed to encode fan-out event", "event", ev.Event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(ev.Event, frame, exclude)
}

func (h *Hub) fanout(ctx context.Context, exclude, event string, payload any) error {
	data, err := models.EncodeData(payload)
	if err != nil {
		slog.Error("[HUB] Failed to encode event", "event", event, "error", err)
		return err
	}

	if h.publisher != nil {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := h.publisher.Publish(pctx, models.FanoutEvent{
			Origin:    h.instance,
			Exclude:   exclude,
			Event:     event,
			Data:      data,
			Timestamp: h.now().Unix(),
		})
		cancel()
		if err == nil {
			return nil
		}
		slog.Error("[HUB] Publish failed, delivering locally", "event", event, "error", err)
	}

	frame, err := models.EncodeFrame(event, data)
	if err != nil {
		slog.Error("[HUB] Failed to encode frame", "event", event, "error", err)
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(event, frame, exclude)
	return nil
}

// deliverLocked sends frame to every session except exclude. A session that
// cannot take the frame is evicted without holding up the others.
func (h *Hub) deliverLocked(event string, frame []byte, exclude string) {
	sent, failed := 0, 0

	for id, s := range h.sessions {
		if id == exclude {
			continue
		}
		if err := s.conn.Send(frame); err != nil {
			slog.Warn("[HUB] Send failed, evicting session", "session", id, "user", s.identity, "event", event, "error", err)
			failed++
			go s.Close()
			continue
		}
		sent++
	}

	h.delivered += uint64(sent)
	h.dropped += uint64(failed)
	h.recorder.Delivered(event, sent, failed)

	slog.Debug("[HUB] Broadcast complete", "event", event, "sent", sent, "failed", failed)
}

// broadcastPresenceLocked sends the current registry to every session.
// Presence is per instance, so it never goes through the publisher.
func (h *Hub) broadcastPresenceLocked() {
	frame, err := models.EncodeFrame(models.EventOnlineUsers, h.presence.Snapshot())
	if err != nil {
		slog.Error("[HUB] Failed to encode online users", "error", err)
		return
	}
	h.deliverLocked(models.EventOnlineUsers, frame, "")
}

// OnlineUsers returns the presence snapshot.
func (h *Hub) OnlineUsers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.Snapshot()
}

// TypingUsers returns identities that started typing within the TTL.
func (h *Hub) TypingUsers() []string {
	return h.typing.Active(h.now())
}

type Stats struct {
	Instance     string `json:"instance"`
	PresenceMode string `json:"presenceMode"`
	Sessions     int    `json:"sessions"`
	Bound        int    `json:"bound"`
	OnlineUsers  int    `json:"onlineUsers"`
	Delivered    uint64 `json:"delivered"`
	Dropped      uint64 `json:"dropped"`
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	bound := 0
	for _, s := range h.sessions {
		if s.identity != "" {
			bound++
		}
	}

	return Stats{
		Instance:     h.instance,
		PresenceMode: string(h.presence.Mode()),
		Sessions:     len(h.sessions),
		Bound:        bound,
		OnlineUsers:  h.presence.Len(),
		Delivered:    h.delivered,
		Dropped:      h.dropped,
	}
}

// CloseAll closes every open session, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
