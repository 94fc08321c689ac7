package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/models"
	"chat-relay/internal/presence"
)

type mockConn struct {
	id       string
	received [][]byte
	closed   int
	sendErr  error
	mu       sync.Mutex
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockConn) frames(t *testing.T) []models.Frame {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := make([]models.Frame, 0, len(m.received))
	for _, b := range m.received {
		var f models.Frame
		require.NoError(t, json.Unmarshal(b, &f))
		frames = append(frames, f)
	}
	return frames
}

func (m *mockConn) count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, b := range m.received {
		var f models.Frame
		if json.Unmarshal(b, &f) == nil && f.Event == event {
			n++
		}
	}
	return n
}

func (m *mockConn) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type staticGate string

func (g staticGate) AuthorizeExternalEvent(credential string) bool {
	return credential == string(g)
}

type fakePublisher struct {
	events []models.FanoutEvent
	err    error
	mu     sync.Mutex
}

func (p *fakePublisher) Publish(ctx context.Context, ev models.FanoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) published() []models.FanoutEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.FanoutEvent(nil), p.events...)
}

func openN(h *Hub, n int) ([]*Session, []*mockConn) {
	sessions := make([]*Session, n)
	conns := make([]*mockConn, n)
	for i := 0; i < n; i++ {
		conns[i] = &mockConn{id: fmt.Sprintf("c%d", i)}
		sessions[i] = h.Open(conns[i])
	}
	return sessions, conns
}

func lastOnlineUsers(t *testing.T, c *mockConn) []string {
	t.Helper()
	frames := c.frames(t)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Event == models.EventOnlineUsers {
			var users []string
			require.NoError(t, json.Unmarshal(frames[i].Data, &users))
			return users
		}
	}
	t.Fatalf("no %s frame received by %s", models.EventOnlineUsers, c.id)
	return nil
}

func TestHub_BroadcastAll(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("%d sessions", n), func(t *testing.T) {
			h := NewHub()
			_, conns := openN(h, n)

			h.BroadcastAll(models.EventMessage, map[string]string{"text": "hi"})

			for _, c := range conns {
				frames := c.frames(t)
				require.Len(t, frames, 1)
				assert.Equal(t, models.EventMessage, frames[0].Event)
				assert.JSONEq(t, `{"text":"hi"}`, string(frames[0].Data))
			}
			assert.Equal(t, uint64(n), h.Stats().Delivered)
		})
	}
}

func TestHub_BroadcastOthers(t *testing.T) {
	h := NewHub()
	sessions, conns := openN(h, 3)

	h.BroadcastOthers(sessions[1].ID(), models.EventUserTyping, "bob")

	assert.Equal(t, 1, conns[0].count(models.EventUserTyping))
	assert.Equal(t, 0, conns[1].count(models.EventUserTyping))
	assert.Equal(t, 1, conns[2].count(models.EventUserTyping))
}

func TestHub_ClosedSessionReceivesNothing(t *testing.T) {
	h := NewHub()
	sessions, conns := openN(h, 2)

	sessions[0].Close()
	h.BroadcastAll(models.EventMessage, "x")

	assert.Equal(t, 0, conns[0].count(models.EventMessage))
	assert.Equal(t, 1, conns[1].count(models.EventMessage))
}

func TestHub_EventOrder(t *testing.T) {
	h := NewHub()
	_, conns := openN(h, 2)

	for i := 0; i < 20; i++ {
		h.BroadcastAll(models.EventMessage, i)
	}

	for _, c := range conns {
		frames := c.frames(t)
		require.Len(t, frames, 20)
		for i, f := range frames {
			assert.Equal(t, fmt.Sprint(i), string(f.Data))
		}
	}
}

func TestHub_SlowSessionEvicted(t *testing.T) {
	h := NewHub()
	_, conns := openN(h, 2)
	slow := &mockConn{id: "slow", sendErr: errors.New("buffer full")}
	h.Open(slow)

	h.BroadcastAll(models.EventMessage, "x")

	for _, c := range conns {
		assert.Equal(t, 1, c.count(models.EventMessage))
	}
	assert.Eventually(t, func() bool { return slow.closeCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return h.Stats().Sessions == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), h.Stats().Dropped)
}

func TestHub_IngestExternal(t *testing.T) {
	tests := []struct {
		name       string
		gate       Authorizer
		event      string
		credential string
		wantErr    error
		wantFrames int
	}{
		{name: "ok", gate: staticGate("s3cret"), event: models.EventMessage, credential: "s3cret", wantFrames: 1},
		{name: "wrong secret", gate: staticGate("s3cret"), event: models.EventMessage, credential: "nope", wantErr: ErrUnauthorized},
		{name: "no gate", event: models.EventMessage, credential: "s3cret", wantErr: ErrUnauthorized},
		{name: "missing event", gate: staticGate("s3cret"), credential: "s3cret", wantErr: ErrBadRequest},
		{name: "wrong secret wins over missing event", gate: staticGate("s3cret"), credential: "nope", wantErr: ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(WithGate(tt.gate))
			sessions, conns := openN(h, 2)
			sessions[0].Announce("alice")
			before := h.OnlineUsers()
			beforeCounts := []int{len(conns[0].frames(t)), len(conns[1].frames(t))}

			data := json.RawMessage(`{"_id":"1","content":"hello"}`)
			err := h.IngestExternal(context.Background(), tt.event, data, tt.credential)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, before, h.OnlineUsers())
			for i, c := range conns {
				assert.Len(t, c.frames(t), beforeCounts[i]+tt.wantFrames)
			}
			if tt.wantFrames > 0 {
				frames := conns[1].frames(t)
				last := frames[len(frames)-1]
				assert.Equal(t, tt.event, last.Event)
				assert.JSONEq(t, string(data), string(last.Data))
			}
		})
	}
}

func TestHub_Publisher(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHub(WithPublisher(pub), WithInstanceID("node-a"))
	sessions, conns := openN(h, 2)

	h.BroadcastOthers(sessions[0].ID(), models.EventUserTyping, "alice")

	// published, not delivered directly
	assert.Equal(t, 0, conns[1].count(models.EventUserTyping))
	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, "node-a", events[0].Origin)
	assert.Equal(t, sessions[0].ID(), events[0].Exclude)
	assert.JSONEq(t, `"alice"`, string(events[0].Data))

	// the subscriber loop hands it back
	h.Deliver(events[0])
	assert.Equal(t, 0, conns[0].count(models.EventUserTyping))
	assert.Equal(t, 1, conns[1].count(models.EventUserTyping))

	// presence never goes through the publisher
	sessions[0].Announce("alice")
	assert.Len(t, pub.published(), 1)
	assert.Equal(t, 1, conns[1].count(models.EventOnlineUsers))
}

func TestHub_DeliverFromOtherInstance(t *testing.T) {
	h := NewHub(WithInstanceID("node-a"))
	sessions, conns := openN(h, 2)

	h.Deliver(models.FanoutEvent{
		Origin:  "node-b",
		Exclude: sessions[0].ID(),
		Event:   models.EventMessage,
		Data:    json.RawMessage(`{"content":"x"}`),
	})

	assert.Equal(t, 1, conns[0].count(models.EventMessage), "exclude only applies on the origin instance")
	assert.Equal(t, 1, conns[1].count(models.EventMessage))
}

func TestHub_PublisherFailureFallsBack(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	h := NewHub(WithPublisher(pub), WithGate(staticGate("k")))
	_, conns := openN(h, 2)

	err := h.IngestExternal(context.Background(), models.EventMessageDeleted, json.RawMessage(`"id-1"`), "k")
	require.NoError(t, err)

	for _, c := range conns {
		assert.Equal(t, 1, c.count(models.EventMessageDeleted))
	}
}

func TestHub_Stats(t *testing.T) {
	h := NewHub(WithPresenceMode(presence.ModeRefcount), WithInstanceID("i-1"))
	sessions, _ := openN(h, 3)
	sessions[0].Announce("alice")
	sessions[1].Announce("alice")

	st := h.Stats()
	assert.Equal(t, "i-1", st.Instance)
	assert.Equal(t, "refcount", st.PresenceMode)
	assert.Equal(t, 3, st.Sessions)
	assert.Equal(t, 2, st.Bound)
	assert.Equal(t, 1, st.OnlineUsers)
}

func TestHub_CloseAll(t *testing.T) {
	h := NewHub()
	sessions, conns := openN(h, 3)
	sessions[0].Announce("alice")

	h.CloseAll()

	assert.Equal(t, 0, h.Stats().Sessions)
	assert.Empty(t, h.OnlineUsers())
	for _, c := range conns {
		assert.Equal(t, 1, c.closeCount())
	}
}

func TestHub_ConcurrentAnnounceClose(t *testing.T) {
	h := NewHub(WithPresenceMode(presence.ModeRefcount))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := h.Open(&mockConn{id: fmt.Sprint(i)})
			s.Announce(fmt.Sprintf("user-%d", i%5))
			h.BroadcastAll(models.EventMessage, i)
			s.Close()
			s.Close()
		}(i)
	}
	wg.Wait()

	assert.Empty(t, h.OnlineUsers())
	assert.Equal(t, 0, h.Stats().Sessions)
}
