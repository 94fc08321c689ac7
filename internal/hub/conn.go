package hub

import (
	"context"
	"errors"

	"chat-relay/internal/models"
)

var (
	// ErrUnauthorized is returned when an external event carries a bad credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadRequest is returned when an external event has no name.
	ErrBadRequest = errors.New("event name is required")
)

// Conn is the transport handle behind a session. Send must not block; it
// returns an error when the frame cannot be queued.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Authorizer admits or rejects externally injected events.
type Authorizer interface {
	AuthorizeExternalEvent(credential string) bool
}

// Publisher hands events to a channel shared by every hub instance. The
// subscriber side feeds them back through Hub.Deliver.
type Publisher interface {
	Publish(ctx context.Context, event models.FanoutEvent) error
}

// Recorder receives hub activity for metrics.
type Recorder interface {
	SessionOpened()
	SessionClosed()
	Delivered(event string, sent, dropped int)
	Ingested(event, result string)
}

type nopRecorder struct{}

func (nopRecorder) SessionOpened()             {}
func (nopRecorder) SessionClosed()             {}
func (nopRecorder) Delivered(string, int, int) {}
func (nopRecorder) Ingested(string, string)    {}
