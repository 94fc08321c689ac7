package models

import "github.com/goccy/go-json"

// Outbound event names
const (
	EventMessage           = "message"
	EventMessageDeleted    = "messageDeleted"
	EventMessageEdited     = "messageEdited"
	EventMessageReacted    = "messageReacted"
	EventOnlineUsers       = "onlineUsers"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
)

// Inbound event names
const (
	EventUserOnline = "userOnline"
	EventTyping     = "typing"
	EventStopTyping = "stopTyping"
)

// Frame is the named-event envelope carried on every WebSocket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// FanoutEvent is published on the shared channel so every instance delivers
// the same event to its own sessions.
type FanoutEvent struct {
	Origin    string          `json:"origin"`
	Exclude   string          `json:"exclude,omitempty"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// HTTP side-channel bodies

type EmitRequest struct {
	Secret string          `json:"secret"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

type EmitResponse struct {
	Success bool            `json:"success"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	OnlineUsers int    `json:"onlineUsers"`
}

// EncodeData marshals a payload for the data field of a frame. Raw JSON is
// forwarded verbatim.
func EncodeData(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	}
	return json.Marshal(payload)
}

// EncodeFrame marshals an event and its payload into a wire frame.
func EncodeFrame(event string, payload any) ([]byte, error) {
	data, err := EncodeData(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
