// Package emitter is the REST tier's side of the relay: after persisting a
// message it asks the relay to fan the change out to connected clients.
package emitter

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"chat-relay/internal/models"
)

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func New(baseURL, secret string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Emit asks the relay to broadcast event with data to every client.
func (c *Client) Emit(ctx context.Context, event string, data any) (*models.EmitResponse, error) {
	raw, err := models.EncodeData(data)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}

	body, err := json.Marshal(models.EmitRequest{
		Secret: c.secret,
		Event:  event,
		Data:   raw,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emit", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp models.EmitResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("emit %s: %w", event, err)
	}
	return &resp, nil
}

// OnlineUsers fetches the relay's presence snapshot.
func (c *Client) OnlineUsers(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/online-users", nil)
	if err != nil {
		return nil, err
	}

	users := []string{}
	if err := c.do(req, &users); err != nil {
		return nil, fmt.Errorf("online users: %w", err)
	}
	return users, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e models.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("relay returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("relay returned %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
