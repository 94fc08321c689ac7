package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"chat-relay/internal/emitter"
)

var emitData, emitEvent, relayURL, relaySecret string

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "inject an event through a running relay's /emit endpoint",
	Long: `emit does what the REST tier does after persisting a change, for example

export SOCKET_SERVER_URL=http://localhost:5000
export SOCKET_SERVER_SECRET=somesecret
server emit --event messageDeleted --data '"64f1c0ffee"'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if emitEvent == "" {
			return errors.New("--event is required")
		}

		var data json.RawMessage
		if emitData != "" {
			if !json.Valid([]byte(emitData)) {
				return fmt.Errorf("--data is not valid JSON: %s", emitData)
			}
			data = json.RawMessage(emitData)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		resp, err := emitter.New(relayURL, relaySecret).Emit(ctx, emitEvent, data)
		if err != nil {
			return err
		}

		return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
	},
}

var onlineCmd = &cobra.Command{
	Use:   "online",
	Short: "list the users a running relay considers online",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		users, err := emitter.New(relayURL, "").OnlineUsers(ctx)
		if err != nil {
			return err
		}

		return json.NewEncoder(cmd.OutOrStdout()).Encode(users)
	},
}

func init() {
	defaultURL := os.Getenv("SOCKET_SERVER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:5000"
	}

	for _, c := range []*cobra.Command{emitCmd, onlineCmd} {
		c.Flags().StringVar(&relayURL, "url", defaultURL, "base URL of the relay")
	}
	emitCmd.Flags().StringVar(&relaySecret, "secret", os.Getenv("SOCKET_SERVER_SECRET"), "shared emit secret")
	emitCmd.Flags().StringVar(&emitEvent, "event", "", "event name, e.g. message")
	emitCmd.Flags().StringVar(&emitData, "data", "", "JSON payload forwarded verbatim")
}
