package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

// rootCmd runs the relay when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "real-time chat relay",
	Long: `server relays chat events to WebSocket clients and tracks who is online.
The REST tier injects persisted-message events through POST /emit.
Configure with environment variables or a .env file, for example:

export PORT=5000
export EMIT_SECRET=somesecret
export ALLOWED_ORIGINS=https://chat.example.com
export REDIS_URL=redis://localhost:6379/0
server`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

// Execute is called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of KEY=value pairs loaded before the environment is read")
	rootCmd.AddCommand(serveCmd, emitCmd, onlineCmd, tokenCmd)
}
