// Package agentctl implements the agentctl command line client for the
// turn orchestrator's REST API.
package agentctl

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentcore-dev/agentcore/go/pkg/client"
)

// NewRootCmd creates the root agentctl command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentctl",
		Short: "Interact with a running turn orchestrator",
		Long: `agentctl sends messages, inspects history, and decides approvals
against a running orchestrator instance.

Examples:
  agentctl session create --user u-123
  agentctl send <session-id> "Close case 42"
  agentctl history <session-id>
  agentctl approve <approval-id> --by ops@example.com
  agentctl chat <session-id>`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("server", "http://localhost:8080", "Orchestrator base URL")
	cmd.PersistentFlags().String("token", "", "Bearer token for authenticated deployments")
	cmd.PersistentFlags().String("token-file", "", "File holding the bearer token, re-read as the platform rotates it")

	viper.SetEnvPrefix("AGENTCTL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	_ = viper.BindPFlag("server", cmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", cmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("token-file", cmd.PersistentFlags().Lookup("token-file"))

	cmd.AddCommand(NewSessionCmd())
	cmd.AddCommand(NewSendCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewApproveCmd())
	cmd.AddCommand(NewFailCmd())
	cmd.AddCommand(NewChatCmd())

	return cmd
}

// apiClient builds a REST client from the resolved server and token settings.
// An explicit --token wins over --token-file.
func apiClient() *client.Client {
	options := []client.Option{}
	if token := viper.GetString("token"); token != "" {
		options = append(options, client.WithTokenFunc(func() string { return token }))
	} else if path := viper.GetString("token-file"); path != "" {
		source := client.NewFileTokenSource(path)
		if err := source.Start(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		} else {
			options = append(options, client.WithTokenFunc(source.Token))
		}
	}
	return client.New(viper.GetString("server"), options...)
}
