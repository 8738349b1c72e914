package agentctl

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// HistoryConfig holds configuration for the history command
type HistoryConfig struct {
	Turn   string
	Limit  int
	Before string
}

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cfg := &HistoryConfig{}

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List a session's conversation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var before time.Time
			if cfg.Before != "" {
				parsed, err := time.Parse(time.RFC3339, cfg.Before)
				if err != nil {
					return err
				}
				before = parsed
			}

			response, err := apiClient().GetHistory(cmd.Context(), args[0], cfg.Turn, cfg.Limit, before)
			if err != nil {
				return err
			}

			writer := table.NewWriter()
			writer.SetOutputMirror(cmd.OutOrStdout())
			writer.AppendHeader(table.Row{"Time", "Role", "Message"})
			for _, message := range response.Messages {
				writer.AppendRow(table.Row{
					message.CreatedAt.Local().Format("15:04:05"),
					message.Role,
					text.WrapSoft(message.Content, 80),
				})
			}
			writer.SetStyle(table.StyleLight)
			writer.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Turn, "turn", "", "Only messages from this turn")
	cmd.Flags().IntVar(&cfg.Limit, "limit", 50, "Maximum number of messages")
	cmd.Flags().StringVar(&cfg.Before, "before", "", "Only messages before this RFC3339 timestamp")

	return cmd
}
