package agentctl

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/agentcore-dev/agentcore/go/api"
)

const replyWidth = 100

// SendConfig holds configuration for the send command
type SendConfig struct {
	ExternalID string
	RecordID   string
	RecordData string
}

// NewSendCmd creates the send command
func NewSendCmd() *cobra.Command {
	cfg := &SendConfig{}

	cmd := &cobra.Command{
		Use:   "send [session-id] [text]",
		Short: "Send a message and wait for the turn outcome",
		Long: `Send one user message into a session. The command blocks until the
orchestrator reports the turn outcome.

Examples:
  agentctl send 0b2e... "What is the status of case 42?"
  agentctl send 0b2e... "Close it" --record case-42`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := api.SendMessageRequest{
				Text:       args[1],
				ExternalID: cfg.ExternalID,
				RecordID:   cfg.RecordID,
			}
			if cfg.RecordData != "" {
				if !json.Valid([]byte(cfg.RecordData)) {
					return fmt.Errorf("--record-data must be valid JSON")
				}
				request.RecordData = json.RawMessage(cfg.RecordData)
			}

			indicator := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
				spinner.WithWriter(os.Stderr))
			indicator.Suffix = " waiting for the agent..."
			indicator.Start()
			response, err := apiClient().SendMessage(cmd.Context(), args[0], request)
			indicator.Stop()
			if err != nil {
				return err
			}

			printOutcome(cmd, response)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.ExternalID, "external-id", "", "Idempotency key for the message (defaults to the turn id)")
	cmd.Flags().StringVar(&cfg.RecordID, "record", "", "Record the user is looking at")
	cmd.Flags().StringVar(&cfg.RecordData, "record-data", "", "JSON snapshot of the record")

	return cmd
}

func printOutcome(cmd *cobra.Command, response *api.SendMessageResponse) {
	out := cmd.OutOrStdout()
	switch response.Outcome {
	case "COMPLETED":
		if response.Message != nil {
			fmt.Fprintln(out, wordwrap.String(response.Message.Content, replyWidth))
		}
	case "AWAITING_CONFIRMATION":
		fmt.Fprintln(out, color.YellowString("The agent is waiting for approval before acting."))
		if response.Message != nil && response.Message.Content != "" {
			fmt.Fprintln(out, wordwrap.String(response.Message.Content, replyWidth))
		}
	case "QUEUED_ACTION", "QUEUED_FOLLOWUP":
		fmt.Fprintln(out, color.CyanString("The agent is still working; check back with 'agentctl history'."))
	case "FAILED":
		fmt.Fprintln(out, color.RedString("Turn failed: %s", response.ErrorCode))
		if response.ErrorDetail != "" {
			fmt.Fprintln(out, wordwrap.String(response.ErrorDetail, replyWidth))
		}
	default:
		fmt.Fprintf(out, "Outcome: %s\n", response.Outcome)
	}
}
