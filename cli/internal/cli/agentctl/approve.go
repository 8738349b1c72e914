package agentctl

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentcore-dev/agentcore/go/api"
)

// ApproveConfig holds configuration for the approve command
type ApproveConfig struct {
	Reject    bool
	DecidedBy string
}

// NewApproveCmd creates the approve command
func NewApproveCmd() *cobra.Command {
	cfg := &ApproveConfig{}

	cmd := &cobra.Command{
		Use:   "approve [approval-id]",
		Short: "Decide a pending approval request",
		Long: `Approve or reject an action the agent parked for human confirmation.
The turn resumes from the recorded request; approving runs the action,
rejecting feeds the refusal back to the agent.

Examples:
  agentctl approve 7f3a... --by ops@example.com
  agentctl approve 7f3a... --reject --by ops@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := apiClient().DecideApproval(cmd.Context(), args[0], api.ApprovalDecisionRequest{
				Approved:  !cfg.Reject,
				DecidedBy: cfg.DecidedBy,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cfg.Reject {
				fmt.Fprintln(out, color.YellowString("Rejected; the agent has been told."))
			} else {
				fmt.Fprintln(out, color.GreenString("Approved."))
			}
			fmt.Fprintf(out, "Outcome: %s\n", response.Outcome)
			if response.ErrorCode != "" {
				fmt.Fprintln(out, color.RedString("%s: %s", response.ErrorCode, response.ErrorDetail))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cfg.Reject, "reject", false, "Reject instead of approve")
	cmd.Flags().StringVar(&cfg.DecidedBy, "by", "", "Identity recorded as the decider (required)")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}

// NewFailCmd creates the fail command
func NewFailCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "fail [session-id]",
		Short: "Force-fail a session's in-flight turn",
		Long: `Administratively fail whatever turn the session has in flight,
returning it to a state that accepts new messages. Use when a turn is
stuck waiting on an action that will never complete.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient().FailTurn(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("Turn failed; the session accepts new messages."))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the failed turn")

	return cmd
}
