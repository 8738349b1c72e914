package agentctl

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentcore-dev/agentcore/go/api"
)

// SessionConfig holds configuration for the session create command
type SessionConfig struct {
	UserID   string
	Agent    string
	RecordID string
}

// NewSessionCmd creates the session command group
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversation sessions",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionListCmd())

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	cfg := &SessionConfig{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		Long: `Create a new conversation session for a user.

Examples:
  agentctl session create --user u-123
  agentctl session create --user u-123 --agent billing --record case-42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := apiClient().CreateSession(cmd.Context(), api.CreateSessionRequest{
				UserID:    cfg.UserID,
				AgentName: cfg.Agent,
				RecordID:  cfg.RecordID,
			})
			if err != nil {
				return err
			}

			title := cases.Title(language.English).String(response.AgentName)
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Session %s created (agent: %s)", response.SessionID, title))
			if response.WelcomeMessage != "" {
				fmt.Fprintln(cmd.OutOrStdout(), response.WelcomeMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.UserID, "user", "", "User the session belongs to (required)")
	cmd.Flags().StringVar(&cfg.Agent, "agent", "", "Agent to converse with (server default when omitted)")
	cmd.Flags().StringVar(&cfg.RecordID, "record", "", "Record the conversation starts on")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newSessionGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [session-id]",
		Short: "Show a session's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := apiClient().GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", session.ID)
			fmt.Fprintf(out, "User:     %s\n", session.UserID)
			fmt.Fprintf(out, "Agent:    %s\n", session.AgentName)
			fmt.Fprintf(out, "Status:   %s\n", colorStatus(session.Status))
			if session.TaskState != "" {
				fmt.Fprintf(out, "Task:     %s\n", session.TaskState)
			}
			if session.StepDescription != "" {
				fmt.Fprintf(out, "Step:     %s\n", session.StepDescription)
			}
			if session.LastError != "" {
				fmt.Fprintf(out, "Error:    %s\n", color.RedString(session.LastError))
			}
			fmt.Fprintf(out, "Activity: %s\n", session.LastActivityAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	return cmd
}

func newSessionListCmd() *cobra.Command {
	var user string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := apiClient().ListSessions(cmd.Context(), user, limit)
			if err != nil {
				return err
			}

			writer := table.NewWriter()
			writer.SetOutputMirror(cmd.OutOrStdout())
			writer.AppendHeader(table.Row{"Session", "User", "Agent", "Status", "Last activity"})
			for _, session := range response.Sessions {
				writer.AppendRow(table.Row{
					session.ID,
					session.UserID,
					session.AgentName,
					colorStatus(session.Status),
					session.LastActivityAt.Local().Format("2006-01-02 15:04"),
				})
			}
			writer.SetStyle(table.StyleLight)
			writer.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Only sessions for this user")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of sessions")

	return cmd
}

func colorStatus(status string) string {
	switch status {
	case "idle":
		return color.GreenString(status)
	case "failed":
		return color.RedString(status)
	case "awaiting_user_confirmation":
		return color.YellowString(status)
	default:
		return color.CyanString(status)
	}
}
