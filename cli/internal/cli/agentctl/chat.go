package agentctl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/agentcore-dev/agentcore/go/api"
	"github.com/agentcore-dev/agentcore/go/pkg/client"
)

// NewChatCmd creates the interactive chat command
func NewChatCmd() *cobra.Command {
	var user string
	var agent string

	cmd := &cobra.Command{
		Use:   "chat [session-id]",
		Short: "Chat interactively with an agent",
		Long: `Open an interactive shell against a session. With no session id a new
session is created for --user.

Inside the shell, plain input is sent as a message; 'history' prints
the conversation so far.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rest := apiClient()

			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			} else {
				if user == "" {
					return fmt.Errorf("either a session id or --user is required")
				}
				created, err := rest.CreateSession(cmd.Context(), apiCreateRequest(user, agent))
				if err != nil {
					return err
				}
				sessionID = created.SessionID
				fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Session %s", sessionID))
				if created.WelcomeMessage != "" {
					fmt.Fprintln(cmd.OutOrStdout(), created.WelcomeMessage)
				}
			}

			runShell(cmd.Context(), rest, sessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User to create a session for when no session id is given")
	cmd.Flags().StringVar(&agent, "agent", "", "Agent for the new session")

	return cmd
}

func apiCreateRequest(user, agent string) api.CreateSessionRequest {
	return api.CreateSessionRequest{UserID: user, AgentName: agent}
}

func runShell(ctx context.Context, rest *client.Client, sessionID string) {
	shell := ishell.New()
	shell.Println("Type a message and press enter. Ctrl-D exits.")

	shell.AddCmd(&ishell.Cmd{
		Name: "history",
		Help: "print the conversation so far",
		Func: func(c *ishell.Context) {
			response, err := rest.GetHistory(ctx, sessionID, "", 50, time.Time{})
			if err != nil {
				c.Println(color.RedString("history failed: %v", err))
				return
			}
			for _, message := range response.Messages {
				c.Printf("%s %s: %s\n",
					message.CreatedAt.Local().Format("15:04"),
					message.Role,
					message.Content)
			}
		},
	})

	shell.NotFound(func(c *ishell.Context) {
		sendFromShell(ctx, rest, sessionID, c, c.Args)
	})

	shell.Run()
}

func sendFromShell(ctx context.Context, rest *client.Client, sessionID string, c *ishell.Context, words []string) {
	text := ""
	for i, word := range words {
		if i > 0 {
			text += " "
		}
		text += word
	}
	if text == "" {
		return
	}

	indicator := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr))
	indicator.Start()
	response, err := rest.SendMessage(ctx, sessionID, apiSendRequest(text))
	indicator.Stop()
	if err != nil {
		c.Println(color.RedString("send failed: %v", err))
		return
	}

	switch response.Outcome {
	case "COMPLETED":
		if response.Message != nil {
			c.Println(wordwrap.String(response.Message.Content, replyWidth))
		}
	case "AWAITING_CONFIRMATION":
		c.Println(color.YellowString("Waiting for approval; use 'agentctl approve' from another terminal."))
	case "QUEUED_ACTION", "QUEUED_FOLLOWUP":
		c.Println(color.CyanString("Still working; run 'history' in a moment."))
	case "FAILED":
		c.Println(color.RedString("Turn failed: %s %s", response.ErrorCode, response.ErrorDetail))
	}
}

func apiSendRequest(text string) api.SendMessageRequest {
	return api.SendMessageRequest{Text: text}
}
