package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/carecompanion/internal/api"
	"github.com/MrWong99/carecompanion/internal/clientstate"
)

func (c *cli) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message...]",
		Short: "Talk to your companion",
		Long: `Starts an interactive conversation. When a message is given on the
command line it is sent once and the reply printed.

In the interactive loop, "/new" starts a fresh conversation and "/quit"
(or Ctrl+D) exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := c.client.State().Snapshot()
			if snap.Profile == nil || !snap.Onboarded {
				return errors.New(`no companion yet, run "carechat onboard" first`)
			}
			name := snap.Profile.Role.Label()
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				return c.say(cmd, name, strings.Join(args, " "))
			}

			fmt.Fprintf(out, "Chatting with your %s. Type /quit to leave, /new for a fresh conversation.\n", name)
			p := newPrompter(cmd)
			for {
				text, err := p.line("you> ")
				if errors.Is(err, io.EOF) {
					fmt.Fprintln(out)
					return nil
				}
				if err != nil {
					return err
				}
				switch text {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/new":
					c.client.State().ResetConversation()
					if err := c.client.State().Save(); err != nil {
						return err
					}
					fmt.Fprintln(out, "Started a new conversation.")
					continue
				}
				if err := c.say(cmd, name, text); err != nil {
					// Keep the loop alive on server errors.
					fmt.Fprintf(out, "error: %v\n", err)
				}
			}
		},
	}
}

// say sends text and prints the reply with its avatar cues.
func (c *cli) say(cmd *cobra.Command, name, text string) error {
	reply, err := c.client.Send(cmd.Context(), text)
	if err != nil {
		return err
	}
	printReply(cmd.OutOrStdout(), name, reply)
	return nil
}

func printReply(w io.Writer, name string, m *api.ChatMessage) {
	fmt.Fprintf(w, "%s> %s\n", strings.ToLower(name), m.Content)
	fmt.Fprintf(w, "  [%s | %s | %.1fs", m.FacialExpression, m.Animation, m.Duration)
	if m.AudioURL != "" {
		fmt.Fprint(w, " | audio")
	}
	fmt.Fprintln(w, "]")
}

func (c *cli) sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List your past conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := c.client.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No conversations yet.")
				return nil
			}
			active := c.client.State().Snapshot().SessionID
			for _, s := range sessions {
				marker := " "
				if s.ID == active {
					marker = "*"
				}
				preview := "(empty)"
				if len(s.Messages) > 0 {
					preview = truncate(s.Messages[len(s.Messages)-1].Content, 60)
				}
				fmt.Fprintf(out, "%s %s  %s  %s\n", marker, s.ID, s.UpdatedAt.Local().Format(time.DateTime), preview)
			}
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the server connection and your saved state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			server := "reachable"
			if err := c.client.Ping(cmd.Context()); err != nil {
				server = "unreachable (" + err.Error() + ")"
			}
			fmt.Fprintf(out, "Server:     %s %s\n", c.server, server)
			fmt.Fprintf(out, "State file: %s\n", c.client.State().Path())

			s := c.client.State().Snapshot()
			if s.Profile == nil {
				fmt.Fprintln(out, "Profile:    (none)")
				return nil
			}
			p := s.Profile
			fmt.Fprintf(out, "Profile:    %s (%s)\n", p.ID, onboardedLabel(s))
			fmt.Fprintf(out, "Companion:  %s, %s\n", p.Role.Label(), p.Modulation.Label())
			fmt.Fprintf(out, "Language:   %s\n", p.Language.Label())
			focus := p.Focus.Label()
			if p.CustomTopic != "" {
				focus += ": " + p.CustomTopic
			}
			fmt.Fprintf(out, "Focus:      %s\n", focus)
			if s.SessionID != "" {
				fmt.Fprintf(out, "Session:    %s (%d messages)\n", s.SessionID, len(s.Messages))
			} else {
				fmt.Fprintln(out, "Session:    (none)")
			}
			return nil
		},
	}
}

func onboardedLabel(s clientstate.State) string {
	if s.Onboarded {
		return "onboarded"
	}
	return "onboarding incomplete"
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget your profile and conversation on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.client.State().Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
