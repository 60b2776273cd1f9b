// Command carechat is a terminal client for the carecompanion server.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MrWong99/carecompanion/internal/clientstate"
)

// cli carries the persistent flags and the state shared by all commands.
type cli struct {
	server    string
	statePath string

	client *clientstate.Client
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "carechat",
		Short: "Chat with your CareCompanion from the terminal",
		Long: `carechat talks to a running carecompanion server.

Run "carechat onboard" once to pick your companion, then "carechat chat".
Your profile and current conversation are remembered in the state file.

Environment Variables:
  CARECOMPANION_SERVER - server URL (overridden by --server)`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open()
		},
	}

	root.PersistentFlags().StringVar(&c.server, "server", envOr("CARECOMPANION_SERVER", "http://localhost:3000"), "carecompanion server URL")
	root.PersistentFlags().StringVar(&c.statePath, "state", defaultStatePath(), "path of the client state file")

	root.AddCommand(
		c.onboardCmd(),
		c.chatCmd(),
		c.settingsCmd(),
		c.sessionsCmd(),
		c.statusCmd(),
		c.logoutCmd(),
	)
	return root
}

// open loads the state file and builds the API client.
func (c *cli) open() error {
	state, err := clientstate.Load(c.statePath)
	if err != nil {
		return err
	}
	c.client = clientstate.NewClient(c.server, state)
	return nil
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "carechat-state.yaml"
	}
	return filepath.Join(dir, "carecompanion", "state.yaml")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
