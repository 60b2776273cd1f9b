package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MrWong99/carecompanion/internal/persona"
)

// prompter reads answers line by line from the command's input.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}

// line prints label and returns the trimmed next line. io.EOF is returned
// when input ends.
func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// choose lists opts and asks until the user picks one by number or value.
// An empty answer keeps current when it is set.
func (p *prompter) choose(step, title string, opts []persona.Option, current string) (string, error) {
	fmt.Fprintf(p.out, "\n%s %s\n", step, title)
	for i, o := range opts {
		marker := " "
		if o.Value == current {
			marker = "*"
		}
		if o.Description != "" {
			fmt.Fprintf(p.out, " %s %d) %s - %s\n", marker, i+1, o.Label, o.Description)
		} else {
			fmt.Fprintf(p.out, " %s %d) %s\n", marker, i+1, o.Label)
		}
	}
	for {
		ans, err := p.line("> ")
		if err != nil {
			return "", err
		}
		if ans == "" && current != "" {
			return current, nil
		}
		if n, err := strconv.Atoi(ans); err == nil && n >= 1 && n <= len(opts) {
			return opts[n-1].Value, nil
		}
		for _, o := range opts {
			if strings.EqualFold(ans, o.Value) || strings.EqualFold(ans, o.Label) {
				return o.Value, nil
			}
		}
		fmt.Fprintf(p.out, "please enter a number between 1 and %d\n", len(opts))
	}
}

// runWizard walks through the four onboarding steps. Values in current are
// offered as defaults.
func runWizard(p *prompter, current persona.Profile) (persona.Profile, error) {
	cat := persona.Options()
	var out persona.Profile

	v, err := p.choose("[1/4]", "Choose your companion", cat.Roles, string(current.Role))
	if err != nil {
		return out, err
	}
	out.Role = persona.Role(v)

	if v, err = p.choose("[2/4]", "How should they talk to you?", cat.Modulations, string(current.Modulation)); err != nil {
		return out, err
	}
	out.Modulation = persona.Modulation(v)

	if v, err = p.choose("[3/4]", "Preferred language", cat.Languages, string(current.Language)); err != nil {
		return out, err
	}
	out.Language = persona.Language(v)

	if v, err = p.choose("[4/4]", "What would you like help with?", cat.Focuses, string(current.Focus)); err != nil {
		return out, err
	}
	out.Focus = persona.Focus(v)

	if out.Focus == persona.FocusCustom {
		for out.CustomTopic == "" {
			label := "Describe your topic: "
			if current.CustomTopic != "" {
				label = fmt.Sprintf("Describe your topic [%s]: ", current.CustomTopic)
			}
			topic, err := p.line(label)
			if err != nil {
				return out, err
			}
			if topic == "" {
				topic = current.CustomTopic
			}
			out.CustomTopic = topic
		}
	}
	return out, nil
}

func (c *cli) onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Pick your companion, speaking style, language and health focus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Welcome to CareCompanion! Let's set up your companion.")

			state := c.client.State()
			var current persona.Profile
			if p := state.Snapshot().Profile; p != nil {
				current = p.Profile
			}

			profile, err := runWizard(newPrompter(cmd), current)
			if errors.Is(err, io.EOF) {
				return errors.New("onboarding cancelled")
			}
			if err != nil {
				return err
			}

			if state.Snapshot().Profile == nil {
				_, err = c.client.CreateProfile(cmd.Context(), profile)
			} else {
				_, err = c.client.UpdateProfile(cmd.Context(), profile)
			}
			if err != nil {
				return err
			}

			state.CompleteOnboarding()
			if err := state.Save(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nAll set! Your %s is ready. Run \"carechat chat\" to start talking.\n", profile.Role.Label())
			return nil
		},
	}
}

func (c *cli) settingsCmd() *cobra.Command {
	var (
		role, modulation, language, focus, topic string
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Change your companion settings",
		Long: `Update the companion profile. With no flags an interactive wizard is
shown with your current choices preselected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur := c.client.State().Snapshot().Profile
			if cur == nil {
				return errors.New(`no profile yet, run "carechat onboard" first`)
			}

			next := cur.Profile
			if onlyPersistent(cmd) {
				var err error
				if next, err = runWizard(newPrompter(cmd), cur.Profile); err != nil {
					return err
				}
			} else {
				if role != "" {
					next.Role = persona.Role(role)
				}
				if modulation != "" {
					next.Modulation = persona.Modulation(modulation)
				}
				if language != "" {
					next.Language = persona.Language(language)
				}
				if focus != "" {
					next.Focus = persona.Focus(focus)
				}
				if topic != "" {
					next.CustomTopic = topic
				}
			}

			u, err := c.client.UpdateProfile(cmd.Context(), next)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings saved: %s, %s, %s, %s\n",
				u.Role.Label(), u.Modulation.Label(), u.Language.Label(), u.Focus.Label())
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "companion role")
	cmd.Flags().StringVar(&modulation, "style", "", "speaking style")
	cmd.Flags().StringVar(&language, "language", "", "reply language code")
	cmd.Flags().StringVar(&focus, "focus", "", "health focus")
	cmd.Flags().StringVar(&topic, "topic", "", "custom topic, used with --focus custom")
	return cmd
}

// onlyPersistent reports whether no command-specific flag was given.
func onlyPersistent(cmd *cobra.Command) bool {
	local := 0
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			local++
		}
	})
	return local == 0
}
