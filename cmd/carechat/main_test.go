package main

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/carecompanion/internal/api"
	"github.com/MrWong99/carecompanion/internal/chat"
	"github.com/MrWong99/carecompanion/internal/clientstate"
	"github.com/MrWong99/carecompanion/internal/health"
	"github.com/MrWong99/carecompanion/internal/observe"
	"github.com/MrWong99/carecompanion/internal/persona"
	"github.com/MrWong99/carecompanion/internal/store"
	"github.com/MrWong99/carecompanion/pkg/provider/llm"
	llmmock "github.com/MrWong99/carecompanion/pkg/provider/llm/mock"
)

type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

func startServer(t *testing.T) string {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	l := &llmmock.Provider{StreamChunks: []llm.Chunk{
		{Text: "Great job staying on track!", FinishReason: "stop"},
	}}
	svc := chat.New(store.NewMemStore(), l, chat.WithRand(firstRand{}), chat.WithMetrics(m))
	mux := http.NewServeMux()
	health.New().Register(mux)
	api.New(svc).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

// execute runs carechat with args and stdin, returning stdout.
func execute(t *testing.T, server, state, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--server", server, "--state", state}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_OnboardChatLogout(t *testing.T) {
	t.Parallel()
	server := startServer(t)
	state := filepath.Join(t.TempDir(), "state.yaml")

	// father, calm, English, custom focus with a topic.
	out, err := execute(t, server, state, "2\ncalm\n1\n6\nbetter sleep\n", "onboard")
	if err != nil {
		t.Fatalf("onboard: %v\n%s", err, out)
	}
	if !strings.Contains(out, "All set!") {
		t.Errorf("onboard output:\n%s", out)
	}

	m, err := clientstate.Load(state)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := m.Snapshot()
	if !s.Onboarded || s.Profile == nil {
		t.Fatalf("state after onboard = %+v", s)
	}
	want := persona.Profile{
		Role: persona.RoleFather, Modulation: persona.ModulationCalm,
		Language: persona.LanguageEnglish, Focus: persona.FocusCustom, CustomTopic: "better sleep",
	}
	if s.Profile.Profile != want {
		t.Errorf("profile = %+v, want %+v", s.Profile.Profile, want)
	}

	out, err = execute(t, server, state, "", "chat", "I", "walked", "today")
	if err != nil {
		t.Fatalf("chat: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Great job staying on track!") || !strings.Contains(out, "Rumba Dancing") {
		t.Errorf("chat output:\n%s", out)
	}

	out, err = execute(t, server, state, "", "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.HasPrefix(out, "*") || !strings.Contains(out, "Great job") {
		t.Errorf("sessions output:\n%s", out)
	}

	out, err = execute(t, server, state, "", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"reachable", "onboarded", "better sleep", "2 messages"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, server, state, "", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := os.Stat(state); !os.IsNotExist(err) {
		t.Errorf("state file not removed: %v", err)
	}
}

func TestCLI_ChatRequiresOnboarding(t *testing.T) {
	t.Parallel()
	server := startServer(t)
	state := filepath.Join(t.TempDir(), "state.yaml")

	if _, err := execute(t, server, state, "", "chat", "hi"); err == nil {
		t.Fatal("chat without onboarding succeeded")
	}
}

func TestCLI_InteractiveChat(t *testing.T) {
	t.Parallel()
	server := startServer(t)
	state := filepath.Join(t.TempDir(), "state.yaml")

	if out, err := execute(t, server, state, "1\n1\n1\n1\n", "onboard"); err != nil {
		t.Fatalf("onboard: %v\n%s", err, out)
	}

	out, err := execute(t, server, state, "hello\n\n/new\nagain\n/quit\n", "chat")
	if err != nil {
		t.Fatalf("chat: %v\n%s", err, out)
	}
	if got := strings.Count(out, "Great job staying on track!"); got != 2 {
		t.Errorf("got %d replies, want 2:\n%s", got, out)
	}
	if !strings.Contains(out, "Started a new conversation.") {
		t.Errorf("missing /new confirmation:\n%s", out)
	}

	out, err = execute(t, server, state, "", "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if lines := strings.Count(strings.TrimSpace(out), "\n") + 1; lines != 2 {
		t.Errorf("got %d sessions, want 2:\n%s", lines, out)
	}
}

func TestCLI_SettingsFlags(t *testing.T) {
	t.Parallel()
	server := startServer(t)
	state := filepath.Join(t.TempDir(), "state.yaml")

	if _, err := execute(t, server, state, "", "settings", "--role", "coach"); err == nil {
		t.Fatal("settings without a profile succeeded")
	}
	if out, err := execute(t, server, state, "1\n1\n1\n1\n", "onboard"); err != nil {
		t.Fatalf("onboard: %v\n%s", err, out)
	}

	out, err := execute(t, server, state, "", "settings", "--role", "coach", "--language", "ta")
	if err != nil {
		t.Fatalf("settings: %v\n%s", err, out)
	}
	m, _ := clientstate.Load(state)
	p := m.Snapshot().Profile
	if p.Role != persona.RoleCoach || p.Language != persona.LanguageTamil || p.Modulation != persona.ModulationSoftCaring {
		t.Errorf("profile after settings = %+v", p.Profile)
	}

	if _, err := execute(t, server, state, "", "settings", "--role", "pirate"); err == nil {
		t.Error("settings accepted an unknown role")
	}
}

func TestChoose_RetriesInvalidInput(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	p := &prompter{out: &out}
	p.in = bufio.NewScanner(strings.NewReader("9\nnope\nCALM\n"))

	v, err := p.choose("[2/4]", "style", persona.Options().Modulations, "")
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if v != string(persona.ModulationCalm) {
		t.Errorf("choose = %q, want calm", v)
	}
	if got := strings.Count(out.String(), "please enter a number"); got != 2 {
		t.Errorf("got %d retry prompts, want 2", got)
	}
}

func TestChoose_EmptyKeepsCurrent(t *testing.T) {
	t.Parallel()
	p := &prompter{out: &bytes.Buffer{}, in: bufio.NewScanner(strings.NewReader("\n"))}
	v, err := p.choose("[1/4]", "role", persona.Options().Roles, string(persona.RoleDoctor))
	if err != nil || v != string(persona.RoleDoctor) {
		t.Errorf("choose = %q, %v", v, err)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer preview line", 8, "a longe…"},
		{"नमस्ते दुनिया", 4, "नमस…"},
	}
	for _, tc := range tests {
		if got := truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
