package main

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/carecompanion/internal/config"
	"github.com/MrWong99/carecompanion/pkg/provider/llm"
	"github.com/MrWong99/carecompanion/pkg/provider/llm/anyllm"
	llmmock "github.com/MrWong99/carecompanion/pkg/provider/llm/mock"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
	"github.com/MrWong99/carecompanion/pkg/provider/tts/elevenlabs"
	ttsmock "github.com/MrWong99/carecompanion/pkg/provider/tts/mock"
)

func testRegistry() *config.Registry {
	reg := config.NewRegistry()
	reg.RegisterLLM("gemini", func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	reg.RegisterTTS("elevenlabs", func(config.ProviderEntry) (tts.Provider, error) { return &ttsmock.Provider{}, nil })
	reg.RegisterTTS("broken", func(config.ProviderEntry) (tts.Provider, error) { return nil, errors.New("no key") })
	return reg
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		llm, tts  string
		wantErr   bool
		wantTTS   bool
		wantVoice string
	}{
		{name: "llm and tts", llm: "gemini", tts: "elevenlabs", wantTTS: true, wantVoice: elevenlabs.DefaultVoiceID},
		{name: "text only", llm: "gemini"},
		{name: "unknown tts is skipped", llm: "gemini", tts: "coqui"},
		{name: "tts factory error", llm: "gemini", tts: "broken", wantErr: true},
		{name: "unknown llm", llm: "nope", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{Providers: config.ProvidersConfig{
				LLM: config.ProviderEntry{Name: tc.llm},
				TTS: config.ProviderEntry{Name: tc.tts},
			}}
			ps, err := buildProviders(cfg, testRegistry())
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildProviders: %v", err)
			}
			if ps.LLM == nil {
				t.Error("LLM not set")
			}
			if (ps.TTS != nil) != tc.wantTTS {
				t.Errorf("TTS set = %v, want %v", ps.TTS != nil, tc.wantTTS)
			}
			if ps.DefaultVoice != tc.wantVoice {
				t.Errorf("DefaultVoice = %q, want %q", ps.DefaultVoice, tc.wantVoice)
			}
		})
	}
}

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	if got, want := reg.Names("llm"), anyllm.Backends(); !slices.Equal(got, want) {
		t.Errorf("llm providers = %v, want %v", got, want)
	}
	for _, name := range config.ValidProviderNames["tts"] {
		if _, ok := defaultVoices[name]; !ok {
			t.Errorf("tts provider %q has no default voice", name)
		}
	}
}

func TestOptString(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"format": "mp3", "retries": 3}
	if got := optString(opts, "format"); got != "mp3" {
		t.Errorf("format = %q", got)
	}
	if got := optString(opts, "retries"); got != "" {
		t.Errorf("non-string value = %q, want empty", got)
	}
	if got := optString(nil, "format"); got != "" {
		t.Errorf("nil map = %q, want empty", got)
	}
}
