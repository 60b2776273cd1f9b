package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	oai "github.com/openai/openai-go"

	"github.com/MrWong99/carecompanion/pkg/audio"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
	"github.com/MrWong99/carecompanion/pkg/types"
)

type speechBody struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

func newSpeechServer(t *testing.T, pcm []byte, seen chan<- speechBody) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
			return
		}
		var body speechBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		seen <- body
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pcm)
	}))
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New("", ""); err == nil {
		t.Error("expected error for empty API key")
	}
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != DefaultModel {
		t.Errorf("model = %q, want %q", p.model, DefaultModel)
	}
	if got := p.OutputFormat(); got != (audio.Format{Encoding: audio.EncodingPCM, SampleRate: 24000}) {
		t.Errorf("OutputFormat() = %+v", got)
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	seen := make(chan speechBody, 4)
	srv := newSpeechServer(t, make([]byte, 4800), seen) // 100 ms at 24 kHz
	defer srv.Close()

	p, err := New("sk-test", "tts-1-hd", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clip, err := tts.Synthesize(ctx, p, "Take a short walk after lunch.", types.VoiceProfile{ID: "nova", SpeedFactor: 1.1})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.Duration != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", clip.Duration)
	}

	body := <-seen
	want := speechBody{Model: "tts-1-hd", Input: "Take a short walk after lunch.", Voice: "nova", ResponseFormat: "pcm", Speed: 1.1}
	if body != want {
		t.Errorf("request body = %+v, want %+v", body, want)
	}
}

func TestSynthesizeStream_OneRequestPerFragment(t *testing.T) {
	t.Parallel()

	seen := make(chan speechBody, 4)
	srv := newSpeechServer(t, []byte{1, 0, 2, 0}, seen)
	defer srv.Close()

	p, _ := New("sk-test", "", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	text := make(chan string, 3)
	text <- "One."
	text <- ""
	text <- "Two."
	close(text)

	stream, err := p.SynthesizeStream(context.Background(), text, types.VoiceProfile{ID: "alloy"})
	if err != nil {
		t.Fatal(err)
	}
	var total int
	for chunk := range stream.Audio() {
		total += len(chunk)
	}
	if total != 8 {
		t.Errorf("received %d bytes, want 8", total)
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
	close(seen)
	var inputs []string
	for b := range seen {
		inputs = append(inputs, b.Input)
	}
	if len(inputs) != 2 || inputs[0] != "One." || inputs[1] != "Two." {
		t.Errorf("inputs = %q, want [One. Two.]", inputs)
	}
}

func TestSynthesize_ErrorStatus(t *testing.T) {
	t.Parallel()

	seen := make(chan speechBody, 1)
	srv := newSpeechServer(t, nil, seen)
	defer srv.Close()

	p, _ := New("sk-wrong", "", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	_, err := tts.Synthesize(context.Background(), p, "hello", types.VoiceProfile{ID: "alloy"})
	var apiErr *oai.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("err = %v, want a 401 API error", err)
	}
}

func TestSynthesizeStream_LaterFragmentFails(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			http.Error(w, `{"error":{"message":"upstream overloaded"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(make([]byte, 4800))
	}))
	defer srv.Close()

	p, _ := New("sk-test", "", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	text := make(chan string, 3)
	text <- "Your sugar looks steady."
	text <- "Keep it up."
	text <- "See you tomorrow."
	close(text)

	stream, err := p.SynthesizeStream(context.Background(), text, types.VoiceProfile{ID: "alloy"})
	if err != nil {
		t.Fatal(err)
	}
	var total int
	for chunk := range stream.Audio() {
		total += len(chunk)
	}
	if total != 4800 {
		t.Errorf("received %d bytes, want the first fragment's 4800", total)
	}
	var apiErr *oai.Error
	if !errors.As(stream.Err(), &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Err() = %v, want the 500 from the second fragment", stream.Err())
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server saw %d requests, want 2", n)
	}
}

func TestListVoicesAndClone(t *testing.T) {
	t.Parallel()

	p, _ := New("sk-test", "")
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(voices) != len(builtinVoices) || voices[0].ID != "alloy" || voices[0].Name != "Alloy" {
		t.Errorf("voices = %+v", voices)
	}
	if _, err := p.CloneVoice(context.Background(), tts.CloneRequest{Name: "x"}); !errors.Is(err, tts.ErrCloneUnsupported) {
		t.Errorf("CloneVoice err = %v, want ErrCloneUnsupported", err)
	}
}
