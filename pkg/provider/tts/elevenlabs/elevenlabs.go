// Package elevenlabs provides an ElevenLabs-backed TTS provider. Synthesis runs
// over the stream-input WebSocket API; the voice catalogue and voice cloning
// use the REST API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/carecompanion/internal/observe"
	"github.com/MrWong99/carecompanion/pkg/audio"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
	"github.com/MrWong99/carecompanion/pkg/types"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io"
	defaultModel     = "eleven_turbo_v2"
	defaultOutputFmt = "mp3_44100_128"

	// DefaultVoiceID is the stock "Rachel" voice.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the output format name (e.g. "pcm_16000", "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithBaseURL points the provider at a different API host. The WebSocket
// endpoint is derived from it.
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient sets the client used for REST calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider backed by the ElevenLabs API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	format       audio.Format
	baseURL      string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty and the
// output format must be one audio.ParseFormat understands.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	f, err := audio.ParseFormat(p.outputFormat)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}
	p.format = f
	return p, nil
}

// OutputFormat implements tts.Provider.
func (p *Provider) OutputFormat() audio.Format { return p.format }

// ---- WebSocket message types ----

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// textMessage carries one text fragment. {"text":""} ends the input.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
}

type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// SynthesizeStream opens the stream-input WebSocket for voice, pipes text
// fragments into it and emits decoded audio chunks.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (*tts.Stream, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(voice.ID), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	conn.SetReadLimit(4 << 20)

	// The first message authenticates and must carry non-empty text.
	open := textMessage{Text: " ", VoiceSettings: settingsFor(voice), XiAPIKey: p.apiKey}
	if err := writeJSON(ctx, conn, open); err != nil {
		conn.Close(websocket.StatusInternalError, "open failed")
		return nil, fmt.Errorf("elevenlabs: send open message: %w", err)
	}

	stream := tts.NewStream(64)
	go p.run(ctx, conn, text, stream)
	return stream, nil
}

// errReaderStopped means the reader finished while text was still flowing.
var errReaderStopped = errors.New("elevenlabs: stream ended before all text was sent")

// run owns conn and stream. The reader goroutine is always joined before
// the stream is closed, so no send can race the close.
func (p *Provider) run(ctx context.Context, conn *websocket.Conn, text <-chan string, stream *tts.Stream) {
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	var readErr error
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		readErr = p.readAudio(readCtx, conn, stream)
	}()

	err := sendText(ctx, conn, text, readDone)
	if err != nil {
		cancelRead()
		_ = conn.CloseNow()
	}
	<-readDone

	switch {
	case errors.Is(err, errReaderStopped) && readErr != nil:
		err = readErr
	case err == nil:
		err = readErr
	}
	if err == nil {
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	} else {
		_ = conn.CloseNow()
	}
	stream.Close(err)
}

// sendText pipes fragments to the socket and, once text is closed, sends the
// end-of-input marker and waits for the reader to drain the final audio.
func sendText(ctx context.Context, conn *websocket.Conn, text <-chan string, readDone <-chan struct{}) error {
	for {
		select {
		case fragment, ok := <-text:
			if !ok {
				if err := writeJSON(ctx, conn, textMessage{Text: ""}); err != nil {
					return fmt.Errorf("elevenlabs: send end of input: %w", err)
				}
				select {
				case <-readDone:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if strings.TrimSpace(fragment) == "" {
				continue
			}
			// Trailing space lets the backend treat fragments as separate words.
			if err := writeJSON(ctx, conn, textMessage{Text: fragment + " "}); err != nil {
				return fmt.Errorf("elevenlabs: send text: %w", err)
			}
		case <-readDone:
			return errReaderStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readAudio forwards decoded audio until the backend marks the output final.
// Anything else that ends the read is an error.
func (p *Provider) readAudio(ctx context.Context, conn *websocket.Conn, stream *tts.Stream) error {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			observe.Logger(ctx).Debug("elevenlabs: skipping malformed frame", "err", err)
			continue
		}
		if resp.Error != "" {
			observe.Logger(ctx).Warn("elevenlabs: stream error", "error", resp.Error, "message", resp.Message)
			return fmt.Errorf("%w: %s: %s", tts.ErrStreamAborted, resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			if !stream.Send(ctx, chunk) {
				return ctx.Err()
			}
		}
		if resp.IsFinal {
			return nil
		}
	}
}

func settingsFor(voice types.VoiceProfile) *voiceSettings {
	return &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75, Speed: voice.SpeedFactor}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// streamURL builds the stream-input WebSocket URL for voiceID.
func (p *Provider) streamURL(voiceID string) string {
	wsBase := p.baseURL
	switch {
	case strings.HasPrefix(wsBase, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	case strings.HasPrefix(wsBase, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", wsBase, url.PathEscape(voiceID), q.Encode())
}

// ---- REST ----

type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

func (v elevenLabsVoice) profile() types.VoiceProfile {
	meta := make(map[string]string, len(v.Labels)+1)
	for k, val := range v.Labels {
		meta[k] = val
	}
	if v.Category != "" {
		meta["category"] = v.Category
	}
	return types.VoiceProfile{ID: v.VoiceID, Name: v.Name, Provider: "elevenlabs", Metadata: meta}
}

// ListVoices returns all voices available to the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	profiles, err := parseVoicesResponse(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return profiles, nil
}

// CloneVoice uploads req.Samples to POST /v1/voices/add and returns the new voice.
func (p *Provider) CloneVoice(ctx context.Context, req tts.CloneRequest) (*types.VoiceProfile, error) {
	if req.Name == "" {
		return nil, errors.New("elevenlabs: clone voice: name must not be empty")
	}
	if len(req.Samples) == 0 {
		return nil, errors.New("elevenlabs: clone voice: at least one sample is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", req.Name)
	if req.Description != "" {
		_ = mw.WriteField("description", req.Description)
	}
	for i, s := range req.Samples {
		name := s.Filename
		if name == "" {
			name = fmt.Sprintf("sample-%d.mp3", i+1)
		}
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
		}
		if _, err := fw.Write(s.Data); err != nil {
			return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/voices/add", &buf)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := p.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
	}
	var out struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.VoiceID == "" {
		return nil, fmt.Errorf("elevenlabs: clone voice: response without voice_id")
	}
	return &types.VoiceProfile{
		ID:       out.VoiceID,
		Name:     req.Name,
		Provider: "elevenlabs",
		Metadata: map[string]string{"category": "cloned"},
	}, nil
}

// do sends an authenticated request and returns the body of a 2xx response.
func (p *Provider) do(req *http.Request) ([]byte, error) {
	req.Header.Set("xi-api-key", p.apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func parseVoicesResponse(data []byte) ([]types.VoiceProfile, error) {
	var vr voicesResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, err
	}
	profiles := make([]types.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		profiles = append(profiles, v.profile())
	}
	return profiles, nil
}

var _ tts.Provider = (*Provider)(nil)
