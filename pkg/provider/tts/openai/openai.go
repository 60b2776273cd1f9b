// Package openai provides a TTS provider backed by the OpenAI audio/speech
// endpoint. Output is requested as raw 24 kHz 16-bit mono PCM.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/carecompanion/pkg/audio"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
	"github.com/MrWong99/carecompanion/pkg/types"
)

// DefaultModel is the default OpenAI speech model.
const DefaultModel = "tts-1"

// pcmRate is fixed by the API for the "pcm" response format.
const pcmRate = 24000

// builtinVoices are the stock voices of the speech endpoint.
var builtinVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

type config struct {
	baseURL string
	timeout time.Duration
	retries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the SDK retries a failed request.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.retries = n
	}
}

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a Provider. If model is empty, DefaultModel is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{retries: 2}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.retries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// OutputFormat implements tts.Provider.
func (p *Provider) OutputFormat() audio.Format {
	return audio.Format{Encoding: audio.EncodingPCM, SampleRate: pcmRate}
}

// SynthesizeStream implements tts.Provider. The endpoint is not incremental,
// so each text fragment becomes one request whose body is streamed out in
// order. The first failed request ends the stream with its error.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (*tts.Stream, error) {
	if voice.ID == "" {
		return nil, fmt.Errorf("openai tts: voice.ID must not be empty")
	}

	stream := tts.NewStream(16)
	go func() { stream.Close(p.speakAll(ctx, text, voice, stream)) }()
	return stream, nil
}

func (p *Provider) speakAll(ctx context.Context, text <-chan string, voice types.VoiceProfile, stream *tts.Stream) error {
	for {
		select {
		case fragment, ok := <-text:
			if !ok {
				return nil
			}
			if strings.TrimSpace(fragment) == "" {
				continue
			}
			if err := p.speak(ctx, fragment, voice, stream); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Provider) speak(ctx context.Context, text string, voice types.VoiceProfile, stream *tts.Stream) error {
	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice.ID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if voice.SpeedFactor > 0 {
		params.Speed = param.NewOpt(voice.SpeedFactor)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai tts: speech: %w", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 8192)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !stream.Send(ctx, chunk) {
				return ctx.Err()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai tts: read audio: %w", err)
		}
	}
}

// ListVoices implements tts.Provider with the fixed stock voice list.
func (p *Provider) ListVoices(context.Context) ([]types.VoiceProfile, error) {
	voices := make([]types.VoiceProfile, 0, len(builtinVoices))
	for _, v := range builtinVoices {
		voices = append(voices, types.VoiceProfile{
			ID:       v,
			Name:     strings.ToUpper(v[:1]) + v[1:],
			Provider: "openai",
		})
	}
	return voices, nil
}

// CloneVoice implements tts.Provider. The speech API cannot train voices.
func (p *Provider) CloneVoice(context.Context, tts.CloneRequest) (*types.VoiceProfile, error) {
	return nil, tts.ErrCloneUnsupported
}

var _ tts.Provider = (*Provider)(nil)
