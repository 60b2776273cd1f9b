// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (ElevenLabs, OpenAI, ...)
// behind a streaming interface: SynthesizeStream accepts a channel of text
// fragments and returns a [Stream] of audio bytes as they become available.
// Each provider also declares the byte layout it produces so callers can turn
// the stream into a playable clip.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/carecompanion/pkg/audio"
	"github.com/MrWong99/carecompanion/pkg/types"
)

// ErrCloneUnsupported is returned by providers that cannot train new voices.
var ErrCloneUnsupported = errors.New("tts: voice cloning not supported by this provider")

// ErrStreamAborted marks a synthesis the backend gave up on part way.
var ErrStreamAborted = errors.New("tts: stream aborted by provider")

// Stream is the audio side of one synthesis. The producing goroutine owns
// it: it calls Send for every chunk and Close exactly once when it is done.
// Consumers range over Audio and then check Err.
type Stream struct {
	audio chan []byte
	once  sync.Once
	err   error
}

// NewStream returns a stream whose audio channel holds up to buffer chunks.
func NewStream(buffer int) *Stream {
	return &Stream{audio: make(chan []byte, buffer)}
}

// Audio is closed after the producer calls Close.
func (s *Stream) Audio() <-chan []byte { return s.audio }

// Send delivers chunk. It reports false, without sending, once ctx is done.
func (s *Stream) Send(ctx context.Context, chunk []byte) bool {
	select {
	case s.audio <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream. A nil err means every text fragment was spoken.
// Only the first call has any effect.
func (s *Stream) Close(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.audio)
	})
}

// Err reports why the stream ended early, or nil. It is only meaningful
// once Audio has been closed.
func (s *Stream) Err() error { return s.err }

// Sample is one reference recording for voice cloning.
type Sample struct {
	// Filename is sent to the backend to infer the container format.
	Filename string
	Data     []byte
}

// CloneRequest describes a voice to create from recordings.
type CloneRequest struct {
	Name        string
	Description string
	Samples     []Sample
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments and returns a stream of audio
	// chunks in OutputFormat. The stream ends when all text has been
	// synthesised, the backend fails, or ctx is cancelled; [Stream.Err] tells
	// these apart. The returned error is non-nil only when the stream cannot
	// be started.
	SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (*Stream, error)

	// ListVoices returns the provider's current voice catalogue.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)

	// CloneVoice trains a new voice from req.Samples. It is expensive and must
	// not sit on the reply path. Empty samples are an error.
	CloneVoice(ctx context.Context, req CloneRequest) (*types.VoiceProfile, error)

	// OutputFormat reports the encoding of the chunks SynthesizeStream emits.
	OutputFormat() audio.Format
}

// Synthesize speaks a complete utterance and returns it as a playable clip.
func Synthesize(ctx context.Context, p Provider, text string, voice types.VoiceProfile) (audio.Clip, error) {
	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	stream, err := p.SynthesizeStream(ctx, textCh, voice)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("tts: synthesize: %w", err)
	}

	var raw []byte
	for chunk := range stream.Audio() {
		raw = append(raw, chunk...)
	}
	if err := stream.Err(); err != nil {
		return audio.Clip{}, fmt.Errorf("tts: synthesize: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return audio.Clip{}, fmt.Errorf("tts: synthesize: %w", err)
	}

	clip, err := audio.NewClip(p.OutputFormat(), raw)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("tts: synthesize: %w", err)
	}
	return clip, nil
}
