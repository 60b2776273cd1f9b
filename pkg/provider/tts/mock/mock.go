// Package mock provides a test double for the tts.Provider interface.
//
//	p := &mock.Provider{
//	    Format:           audio.Format{Encoding: audio.EncodingPCM, SampleRate: 16000},
//	    SynthesizeChunks: [][]byte{make([]byte, 3200)},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/carecompanion/pkg/audio"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
	"github.com/MrWong99/carecompanion/pkg/types"
)

// SynthesizeCall records one SynthesizeStream invocation with the text it
// consumed.
type SynthesizeCall struct {
	Voice types.VoiceProfile
	Text  []string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Format is returned by OutputFormat. The zero value reports 16 kHz PCM.
	Format audio.Format

	// SynthesizeChunks are emitted by SynthesizeStream once the text channel
	// is drained.
	SynthesizeChunks [][]byte

	// SynthesizeErr, if non-nil, is returned by SynthesizeStream.
	SynthesizeErr error

	// StreamErr, if non-nil, ends every stream after SynthesizeChunks as if
	// the backend had failed mid-utterance.
	StreamErr error

	// ListVoicesResult and ListVoicesErr are returned by ListVoices.
	ListVoicesResult []types.VoiceProfile
	ListVoicesErr    error

	// CloneVoiceResult and CloneVoiceErr are returned by CloneVoice.
	CloneVoiceResult *types.VoiceProfile
	CloneVoiceErr    error

	synthCalls []SynthesizeCall
	cloneCalls []tts.CloneRequest
}

// OutputFormat implements tts.Provider.
func (p *Provider) OutputFormat() audio.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Format == (audio.Format{}) {
		return audio.Format{Encoding: audio.EncodingPCM, SampleRate: 16000}
	}
	return p.Format
}

// SynthesizeStream drains text, records it, then emits SynthesizeChunks and
// ends the stream with StreamErr.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (*tts.Stream, error) {
	p.mu.Lock()
	if p.SynthesizeErr != nil {
		err := p.SynthesizeErr
		p.synthCalls = append(p.synthCalls, SynthesizeCall{Voice: voice})
		p.mu.Unlock()
		return nil, err
	}
	chunks := append([][]byte(nil), p.SynthesizeChunks...)
	streamErr := p.StreamErr
	idx := len(p.synthCalls)
	p.synthCalls = append(p.synthCalls, SynthesizeCall{Voice: voice})
	p.mu.Unlock()

	stream := tts.NewStream(len(chunks))
	go func() {
		var got []string
		for t := range text {
			got = append(got, t)
		}
		p.mu.Lock()
		p.synthCalls[idx].Text = got
		p.mu.Unlock()

		for _, c := range chunks {
			if !stream.Send(ctx, c) {
				stream.Close(ctx.Err())
				return
			}
		}
		stream.Close(streamErr)
	}()
	return stream, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(context.Context) ([]types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ListVoicesResult, p.ListVoicesErr
}

// CloneVoice records req and returns CloneVoiceResult, CloneVoiceErr.
func (p *Provider) CloneVoice(_ context.Context, req tts.CloneRequest) (*types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cloneCalls = append(p.cloneCalls, req)
	return p.CloneVoiceResult, p.CloneVoiceErr
}

// SynthesizeCalls returns a copy of the recorded synthesis calls.
func (p *Provider) SynthesizeCalls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SynthesizeCall(nil), p.synthCalls...)
}

// CloneCalls returns a copy of the recorded clone requests.
func (p *Provider) CloneCalls() []tts.CloneRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tts.CloneRequest(nil), p.cloneCalls...)
}

var _ tts.Provider = (*Provider)(nil)
