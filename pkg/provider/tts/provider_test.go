package tts_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/carecompanion/pkg/audio"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
	"github.com/MrWong99/carecompanion/pkg/provider/tts/mock"
	"github.com/MrWong99/carecompanion/pkg/types"
)

func TestStream_CloseOnce(t *testing.T) {
	t.Parallel()
	s := tts.NewStream(1)
	if !s.Send(context.Background(), []byte{1, 2}) {
		t.Fatal("Send on a live stream reported false")
	}
	first := errors.New("first")
	s.Close(first)
	s.Close(errors.New("second"))

	var n int
	for range s.Audio() {
		n++
	}
	if n != 1 {
		t.Errorf("got %d chunks, want 1", n)
	}
	if !errors.Is(s.Err(), first) {
		t.Errorf("Err() = %v, want the first close error", s.Err())
	}
}

func TestStream_SendAfterCancel(t *testing.T) {
	t.Parallel()
	s := tts.NewStream(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if s.Send(ctx, []byte{1}) {
		t.Error("Send with nobody reading and a cancelled ctx reported true")
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()
	pcm := audio.Format{Encoding: audio.EncodingPCM, SampleRate: 16000}
	aborted := fmt.Errorf("%w: quota_exceeded", tts.ErrStreamAborted)

	tests := []struct {
		name    string
		p       *mock.Provider
		wantErr error
		want    time.Duration
	}{
		{
			name:    "complete",
			p:       &mock.Provider{Format: pcm, SynthesizeChunks: [][]byte{make([]byte, 3200), make([]byte, 3200)}},
			want:    200 * time.Millisecond,
		},
		{
			name:    "aborted after partial audio",
			p:       &mock.Provider{Format: pcm, SynthesizeChunks: [][]byte{make([]byte, 3200)}, StreamErr: aborted},
			wantErr: tts.ErrStreamAborted,
		},
		{
			name:    "refused",
			p:       &mock.Provider{Format: pcm, SynthesizeErr: aborted},
			wantErr: tts.ErrStreamAborted,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			clip, err := tts.Synthesize(context.Background(), tc.p, "Take your tablets.", types.VoiceProfile{ID: "v"})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}
			if clip.Duration != tc.want {
				t.Errorf("clip lasts %v, want %v", clip.Duration, tc.want)
			}
			calls := tc.p.SynthesizeCalls()
			if len(calls) != 1 || len(calls[0].Text) != 1 || calls[0].Text[0] != "Take your tablets." {
				t.Errorf("calls = %+v", calls)
			}
		})
	}
}
