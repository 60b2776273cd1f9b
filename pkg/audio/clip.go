package audio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrEmpty is returned by NewClip when the provider produced no audio.
var ErrEmpty = errors.New("audio: empty clip")

// Clip is a playable reply: a WAV or MP3 container plus its measured length.
type Clip struct {
	// MIMEType is "audio/wav" or "audio/mpeg".
	MIMEType string

	// Data is the container bytes.
	Data []byte

	// Duration is the playback length.
	Duration time.Duration
}

// NewClip packages raw provider output of the given format. PCM is wrapped in
// a 16-bit mono WAV container; MP3 is decoded once to measure its length.
func NewClip(f Format, raw []byte) (Clip, error) {
	if len(raw) == 0 {
		return Clip{}, ErrEmpty
	}
	switch f.Encoding {
	case EncodingPCM:
		return pcmClip(raw, f.SampleRate)
	case EncodingMP3:
		return mp3Clip(raw)
	default:
		return Clip{}, fmt.Errorf("audio: unsupported encoding %q", f.Encoding)
	}
}

// Seconds returns the duration in seconds.
func (c Clip) Seconds() float64 { return c.Duration.Seconds() }

// DataURL returns the clip as a base64 data URL.
func (c Clip) DataURL() string {
	if len(c.Data) == 0 {
		return ""
	}
	return "data:" + c.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

func pcmClip(raw []byte, rate int) (Clip, error) {
	if rate <= 0 {
		return Clip{}, fmt.Errorf("audio: pcm sample rate %d", rate)
	}
	// A trailing odd byte is half a sample.
	n := len(raw) / 2
	if n == 0 {
		return Clip{}, ErrEmpty
	}
	samples := make([]int, n)
	for i := range n {
		samples[i] = int(int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8))
	}

	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return Clip{}, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Clip{}, fmt.Errorf("audio: finalize wav: %w", err)
	}

	return Clip{
		MIMEType: "audio/wav",
		Data:     ws.buf,
		Duration: time.Duration(n) * time.Second / time.Duration(rate),
	}, nil
}

func mp3Clip(raw []byte) (Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return Clip{}, fmt.Errorf("audio: decode mp3: %w", err)
	}
	rate := dec.SampleRate()
	length := dec.Length()
	if rate <= 0 || length <= 0 {
		return Clip{}, fmt.Errorf("audio: mp3 has no measurable length")
	}
	// The decoder always yields 16-bit stereo.
	frames := length / 4
	return Clip{
		MIMEType: "audio/mpeg",
		Data:     raw,
		Duration: time.Duration(frames) * time.Second / time.Duration(rate),
	}, nil
}

// memWriteSeeker is an in-memory io.WriteSeeker for the WAV encoder, which
// patches chunk sizes in the header after the samples are written.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:end]
		}
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
