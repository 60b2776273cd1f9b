// Package audio turns raw TTS output into self-describing clips the browser
// can play directly, and measures their length so lip-sync cues can be timed
// against real audio.
package audio

import (
	"fmt"
	"strconv"
	"strings"
)

// Encoding is the byte layout a TTS provider returns.
type Encoding string

const (
	// EncodingPCM is headerless little-endian 16-bit mono PCM.
	EncodingPCM Encoding = "pcm"

	// EncodingMP3 is an MPEG-1/2 Layer III stream.
	EncodingMP3 Encoding = "mp3"
)

// DefaultPCMRate is assumed for a bare "pcm" format name.
const DefaultPCMRate = 24000

// Format describes provider output.
type Format struct {
	Encoding Encoding

	// SampleRate in Hz. Zero for MP3 means "read it from the stream".
	SampleRate int
}

// ParseFormat reads provider format names such as "pcm_16000",
// "mp3_44100_128", "pcm" and "mp3".
func ParseFormat(name string) (Format, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(name)), "_")
	var f Format
	switch parts[0] {
	case "pcm":
		f = Format{Encoding: EncodingPCM, SampleRate: DefaultPCMRate}
	case "mp3":
		f = Format{Encoding: EncodingMP3}
	default:
		return Format{}, fmt.Errorf("audio: unsupported format %q", name)
	}
	if len(parts) > 1 {
		rate, err := strconv.Atoi(parts[1])
		if err != nil || rate <= 0 {
			return Format{}, fmt.Errorf("audio: bad sample rate in format %q", name)
		}
		f.SampleRate = rate
	}
	return f, nil
}

// String returns the provider-style name, e.g. "pcm_16000".
func (f Format) String() string {
	if f.SampleRate == 0 {
		return string(f.Encoding)
	}
	return fmt.Sprintf("%s_%d", f.Encoding, f.SampleRate)
}
