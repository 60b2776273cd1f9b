package cue

import "math"

// Cues is the full presentation bundle for one reply.
type Cues struct {
	Lipsync          LipsyncResult `json:"lipsync"`
	FacialExpression Expression    `json:"facialExpression"`
	Animation        Animation     `json:"animation"`

	// Duration is the speech length in seconds the cues were timed against.
	Duration float64 `json:"duration"`
}

// Deriver bundles the cue operations behind a single random source. The zero
// value is ready to use.
type Deriver struct {
	// Rand drives the neutral animation pick. Nil uses math/rand/v2.
	Rand Rand
}

// Derive produces the presentation bundle for text. duration is the measured
// audio length in seconds; pass 0 when no audio was synthesised and the
// length is estimated from the word count instead.
func (d Deriver) Derive(text string, duration float64) Cues {
	if !(duration > 0) || math.IsInf(duration, 1) {
		duration = EstimateDuration(text)
	}
	return Cues{
		Lipsync:          DeriveMouthCues(text, duration),
		FacialExpression: SelectFacialExpression(text),
		Animation:        SelectAnimation(text, d.Rand),
		Duration:         duration,
	}
}
