// Package cue derives avatar presentation metadata from an assistant reply.
//
// Given the reply text (and, when a TTS backend measured it, the true audio
// duration) the package produces:
//
//   - a timed sequence of mouth shapes ([LipsyncResult]) that tiles the speech
//     duration with no gaps or overlaps,
//   - a facial expression tag ([Expression]), and
//   - an animation clip selector ([Animation]).
//
// Every function in this package is pure apart from the single random pick in
// [SelectAnimation], which goes through an injectable [Rand]. Nothing here
// performs I/O and every input, including the empty string, maps to a valid
// result. All functions are safe for concurrent use.
package cue

// Viseme is a mouth-shape code understood by the avatar renderer.
type Viseme string

// The closed viseme set. VisemeX is the rest position; the others are
// articulatory classes.
const (
	VisemeA Viseme = "A" // closed lips: p, b, m
	VisemeB Viseme = "B" // tongue behind teeth: t, d, n, l
	VisemeC Viseme = "C" // spread: e, i
	VisemeD Viseme = "D" // open: a
	VisemeE Viseme = "E" // rounded: o
	VisemeF Viseme = "F" // pursed: u
	VisemeG Viseme = "G" // lip on teeth: f, v
	VisemeH Viseme = "H" // sibilants and the th digraph
	VisemeX Viseme = "X"
)

// MouthCue is a single mouth shape held over [Start, End) seconds.
type MouthCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value Viseme  `json:"value"`
}

// LipsyncResult is the ordered cue sequence for one utterance. MouthCues is
// never nil so that it encodes as an empty JSON array.
type LipsyncResult struct {
	MouthCues []MouthCue `json:"mouthCues"`
}

// Expression is a facial expression tag.
type Expression string

const (
	ExpressionSmile     Expression = "smile"
	ExpressionSad       Expression = "sad"
	ExpressionSurprised Expression = "surprised"
	ExpressionAngry     Expression = "angry"
)

// Animation names a body animation clip.
type Animation string

const (
	AnimationTalking0  Animation = "Talking_0"
	AnimationTalking1  Animation = "Talking_1"
	AnimationTalking2  Animation = "Talking_2"
	AnimationRumba     Animation = "Rumba Dancing"
	AnimationCrying    Animation = "Crying"
	AnimationAngry     Animation = "Angry"
	AnimationLaughing  Animation = "Laughing"
	AnimationTerrified Animation = "Terrified"
)

// TalkingAnimations are the neutral clips picked from when no emotional
// keyword matches.
var TalkingAnimations = []Animation{AnimationTalking0, AnimationTalking1, AnimationTalking2}
