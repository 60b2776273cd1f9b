package cue

import (
	"math"
	"strings"
)

// WordsPerSecond is the assumed speaking rate used when no measured audio
// duration is available.
const WordsPerSecond = 2.5

// MinDuration is the shortest estimate [EstimateDuration] will return, in seconds.
const MinDuration = 1.0

// EstimateDuration approximates how long text takes to speak, in seconds.
// The result is max(words/WordsPerSecond, MinDuration), so empty or
// whitespace-only text yields MinDuration.
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	return max(float64(words)/WordsPerSecond, MinDuration)
}

// DeriveMouthCues splits total seconds across the words of text and, within
// each word, across its visemes. Every word receives the same share of time
// regardless of its length.
//
// The returned cues are contiguous in emission order and the last cue ends
// exactly at total. Empty text yields an empty (non-nil) cue list. A total that
// is not a positive finite number is replaced by [EstimateDuration].
func DeriveMouthCues(text string, total float64) LipsyncResult {
	words := strings.Fields(text)
	if len(words) == 0 {
		return LipsyncResult{MouthCues: []MouthCue{}}
	}
	if !(total > 0) || math.IsInf(total, 1) {
		total = EstimateDuration(text)
	}

	perWord := total / float64(len(words))
	cues := make([]MouthCue, 0, len(text))
	cursor := 0.0

	for i, word := range words {
		visemes := WordVisemes(word)
		if len(visemes) == 0 {
			visemes = []Viseme{VisemeX}
		}
		wordStart := float64(i) * perWord
		wordEnd := float64(i+1) * perWord
		step := perWord / float64(len(visemes))

		for j, v := range visemes {
			// Offsets from the word origin, not running sums.
			end := wordStart + float64(j+1)*step
			if j == len(visemes)-1 {
				end = wordEnd
			}
			cues = append(cues, MouthCue{Start: cursor, End: end, Value: v})
			cursor = end
		}
	}

	cues[len(cues)-1].End = total
	return LipsyncResult{MouthCues: cues}
}

// WordVisemes maps a single word to its viseme sequence, one code per rune.
// The word is lower-cased first. A "th" pair is recognised before the
// single-rune rules and yields one [VisemeH]; the 'h' is consumed with it.
func WordVisemes(word string) []Viseme {
	runes := []rune(strings.ToLower(word))
	out := make([]Viseme, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		if runes[i] == 't' && i+1 < len(runes) && runes[i+1] == 'h' {
			out = append(out, VisemeH)
			i++
			continue
		}
		out = append(out, classify(runes[i]))
	}
	return out
}

// classify returns the viseme for a single lower-case rune.
func classify(r rune) Viseme {
	switch r {
	case 'a':
		return VisemeD
	case 'e', 'i':
		return VisemeC
	case 'o':
		return VisemeE
	case 'u':
		return VisemeF
	case 'p', 'b', 'm':
		return VisemeA
	case 'f', 'v':
		return VisemeG
	case 't', 'd', 'n', 'l':
		return VisemeB
	case 's', 'z':
		return VisemeH
	default:
		return VisemeX
	}
}
