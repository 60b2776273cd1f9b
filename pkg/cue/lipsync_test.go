package cue_test

import (
	"encoding/json"
	"math"
	"slices"
	"testing"

	"github.com/MrWong99/carecompanion/pkg/cue"
)

func TestEstimateDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "empty", text: "", want: 1},
		{name: "whitespace only", text: " \t\n ", want: 1},
		{name: "single word floors to minimum", text: "hello", want: 1},
		{name: "five words", text: "drink water every single day", want: 2},
		{name: "ten words", text: "one two three four five six seven eight nine ten", want: 4},
		{name: "mixed whitespace", text: "  walk\tafter\n\nmeals ", want: 1.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cue.EstimateDuration(tt.text)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EstimateDuration(%q) = %v, want %v", tt.text, got, tt.want)
			}
			if got < cue.MinDuration {
				t.Errorf("EstimateDuration(%q) = %v, below minimum", tt.text, got)
			}
		})
	}
}

func TestDeriveMouthCues_TwoLetterWord(t *testing.T) {
	t.Parallel()

	got := cue.DeriveMouthCues("pa", 1.0)
	want := []cue.MouthCue{
		{Start: 0, End: 0.5, Value: cue.VisemeA},
		{Start: 0.5, End: 1.0, Value: cue.VisemeD},
	}
	if !slices.Equal(got.MouthCues, want) {
		t.Errorf("DeriveMouthCues(pa) = %+v, want %+v", got.MouthCues, want)
	}
}

func TestDeriveMouthCues_Empty(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "\n\t"} {
		got := cue.DeriveMouthCues(text, 3)
		if got.MouthCues == nil {
			t.Fatalf("DeriveMouthCues(%q) returned nil cues", text)
		}
		if len(got.MouthCues) != 0 {
			t.Errorf("DeriveMouthCues(%q) = %d cues, want 0", text, len(got.MouthCues))
		}
		data, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != `{"mouthCues":[]}` {
			t.Errorf("json = %s, want {\"mouthCues\":[]}", data)
		}
	}
}

func TestDeriveMouthCues_PartitionsDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		duration float64
	}{
		{"Congratulations on your progress this week!", 2.7},
		{"Remember to check your blood sugar before breakfast.", 0.3},
		{"a", 1},
		{"I think the three of them thought that through", 7.123456789},
		{"Nǐ hǎo, café naïve résumé", 1.9},
		{"one two three four five six seven eight nine ten eleven twelve", 1e-3},
		{"x", 12345.678},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			cues := cue.DeriveMouthCues(tt.text, tt.duration).MouthCues
			if len(cues) == 0 {
				t.Fatal("expected cues for non-empty text")
			}
			if cues[0].Start != 0 {
				t.Errorf("first cue starts at %v, want 0", cues[0].Start)
			}
			for i, c := range cues {
				if !(c.End > c.Start) {
					t.Errorf("cue %d has end %v <= start %v", i, c.End, c.Start)
				}
				if i > 0 && cues[i-1].End != c.Start {
					t.Errorf("gap between cue %d (end %v) and cue %d (start %v)", i-1, cues[i-1].End, i, c.Start)
				}
			}
			if last := cues[len(cues)-1].End; math.Abs(last-tt.duration) > 1e-6 {
				t.Errorf("last cue ends at %v, want %v", last, tt.duration)
			}
		})
	}
}

func TestDeriveMouthCues_EqualTimePerWord(t *testing.T) {
	t.Parallel()

	got := cue.DeriveMouthCues("a bb", 2)
	want := []cue.MouthCue{
		{Start: 0, End: 1, Value: cue.VisemeD},
		{Start: 1, End: 1.5, Value: cue.VisemeA},
		{Start: 1.5, End: 2, Value: cue.VisemeA},
	}
	if !slices.Equal(got.MouthCues, want) {
		t.Errorf("DeriveMouthCues(a bb) = %+v, want %+v", got.MouthCues, want)
	}
}

func TestDeriveMouthCues_FallsBackToEstimate(t *testing.T) {
	t.Parallel()

	text := "one two three four five"
	for _, d := range []float64{0, -2, math.NaN(), math.Inf(1)} {
		cues := cue.DeriveMouthCues(text, d).MouthCues
		if got := cues[len(cues)-1].End; got != cue.EstimateDuration(text) {
			t.Errorf("duration %v: last cue ends at %v, want estimate %v", d, got, cue.EstimateDuration(text))
		}
	}
}

func TestWordVisemes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		word string
		want []cue.Viseme
	}{
		{"pa", []cue.Viseme{cue.VisemeA, cue.VisemeD}},
		{"the", []cue.Viseme{cue.VisemeH, cue.VisemeC}},
		{"That", []cue.Viseme{cue.VisemeH, cue.VisemeD, cue.VisemeB}},
		{"think", []cue.Viseme{cue.VisemeH, cue.VisemeC, cue.VisemeB, cue.VisemeX}},
		{"hth", []cue.Viseme{cue.VisemeX, cue.VisemeH}},
		{"t", []cue.Viseme{cue.VisemeB}},
		{"tt", []cue.Viseme{cue.VisemeB, cue.VisemeB}},
		{"fuzz", []cue.Viseme{cue.VisemeG, cue.VisemeF, cue.VisemeH, cue.VisemeH}},
		{"MOVE!", []cue.Viseme{cue.VisemeA, cue.VisemeE, cue.VisemeG, cue.VisemeC, cue.VisemeX}},
		{"café", []cue.Viseme{cue.VisemeX, cue.VisemeD, cue.VisemeG, cue.VisemeX}},
		{"42", []cue.Viseme{cue.VisemeX, cue.VisemeX}},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			t.Parallel()
			if got := cue.WordVisemes(tt.word); !slices.Equal(got, tt.want) {
				t.Errorf("WordVisemes(%q) = %v, want %v", tt.word, got, tt.want)
			}
		})
	}
}

func TestDeriveMouthCues_Idempotent(t *testing.T) {
	t.Parallel()

	text := "Stay hydrated and keep moving, you are doing great."
	a := cue.DeriveMouthCues(text, 4.2)
	b := cue.DeriveMouthCues(text, 4.2)
	if !slices.Equal(a.MouthCues, b.MouthCues) {
		t.Error("DeriveMouthCues is not deterministic for identical input")
	}
}
