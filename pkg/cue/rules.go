package cue

import (
	"math/rand/v2"
	"strings"
)

// Rand supplies the random index for the neutral animation pick. A
// *rand.Rand from math/rand/v2 satisfies it; tests pin the outcome with a
// fixed implementation.
type Rand interface {
	IntN(n int) int
}

// globalRand draws from the math/rand/v2 top-level source, which is safe for
// concurrent use.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// rule pairs a predicate over lower-cased text with the value it selects.
type rule[T any] struct {
	match  func(lower string) bool
	result T
}

// containsAny returns a predicate that reports whether the text contains at
// least one of keywords.
func containsAny(keywords ...string) func(string) bool {
	return func(lower string) bool {
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}
}

// firstMatch evaluates rules in order against text and returns the result of
// the first rule whose predicate holds.
func firstMatch[T any](rules []rule[T], text string) (T, bool) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.match(lower) {
			return r.result, true
		}
	}
	var zero T
	return zero, false
}

// expressionRules is ordered by precedence.
var expressionRules = []rule[Expression]{
	{match: containsAny("congratulations", "great", "excellent", "wonderful"), result: ExpressionSmile},
	{match: containsAny("sorry", "unfortunately", "sad"), result: ExpressionSad},
	{match: containsAny("wow", "amazing", "surprising"), result: ExpressionSurprised},
	{match: containsAny("serious", "important", "warning"), result: ExpressionAngry},
}

// animationRules is ordered by precedence. It overlaps with expressionRules on
// purpose but is maintained separately.
var animationRules = []rule[Animation]{
	{match: containsAny("congratulations", "great job", "excellent"), result: AnimationRumba},
	{match: containsAny("sorry", "unfortunately", "concerned"), result: AnimationCrying},
	{match: containsAny("angry", "frustrated", "serious"), result: AnimationAngry},
	{match: containsAny("haha", "funny", "amusing"), result: AnimationLaughing},
	{match: containsAny("scary", "worried", "afraid"), result: AnimationTerrified},
}

// SelectFacialExpression picks the expression for text by case-insensitive
// keyword match. It returns [ExpressionSmile] when nothing matches.
func SelectFacialExpression(text string) Expression {
	if e, ok := firstMatch(expressionRules, text); ok {
		return e
	}
	return ExpressionSmile
}

// SelectAnimation picks the animation clip for text by case-insensitive
// keyword match. When nothing matches, one of [TalkingAnimations] is chosen
// uniformly using rnd; a nil rnd uses the math/rand/v2 global source.
func SelectAnimation(text string, rnd Rand) Animation {
	if a, ok := firstMatch(animationRules, text); ok {
		return a
	}
	if rnd == nil {
		rnd = globalRand{}
	}
	i := rnd.IntN(len(TalkingAnimations))
	if i < 0 || i >= len(TalkingAnimations) {
		i = 0
	}
	return TalkingAnimations[i]
}
