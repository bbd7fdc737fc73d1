// Package models provides domain models for the trade analysis application.
package models

// Direction represents the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Emotion represents the trader's self-reported emotional state for a trade.
// Values outside the known set are tolerated and carried through unchanged.
type Emotion string

const (
	EmotionConfident  Emotion = "confident"
	EmotionNervous    Emotion = "nervous"
	EmotionExcited    Emotion = "excited"
	EmotionFrustrated Emotion = "frustrated"
	EmotionCalm       Emotion = "calm"
	EmotionGreedy     Emotion = "greedy"
	EmotionFearful    Emotion = "fearful"
	EmotionNeutral    Emotion = "neutral"
)

// KnownEmotions lists the emotions with a dedicated score.
var KnownEmotions = []Emotion{
	EmotionConfident,
	EmotionNervous,
	EmotionExcited,
	EmotionFrustrated,
	EmotionCalm,
	EmotionGreedy,
	EmotionFearful,
	EmotionNeutral,
}

// DefaultSetupGrade is used when a trade carries no usable setup grade.
const DefaultSetupGrade = 3

// Setup grades are rated on a 1-5 scale.
const (
	MinSetupGrade = 1
	MaxSetupGrade = 5
)
