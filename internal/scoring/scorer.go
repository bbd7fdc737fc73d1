// Package scoring provides the deterministic heuristic trade scorer used when
// no generated narrative is available.
package scoring

import (
	"math"

	"tradecoach/internal/models"
	"tradecoach/internal/sections"
)

// Risk scores by stop loss / take profit presence.
const (
	RiskBracketed   = 85
	RiskStopOnly    = 75
	RiskUnprotected = 35
)

// DefaultEmotionalScore applies to emotions outside the known set.
const DefaultEmotionalScore = 70

var emotionalScores = map[models.Emotion]int{
	models.EmotionCalm:       90,
	models.EmotionConfident:  85,
	models.EmotionNeutral:    75,
	models.EmotionNervous:    60,
	models.EmotionExcited:    65,
	models.EmotionFrustrated: 45,
	models.EmotionFearful:    40,
	models.EmotionGreedy:     35,
}

// Scores holds the component scores of one trade.
type Scores struct {
	Risk        int
	Execution   int
	Consistency int
	Emotional   int
	Overall     int
}

// TraderScore maps the component scores onto the published score object.
func (s Scores) TraderScore() models.TraderScore {
	return models.TraderScore{
		Overall:          s.Overall,
		RiskDiscipline:   s.Risk,
		ExecutionQuality: s.Execution,
		Consistency:      s.Consistency,
		Professionalism:  s.Emotional,
	}
}

// Score computes the component scores of a trade.
func Score(rec models.TradeExecutionRecord) Scores {
	s := Scores{
		Risk:        RiskScore(rec),
		Execution:   ExecutionScore(rec.SetupGrade),
		Consistency: ConsistencyScore(rec.SetupGrade),
		Emotional:   EmotionalScore(rec.Emotion),
	}
	s.Overall = Overall(s.Risk, s.Execution, s.Consistency, s.Emotional)
	return s
}

// RiskScore rates protective orders. Without a stop loss nothing else counts.
func RiskScore(rec models.TradeExecutionRecord) int {
	switch {
	case !rec.HasStopLoss():
		return RiskUnprotected
	case rec.HasTakeProfit():
		return RiskBracketed
	default:
		return RiskStopOnly
	}
}

// ExecutionScore is the setup grade times 20, bounded to [20, 100].
func ExecutionScore(grade int) int {
	switch {
	case grade <= 1:
		return 20
	case grade >= 5:
		return 100
	}
	return grade * 20
}

// ConsistencyScore tiers the setup grade.
func ConsistencyScore(grade int) int {
	switch {
	case grade >= 4:
		return 85
	case grade == 3:
		return 70
	case grade == 2:
		return 55
	default:
		return 40
	}
}

// EmotionalScore looks up the emotion; unknown values score DefaultEmotionalScore.
func EmotionalScore(e models.Emotion) int {
	if v, ok := emotionalScores[e]; ok {
		return v
	}
	return DefaultEmotionalScore
}

// Overall is the mean of the components rounded half up.
func Overall(components ...int) int {
	if len(components) == 0 {
		return 0
	}
	sum := 0
	for _, c := range components {
		sum += c
	}
	mean := float64(sum) / float64(len(components))
	return sections.Clamp(int(math.Floor(mean + 0.5)))
}
