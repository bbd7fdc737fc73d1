package sections

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"tradecoach/internal/models"
)

func TestExtractScores(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.TraderScore
	}{
		{
			name: "bulleted risk discipline",
			text: "• Risk Discipline: 62/100",
			want: models.TraderScore{RiskDiscipline: 62},
		},
		{
			name: "clamped overall",
			text: "Overall Performance: 150/100",
			want: models.TraderScore{Overall: 100},
		},
		{
			name: "missing consistency",
			text: "Overall Performance: 70\nRisk Discipline: 60\nExecution Quality: 50\nProfessionalism: 40",
			want: models.TraderScore{Overall: 70, RiskDiscipline: 60, ExecutionQuality: 50, Professionalism: 40},
		},
		{
			name: "case insensitive and aliases",
			text: "OVERALL: 81\nrisk discipline 77\nEXECUTION QUALITY: 90/100\nconsistency: 55\nEmotional Control: 66/100",
			want: models.TraderScore{Overall: 81, RiskDiscipline: 77, ExecutionQuality: 90, Consistency: 55, Professionalism: 66},
		},
		{
			name: "flexible separators",
			text: "RiskDiscipline: 33\nExecution-Quality - 44",
			want: models.TraderScore{RiskDiscipline: 33, ExecutionQuality: 44},
		},
		{
			name: "minus sign is not captured",
			text: "Consistency: -40",
			want: models.TraderScore{Consistency: 40},
		},
		{
			name: "huge value",
			text: "Professionalism: 99999999999999999999999",
			want: models.TraderScore{Professionalism: 100},
		},
		{
			name: "empty",
			text: "",
			want: models.TraderScore{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractScores(tt.text); got != tt.want {
				t.Errorf("ExtractScores() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractScores_FirstPatternWins(t *testing.T) {
	// Primary label beats the alias even when the alias appears first.
	got := ExtractScores("Overall: 10\nOverall Performance: 90")
	if got.Overall != 90 {
		t.Errorf("overall = %d, want 90", got.Overall)
	}
}

func TestScoreLinesRoundTrip(t *testing.T) {
	score := models.TraderScore{Overall: 53, RiskDiscipline: 75, ExecutionQuality: 40, Consistency: 55, Professionalism: 40}
	lines := ScoreLines(score)
	if len(lines) != 5 {
		t.Fatalf("ScoreLines() returned %d lines", len(lines))
	}
	if lines[1] != "• Risk Discipline: 75/100" {
		t.Errorf("lines[1] = %q", lines[1])
	}
	if got := ExtractScores(strings.Join(lines, "\n")); got != score {
		t.Errorf("round trip = %+v, want %+v", got, score)
	}
}

// Property: any extracted component is within [0, 100].
func TestProperty_ExtractedScoresBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("extracted scores are clamped to [0, 100]", prop.ForAll(
		func(overall, risk, execution int, noise string) bool {
			text := fmt.Sprintf("%s\nOverall Performance: %d/100\n• Risk Discipline: %d\nExecution Quality %d\n", noise, overall, risk, execution)
			s := ExtractScores(text)
			for _, v := range []int{s.Overall, s.RiskDiscipline, s.ExecutionQuality, s.Consistency, s.Professionalism} {
				if v < 0 || v > 100 {
					return false
				}
			}
			return s.Overall == Clamp(overall) && s.RiskDiscipline == Clamp(risk) && s.ExecutionQuality == Clamp(execution)
		},
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
