package sections

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tradecoach/internal/models"
)

// metricRule describes how one trader score component is located in text.
type metricRule struct {
	label   string
	aliases []string
	set     func(*models.TraderScore, int)
	value   func(models.TraderScore) int
}

var metricRules = []metricRule{
	{
		label:   "Overall Performance",
		aliases: []string{"overall"},
		set:     func(s *models.TraderScore, v int) { s.Overall = v },
		value:   func(s models.TraderScore) int { return s.Overall },
	},
	{
		label: "Risk Discipline",
		set:   func(s *models.TraderScore, v int) { s.RiskDiscipline = v },
		value: func(s models.TraderScore) int { return s.RiskDiscipline },
	},
	{
		label: "Execution Quality",
		set:   func(s *models.TraderScore, v int) { s.ExecutionQuality = v },
		value: func(s models.TraderScore) int { return s.ExecutionQuality },
	},
	{
		label: "Consistency",
		set:   func(s *models.TraderScore, v int) { s.Consistency = v },
		value: func(s models.TraderScore) int { return s.Consistency },
	},
	{
		label:   "Professionalism",
		aliases: []string{"Emotional Control"},
		set:     func(s *models.TraderScore, v int) { s.Professionalism = v },
		value:   func(s models.TraderScore) int { return s.Professionalism },
	},
}

// patternOrder builds the patterns tried for a label. Order matters: the
// first pattern that matches wins.
var patternOrder = []func(label string) string{
	// Label: 72/100
	func(label string) string {
		return `(?i)` + regexp.QuoteMeta(label) + `[:\s]+(\d+)(?:/100)?`
	},
	// • Label: 72/100
	func(label string) string {
		return `(?i)•?\s*` + regexp.QuoteMeta(label) + `[:\s]+(\d+)(?:/100)?`
	},
	// Label with loose word separators, e.g. "RiskDiscipline - 72".
	func(label string) string {
		words := strings.Fields(label)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		return `(?i)` + strings.Join(words, `[\s_-]*`) + `[:\s-]+(\d+)(?:/100)?`
	},
}

// compiledMetric holds the ordered patterns of one rule.
type compiledMetric struct {
	rule     metricRule
	patterns []*regexp.Regexp
}

var compiledMetrics = func() []compiledMetric {
	out := make([]compiledMetric, 0, len(metricRules))
	for _, rule := range metricRules {
		cm := compiledMetric{rule: rule}
		for _, label := range append([]string{rule.label}, rule.aliases...) {
			for _, build := range patternOrder {
				cm.patterns = append(cm.patterns, regexp.MustCompile(build(label)))
			}
		}
		out = append(out, cm)
	}
	return out
}()

// ExtractScores reads the trader score block. Components that cannot be found
// are 0; found values are clamped to [0, 100].
func ExtractScores(text string) models.TraderScore {
	var score models.TraderScore
	for _, cm := range compiledMetrics {
		cm.rule.set(&score, matchFirst(cm.patterns, text))
	}
	return score
}

func matchFirst(patterns []*regexp.Regexp, text string) int {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return parseScore(m[1])
	}
	return 0
}

func parseScore(digits string) int {
	v, err := strconv.Atoi(digits)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 100
		}
		return 0
	}
	return Clamp(v)
}

// Clamp bounds a score to [0, 100].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ScoreLines renders a trader score in the format ExtractScores reads.
func ScoreLines(score models.TraderScore) []string {
	lines := make([]string, 0, len(metricRules))
	for _, rule := range metricRules {
		lines = append(lines, fmt.Sprintf("• %s: %d/100", rule.label, rule.value(score)))
	}
	return lines
}
