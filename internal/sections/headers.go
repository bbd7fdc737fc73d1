// Package sections splits analysis narratives into named sections and reads
// the trader score block.
package sections

import (
	"strings"

	"tradecoach/internal/models"
)

// transition maps a header phrase to the section it opens. Each section
// accepts a Title Case and an ALL CAPS spelling.
type transition struct {
	key     models.SectionKey
	title   string
	phrases []string
}

// transitions is checked in order; the first phrase contained in a line wins.
var transitions = []transition{
	{models.SectionExecutiveSummary, "Executive Summary", []string{"Executive Summary", "EXECUTIVE SUMMARY"}},
	{models.SectionKeyMetrics, "Key Performance Metrics", []string{"Key Performance Metrics", "KEY PERFORMANCE METRICS"}},
	{models.SectionCriticalErrors, "Critical Errors & Rule Violations", []string{"Critical Errors", "CRITICAL ERRORS"}},
	{models.SectionRiskStatus, "Risk & Drawdown Status", []string{"Risk & Drawdown Status", "RISK & DRAWDOWN STATUS"}},
	{models.SectionBehavioralAssessment, "Behavioral Assessment", []string{"Behavioral Assessment", "BEHAVIORAL ASSESSMENT"}},
	{models.SectionWhatIsWorking, "What Is Working", []string{"What Is Working", "WHAT IS WORKING"}},
	{models.SectionWhatMustStop, "What Must Stop", []string{"What Must Stop", "WHAT MUST STOP"}},
	{models.SectionActionPlan, "Action Plan", []string{"Action Plan", "ACTION PLAN"}},
	{models.SectionTraderScore, "Final Trader Score", []string{"Final Trader Score", "FINAL TRADER SCORE"}},
}

// lowered holds the lower-cased phrases of transitions, index-aligned.
var lowered = func() [][]string {
	out := make([][]string, len(transitions))
	for i, t := range transitions {
		for _, p := range t.phrases {
			out[i] = append(out[i], strings.ToLower(p))
		}
	}
	return out
}()

// MatchHeader reports which section a line opens, if any. Matching is
// case-insensitive and looks for the phrase anywhere in the line.
func MatchHeader(line string) (models.SectionKey, bool) {
	l := strings.ToLower(line)
	for i, phrases := range lowered {
		for _, p := range phrases {
			if strings.Contains(l, p) {
				return transitions[i].key, true
			}
		}
	}
	return "", false
}

// Title returns the canonical header title for a section.
func Title(key models.SectionKey) string {
	for _, t := range transitions {
		if t.key == key {
			return t.title
		}
	}
	return ""
}

// Heading returns the ALL CAPS header line used when rendering a narrative.
func Heading(key models.SectionKey) string {
	return strings.ToUpper(Title(key)) + ":"
}
