package scoring

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tradecoach/internal/models"
	"tradecoach/internal/sections"
)

// Report is the heuristic analysis of one trade. Narrative parses back into
// exactly Sections.
type Report struct {
	Scores    Scores
	Narrative string
	Sections  models.SectionMap
}

// facts are the branch inputs of the narrative templates.
type facts struct {
	rec     models.TradeExecutionRecord
	scores  Scores
	hasSL   bool
	hasTP   bool
	grade   int
	emotion models.Emotion
	pnlSign int
}

// Analyze scores a trade and renders the fixed-template narrative.
// Identical records always produce byte-identical reports.
func Analyze(rec models.TradeExecutionRecord) Report {
	f := facts{
		rec:     rec,
		scores:  Score(rec),
		hasSL:   rec.HasStopLoss(),
		hasTP:   rec.HasTakeProfit(),
		grade:   rec.SetupGrade,
		emotion: rec.Emotion,
		pnlSign: decimal.NewFromFloat(rec.PnL).Sign(),
	}

	bodies := map[models.SectionKey][]string{
		models.SectionExecutiveSummary:     f.executiveSummary(),
		models.SectionKeyMetrics:           f.keyMetrics(),
		models.SectionCriticalErrors:       f.criticalErrors(),
		models.SectionRiskStatus:           f.riskStatus(),
		models.SectionBehavioralAssessment: f.behavioralAssessment(),
		models.SectionWhatIsWorking:        f.whatIsWorking(),
		models.SectionWhatMustStop:         f.whatMustStop(),
		models.SectionActionPlan:           f.actionPlan(),
		models.SectionTraderScore:          sections.ScoreLines(f.scores.TraderScore()),
	}

	report := Report{Scores: f.scores}
	var sb strings.Builder
	for i, key := range models.SectionKeys {
		if i > 0 {
			sb.WriteString("\n")
		}
		body := strings.Join(bodies[key], "\n")
		sb.WriteString(sections.Heading(key))
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n")
		if key != models.SectionTraderScore {
			report.Sections.Set(key, strings.TrimSpace(body))
		}
	}
	report.Sections.TraderScore = f.scores.TraderScore()
	report.Narrative = sb.String()
	return report
}

func (f facts) executiveSummary() []string {
	subject := "This trade"
	if f.rec.Direction == models.DirectionLong || f.rec.Direction == models.DirectionShort {
		subject = fmt.Sprintf("This %s trade", f.rec.Direction)
	}

	var result string
	switch f.pnlSign {
	case 1:
		result = "closed as a winner"
	case -1:
		result = "closed as a loser"
	default:
		result = "closed at breakeven"
	}

	lines := []string{
		fmt.Sprintf("%s %s with a net P&L of %s (%sR).", subject, result, money(f.rec.PnL), ratio(f.rec.RMultiple)),
		fmt.Sprintf("Heuristic scoring rates it %d/100 overall: risk %d, execution %d, consistency %d, emotional control %d.",
			f.scores.Overall, f.scores.Risk, f.scores.Execution, f.scores.Consistency, f.scores.Emotional),
	}

	switch {
	case f.scores.Overall >= 80:
		lines = append(lines, "Process quality was strong and repeatable.")
	case f.scores.Overall >= 60:
		lines = append(lines, "Process quality was acceptable with clear room to tighten.")
	default:
		lines = append(lines, "Process quality fell short of a professional standard.")
	}
	return lines
}

func (f facts) keyMetrics() []string {
	return []string{
		"• Net P&L: " + money(f.rec.PnL),
		"• Gross P&L: " + money(f.rec.GrossPnL),
		"• Fees: " + money(f.rec.Fees),
		"• R-Multiple: " + ratio(f.rec.RMultiple),
		fmt.Sprintf("• Realized R:R: %s | Planned R:R: %s", ratio(f.rec.ActualRR), ratio(f.rec.TargetRR)),
		fmt.Sprintf("• Setup Grade: %d/5", f.grade),
		"• Emotional State: " + f.emotionLabel(),
	}
}

func (f facts) criticalErrors() []string {
	var lines []string
	if !f.hasSL {
		lines = append(lines, "• No stop loss was defined, leaving the downside open-ended.")
	} else if !f.hasTP {
		lines = append(lines, "• No take profit was defined, so the exit depended on discretion.")
	}
	if f.grade <= 2 {
		lines = append(lines, fmt.Sprintf("• The setup was graded %d/5, below the minimum quality worth trading.", f.grade))
	}
	if f.compromised() {
		lines = append(lines, fmt.Sprintf("• The trade was taken in a %s state, which compromises judgement.", f.emotion))
	}
	if len(lines) == 0 {
		lines = append(lines, "• No rule violations were detected from the recorded data.")
	}
	return lines
}

func (f facts) riskStatus() []string {
	var lines []string
	switch {
	case f.hasSL && f.hasTP:
		lines = append(lines, "Risk was fully bracketed with both a stop loss and a take profit in place.")
	case f.hasSL:
		lines = append(lines, "Downside was capped by a stop loss, but the upside had no predefined exit.")
	default:
		lines = append(lines, "Risk was undefined: without a stop loss the position had no planned maximum loss.")
	}

	switch f.pnlSign {
	case -1:
		lines = append(lines, fmt.Sprintf("The loss of %s is a drawdown to be absorbed within the daily risk budget.", money(-f.rec.PnL)))
	case 1:
		lines = append(lines, fmt.Sprintf("The gain of %s adds to the account without new drawdown.", money(f.rec.PnL)))
	default:
		lines = append(lines, "The trade finished flat, adding no drawdown.")
	}
	lines = append(lines, fmt.Sprintf("Risk discipline score: %d/100.", f.scores.Risk))
	return lines
}

func (f facts) behavioralAssessment() []string {
	var line string
	switch f.emotion {
	case models.EmotionCalm:
		line = "A calm state supports objective execution."
	case models.EmotionConfident:
		line = "Confidence supported decisive execution; keep it anchored to the plan."
	case models.EmotionNeutral:
		line = "A neutral state kept emotion out of the decision."
	case models.EmotionNervous:
		line = "Nervousness tends to cause hesitation and premature exits."
	case models.EmotionExcited:
		line = "Excitement tends to inflate size and chase entries."
	case models.EmotionFrustrated:
		line = "Frustration is a classic trigger for revenge trading."
	case models.EmotionFearful:
		line = "Fear tends to cut winners short and freeze decisions."
	case models.EmotionGreedy:
		line = "Greed pushes toward oversized positions and moved targets."
	default:
		line = "The emotional state was not recorded in a recognised form."
	}
	return []string{
		line,
		fmt.Sprintf("Emotional control score: %d/100.", f.scores.Emotional),
	}
}

func (f facts) whatIsWorking() []string {
	var lines []string
	if f.hasSL {
		lines = append(lines, "• Defining a stop loss before entry.")
	}
	if f.hasTP {
		lines = append(lines, "• Planning the exit with a take profit.")
	}
	if f.grade >= 4 {
		lines = append(lines, fmt.Sprintf("• Selecting high-quality setups (grade %d/5).", f.grade))
	}
	if f.composed() {
		lines = append(lines, "• Trading from a composed emotional state.")
	}
	if f.pnlSign > 0 {
		lines = append(lines, "• Closing the trade in profit.")
	}
	if len(lines) == 0 {
		lines = append(lines, "• Recording the trade for review is the first step toward improvement.")
	}
	return lines
}

func (f facts) whatMustStop() []string {
	var lines []string
	if !f.hasSL {
		lines = append(lines, "• Entering positions without a stop loss.")
	} else if !f.hasTP {
		lines = append(lines, "• Leaving exits to in-the-moment decisions.")
	}
	if f.grade <= 2 {
		lines = append(lines, "• Taking low-grade setups.")
	}
	if f.unsettled() {
		lines = append(lines, fmt.Sprintf("• Trading while %s.", f.emotion))
	}
	if f.pnlSign < 0 && !f.hasSL {
		lines = append(lines, "• Letting losses run without a predefined limit.")
	}
	if len(lines) == 0 {
		lines = append(lines, "• Nothing critical; keep following the current process.")
	}
	return lines
}

func (f facts) actionPlan() []string {
	steps := make([]string, 0, 4)
	if f.hasSL {
		steps = append(steps, "Keep placing the stop loss before entry.")
	} else {
		steps = append(steps, "Set a stop loss on every trade before entry.")
	}
	if f.hasTP {
		steps = append(steps, "Keep defining profit targets in advance.")
	} else {
		steps = append(steps, "Define a take profit or a written exit rule for each position.")
	}
	switch {
	case f.grade <= 2:
		steps = append(steps, "Only take setups graded 3/5 or better.")
	case f.grade == 3:
		steps = append(steps, "Work toward more grade 4-5 setups by waiting for full confirmation.")
	default:
		steps = append(steps, "Keep filtering for grade 4-5 setups.")
	}
	if f.unsettled() {
		steps = append(steps, fmt.Sprintf("Pause after any trade taken while %s and review it before the next entry.", f.emotion))
	} else {
		steps = append(steps, "Continue the pre-trade routine that kept emotions in check.")
	}

	lines := make([]string, len(steps))
	for i, s := range steps {
		lines[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return lines
}

// emotionLabel never echoes free text; an unknown value could carry a
// section header and split the narrative.
func (f facts) emotionLabel() string {
	if f.emotion == "" {
		return "not recorded"
	}
	for _, e := range models.KnownEmotions {
		if f.emotion == e {
			return string(e)
		}
	}
	return "unrecognised"
}

// compromised emotions count as a rule violation.
func (f facts) compromised() bool {
	switch f.emotion {
	case models.EmotionGreedy, models.EmotionFearful, models.EmotionFrustrated:
		return true
	}
	return false
}

func (f facts) unsettled() bool {
	switch f.emotion {
	case models.EmotionNervous, models.EmotionExcited:
		return true
	}
	return f.compromised()
}

func (f facts) composed() bool {
	switch f.emotion {
	case models.EmotionCalm, models.EmotionConfident, models.EmotionNeutral:
		return true
	}
	return false
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func ratio(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
