package models

// SectionKey identifies one slice of an analysis narrative.
type SectionKey string

const (
	SectionExecutiveSummary     SectionKey = "executiveSummary"
	SectionKeyMetrics           SectionKey = "keyMetrics"
	SectionCriticalErrors       SectionKey = "criticalErrors"
	SectionRiskStatus           SectionKey = "riskStatus"
	SectionBehavioralAssessment SectionKey = "behavioralAssessment"
	SectionWhatIsWorking        SectionKey = "whatIsWorking"
	SectionWhatMustStop         SectionKey = "whatMustStop"
	SectionActionPlan           SectionKey = "actionPlan"
	SectionTraderScore          SectionKey = "traderScore"
)

// SectionKeys lists every section in narrative order.
var SectionKeys = []SectionKey{
	SectionExecutiveSummary,
	SectionKeyMetrics,
	SectionCriticalErrors,
	SectionRiskStatus,
	SectionBehavioralAssessment,
	SectionWhatIsWorking,
	SectionWhatMustStop,
	SectionActionPlan,
	SectionTraderScore,
}

// TraderScore is the numeric assessment of a trade. Every field is in [0, 100].
type TraderScore struct {
	Overall          int `json:"overall"`
	RiskDiscipline   int `json:"riskDiscipline"`
	ExecutionQuality int `json:"executionQuality"`
	Consistency      int `json:"consistency"`
	Professionalism  int `json:"professionalism"`
}

// SectionMap holds the parsed narrative sections. Text sections are nil until
// populated; they are never defaulted to an empty string.
type SectionMap struct {
	ExecutiveSummary     *string     `json:"executiveSummary,omitempty"`
	KeyMetrics           *string     `json:"keyMetrics,omitempty"`
	CriticalErrors       *string     `json:"criticalErrors,omitempty"`
	RiskStatus           *string     `json:"riskStatus,omitempty"`
	BehavioralAssessment *string     `json:"behavioralAssessment,omitempty"`
	WhatIsWorking        *string     `json:"whatIsWorking,omitempty"`
	WhatMustStop         *string     `json:"whatMustStop,omitempty"`
	ActionPlan           *string     `json:"actionPlan,omitempty"`
	TraderScore          TraderScore `json:"traderScore"`
}

// Set stores text under a text section key. The trader score key and unknown
// keys are ignored.
func (m *SectionMap) Set(key SectionKey, text string) {
	if field := m.field(key); field != nil {
		v := text
		*field = &v
	}
}

// Get returns the text stored under key and whether it was populated.
func (m *SectionMap) Get(key SectionKey) (string, bool) {
	field := m.field(key)
	if field == nil || *field == nil {
		return "", false
	}
	return **field, true
}

func (m *SectionMap) field(key SectionKey) **string {
	switch key {
	case SectionExecutiveSummary:
		return &m.ExecutiveSummary
	case SectionKeyMetrics:
		return &m.KeyMetrics
	case SectionCriticalErrors:
		return &m.CriticalErrors
	case SectionRiskStatus:
		return &m.RiskStatus
	case SectionBehavioralAssessment:
		return &m.BehavioralAssessment
	case SectionWhatIsWorking:
		return &m.WhatIsWorking
	case SectionWhatMustStop:
		return &m.WhatMustStop
	case SectionActionPlan:
		return &m.ActionPlan
	default:
		return nil
	}
}
