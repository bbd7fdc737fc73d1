package models

// Model identifiers reported for the non-generative paths.
const (
	ModelFallbackEnhanced = "fallback-enhanced"
	ModelFallback         = "fallback"
)

// DegradedMessage is the narrative returned when analysis could not run at all.
const DegradedMessage = "Analysis temporarily unavailable. Please try again later."

// AnalysisResult is the uniform analysis output of every pipeline path.
// It is built once per request and not mutated afterwards.
type AnalysisResult struct {
	FullAnalysis string     `json:"fullAnalysis"`
	Sections     SectionMap `json:"sections"`
	Model        string     `json:"model"`
	Timestamp    string     `json:"timestamp"`
}

// AnalysisResponse is the envelope returned to callers.
type AnalysisResponse struct {
	Success  bool           `json:"success"`
	Analysis AnalysisResult `json:"analysis"`
}
