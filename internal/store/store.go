// Package store persists completed analyses. Rows are insert-only; an analysis
// is never updated once written.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tradecoach/internal/models"
)

// AnalysisStore defines the interface for analysis persistence.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error
	SaveAnalyses(ctx context.Context, recs []*AnalysisRecord) error
	GetAnalyses(ctx context.Context, filter AnalysisFilter) ([]AnalysisRecord, error)
	GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error)
	Close() error
}

// AnalysisRecord is one saved analysis with the trade it was produced for.
type AnalysisRecord struct {
	ID        string                      `json:"id"`
	CreatedAt time.Time                   `json:"createdAt"`
	Symbol    string                      `json:"symbol"`
	Outcome   string                      `json:"outcome"`
	Success   bool                        `json:"success"`
	Trade     models.TradeExecutionRecord `json:"trade"`
	Result    models.AnalysisResult       `json:"analysis"`
}

// Score is a shortcut to the saved trader score.
func (r AnalysisRecord) Score() models.TraderScore {
	return r.Result.Sections.TraderScore
}

// Response rebuilds the envelope that was returned for this analysis.
func (r AnalysisRecord) Response() *models.AnalysisResponse {
	return &models.AnalysisResponse{Success: r.Success, Analysis: r.Result}
}

// NewAnalysisRecord builds a record with a fresh ID.
func NewAnalysisRecord(trade models.TradeExecutionRecord, resp *models.AnalysisResponse, outcome string, now time.Time) *AnalysisRecord {
	return &AnalysisRecord{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		Symbol:    trade.Symbol,
		Outcome:   outcome,
		Success:   resp.Success,
		Trade:     trade,
		Result:    resp.Analysis,
	}
}

// AnalysisFilter represents filters for querying analyses.
type AnalysisFilter struct {
	Symbol    string
	Model     string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}
