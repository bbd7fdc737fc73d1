// Package pipeline sequences normalization, narrative generation and section
// parsing, falling back to the heuristic scorer whenever generation fails.
package pipeline

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	apperrors "tradecoach/internal/errors"
	"tradecoach/internal/logging"
	"tradecoach/internal/models"
	"tradecoach/internal/narrative"
	"tradecoach/internal/normalize"
	"tradecoach/internal/scoring"
	"tradecoach/internal/sections"
	"tradecoach/internal/security"
	"tradecoach/internal/store"
)

// Outcome names the terminal state an analysis reached.
type Outcome string

const (
	OutcomeNarrative Outcome = "narrative"
	OutcomeFallback  Outcome = "fallback"
	OutcomeDegraded  Outcome = "degraded"
)

// DefaultTimeout bounds a single generator invocation.
const DefaultTimeout = 45 * time.Second

// Orchestrator runs one analysis per call. It holds no per-request state and
// is safe for concurrent use.
type Orchestrator struct {
	generator narrative.Generator
	models    []string
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
	journal   Journal

	temperature float64
	maxTokens   int
}

// Journal records completed analyses. Save failures are logged and never
// change the response.
type Journal interface {
	SaveAnalysis(ctx context.Context, rec *store.AnalysisRecord) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the generator timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock sets the time source used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSampling overrides the generation temperature and token limit.
// Non-positive token limits are ignored.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(o *Orchestrator) {
		o.temperature = temperature
		if maxTokens > 0 {
			o.maxTokens = maxTokens
		}
	}
}

// WithJournal records every narrative and fallback analysis.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// New creates an orchestrator. A nil generator sends every request down the
// heuristic path.
func New(generator narrative.Generator, candidates []string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator: generator,
		models:    append([]string(nil), candidates...),
		timeout:   DefaultTimeout,
		logger:    zerolog.Nop(),
		now:       time.Now,

		temperature: narrative.DefaultTemperature,
		maxTokens:   narrative.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Models returns the ordered candidate model list.
func (o *Orchestrator) Models() []string {
	return append([]string(nil), o.models...)
}

// Analyze produces the analysis envelope for one request. The only error it
// returns is a ValidationError for a missing trade; every other failure is
// folded into a fallback or degraded response.
func (o *Orchestrator) Analyze(ctx context.Context, req models.AnalysisRequest) (resp *models.AnalysisResponse, outcome Outcome, err error) {
	start := time.Now()
	logger := o.logger
	if id := logging.RequestIDFromContext(ctx); id != "" {
		logger = logging.WithRequestID(logger, id)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Analysis panicked, returning degraded response")
			resp, outcome, err = o.degraded(), OutcomeDegraded, nil
		}
		if resp != nil {
			logging.LogAnalysis(logger, string(outcome), resp.Analysis.Model, resp.Analysis.Sections.TraderScore.Overall, time.Since(start))
		}
	}()

	rec, err := normalize.Trade(req.TradeData)
	if err != nil {
		if apperrors.IsValidation(err) {
			return nil, "", err
		}
		logger.Error().Err(err).Msg("Normalization failed, returning degraded response")
		return o.degraded(), OutcomeDegraded, nil
	}
	account := normalize.Account(req.AllTradeData)

	if result, ok := o.generate(ctx, logger, rec, account); ok {
		resp, outcome = &models.AnalysisResponse{Success: true, Analysis: result}, OutcomeNarrative
	} else {
		resp, outcome = &models.AnalysisResponse{Success: true, Analysis: o.fallback(rec)}, OutcomeFallback
	}

	o.record(ctx, logger, rec, resp, outcome)
	return resp, outcome, nil
}

func (o *Orchestrator) record(ctx context.Context, logger zerolog.Logger, rec models.TradeExecutionRecord, resp *models.AnalysisResponse, outcome Outcome) {
	if o.journal == nil {
		return
	}
	entry := store.NewAnalysisRecord(rec, resp, string(outcome), o.now())
	if err := o.journal.SaveAnalysis(ctx, entry); err != nil {
		logger.Warn().Err(err).Msg("Failed to save analysis")
		return
	}
	logger.Debug().Str("analysis_id", entry.ID).Msg("Analysis saved")
}

// generate runs the narrative path. It reports false on any failure.
func (o *Orchestrator) generate(ctx context.Context, logger zerolog.Logger, rec models.TradeExecutionRecord, account models.AccountContext) (models.AnalysisResult, bool) {
	if o.generator == nil || len(o.models) == 0 {
		logger.Debug().Msg("No narrative generator configured, using heuristic scorer")
		return models.AnalysisResult{}, false
	}

	req, err := narrative.BuildRequest(rec, account, o.models)
	if err != nil {
		logger.Warn().Err(err).Msg("Building narrative request failed, using heuristic scorer")
		return models.AnalysisResult{}, false
	}
	req.Temperature = o.temperature
	req.MaxTokens = o.maxTokens

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	completion, err := o.generator.Generate(genCtx, req)
	if err == nil && completion.Content == "" {
		err = apperrors.NewGenerationError(completion.Model, "empty completion", apperrors.ErrEmptyCompletion)
	}
	if err != nil {
		logger.Warn().Err(security.MaskError(err)).Msg("Narrative generation failed, using heuristic scorer")
		return models.AnalysisResult{}, false
	}

	return models.AnalysisResult{
		FullAnalysis: completion.Content,
		Sections:     sections.Parse(completion.Content),
		Model:        completion.Model,
		Timestamp:    o.timestamp(),
	}, true
}

func (o *Orchestrator) fallback(rec models.TradeExecutionRecord) models.AnalysisResult {
	report := scoring.Analyze(rec)
	return models.AnalysisResult{
		FullAnalysis: report.Narrative,
		Sections:     report.Sections,
		Model:        models.ModelFallbackEnhanced,
		Timestamp:    o.timestamp(),
	}
}

func (o *Orchestrator) degraded() *models.AnalysisResponse {
	return &models.AnalysisResponse{
		Success: false,
		Analysis: models.AnalysisResult{
			FullAnalysis: models.DegradedMessage,
			Model:        models.ModelFallback,
			Timestamp:    o.timestamp(),
		},
	}
}

func (o *Orchestrator) timestamp() string {
	return o.now().UTC().Format(time.RFC3339)
}
