package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tradecoach/internal/models"
	"tradecoach/internal/normalize"
	"tradecoach/internal/performance"
	"tradecoach/internal/pipeline"
	"tradecoach/internal/store"
)

// saveBatchSize is the number of analyses written per journal transaction.
const saveBatchSize = 25

// BatchResult is the outcome of one trade in a batch run.
type BatchResult struct {
	Index    int                      `json:"index"`
	Symbol   string                   `json:"symbol"`
	Outcome  pipeline.Outcome         `json:"outcome,omitempty"`
	Response *models.AnalysisResponse `json:"response,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Total        int             `json:"total"`
	Narrative    int             `json:"narrative"`
	Fallback     int             `json:"fallback"`
	Degraded     int             `json:"degraded"`
	Failed       int             `json:"failed"`
	AverageScore decimal.Decimal `json:"averageScore"`
}

// journalBatch buffers journal writes into multi-row transactions.
type journalBatch struct {
	batch *performance.BatchProcessor[*store.AnalysisRecord]
}

func (j journalBatch) SaveAnalysis(_ context.Context, rec *store.AnalysisRecord) error {
	return j.batch.Add(rec)
}

func newBatchCmd(app *App) *cobra.Command {
	var (
		save    bool
		offline bool
		workers int
		rate    float64
	)

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Analyze many trades concurrently",
		Long: `Analyze every trade in a CSV, JSON or YAML file and print a score table.

CSV files need a header row using the trade field names (symbol, direction,
entryPrice, stopLoss, setupGrade, emotion, pnl, ...). JSON and YAML files hold a
list of trades or request envelopes.`,
		Example: `  tradecoach batch trades.csv
  tradecoach batch trades.json --workers 8 --rate 2 --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			reqs, err := LoadBatch(args[0])
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				output.Warning("No trades found in %s", args[0])
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var opts []pipeline.Option
			var pending *performance.BatchProcessor[*store.AnalysisRecord]
			if save {
				st, err := app.Store()
				if err != nil {
					return fmt.Errorf("opening journal: %w", err)
				}
				pending = performance.NewBatchProcessor(saveBatchSize, func(recs []*store.AnalysisRecord) error {
					return st.SaveAnalyses(ctx, recs)
				})
				opts = append(opts, pipeline.WithJournal(journalBatch{batch: pending}))
			}

			var limiter *performance.RateLimiter
			if rate > 0 && !offline {
				limiter = performance.NewRateLimiter(rate, 1)
			}

			results, err := RunBatch(ctx, app.NewOrchestrator(offline, opts...), reqs, workers, limiter)
			if pending != nil {
				if flushErr := pending.Flush(); flushErr != nil {
					output.Error("Failed to save analyses: %v", flushErr)
				}
			}
			if err != nil {
				return err
			}

			summary := Summarize(results)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"results": results,
					"summary": summary,
				})
			}

			renderBatch(output, results, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "save analyses to the journal")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the language model and use the heuristic scorer")
	cmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent analyses")
	cmd.Flags().Float64Var(&rate, "rate", 0, "maximum analyses started per second (0 = unlimited)")

	return cmd
}

// RunBatch analyzes reqs on a worker pool and returns results in input order.
func RunBatch(ctx context.Context, orch *pipeline.Orchestrator, reqs []models.AnalysisRequest, workers int, limiter *performance.RateLimiter) ([]BatchResult, error) {
	pool := performance.NewWorkerPool(workers)
	pool.Start()
	defer pool.Stop()

	type item struct {
		index int
		req   models.AnalysisRequest
	}
	items := make([]item, len(reqs))
	for i, req := range reqs {
		items[i] = item{index: i, req: req}
	}

	return performance.ProcessAll(ctx, pool, items, func(ctx context.Context, it item) BatchResult {
		result := BatchResult{Index: it.index + 1}
		if rec, err := normalize.Trade(it.req.TradeData); err == nil {
			result.Symbol = rec.Symbol
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				result.Error = err.Error()
				return result
			}
		}

		resp, outcome, err := orch.Analyze(ctx, it.req)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Outcome = outcome
		result.Response = resp
		return result
	})
}

// Summarize counts outcomes and averages the overall score of every
// successful analysis.
func Summarize(results []BatchResult) BatchSummary {
	summary := BatchSummary{Total: len(results), AverageScore: decimal.Zero}

	sum := decimal.Zero
	scored := 0
	for _, r := range results {
		switch {
		case r.Response == nil:
			summary.Failed++
			continue
		case r.Outcome == pipeline.OutcomeNarrative:
			summary.Narrative++
		case r.Outcome == pipeline.OutcomeFallback:
			summary.Fallback++
		case r.Outcome == pipeline.OutcomeDegraded:
			summary.Degraded++
		}
		if r.Response.Success {
			sum = sum.Add(decimal.NewFromInt(int64(r.Response.Analysis.Sections.TraderScore.Overall)))
			scored++
		}
	}

	if scored > 0 {
		summary.AverageScore = sum.DivRound(decimal.NewFromInt(int64(scored)), 1)
	}
	return summary
}

func renderBatch(output *Output, results []BatchResult, summary BatchSummary) {
	table := NewTable(output, "#", "Symbol", "Path", "Model", "Overall", "Risk", "Exec", "Cons", "Prof")
	for _, r := range results {
		if r.Response == nil {
			table.AddRow(fmt.Sprintf("%d", r.Index), r.Symbol, output.Red("error"), TruncateString(r.Error, 40), "", "", "", "", "")
			continue
		}
		ts := r.Response.Analysis.Sections.TraderScore
		table.AddRow(
			fmt.Sprintf("%d", r.Index),
			r.Symbol,
			string(r.Outcome),
			r.Response.Analysis.Model,
			output.Score(ts.Overall),
			output.Score(ts.RiskDiscipline),
			output.Score(ts.ExecutionQuality),
			output.Score(ts.Consistency),
			output.Score(ts.Professionalism),
		)
	}
	table.Render()

	output.Println()
	output.Bold("Summary")
	output.Printf("  Trades:        %d\n", summary.Total)
	output.Printf("  Narrative:     %d\n", summary.Narrative)
	output.Printf("  Fallback:      %d\n", summary.Fallback)
	if summary.Degraded > 0 {
		output.Printf("  Degraded:      %s\n", output.Red(fmt.Sprintf("%d", summary.Degraded)))
	}
	if summary.Failed > 0 {
		output.Printf("  Failed:        %s\n", output.Red(fmt.Sprintf("%d", summary.Failed)))
	}
	output.Printf("  Average score: %s\n", summary.AverageScore.StringFixed(1))
}
