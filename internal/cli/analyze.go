package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tradecoach/internal/models"
	"tradecoach/internal/normalize"
	"tradecoach/internal/pipeline"
	"tradecoach/internal/sections"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	var save, offline bool

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a single trade",
		Long: `Analyze one executed trade and print a coaching report.

The file may be JSON or YAML and contains either a bare trade object or a
request envelope with "tradeData" and optional "allTradeData" keys. Use "-" to
read JSON from stdin.`,
		Example: `  tradecoach analyze trade.json
  tradecoach analyze trade.yaml --save
  cat trade.json | tradecoach analyze - --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			req, err := LoadRequest(args[0])
			if err != nil {
				return err
			}

			var opts []pipeline.Option
			if save {
				st, err := app.Store()
				if err != nil {
					return fmt.Errorf("opening journal: %w", err)
				}
				opts = append(opts, pipeline.WithJournal(st))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			start := time.Now()
			resp, outcome, err := app.NewOrchestrator(offline, opts...).Analyze(ctx, req)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(resp)
			}

			// The trade header is display-only; a malformed trade is already
			// reported as degraded by the pipeline.
			rec, _ := normalize.Trade(req.TradeData)
			renderAnalysis(output, rec, resp, outcome)
			output.Println()
			output.Dim("Completed in %s", FormatDuration(time.Since(start)))
			if save && outcome != pipeline.OutcomeDegraded {
				output.Dim("Saved to %s", app.Config.Store.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "save the analysis to the journal")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the language model and use the heuristic scorer")

	return cmd
}

// renderAnalysis prints a human-readable report.
func renderAnalysis(output *Output, rec models.TradeExecutionRecord, resp *models.AnalysisResponse, outcome pipeline.Outcome) {
	result := resp.Analysis

	title := "Trade Analysis"
	if rec.Symbol != "" {
		title += " - " + rec.Symbol
		if rec.Direction != "" {
			title += " " + strings.ToUpper(string(rec.Direction))
		}
	}
	output.Bold("%s", title)
	output.Printf("  Model: %s   %s   %s\n", output.Cyan(result.Model), output.Outcome(string(outcome)), output.DimText(result.Timestamp))
	if outcome != pipeline.OutcomeDegraded {
		output.Printf("  P&L: %s   R: %s   Setup grade: %d\n", output.FormatPnL(rec.PnL), FormatRMultiple(rec.RMultiple), rec.SetupGrade)
		for _, line := range tradeLevels(rec) {
			output.Printf("  %s\n", line)
		}
	}
	output.Println()

	if !resp.Success {
		output.Warning("%s", result.FullAnalysis)
		return
	}

	printed := false
	for _, key := range models.SectionKeys {
		text, ok := result.Sections.Get(key)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		output.Info("%s", sections.Heading(key))
		for _, line := range strings.Split(text, "\n") {
			output.Printf("  %s\n", line)
		}
		output.Println()
		printed = true
	}

	// Narratives that used none of the known headers are shown verbatim.
	if !printed {
		output.Println(result.FullAnalysis)
		output.Println()
	}

	renderScore(output, result.Sections.TraderScore)
}

// tradeLevels lists the price levels, reward ratios and holding time present
// on the trade. Zero values are left out.
func tradeLevels(rec models.TradeExecutionRecord) []string {
	var lines []string

	var prices []string
	for _, level := range []struct {
		label string
		price float64
	}{
		{"Entry", rec.EntryPrice},
		{"Exit", rec.ExitPrice},
		{"Stop", rec.StopLoss},
		{"Target", rec.TakeProfit},
	} {
		if level.price != 0 {
			prices = append(prices, level.label+": "+FormatPrice(level.price))
		}
	}
	if len(prices) > 0 {
		lines = append(lines, strings.Join(prices, "   "))
	}

	var reward []string
	if rec.ActualRR != 0 {
		reward = append(reward, "Actual R:R: "+FormatRiskReward(rec.ActualRR))
	}
	if rec.TargetRR != 0 {
		reward = append(reward, "Target R:R: "+FormatRiskReward(rec.TargetRR))
	}
	if rec.EntryTime != nil && rec.ExitTime != nil && rec.ExitTime.After(*rec.EntryTime) {
		reward = append(reward, "Held: "+FormatDuration(rec.ExitTime.Sub(*rec.EntryTime)))
	}
	if len(reward) > 0 {
		lines = append(lines, strings.Join(reward, "   "))
	}
	return lines
}

func renderScore(output *Output, score models.TraderScore) {
	output.Info("%s", sections.Heading(models.SectionTraderScore))
	rows := []struct {
		label string
		value int
	}{
		{"Overall", score.Overall},
		{"Risk Discipline", score.RiskDiscipline},
		{"Execution Quality", score.ExecutionQuality},
		{"Consistency", score.Consistency},
		{"Professionalism", score.Professionalism},
	}
	for _, row := range rows {
		output.Printf("  %s %s\n", PadRight(row.label, 18), output.ScoreWithBar(row.value))
	}
}
