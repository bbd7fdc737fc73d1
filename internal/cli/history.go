package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tradecoach/internal/pipeline"
	"tradecoach/internal/store"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		limit  int
		symbol string
		model  string
		days   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved analyses",
		Long:  "List analyses saved with --save, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := app.Store()
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}

			filter := store.AnalysisFilter{Symbol: symbol, Model: model, Limit: limit}
			if days > 0 {
				filter.StartDate = time.Now().AddDate(0, 0, -days)
			}

			analyses, err := st.GetAnalyses(ctx, filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if analyses == nil {
					analyses = []store.AnalysisRecord{}
				}
				return output.JSON(analyses)
			}

			if len(analyses) == 0 {
				output.Info("No saved analyses.")
				output.Dim("Tip: run 'tradecoach analyze <file> --save' to record one.")
				return nil
			}

			table := NewTable(output, "ID", "Date", "Symbol", "Path", "Model", "Overall", "P&L")
			for _, a := range analyses {
				table.AddRow(
					a.ID,
					FormatDateTime(a.CreatedAt),
					a.Symbol,
					a.Outcome,
					a.Result.Model,
					output.Score(a.Score().Overall),
					output.FormatPnL(a.Trade.PnL),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of analyses to list")
	cmd.Flags().StringVar(&symbol, "symbol", "", "only analyses for this symbol")
	cmd.Flags().StringVar(&model, "model", "", "only analyses produced by this model")
	cmd.Flags().IntVar(&days, "days", 0, "only analyses from the last N days")

	cmd.AddCommand(newHistoryShowCmd(app))
	return cmd
}

func newHistoryShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one saved analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := app.Store()
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}

			rec, err := st.GetAnalysis(ctx, args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(rec)
			}

			output.Dim("Saved %s  (%s)", FormatDateTime(rec.CreatedAt), rec.ID)
			renderAnalysis(output, rec.Trade, rec.Response(), pipeline.Outcome(rec.Outcome))
			return nil
		},
	}
}
