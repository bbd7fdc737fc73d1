package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tradecoach/internal/api"
	"tradecoach/internal/logging"
	"tradecoach/internal/performance"
	"tradecoach/internal/pipeline"
	"tradecoach/internal/security"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr    string
		save    bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		Long: `Serve POST /api/trades/analyze and GET /api/health.

Set api.auth_token in config.toml (or TRADECOACH_API_TOKEN) to require a bearer
token on analysis requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config
			if addr == "" {
				addr = cfg.API.Addr
			}

			var pipeOpts []pipeline.Option
			if save {
				st, err := app.Store()
				if err != nil {
					return fmt.Errorf("opening journal: %w", err)
				}
				pipeOpts = append(pipeOpts, pipeline.WithJournal(st))
			}

			opts := []api.Option{
				api.WithAuth(security.NewTokenChecker(cfg.API.AuthToken)),
				api.WithLogger(logging.WithOperation(app.Logger, "api")),
			}
			if cfg.API.RateLimit > 0 {
				opts = append(opts, api.WithRateLimiter(performance.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst)))
			}
			if app.Generator != nil && app.Generator.Breakers() != nil {
				opts = append(opts, api.WithBreakers(app.Generator.Breakers()))
			}

			server := api.NewServer(addr, app.NewOrchestrator(offline, pipeOpts...), opts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("starting API server: %w", err)
			}
			if !output.IsJSON() {
				output.Success("✓ Listening on %s", addr)
				if cfg.API.AuthToken == "" {
					output.Warning("Authentication is disabled (api.auth_token is empty)")
				}
			}

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			app.Logger.Info().Msg("Shutting down API server")
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "save every analysis to the journal")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the language model and use the heuristic scorer")

	return cmd
}
