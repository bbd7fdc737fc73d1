// Package cli provides the command-line interface for trade analysis.
package cli

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tradecoach/internal/config"
	"tradecoach/internal/logging"
	"tradecoach/internal/narrative"
	"tradecoach/internal/pipeline"
	"tradecoach/internal/security"
	"tradecoach/internal/store"
)

// Version information
const Version = "0.1.0"

// BuildDate is set at link time.
var BuildDate = "dev"

// manualConfig marks commands that load configuration themselves.
const manualConfig = "manual-config"

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Generator *narrative.Client

	storeOnce sync.Once
	store     store.AnalysisStore
	storeErr  error
}

// Setup loads configuration from configDir and wires the logger and the
// narrative client.
func (a *App) Setup(configDir string, debug bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	a.Config = cfg

	a.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())
	if debug {
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	a.Generator, err = NewGenerator(cfg, a.Logger)
	if err != nil {
		return err
	}
	if a.Generator == nil {
		a.Logger.Debug().Msg("No provider API keys configured, analyses use the heuristic scorer")
	}
	return nil
}

// NewGenerator builds the narrative client from configured credentials. It
// returns nil when no provider key is set.
func NewGenerator(cfg *config.Config, logger zerolog.Logger) (*narrative.Client, error) {
	if !cfg.HasProviderKeys() {
		return nil, nil
	}

	strategy, err := narrative.ParseStrategy(cfg.Generator.Strategy)
	if err != nil {
		return nil, err
	}
	opts := []narrative.Option{
		narrative.WithStrategy(strategy),
		narrative.WithRetry(cfg.RetryConfig()),
		narrative.WithLogger(logging.WithOperation(logger, "generate")),
	}
	if cfg.Credentials.OpenAIKey != "" {
		opts = append(opts, narrative.WithProvider(narrative.NewOpenAIProvider(cfg.Credentials.OpenAIKey)))
	}
	if cfg.Credentials.AnthropicKey != "" {
		opts = append(opts, narrative.WithProvider(narrative.NewAnthropicProvider(cfg.Credentials.AnthropicKey)))
	}
	if cfg.Generator.CircuitBreaker.Enabled {
		opts = append(opts, narrative.WithCircuitBreakers(cfg.BreakerConfig()))
	}

	logger.Debug().
		Strs("models", cfg.Generator.Models).
		Str("strategy", string(strategy)).
		Msg("Narrative generator initialized")
	return narrative.NewClient(opts...), nil
}

// NewOrchestrator builds the analysis pipeline. Offline skips the narrative
// generator entirely.
func (a *App) NewOrchestrator(offline bool, extra ...pipeline.Option) *pipeline.Orchestrator {
	var gen narrative.Generator
	if a.Generator != nil && !offline {
		gen = a.Generator
	}

	opts := []pipeline.Option{
		pipeline.WithTimeout(a.Config.Generator.Timeout),
		pipeline.WithSampling(a.Config.Generator.Temperature, a.Config.Generator.MaxTokens),
		pipeline.WithLogger(logging.WithOperation(a.Logger, "analyze")),
	}
	opts = append(opts, extra...)
	return pipeline.New(gen, a.Config.Generator.Models, opts...)
}

// Store opens the analysis journal on first use.
func (a *App) Store() (store.AnalysisStore, error) {
	a.storeOnce.Do(func() {
		a.store, a.storeErr = store.NewSQLiteStore(a.Config.Store.Path)
		if a.storeErr == nil {
			a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
		}
	})
	return a.store, a.storeErr
}

// Close releases the journal if it was opened.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	app := &App{Logger: zerolog.Nop()}
	defer app.Close()
	return NewRootCmd(app).Execute()
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tradecoach",
		Short: "TradeCoach - trade execution coaching",
		Long: `TradeCoach reviews executed trades and scores the trader's process.

Each analysis is written by a hosted language model when API keys are configured
(OPENAI_API_KEY, ANTHROPIC_API_KEY). Otherwise, or when the model call fails, a
deterministic rule-based scorer produces the report.

Use 'tradecoach help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[manualConfig] != "" {
				return nil
			}
			configDir, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			return app.Setup(configDir, debug)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/tradecoach)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newBatchCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newServeCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{manualConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("TradeCoach v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config.Redacted())
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: map[string]string{manualConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			configDir, _ := cmd.Flags().GetString("config")
			path := config.ConfigFile(configDir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{manualConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			configDir, _ := cmd.Flags().GetString("config")
			if _, err := config.Load(configDir); err != nil {
				if output.IsJSON() {
					output.JSON(map[string]interface{}{"valid": false, "error": err.Error()})
				} else {
					output.Error("Configuration validation failed: %v", err)
				}
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Generator")
	output.Printf("  Models:          %v\n", cfg.Generator.Models)
	output.Printf("  Strategy:        %s\n", cfg.Generator.Strategy)
	output.Printf("  Temperature:     %.2f\n", cfg.Generator.Temperature)
	output.Printf("  Max Tokens:      %d\n", cfg.Generator.MaxTokens)
	output.Printf("  Timeout:         %s\n", cfg.Generator.Timeout)
	output.Printf("  Retry Attempts:  %d\n", cfg.Generator.RetryAttempts)
	output.Printf("  Circuit Breaker: %v\n", cfg.Generator.CircuitBreaker.Enabled)
	output.Println()

	output.Bold("Providers")
	output.Printf("  OpenAI:          %s\n", keyStatus(output, cfg.Credentials.OpenAIKey))
	output.Printf("  Anthropic:       %s\n", keyStatus(output, cfg.Credentials.AnthropicKey))
	output.Println()

	output.Bold("API")
	output.Printf("  Address:         %s\n", cfg.API.Addr)
	output.Printf("  Auth:            %v\n", cfg.API.AuthToken != "")
	if cfg.API.RateLimit > 0 {
		output.Printf("  Rate Limit:      %.1f req/s (burst %d)\n", cfg.API.RateLimit, cfg.API.RateBurst)
	} else {
		output.Printf("  Rate Limit:      off\n")
	}
	output.Println()

	output.Bold("Storage & Logging")
	output.Printf("  Journal:         %s\n", cfg.Store.Path)
	output.Printf("  Log Level:       %s\n", cfg.Logging.Level)
	if cfg.Logging.File {
		output.Printf("  Log File:        %s\n", cfg.Logging.FilePath)
	}

	return nil
}

func keyStatus(output *Output, key string) string {
	if key == "" {
		return output.DimText("not configured")
	}
	return output.Green(fmt.Sprintf("configured (%s)", security.MaskCredential(key)))
}
