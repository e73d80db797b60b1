// Package main provides the inquiry analyzer CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BOSEON-SEO/CSAI/internal/analysis"
	"github.com/BOSEON-SEO/CSAI/internal/config"
	"github.com/BOSEON-SEO/CSAI/internal/observability"
)

const version = "0.1.0"

var (
	// Global flags
	cfgFile    string
	envFile    string
	outputJSON bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "inquiry-analyzer",
	Short: "Analyze customer inquiries and decide whether to escalate them",
	Long: `Inquiry analyzer extracts features from customer inquiries, retrieves
similar answered inquiries of the same brand, and decides whether an
automated answer is safe or the inquiry must go to a human agent.

Use this tool to:
- Analyze a batch of inquiries from a JSON file or stdin
- Verify the embedding model before serving traffic
- Index answered inquiries into the corpus

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile, envFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      cfg.Observability.LogFormat,
			Output:      os.Stderr,
			ServiceName: cfg.Observability.ServiceName,
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newCheckModelCmd())
	rootCmd.AddCommand(newCorpusCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newAnalyzeCmd creates the analyze subcommand.
func newAnalyzeCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a batch of inquiries",
		Long: `Analyze reads a JSON array of inquiry records (or a single record) from
--input or stdin and prints one result per inquiry in input order.

A failed inquiry does not stop the batch; the command exits non-zero when
any inquiry failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			records, err := readRecords(input, cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			analyzer, err := a.analyzer(ctx)
			if err != nil {
				return err
			}

			start := time.Now()
			items := analyzer.AnalyzeBatch(ctx, records)

			failed := 0
			for _, item := range items {
				if item.Err != nil {
					failed++
				}
			}

			logger.Info().
				Int("inquiries", len(items)).
				Int("failed", failed).
				Dur("duration", time.Since(start)).
				Msg("Batch analysis complete")

			if err := writeItems(cmd.OutOrStdout(), items, outputJSON); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d inquiries failed", failed, len(items))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file of inquiry records, - for stdin")

	return cmd
}

// newCheckModelCmd creates the check-model subcommand.
func newCheckModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-model",
		Short: "Verify the embedding model produces usable vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			embedder, err := a.embedder(ctx)
			if err != nil {
				return err
			}

			if err := analysis.CheckModel(ctx, embedder); err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(map[string]any{
					"model":     embedder.Model(),
					"dimension": embedder.Dimension(),
					"ok":        true,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%d dimensions)\n", embedder.Model(), embedder.Dimension())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if outputJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				_ = enc.Encode(map[string]string{"version": version})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inquiry-analyzer v%s\n", version)
		},
	}
}
