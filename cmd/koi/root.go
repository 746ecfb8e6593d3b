package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/koi-classifier/internal/bootstrap"
	"github.com/kirillkom/koi-classifier/internal/config"
	"github.com/kirillkom/koi-classifier/internal/observability/logging"
	"github.com/kirillkom/koi-classifier/internal/observability/metrics"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	metricsTextfile string
}

var rootCmd = &cobra.Command{
	Use:   "koi",
	Short: "Train and query the KOI disposition classifier",
	Long: "koi trains the Kepler Object of Interest disposition classifier and\n" +
		"serves predictions from the local artifact store, without the HTTP API.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.metricsTextfile, "metrics-textfile", "",
		"write training and prediction metrics to this file in Prometheus text format")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// withApp wires the application for one command. Logs go to stderr so stdout
// carries only the command's JSON result.
func withApp(cmd *cobra.Command, run func(app *bootstrap.App) (any, error)) error {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(cmd.ErrOrStderr(), "koi-cli", cfg.LogLevel)
	m := metrics.NewTrainingMetrics("koi-cli")

	app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.Options{
		Logger:      logger,
		Training:    m,
		Predictions: m,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	out, err := run(app)
	if rootFlags.metricsTextfile != "" {
		if werr := m.WriteTextfile(rootFlags.metricsTextfile); werr != nil {
			logger.Warn("write metrics textfile failed", "path", rootFlags.metricsTextfile, "error", werr)
		}
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
