// Command xuvcal calibrates stellar rotation and XUV activity models against
// observations by running vplanet through a likelihood.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/xuvcal/internal/config"
	"github.com/danielpatrickdp/xuvcal/internal/logging"
	"github.com/danielpatrickdp/xuvcal/internal/telemetry"
)

var (
	verbose      bool
	dbPath       string
	vplanetBin   string
	workers      int
	otelEndpoint string
	otelSample   float64
	jsonOut      bool

	logger        *zap.Logger
	shutdownTrace func(context.Context) error
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "xuvcal",
	Version: version,
	Short:   "Calibrate stellar rotation and XUV evolution models",
	Long: `xuvcal scores vplanet stellar evolution tracks against observed
luminosity, X-ray/XUV luminosity and rotation period constraints.

Star configurations are YAML files (see configs/). Evaluations, runs and
imported posterior samples are kept in a SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.LoadEnv()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if !flags.Changed("db") {
			dbPath = env.DB
		}
		if !flags.Changed("vplanet") {
			vplanetBin = env.VPlanet
		}
		if !flags.Changed("workers") {
			workers = env.Workers
		}
		if !flags.Changed("otel-endpoint") {
			otelEndpoint = env.OTelEndpoint
		}
		if !flags.Changed("otel-sample-ratio") {
			otelSample = env.OTelSample
		}
		if !flags.Changed("addr") {
			serveAddr = env.Addr
		}

		logger, err = logging.NewLogger(verbose)
		if err != nil {
			return err
		}
		shutdownTrace, err = telemetry.Setup(cmd.Context(), telemetry.Options{
			ServiceName: "xuvcal",
			Version:     version,
			Endpoint:    otelEndpoint,
			SampleRatio: otelSample,
		})
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTrace != nil {
			if err := shutdownTrace(context.Background()); err != nil {
				logger.Warn("telemetry shutdown", zap.Error(err))
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default $XUVCAL_DB or xuvcal.db)")
	rootCmd.PersistentFlags().StringVar(&vplanetBin, "vplanet", "", "vplanet executable (default $XUVCAL_VPLANET or vplanet)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "j", 0, "Parallel simulator runs (default: number of CPUs)")
	rootCmd.PersistentFlags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP/HTTP trace endpoint (tracing disabled when empty)")
	rootCmd.PersistentFlags().Float64Var(&otelSample, "otel-sample-ratio", 1, "Fraction of root spans exported")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON instead of a table")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(posteriorCmd)
	rootCmd.AddCommand(samplesCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(replayCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
