package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/internal/config"
	"github.com/philipparndt/gomesh/internal/logger"
	"github.com/philipparndt/gomesh/pkg/loader"
	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/openscad"
	"github.com/philipparndt/gomesh/pkg/parse"
	"github.com/philipparndt/gomesh/version"
)

const progressInterval = 100 * time.Millisecond

var (
	configPath string
	overrides  config.Overrides

	cfg        *config.Config
	modelStore *loader.Loader
)

var rootCmd = &cobra.Command{
	Use:   "gomesh",
	Short: "Inspect, validate and convert 3D model files",
	Long: `gomesh reads STL (ASCII and binary), OBJ with MTL materials, STEP and 3MF
files into a common triangle mesh and reports statistics, measurements and
geometry problems. The format is detected from the file content.`,
	Version:           version.GetFullVersion(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", os.Getenv("GOMESH_CONFIG"), "Path to config file")
	flags.BoolVar(&overrides.Debug, "debug", false, "Enable debug logging")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFile, "log-file", "", "Write logs to a rotating file")
	flags.StringVar(&overrides.Strategy, "strategy", "", "Binary STL strategy (auto, scalar, bulk, flat)")
	flags.IntVar(&overrides.Workers, "workers", 0, "Number of parser workers (default GOMAXPROCS)")
}

// setup loads the configuration, starts logging and builds the loader
// shared by every command.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath, overrides)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	opts, err := cfg.ParserOptions(logger.Named("parse"))
	if err != nil {
		return err
	}

	var loaderOpts []loader.Option
	if cfg.Parser.OpenSCAD != "" {
		wd, _ := os.Getwd()
		renderer := openscad.NewRenderer(wd, logger.Named("openscad")).WithBinary(cfg.Parser.OpenSCAD)
		loaderOpts = append(loaderOpts, loader.WithRenderer(renderer))
	}
	modelStore = loader.New(opts, loaderOpts...)

	logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("strategy", cfg.Parser.Strategy),
		zap.Int("workers", opts.Workers))
	return nil
}

// loadModel parses path, printing progress to stderr when requested.
func loadModel(ctx context.Context, path string, showProgress bool) (*mesh.Model, error) {
	var progress parse.Progress
	if showProgress {
		progress = parse.Throttle(func(percent float64, message string) {
			fmt.Fprintf(os.Stderr, "\r%5.1f%% %-40s", percent, message)
			if percent >= 100 {
				fmt.Fprintln(os.Stderr)
			}
		}, progressInterval)
	}
	return modelStore.Load(ctx, path, progress)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
