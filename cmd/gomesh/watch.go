package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/internal/logger"
	"github.com/philipparndt/gomesh/pkg/analysis"
	"github.com/philipparndt/gomesh/pkg/loader"
	"github.com/philipparndt/gomesh/pkg/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Re-parse a model whenever it or its sources change",
	Long: `Parse a model, print a summary and parse it again every time the file
changes on disk. For OpenSCAD sources every used or included file is
watched as well. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	opts, err := cfg.ParserOptions(logger.Named("parse"))
	if err != nil {
		return err
	}
	loaderOpts := []loader.Option{loader.WithCache(loader.NewMemoryCache(loader.NewLRUPolicy(1, 0)))}
	if r := modelStore.Renderer(); r != nil {
		loaderOpts = append(loaderOpts, loader.WithRenderer(r))
	}
	l := loader.New(opts, loaderOpts...)

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger.Named("watch"))
	if err != nil {
		return err
	}
	defer fw.Close()

	changed := make(chan struct{}, 1)
	if err := l.Watch(fw, path, func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	fw.Start()

	summarize(ctx, out, l, path)
	fmt.Fprintf(out, "Watching %s for changes...\n", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			logger.Info("model changed", zap.String("path", path))
			summarize(ctx, out, l, path)
		}
	}
}

// summarize parses path and prints a one-line result. Parse errors are
// printed rather than returned so watching continues.
func summarize(ctx context.Context, out io.Writer, l *loader.Loader, path string) {
	model, err := l.Load(ctx, path, nil)
	if err != nil {
		fmt.Fprintf(out, "[%s] error: %v\n", path, err)
		return
	}
	report := analysis.Validate(model, cfg.ValidateOptions())
	size := model.BoundingBox().Size()
	fmt.Fprintf(out, "[%s] %s, %d triangles, %.3f x %.3f x %.3f, %d degenerate, parsed in %s\n",
		path, model.Format(), model.TriangleCount(), size.X, size.Y, size.Z,
		report.DegenerateCount, model.Stats().ParseDuration)
}
