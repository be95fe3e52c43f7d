package main

import (
	"github.com/spf13/cobra"

	"github.com/philipparndt/gomesh/internal/catalog"
	"github.com/philipparndt/gomesh/internal/logger"
	"github.com/philipparndt/gomesh/internal/server"
	"github.com/philipparndt/gomesh/pkg/loader"
	"github.com/philipparndt/gomesh/pkg/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve model inspection over HTTP",
	Long: `Start an HTTP server answering detect, info, validate and stats requests
for model files below the configured root directory. Parsed models are
cached until their file changes, and stats results are recorded in the
catalog.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&overrides.Port, "port", "P", 0, "HTTP port (default 8080)")
	serveCmd.Flags().StringVar(&overrides.Root, "root", "", "Directory model paths are resolved against")
	serveCmd.Flags().StringVar(&overrides.Catalog, "catalog", "", "Path to the catalog database")
}

func runServe(cmd *cobra.Command, _ []string) error {
	db, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger.Named("watch"))
	if err != nil {
		return err
	}
	defer fw.Close()
	fw.Start()

	opts, err := cfg.ParserOptions(logger.Named("parse"))
	if err != nil {
		return err
	}
	loaderOpts := []loader.Option{loader.WithCache(loader.NewMemoryCache(loader.NewLRUPolicy(64, opts.MaxTriangles)))}
	if r := modelStore.Renderer(); r != nil {
		loaderOpts = append(loaderOpts, loader.WithRenderer(r))
	}

	s := server.New(loader.New(opts, loaderOpts...), cfg.Server.Root,
		server.WithCatalog(db),
		server.WithWatcher(fw),
		server.WithValidateOptions(cfg.ValidateOptions()),
		server.WithLogger(logger.Named("http")),
	)
	return s.Run(cmd.Context(), cfg.Server.Address())
}
