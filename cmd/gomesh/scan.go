package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/philipparndt/gomesh/internal/catalog"
	"github.com/philipparndt/gomesh/internal/logger"
)

var (
	scanForce  bool
	scanList   bool
	scanFormat string
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Catalog every model file below a directory",
	Long: `Walk a directory, parse every recognized model whose modification time
changed since the last scan and record its statistics in the SQLite catalog.
Files removed from disk are dropped from the catalog.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&overrides.Catalog, "catalog", "", "Path to the catalog database")
	scanCmd.Flags().BoolVarP(&scanForce, "force", "f", false, "Parse files even if unchanged")
	scanCmd.Flags().BoolVarP(&scanList, "list", "l", false, "Print the catalog after scanning")
	scanCmd.Flags().StringVar(&scanFormat, "format", "", "Only list entries of this format")
}

func runScan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	db, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	started := time.Now()
	res, err := catalog.Scan(cmd.Context(), db, modelStore, root, catalog.ScanOptions{
		Workers:  cfg.Parser.Workers,
		Validate: cfg.ValidateOptions(),
		Force:    scanForce,
		Logger:   logger.Named("scan"),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanned %s in %s\n", root, time.Since(started).Round(time.Millisecond))
	fmt.Fprintf(out, "  Parsed: %d\n", res.Parsed)
	fmt.Fprintf(out, "  Failed: %d\n", res.Failed)
	fmt.Fprintf(out, "  Unchanged: %d\n", res.Unchanged)
	fmt.Fprintf(out, "  Ignored: %d\n", res.Ignored)
	fmt.Fprintf(out, "  Removed: %d\n", res.Removed)

	if !scanList {
		return nil
	}

	entries, total, err := db.List(scanFormat, 0, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nCatalog (%d entries)\n", total)
	fmt.Fprintf(out, "%-6s %-12s %-12s %s\n", "Format", "Triangles", "Degenerate", "Path")
	for _, e := range entries {
		if e.Error != "" {
			fmt.Fprintf(out, "%-6s %-12s %-12s %s (%s)\n", e.Format, "-", "-", e.Path, e.Error)
			continue
		}
		fmt.Fprintf(out, "%-6s %-12d %-12d %s\n", e.Format, e.Triangles, e.Degenerate, e.Path)
	}
	return nil
}
