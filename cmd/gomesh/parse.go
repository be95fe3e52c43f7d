package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/philipparndt/gomesh/pkg/analysis"
)

var parseProgress bool

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a model and display statistics and geometry checks",
	Long:  "Show comprehensive information including dimensions, triangle count, surface area, edge statistics and the result of the degenerate triangle check.",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().BoolVarP(&parseProgress, "progress", "p", false, "Print parse progress to stderr")
}

func runParse(cmd *cobra.Command, args []string) error {
	filename := args[0]

	model, err := loadModel(cmd.Context(), filename, parseProgress)
	if err != nil {
		return err
	}

	result := analysis.AnalyzeModel(model)
	report := analysis.Validate(model, cfg.ValidateOptions())
	stats := model.Stats()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s File Information\n", model.Format())
	fmt.Fprintln(out, "====================")
	if model.Header() != "" {
		fmt.Fprintf(out, "Name: %s\n", model.Header())
	}
	fmt.Fprintf(out, "File: %s\n", filename)
	fmt.Fprintf(out, "Representation: %s\n", model.Kind())
	fmt.Fprintf(out, "Parse time: %s\n\n", stats.ParseDuration)

	fmt.Fprintln(out, "Model Statistics:")
	fmt.Fprintf(out, "  Triangles: %d\n", result.TriangleCount)
	fmt.Fprintf(out, "  Vertices: %d\n", stats.VertexCount)
	fmt.Fprintf(out, "  Edges: %d\n", result.EdgeCount)
	fmt.Fprintf(out, "  Surface Area: %.6f square units\n\n", result.SurfaceArea)

	fmt.Fprintln(out, "Bounding Box:")
	fmt.Fprintf(out, "  Min: %s\n", analysis.FormatVector(result.BoundingBox.Min))
	fmt.Fprintf(out, "  Max: %s\n", analysis.FormatVector(result.BoundingBox.Max))
	fmt.Fprintf(out, "  Center: %s\n\n", analysis.FormatVector(result.BoundingBox.Center()))

	fmt.Fprintln(out, "Dimensions:")
	fmt.Fprintf(out, "  Width (X): %.6f units\n", result.Dimensions.X)
	fmt.Fprintf(out, "  Depth (Y): %.6f units\n", result.Dimensions.Y)
	fmt.Fprintf(out, "  Height (Z): %.6f units\n", result.Dimensions.Z)
	fmt.Fprintf(out, "  Diagonal: %.6f units\n", result.BoundingBox.Diagonal())
	fmt.Fprintf(out, "  Volume: %.6f cubic units\n\n", result.Volume)

	fmt.Fprintln(out, "Edge Lengths:")
	fmt.Fprintf(out, "  Minimum: %.6f units\n", result.MinEdgeLength)
	fmt.Fprintf(out, "  Maximum: %.6f units\n", result.MaxEdgeLength)
	fmt.Fprintf(out, "  Average: %.6f units\n\n", result.AvgEdgeLength)

	if groups := model.MaterialGroups(); len(groups) > 0 {
		fmt.Fprintln(out, "Materials:")
		for _, g := range groups {
			fmt.Fprintf(out, "  %s: %d triangles from #%d\n", g.Material, g.Count, g.Start)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Geometry Check:")
	fmt.Fprintf(out, "  Sampled triangles: %d\n", report.Sampled)
	fmt.Fprintf(out, "  Degenerate: %d\n", report.DegenerateCount)
	if len(report.DegenerateSample) > 0 {
		fmt.Fprintf(out, "  Degenerate sample: %v\n", report.DegenerateSample)
	}
	fmt.Fprintf(out, "  Non-finite: %d\n", report.NonFiniteCount)
	if report.Valid() {
		fmt.Fprintln(out, "  Result: OK")
	} else {
		fmt.Fprintln(out, "  Result: problems found")
	}
	return nil
}
