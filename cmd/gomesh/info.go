package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Display file metadata without a full parse",
	Long:  "Show format, encoding, header and the declared or counted triangle count of a model file.",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	info, err := modelStore.Info(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Model File Information")
	fmt.Fprintln(out, "======================")
	fmt.Fprintf(out, "File: %s\n", info.Path)
	fmt.Fprintf(out, "Format: %s\n", info.Format)
	if info.Encoding != "" {
		fmt.Fprintf(out, "Encoding: %s\n", info.Encoding)
	}
	if info.Header != "" {
		fmt.Fprintf(out, "Header: %s\n", info.Header)
	}
	fmt.Fprintf(out, "Size: %d bytes\n", info.Size)
	fmt.Fprintf(out, "Modified: %s\n", info.ModTime.Format("2006-01-02 15:04:05"))
	if info.TriangleCount >= 0 {
		fmt.Fprintf(out, "Triangles: %d\n", info.TriangleCount)
	} else {
		fmt.Fprintln(out, "Triangles: unknown without a full parse")
	}

	if len(info.Details) > 0 {
		keys := make([]string, 0, len(info.Details))
		for k := range info.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(out, "\nDetails:")
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %s\n", k, info.Details[k])
		}
	}
	return nil
}
