package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/philipparndt/gomesh/pkg/stl"
)

var convertASCII bool

var convertCmd = &cobra.Command{
	Use:   "convert [input] [output.stl]",
	Short: "Convert any supported model file to STL",
	Long:  "Parse a model of any supported format and write its triangles as binary STL, or ASCII STL with --ascii.",
	Args:  cobra.ExactArgs(2),
	RunE:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().BoolVarP(&convertASCII, "ascii", "a", false, "Write ASCII STL instead of binary")
}

func runConvert(cmd *cobra.Command, args []string) error {
	model, err := loadModel(cmd.Context(), args[0], false)
	if err != nil {
		return err
	}
	if err := stl.WriteFile(args[1], model, convertASCII); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[1], err)
	}

	encoding := "binary"
	if convertASCII {
		encoding = "ASCII"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d triangles from %s (%s) to %s as %s STL\n",
		model.TriangleCount(), args[0], model.Format(), args[1], encoding)
	return nil
}
