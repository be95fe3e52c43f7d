package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [file...]",
	Short: "Print the detected format of model files",
	Long:  "Classify files by content as STL, OBJ, 3MF or STEP. The file extension is ignored.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check the structure of model files without building a mesh",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(validateCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		format, err := modelStore.Detect(path)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, format)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files not recognized", failed, len(args))
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		if err := modelStore.Validate(path); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n     %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK   %s\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files invalid", failed, len(args))
	}
	return nil
}
