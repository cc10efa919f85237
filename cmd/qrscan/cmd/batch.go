package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/batch"
)

func newBatchCommand(a *app) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch <files or dirs...>",
		Short: "Scan many images in parallel",
		Long: `Scan every image found under the given files and directories on a
worker pool. Unreadable or undecodable inputs are reported and the batch moves
on, unless --fail-fast is set.

Examples:
  qrscan batch photos/
  qrscan batch photos/ --recursive --workers 8 --format csv
  qrscan batch scans/ --include "*.png" --exclude "*_thumb.png" --stats`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runBatch,
	}
	addScanFlags(batchCmd)
	addOutputFlags(batchCmd)

	f := batchCmd.Flags()
	f.String("overlay-dir", "", "directory to write overlay images")
	f.BoolP("recursive", "r", false, "recursively scan directories")
	f.StringSlice("include", nil, "file patterns to include (e.g. *.png)")
	f.StringSlice("exclude", nil, "file patterns to exclude")
	f.Bool("fail-fast", false, "stop at the first input that fails")
	f.Bool("progress", false, "show progress on stderr")
	f.Bool("quiet", false, "suppress progress and statistics")
	f.Bool("stats", false, "print processing statistics")
	return batchCmd
}

func (a *app) runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := a.commandConfig(cmd)
	if err != nil {
		return err
	}
	overrideBool(cmd, "recursive", &cfg.Batch.Recursive)
	overrideStringSlice(cmd, "include", &cfg.Batch.IncludePatterns)
	overrideStringSlice(cmd, "exclude", &cfg.Batch.ExcludePatterns)
	overrideBool(cmd, "fail-fast", &cfg.Batch.FailFast)
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers = cfg.Scan.Workers
	}

	bc := cfg.ToBatchConfig()
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")

	result, err := batch.ProcessBatch(cmd.Context(), a.fs, args, bc)
	if err != nil {
		if batch.IsNoImages(err) {
			return fmt.Errorf("no image files found in %v", args)
		}
		return err
	}

	if err := result.SaveResults(a.fs, cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	if bc.ShowStats {
		result.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	return decodeFailures(result.Results, cfg.Batch.ContinueOnError)
}
