package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// addScanFlags registers the flags shared by every command that scans.
func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("brightness", 0, "monochrome threshold factor in [0, 1] (0 = image mean)")
	f.Bool("fallback", false, "retry failed scans with the reference decoder")
	f.String("debug-dir", "", "directory to write rectifier debug images")
	f.Int("version-estimate", 0, "QR version assumed when sizing finder candidates (1-40)")
	f.Int("max-side", 0, "downscale images to this longest side (0 = config default)")
	f.Bool("trim", true, "re-crop the symbol to its dark pixels after the finder crop")
	f.IntP("workers", "w", 0, fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))
}

// addOutputFlags registers the result output flags.
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("format", "f", pipeline.FormatText, "output format (text, json, csv, yaml)")
	f.StringP("output", "o", "", "output file (default: stdout)")
	f.String("overlay-color", "", "overlay colour as hex, e.g. #ff0000")
	f.Bool("continue-on-error", false, "exit zero even when some inputs fail to decode")
}

// commandConfig returns a copy of the loaded configuration with the
// command's changed flags applied on top, validated.
func (a *app) commandConfig(cmd *cobra.Command) (*config.Config, error) {
	if a.cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	cfg := *a.cfg

	overrideFloat64(cmd, "brightness", &cfg.Scan.Brightness)
	overrideBool(cmd, "fallback", &cfg.Scan.Fallback)
	overrideString(cmd, "debug-dir", &cfg.Scan.DebugDir)
	overrideInt(cmd, "version-estimate", &cfg.Scan.VersionEstimate)
	overrideInt(cmd, "max-side", &cfg.Scan.MaxImageSide)
	overrideBool(cmd, "trim", &cfg.Scan.Trim)
	overrideInt(cmd, "workers", &cfg.Scan.Workers)

	overrideString(cmd, "format", &cfg.Output.Format)
	overrideString(cmd, "output", &cfg.Output.File)
	overrideString(cmd, "overlay-dir", &cfg.Output.OverlayDir)
	overrideString(cmd, "overlay-color", &cfg.Output.OverlayColor)
	overrideBool(cmd, "continue-on-error", &cfg.Batch.ContinueOnError)
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func overrideInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func overrideInt64(cmd *cobra.Command, name string, dst *int64) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt64(name)
	}
}

func overrideBool(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}

func overrideFloat64(cmd *cobra.Command, name string, dst *float64) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetFloat64(name)
	}
}

func overrideStringSlice(cmd *cobra.Command, name string, dst *[]string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetStringSlice(name)
	}
}

// buildPipeline builds the scan pipeline for cfg.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	pl, err := pipeline.NewBuilderFromConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan pipeline: %w", err)
	}
	slog.Debug("Scan pipeline ready", "pipeline", pl.Info())
	return pl, nil
}

// writeOutput writes output to file on fs, or to w when file is empty.
func writeOutput(fs afero.Fs, w io.Writer, output, file string) error {
	if file != "" {
		if err := afero.WriteFile(fs, file, []byte(output+"\n"), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		_, _ = fmt.Fprintf(w, "Results written to %s\n", file)
		return nil
	}
	_, err := fmt.Fprintln(w, output)
	return err
}

// decodeFailures returns an error naming how many of results failed, or nil
// when all decoded or failures are tolerated.
func decodeFailures(results []*pipeline.ScanResult, continueOnError bool) error {
	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed == 0 || continueOnError {
		return nil
	}
	return fmt.Errorf("%d of %d input(s) failed to decode", failed, len(results))
}
