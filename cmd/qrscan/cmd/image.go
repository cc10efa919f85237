package cmd

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

func newImageCommand(a *app) *cobra.Command {
	imageCmd := &cobra.Command{
		Use:   "image <files...>",
		Short: "Scan image files for a QR code",
		Long: `Scan one or more image files and print the decoded payload of each.

Supported formats: JPEG, PNG, GIF, BMP, TIFF, WebP

Examples:
  qrscan image ticket.png
  qrscan image *.jpg --format json
  qrscan image photo.jpg --fallback --overlay-dir overlays/`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runImage,
	}
	addScanFlags(imageCmd)
	addOutputFlags(imageCmd)
	imageCmd.Flags().String("overlay-dir", "", "directory to write overlay images (finder boxes and text)")
	return imageCmd
}

func (a *app) runImage(cmd *cobra.Command, args []string) error {
	cfg, err := a.commandConfig(cmd)
	if err != nil {
		return err
	}

	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	results := make([]*pipeline.ScanResult, 0, len(args))
	for _, path := range args {
		res := a.scanImageFile(ctx, pl, path, cfg)
		results = append(results, res)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	output, err := pipeline.Format(results, cfg.Output.Format)
	if err != nil {
		return err
	}
	if err := writeOutput(a.fs, cmd.OutOrStdout(), output, cfg.Output.File); err != nil {
		return err
	}
	return decodeFailures(results, cfg.Batch.ContinueOnError)
}

// scanImageFile loads and scans one file. Load failures become failed
// results so every argument gets an output line.
func (a *app) scanImageFile(ctx context.Context, pl *pipeline.Pipeline, path string, cfg *config.Config) *pipeline.ScanResult {
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		slog.Warn("Failed to load image", "file", path, "error", err)
		return &pipeline.ScanResult{
			Path:  path,
			Error: &pipeline.ScanError{Kind: pipeline.ErrorKind(err), Message: err.Error()},
		}
	}

	res, err := pl.ProcessImageContext(ctx, img)
	res.Path = path
	res.Image = meta
	if err != nil {
		slog.Debug("Scan failed", "file", path, "kind", pipeline.ErrorKind(err))
	}

	if cfg.Output.OverlayDir != "" {
		if err := a.writeOverlay(img, res, cfg); err != nil {
			slog.Warn("Failed to write overlay", "file", path, "error", err)
		}
	}
	return res
}

func (a *app) writeOverlay(img image.Image, res *pipeline.ScanResult, cfg *config.Config) error {
	ov, err := pipeline.RenderOverlay(img, res, cfg.Output.OverlayColor)
	if err != nil {
		return err
	}
	if err := a.fs.MkdirAll(cfg.Output.OverlayDir, 0o750); err != nil {
		return fmt.Errorf("create overlay dir: %w", err)
	}
	base := filepath.Base(res.Path)
	out := filepath.Join(cfg.Output.OverlayDir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
	f, err := a.fs.Create(out)
	if err != nil {
		return fmt.Errorf("create overlay: %w", err)
	}
	if err := imaging.Encode(f, ov, imaging.PNG); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode overlay: %w", err)
	}
	return f.Close()
}
