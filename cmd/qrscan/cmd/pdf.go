package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

func newPDFCommand(a *app) *cobra.Command {
	pdfCmd := &cobra.Command{
		Use:   "pdf <files...>",
		Short: "Scan the images embedded in PDF files",
		Long: `Extract the images of each PDF page and scan every one of them for a QR
code. Encrypted documents are decrypted with the given passwords first.

Examples:
  qrscan pdf invoice.pdf
  qrscan pdf invoice.pdf --pages 1-3,7 --format json
  qrscan pdf secret.pdf --password hunter2`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runPDF,
	}
	addScanFlags(pdfCmd)
	addOutputFlags(pdfCmd)

	f := pdfCmd.Flags()
	f.String("pages", "", "page range to scan (e.g. 1-3,5)")
	f.String("password", "", "user password for encrypted PDFs")
	f.String("owner-password", "", "owner password for encrypted PDFs")
	f.Int("pdf-workers", 0, "parallel image scans per document (0 = number of CPUs)")
	return pdfCmd
}

func (a *app) runPDF(cmd *cobra.Command, args []string) error {
	cfg, err := a.commandConfig(cmd)
	if err != nil {
		return err
	}
	overrideString(cmd, "pages", &cfg.PDF.Pages)
	overrideString(cmd, "password", &cfg.PDF.UserPassword)
	overrideString(cmd, "owner-password", &cfg.PDF.OwnerPassword)
	overrideInt(cmd, "pdf-workers", &cfg.PDF.Workers)
	if _, err := pdf.ParsePageRange(cfg.PDF.Pages); err != nil {
		return fmt.Errorf("invalid page range: %w", err)
	}

	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	proc, err := pdf.NewProcessor(pl, cfg.ToPDFConfig())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	docs := make([]*pdf.DocumentResult, 0, len(args))
	var results []*pipeline.ScanResult
	for _, file := range args {
		doc, err := proc.ProcessFile(ctx, file, cfg.PDF.Pages)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if pdf.IsPasswordError(err) {
				slog.Warn("PDF needs a password", "file", file, "error", err)
			} else {
				slog.Warn("Failed to process PDF", "file", file, "error", err)
			}
			results = append(results, &pipeline.ScanResult{
				Path:  file,
				Error: &pipeline.ScanError{Kind: pipeline.KindInvalidImage, Message: err.Error()},
			})
			continue
		}
		docs = append(docs, doc)
		if len(doc.Results()) == 0 {
			results = append(results, &pipeline.ScanResult{
				Path:  file,
				Error: &pipeline.ScanError{Kind: pipeline.KindNoQRCodeFound, Message: "no images on the selected pages"},
			})
			continue
		}
		results = append(results, doc.Results()...)
	}

	output, err := formatDocuments(docs, results, cfg.Output.Format)
	if err != nil {
		return err
	}
	if err := writeOutput(a.fs, cmd.OutOrStdout(), output, cfg.Output.File); err != nil {
		return err
	}
	return decodeFailures(results, cfg.Batch.ContinueOnError)
}

// formatDocuments renders JSON per document, keeping the page structure.
// Other formats flatten to one row per scanned image.
func formatDocuments(docs []*pdf.DocumentResult, results []*pipeline.ScanResult, format string) (string, error) {
	if strings.ToLower(format) != pipeline.FormatJSON {
		return pipeline.Format(results, format)
	}
	var v any = docs
	if len(docs) == 1 {
		v = docs[0]
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	return string(b), nil
}
