package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// scanPDFHandler scans every image embedded in an uploaded PDF.
func (s *Server) scanPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pdf == nil {
		s.writeErrorResponse(w, "PDF scanning not available", http.StatusServiceUnavailable)
		return
	}

	path, pageRange, ok := s.parsePDFRequest(w, r)
	if !ok {
		return
	}
	defer func() { _ = os.Remove(path) }()

	if _, err := pdf.ParsePageRange(pageRange); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid page range: %v", err), http.StatusBadRequest)
		return
	}

	requestID := newRequestID()
	ctx, cancel := s.scanContext(r)
	defer cancel()

	doc, err := s.pdf.ProcessFile(ctx, path, pageRange)
	if err != nil {
		if kind := pipeline.ErrorKind(err); kind == pipeline.KindCanceled {
			s.writeScanError(w, requestID, err)
			return
		}
		slog.Info("PDF scan failed", "request_id", requestID, "error", err)
		s.writeErrorResponse(w, fmt.Sprintf("PDF processing failed: %v", err), http.StatusUnprocessableEntity)
		return
	}
	for _, res := range doc.Results() {
		observeScan(res)
	}
	slog.Info("PDF scan completed", "request_id", requestID, "pages", len(doc.Pages), "decoded", len(doc.Decoded()))

	s.writePDFResponse(w, r, requestID, doc)
}

// parsePDFRequest copies the multipart "pdf" field into a temp file.
func (s *Server) parsePDFRequest(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeUploadError(w, err, "Failed to parse form data")
		return "", "", false
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		s.writeErrorResponse(w, "No PDF file provided", http.StatusBadRequest)
		return "", "", false
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	tmp, err := os.CreateTemp("", "qrscan-upload-*.pdf")
	if err != nil {
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return "", "", false
	}
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return "", "", false
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return "", "", false
	}
	return tmp.Name(), r.FormValue("pages"), true
}

func (s *Server) writePDFResponse(w http.ResponseWriter, r *http.Request, requestID string, doc *pdf.DocumentResult) {
	format := requestFormat(r)
	if format == formatJSON {
		writeJSON(w, http.StatusOK, PDFResponse{RequestID: requestID, Document: doc})
		return
	}
	if format == pipeline.FormatText {
		w.Header().Set("Content-Type", contentTypeFor(format))
		_, _ = w.Write([]byte(pdfText(doc)))
		return
	}

	out, err := pipeline.Format(doc.Results(), format)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(format))
	_, _ = w.Write([]byte(out))
}

// pdfText writes one block per page.
func pdfText(doc *pdf.DocumentResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total Pages: %d\n", doc.TotalPages)
	fmt.Fprintf(&b, "Processing Time: %dms\n\n", doc.Processing.TotalTimeMs)
	for _, page := range doc.Pages {
		fmt.Fprintf(&b, "Page %d (%dx%d):\n", page.PageNumber, page.Width, page.Height)
		for _, res := range page.Images {
			if res.OK() {
				fmt.Fprintf(&b, "  Image %d: %s\n", res.Index, res.Text)
			} else {
				fmt.Fprintf(&b, "  Image %d: ERROR %s\n", res.Index, res.Error.Kind)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
