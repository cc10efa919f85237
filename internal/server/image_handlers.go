package server

import (
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// scanImageHandler decodes the QR code in an uploaded image.
func (s *Server) scanImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, ok := s.parseImageRequest(w, r)
	if !ok {
		return
	}

	requestID := newRequestID()
	ctx, cancel := s.scanContext(r)
	defer cancel()

	res, err := s.pipeline.ProcessImageContext(ctx, img)
	observeScan(res)
	if err != nil {
		s.writeScanError(w, requestID, err)
		return
	}
	slog.Info("Scan completed", "request_id", requestID, "source", res.Source, "version", res.Version, "length", res.Length)
	s.writeImageResponse(w, r, requestID, img, res)
}

// parseImageRequest reads the multipart "image" field and decodes it.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeUploadError(w, err, "Failed to parse form data")
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, err := utils.DecodeImage(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Invalid image format: " + err.Error(),
			Kind:  pipeline.KindInvalidImage,
		})
		return nil, false
	}
	return img, true
}

func (s *Server) writeImageResponse(
	w http.ResponseWriter,
	r *http.Request,
	requestID string,
	img image.Image,
	res *pipeline.ScanResult,
) {
	format := requestFormat(r)
	switch format {
	case formatJSON:
		writeJSON(w, http.StatusOK, ScanResponse{RequestID: requestID, Result: res})
	case formatOverlay:
		s.handleOverlayOutput(w, r, img, res)
	default:
		out, err := pipeline.Format([]*pipeline.ScanResult{res}, format)
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", contentTypeFor(format))
		w.Header().Set("X-Request-ID", requestID)
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		_, _ = w.Write([]byte(out))
	}
}

func contentTypeFor(format string) string {
	switch format {
	case pipeline.FormatCSV:
		return "text/csv"
	case pipeline.FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// handleOverlayOutput renders the finder boxes over the input as PNG.
func (s *Server) handleOverlayOutput(w http.ResponseWriter, r *http.Request, img image.Image, res *pipeline.ScanResult) {
	if !s.overlayEnabled {
		http.Error(w, "overlay output disabled", http.StatusForbidden)
		return
	}

	hex := r.FormValue("color")
	if hex == "" {
		hex = s.overlayColor
	}
	ov, err := pipeline.RenderOverlay(img, res, hex)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, ov); err != nil {
		slog.Error("Failed to encode overlay", "error", err)
	}
}
