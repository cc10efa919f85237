package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second

	wsResponseType = "scan_response"
)

// WebSocketScanRequest is a scan request sent over the socket. Image and
// PDF carry base64 data in JSON.
type WebSocketScanRequest struct {
	Type  string `json:"type"` // "image" or "pdf"
	Image []byte `json:"image,omitempty"`
	PDF   []byte `json:"pdf,omitempty"`
	Pages string `json:"pages,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketScanResponse is a progress, result or error message.
type WebSocketScanResponse struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"` // "processing", "completed", "error"
	Progress  float64 `json:"progress,omitempty"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.corsOrigin == "" || s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
		},
	}
}

// scanWebSocketHandler handles WebSocket connections for streaming scans.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
	slog.Info("WebSocket connection closed", "remote_addr", r.RemoteAddr)
}

// handleWebSocketConnection serves requests until the peer goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024 * 2)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage processes one request.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketScanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := newRequestID()
	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      wsResponseType,
		Status:    "processing",
		RequestID: requestID,
	})

	switch req.Type {
	case "image":
		s.processWebSocketImage(ctx, conn, req, requestID)
	case "pdf":
		s.processWebSocketPDF(ctx, conn, req, requestID)
	default:
		s.sendWebSocketError(conn, requestID, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

func (s *Server) processWebSocketImage(ctx context.Context, conn WebSocketConnWriter, req WebSocketScanRequest, requestID string) {
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No image data provided")
		return
	}
	img, err := utils.DecodeImage(bytes.NewReader(req.Image))
	if err != nil {
		s.sendWebSocketError(conn, requestID, pipeline.KindInvalidImage, fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      wsResponseType,
		Status:    "processing",
		Progress:  0.5,
		RequestID: requestID,
	})

	res, err := s.pipeline.ProcessImageContext(ctx, img)
	observeScan(res)
	if err != nil {
		kind := pipeline.ErrorKind(err)
		scanFailuresTotal.WithLabelValues(kind).Inc()
		s.sendWebSocketResponse(conn, WebSocketScanResponse{
			Type:      wsResponseType,
			Status:    "error",
			Progress:  1.0,
			Result:    res,
			Error:     err.Error(),
			ErrorType: kind,
			RequestID: requestID,
		})
		return
	}

	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      wsResponseType,
		Status:    "completed",
		Progress:  1.0,
		Result:    res,
		RequestID: requestID,
	})
}

func (s *Server) processWebSocketPDF(ctx context.Context, conn WebSocketConnWriter, req WebSocketScanRequest, requestID string) {
	if len(req.PDF) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No PDF data provided")
		return
	}
	if s.pdf == nil {
		s.sendWebSocketError(conn, requestID, "unavailable", "PDF scanning not available")
		return
	}

	tmp, err := os.CreateTemp("", "qrscan-ws-*.pdf")
	if err != nil {
		s.sendWebSocketError(conn, requestID, pipeline.KindInternal, "Failed to store upload")
		return
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	_, werr := tmp.Write(req.PDF)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		s.sendWebSocketError(conn, requestID, pipeline.KindInternal, "Failed to store upload")
		return
	}

	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      wsResponseType,
		Status:    "processing",
		Progress:  0.2,
		RequestID: requestID,
	})

	doc, err := s.pdf.ProcessFile(ctx, tmp.Name(), req.Pages)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "processing_error", fmt.Sprintf("PDF processing failed: %v", err))
		return
	}
	for _, res := range doc.Results() {
		observeScan(res)
	}
	doc.Filename = ""

	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      wsResponseType,
		Status:    "completed",
		Progress:  1.0,
		Result:    doc,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketScanResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
