package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/qrscan/internal/server"
)

func (testCtx *TestContext) startServer(config server.Config) error {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
	}
	wrapper, err := NewHTTPTestServer(config)
	if err != nil {
		return err
	}
	testCtx.HTTPTestServer = wrapper
	return nil
}

func (testCtx *TestContext) theScanServerIsRunning() error {
	return testCtx.startServer(server.DefaultConfig())
}

func (testCtx *TestContext) theScanServerIsRunningWithRateLimit(perMinute int) error {
	config := server.DefaultConfig()
	config.RateLimit = server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute}
	return testCtx.startServer(config)
}

func (testCtx *TestContext) theScanServerIsRunningWithUploadLimit(mb int) error {
	config := server.DefaultConfig()
	config.MaxUploadMB = int64(mb)
	return testCtx.startServer(config)
}

func (testCtx *TestContext) requireServer() (*HTTPTestServerWrapper, error) {
	if testCtx.HTTPTestServer == nil {
		return nil, errors.New("scan server is not running")
	}
	return testCtx.HTTPTestServer, nil
}

func (testCtx *TestContext) recordResponse(resp *http.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	srv, err := testCtx.requireServer()
	if err != nil {
		return err
	}
	return testCtx.recordResponse(srv.Do(http.MethodGet, path, "", nil))
}

func (testCtx *TestContext) iUploadTheImageTo(file, path string) error {
	srv, err := testCtx.requireServer()
	if err != nil {
		return err
	}
	return testCtx.recordResponse(srv.Upload(path, "image", testCtx.path(file), nil))
}

func (testCtx *TestContext) iUploadThePDFTo(file, path string) error {
	srv, err := testCtx.requireServer()
	if err != nil {
		return err
	}
	return testCtx.recordResponse(srv.Upload(path, "pdf", testCtx.path(file), nil))
}

func (testCtx *TestContext) iUploadThePDFPagesTo(file, pages, path string) error {
	srv, err := testCtx.requireServer()
	if err != nil {
		return err
	}
	return testCtx.recordResponse(srv.Upload(path, "pdf", testCtx.path(file), map[string]string{"pages": pages}))
}

// iSendABatchRequestWith posts the comma separated files as base64 images.
func (testCtx *TestContext) iSendABatchRequestWith(files string) error {
	srv, err := testCtx.requireServer()
	if err != nil {
		return err
	}
	var req server.BatchScanRequest
	for _, name := range strings.Split(files, ",") {
		name = strings.TrimSpace(name)
		data, err := os.ReadFile(testCtx.path(name))
		if err != nil {
			return err
		}
		req.Images = append(req.Images, server.BatchImageRequest{Name: name, Data: data})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return testCtx.recordResponse(srv.Do(http.MethodPost, "/api/v1/scan/batch", "application/json", bytes.NewReader(body)))
}

// iSendTheImageOverTheWebSocket sends one image request and collects
// messages until a completed or error message arrives.
func (testCtx *TestContext) iSendTheImageOverTheWebSocket(file string) error {
	data, err := os.ReadFile(testCtx.path(file))
	if err != nil {
		return err
	}
	return testCtx.sendWebSocket(server.WebSocketScanRequest{Type: "image", Image: data})
}

func (testCtx *TestContext) iSendThePDFOverTheWebSocket(file string) error {
	data, err := os.ReadFile(testCtx.path(file))
	if err != nil {
		return err
	}
	return testCtx.sendWebSocket(server.WebSocketScanRequest{Type: "pdf", PDF: data})
}

func (testCtx *TestContext) sendWebSocket(req server.WebSocketScanRequest) error {
	srv, err := testCtx.requireServer()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial(srv.WebSocketURL("/ws/scan"), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}

	testCtx.LastWSMessages = nil
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("websocket read failed: %w", err)
		}
		testCtx.LastWSMessages = append(testCtx.LastWSMessages, msg)
		if status, _ := msg["status"].(string); status == "completed" || status == "error" {
			return nil
		}
	}
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseFieldShouldBe compares a dotted JSON field with a string.
func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	var data any
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &data); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	v, err := lookupField(data, field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("field %s: expected %q, got %q", field, expected, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != expected {
		return fmt.Errorf("header %s: expected %q, got %q", name, expected, got)
	}
	return nil
}

// iUploadTheImageTimes keeps the last response of n uploads.
func (testCtx *TestContext) iUploadTheImageTimes(file, path string, n int) error {
	for range n {
		if err := testCtx.iUploadTheImageTo(file, path); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theWebSocketShouldReport(status string) error {
	if len(testCtx.LastWSMessages) == 0 {
		return errors.New("no websocket messages received")
	}
	last := testCtx.LastWSMessages[len(testCtx.LastWSMessages)-1]
	if got, _ := last["status"].(string); got != status {
		return fmt.Errorf("expected final status %q, got %q: %v", status, got, last)
	}
	return nil
}

func (testCtx *TestContext) theWebSocketResultShouldContain(text string) error {
	if len(testCtx.LastWSMessages) == 0 {
		return errors.New("no websocket messages received")
	}
	data, err := json.Marshal(testCtx.LastWSMessages[len(testCtx.LastWSMessages)-1])
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("websocket result does not contain %q: %s", text, data)
	}
	return nil
}

// RegisterServerSteps registers the HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scan server is running$`, testCtx.theScanServerIsRunning)
	sc.Step(`^the scan server is running with a limit of (\d+) requests per minute$`,
		testCtx.theScanServerIsRunningWithRateLimit)
	sc.Step(`^the scan server is running with an upload limit of (\d+) MB$`,
		testCtx.theScanServerIsRunningWithUploadLimit)

	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I upload the image "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTheImageTo)
	sc.Step(`^I upload the image "([^"]*)" to "([^"]*)" (\d+) times$`, testCtx.iUploadTheImageTimes)
	sc.Step(`^I upload the PDF "([^"]*)" to "([^"]*)"$`, testCtx.iUploadThePDFTo)
	sc.Step(`^I upload the PDF "([^"]*)" with pages "([^"]*)" to "([^"]*)"$`, testCtx.iUploadThePDFPagesTo)
	sc.Step(`^I send a batch request with "([^"]*)"$`, testCtx.iSendABatchRequestWith)
	sc.Step(`^I send the image "([^"]*)" over the WebSocket$`, testCtx.iSendTheImageOverTheWebSocket)
	sc.Step(`^I send the PDF "([^"]*)" over the WebSocket$`, testCtx.iSendThePDFOverTheWebSocket)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the WebSocket should report "([^"]*)"$`, testCtx.theWebSocketShouldReport)
	sc.Step(`^the WebSocket result should contain "([^"]*)"$`, testCtx.theWebSocketResultShouldContain)
}
