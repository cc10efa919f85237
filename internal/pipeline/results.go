package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats understood by Format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format name.
var ErrUnknownFormat = errors.New("unknown output format")

// ToJSON serializes a single result to pretty JSON.
func ToJSON(res *ScanResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONAll serializes several results to a pretty JSON array.
func ToJSONAll(results []*ScanResult) (string, error) {
	if results == nil {
		results = []*ScanResult{}
	}
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes results as a YAML sequence.
func ToYAML(results []*ScanResult) (string, error) {
	if results == nil {
		results = []*ScanResult{}
	}
	b, err := yaml.Marshal(results)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var csvHeader = []string{
	"path", "page", "source", "text", "version", "width", "mask_id", "ec_level", "mode", "length", "error_kind", "error",
}

// ToCSV exports one row per result with a header.
func ToCSV(results []*ScanResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		var kind, msg string
		if r.Error != nil {
			kind, msg = r.Error.Kind, r.Error.Message
		}
		row := []string{
			r.Path,
			strconv.Itoa(r.Page),
			r.Source,
			r.Text,
			strconv.Itoa(r.Version),
			strconv.Itoa(r.Width),
			strconv.Itoa(r.MaskID),
			r.ECLevel,
			r.Mode,
			strconv.Itoa(r.Length),
			kind,
			msg,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToPlainText prints the decoded text of each result, one per line. When more
// than one result is given, or a result has a path, lines are prefixed with
// the path. Failures print their kind.
func ToPlainText(results []*ScanResult) string {
	lines := make([]string, 0, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		label := r.Path
		if label == "" && len(results) > 1 {
			label = fmt.Sprintf("#%d", i)
		}
		if r.Page > 0 {
			label = fmt.Sprintf("%s page %d image %d", label, r.Page, r.Index)
		}
		line := r.Text
		if r.Error != nil {
			line = fmt.Sprintf("ERROR %s: %s", r.Error.Kind, r.Error.Message)
		}
		if label != "" {
			line = strings.TrimSpace(label) + ": " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Format renders results in the named output format.
func Format(results []*ScanResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return ToPlainText(results), nil
	case FormatJSON:
		if len(results) == 1 {
			return ToJSON(results[0])
		}
		return ToJSONAll(results)
	case FormatCSV:
		return ToCSV(results)
	case FormatYAML:
		return ToYAML(results)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// ValidateScanResult performs simple consistency checks.
func ValidateScanResult(res *ScanResult) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Error != nil {
		if res.Source != "" {
			return errors.New("failed result carries a source")
		}
		return nil
	}
	if res.Source != SourceCore && res.Source != SourceReference {
		return fmt.Errorf("unknown source %q", res.Source)
	}
	if res.Version != 0 && (res.Version < 1 || res.Version > 40) {
		return fmt.Errorf("version %d out of range", res.Version)
	}
	if res.MaskID < 0 || res.MaskID > 7 {
		return fmt.Errorf("mask %d out of range", res.MaskID)
	}
	for i, b := range res.Finder {
		if b.X2 < b.X1 || b.Y2 < b.Y1 {
			return fmt.Errorf("finder box %d is inverted", i)
		}
	}
	return nil
}
