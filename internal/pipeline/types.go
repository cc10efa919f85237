package pipeline

import (
	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Result sources.
const (
	SourceCore      = "core"
	SourceReference = "reference"
)

// ScanError describes a failed scan.
type ScanError struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// ScanResult is the outcome of scanning one image.
type ScanResult struct {
	// Path is set by drivers that scan files.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Page and Index are set for images extracted from PDF documents.
	Page  int `json:"page,omitempty" yaml:"page,omitempty"`
	Index int `json:"index,omitempty" yaml:"index,omitempty"`

	Image utils.ImageMetadata `json:"image" yaml:"image"`

	// Source is "core" or "reference", empty for failed scans.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Text   string `json:"text" yaml:"text"`
	Mode   string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Length int    `json:"length,omitempty" yaml:"length,omitempty"`

	Version int    `json:"version,omitempty" yaml:"version,omitempty"`
	Width   int    `json:"width,omitempty" yaml:"width,omitempty"`
	MaskID  int    `json:"mask_id" yaml:"mask_id"`
	ECLevel string `json:"ec_level,omitempty" yaml:"ec_level,omitempty"`

	// Finder holds the UL, UR and LL finder boxes in source image coordinates.
	Finder []utils.Box `json:"finder,omitempty" yaml:"finder,omitempty"`
	// Angle is the counter-clockwise correction applied by the rectifier.
	Angle float64 `json:"angle" yaml:"angle"`

	Timings []common.StageTiming `json:"timings,omitempty" yaml:"timings,omitempty"`
	TotalNs int64                `json:"total_ns" yaml:"total_ns"`

	Error *ScanError `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the scan produced text.
func (r *ScanResult) OK() bool { return r != nil && r.Error == nil && r.Source != "" }
