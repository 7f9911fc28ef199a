// Package export writes finished comparisons to disk as CSV or JSON.
package export

import (
	"fmt"
	"strings"

	"github.com/posematch/posematch/internal/scoring"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv or json in any case; empty means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("format must be csv or json")
	}
}

type ExportRequest struct {
	Format    string `json:"format"`
	OutputDir string `json:"output_dir,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

type ExportResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	PairCount  int    `json:"pair_count"`
}

// Row is one aligned frame pair and its score.
type Row struct {
	Pair            int     `json:"pair"`
	ReferenceFrame  int     `json:"reference_frame"`
	ComparisonFrame int     `json:"comparison_frame"`
	ReferenceMs     float64 `json:"reference_ms"`
	ComparisonMs    float64 `json:"comparison_ms"`
	Score           float64 `json:"score"`
}

// Document is the JSON export layout.
type Document struct {
	ComparisonID      string          `json:"comparison_id"`
	ReferenceVideoID  string          `json:"reference_video_id"`
	ComparisonVideoID string          `json:"comparison_video_id"`
	Preset            string          `json:"preset,omitempty"`
	Config            scoring.Config  `json:"config"`
	Result            *scoring.Result `json:"result"`
	Pairs             []Row           `json:"pairs"`
}
