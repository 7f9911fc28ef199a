package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/scoring"
)

var csvHeader = []string{"pair", "reference_frame", "comparison_frame", "reference_ms", "comparison_ms", "score"}

// ErrVideosChanged reports that a video no longer has the frame count its
// comparison was scored on.
var ErrVideosChanged = errors.New("videos changed since the comparison was scored")

// Rows rebuilds the aligned pairs behind a result from the frame counts the
// result was scored on. ref and cmp must still have exactly those counts.
func Rows(ref, cmp pose.Sequence, refFrames, cmpFrames int, res *scoring.Result) ([]Row, error) {
	if refFrames <= 0 || cmpFrames <= 0 {
		return nil, fmt.Errorf("%w: no scored frame counts recorded", ErrVideosChanged)
	}
	if len(ref) != refFrames || len(cmp) != cmpFrames {
		return nil, fmt.Errorf("%w: scored %d/%d frames, videos now have %d/%d",
			ErrVideosChanged, refFrames, cmpFrames, len(ref), len(cmp))
	}
	pairs := scoring.Align(refFrames, cmpFrames)
	if len(pairs) != len(res.FrameScores) {
		return nil, fmt.Errorf("result has %d frame scores but videos align to %d pairs", len(res.FrameScores), len(pairs))
	}

	rows := make([]Row, len(pairs))
	for i, p := range pairs {
		rows[i] = Row{
			Pair:            i,
			ReferenceFrame:  p.Reference,
			ComparisonFrame: p.Comparison,
			ReferenceMs:     ref[p.Reference].Timestamp,
			ComparisonMs:    cmp[p.Comparison].Timestamp,
			Score:           res.FrameScores[i],
		}
	}
	return rows, nil
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Pair),
			strconv.Itoa(r.ReferenceFrame),
			strconv.Itoa(r.ComparisonFrame),
			formatFloat(r.ReferenceMs),
			formatFloat(r.ComparisonMs),
			formatFloat(r.Score),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteFile writes doc into dir as name.csv or name.json and returns the path.
// The file is written to a temporary name first and renamed into place.
func WriteFile(dir, name string, format Format, doc Document) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}

	outputPath := filepath.Join(dir, FileName(name, doc.ComparisonID, format))
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	switch format {
	case FormatJSON:
		err = WriteJSON(tmp, doc)
	default:
		err = WriteCSV(tmp, doc.Pairs)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}

	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return "", fmt.Errorf("move export into place: %w", err)
	}
	return outputPath, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
