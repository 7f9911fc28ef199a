package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

const maxNameLen = 120

// ErrInvalidOutputDir is wrapped by every ValidateOutputDir failure.
var ErrInvalidOutputDir = errors.New("invalid output_dir")

// FileName turns a caller-supplied label into an export file name. Labels
// that sanitize to nothing fall back to comparison_<id>.
func FileName(label, comparisonID string, format Format) string {
	base := Slug(label, maxNameLen)
	if base == "" {
		base = "comparison_" + Slug(comparisonID, maxNameLen)
	}
	return base + "." + string(format)
}

// Slug keeps letters, digits, '-', '_' and '.', maps whitespace and every
// other rune to '_', and strips leading dots so the result is never hidden
// or a relative path segment.
func Slug(s string, maxLen int) string {
	runes := make([]rune, 0, len(s))
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsControl(r):
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			runes = append(runes, r)
		default:
			runes = append(runes, '_')
		}
	}

	for len(runes) > 0 && runes[0] == '.' {
		runes = runes[1:]
	}
	if maxLen > 0 && len(runes) > maxLen {
		runes = runes[:maxLen]
	}
	return string(runes)
}

// ValidateOutputDir accepts only an absolute, already clean path to an
// existing directory.
func ValidateOutputDir(dir string) error {
	switch {
	case strings.TrimSpace(dir) == "":
		return fmt.Errorf("%w: empty path", ErrInvalidOutputDir)
	case slices.Contains(strings.Split(filepath.ToSlash(dir), "/"), ".."):
		return fmt.Errorf("%w: path traversal", ErrInvalidOutputDir)
	case !filepath.IsAbs(dir):
		return fmt.Errorf("%w: path must be absolute", ErrInvalidOutputDir)
	case filepath.Clean(dir) != dir:
		return fmt.Errorf("%w: path must be clean", ErrInvalidOutputDir)
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s does not exist", ErrInvalidOutputDir, dir)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidOutputDir, dir)
	}
	return nil
}
