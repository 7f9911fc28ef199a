package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"squat-take_2.v1", 0, "squat-take_2.v1"},
		{"  Warmup take 2 ", 0, "Warmup_take_2"},
		{"A\nB\x00C", 0, "ABC"},
		{"bad<>|\"name", 0, "bad____name"},
		{"...hidden", 0, "hidden"},
		{"..", 0, ""},
		{"../../etc/passwd", 0, "_.._etc_passwd"},
		{"Übung", 0, "Übung"},
		{"abcdefghijklmnop", 10, "abcdefghij"},
	}
	for _, tc := range tests {
		if got := Slug(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("Slug(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		label, id string
		format    Format
		want      string
	}{
		{"Warmup take 2", "c1", FormatCSV, "Warmup_take_2.csv"},
		{"", "c1", FormatJSON, "comparison_c1.json"},
		{"..", "c1", FormatCSV, "comparison_c1.csv"},
		{"\t", "a/b", FormatCSV, "comparison_a_b.csv"},
	}
	for _, tc := range tests {
		if got := FileName(tc.label, tc.id, tc.format); got != tc.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tc.label, tc.id, got, tc.want)
		}
	}
}

func TestValidateOutputDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := ValidateOutputDir(dir); err != nil {
		t.Fatalf("ValidateOutputDir(%q) = %v, want nil", dir, err)
	}

	bad := []string{
		"",
		"/tmp/../etc",
		"relative/dir",
		dir + "/",
		filepath.Join(dir, "missing"),
		file,
	}
	for _, p := range bad {
		if err := ValidateOutputDir(p); !errors.Is(err, ErrInvalidOutputDir) {
			t.Errorf("ValidateOutputDir(%q) = %v, want ErrInvalidOutputDir", p, err)
		}
	}
}
