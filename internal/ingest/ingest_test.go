package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidZakaria/cath-archives-sub000/internal/home"
)

func TestSortPDFsByNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "already sorted",
			input:    []string{"issue-1.pdf", "issue-2.pdf", "issue-3.pdf"},
			expected: []string{"issue-1.pdf", "issue-2.pdf", "issue-3.pdf"},
		},
		{
			name:     "reverse order",
			input:    []string{"issue-3.pdf", "issue-2.pdf", "issue-1.pdf"},
			expected: []string{"issue-1.pdf", "issue-2.pdf", "issue-3.pdf"},
		},
		{
			name:     "mixed with double digits",
			input:    []string{"issue-10.pdf", "issue-2.pdf", "issue-1.pdf"},
			expected: []string{"issue-1.pdf", "issue-2.pdf", "issue-10.pdf"},
		},
		{
			name:     "single file without number",
			input:    []string{"issue.pdf"},
			expected: []string{"issue.pdf"},
		},
		{
			name:     "numbered and unnumbered",
			input:    []string{"issue-2.pdf", "issue.pdf", "issue-1.pdf"},
			expected: []string{"issue.pdf", "issue-1.pdf", "issue-2.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sortPDFsByNumber(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("length mismatch: got %d, want %d", len(result), len(tt.expected))
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("index %d: got %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/path/to/al-hilal.pdf", "al-hilal"},
		{"/path/to/al-hilal-1.pdf", "al-hilal"},
		{"/path/to/al-hilal-10.pdf", "al-hilal"},
		{"simple.pdf", "simple"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := deriveTitle(tt.input)
			if result != tt.expected {
				t.Errorf("got %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"issue.pdf", true},
		{"ISSUE.PDF", true},
		{"/abs/path/scan.Pdf", true},
		{"page.png", false},
		{"issue.pdf.bak", false},
	}

	for _, tt := range tests {
		if got := IsPDF(tt.path); got != tt.want {
			t.Errorf("IsPDF(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "copy.pdf")
	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "%PDF-1.4 fake" {
		t.Errorf("copied content mismatch: %q", data)
	}

	if err := copyFile(filepath.Join(dir, "missing.pdf"), dst); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestIngestValidation(t *testing.T) {
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("empty request", func(t *testing.T) {
		_, err := Ingest(context.Background(), h, Request{})
		if err == nil {
			t.Error("expected error for empty request")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Ingest(context.Background(), h, Request{
			PDFPaths: []string{filepath.Join(t.TempDir(), "missing.pdf")},
		})
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not-found error, got %v", err)
		}
	})
}

func TestExtractPages(t *testing.T) {
	// Needs a real scan fixture plus poppler-utils on PATH.
	testPDF := filepath.Join("..", "..", "testdata", "test-issue.pdf")
	if _, err := os.Stat(testPDF); os.IsNotExist(err) {
		t.Skip("test fixture not found")
	}
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}

	outDir, err := os.MkdirTemp("", "ingest-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(outDir)

	count, err := extractPages(context.Background(), testPDF, outDir, 0, DefaultDPI, 4)
	if err != nil {
		t.Fatalf("extractPages failed: %v", err)
	}
	if count == 0 {
		t.Fatal("expected at least one rendered page")
	}

	for i := 1; i <= count; i++ {
		path := filepath.Join(outDir, fmt.Sprintf("page_%04d.png", i))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("expected file %s to exist", path)
		}
	}
}
