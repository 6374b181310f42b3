package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the pageocr home directory.
	DefaultDirName = ".pageocr"

	// PagesDirName is the subdirectory for extracted page images.
	PagesDirName = "pages"

	// OutputDirName is the subdirectory for processing results.
	OutputDirName = "output"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the pageocr home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.pageocr).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// PagesPath returns the path to the extracted pages directory.
func (d *Dir) PagesPath() string {
	return filepath.Join(d.path, PagesDirName)
}

// OutputPath returns the path to the results directory.
func (d *Dir) OutputPath() string {
	return filepath.Join(d.path, OutputDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.PagesPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create pages directory: %w", err)
	}
	if err := os.MkdirAll(d.OutputPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// IssuePagesDir returns the directory for an ingested issue's page images.
func (d *Dir) IssuePagesDir(issueID string) string {
	return filepath.Join(d.PagesPath(), issueID)
}

// PagePath returns the path to a specific page image.
// Page numbers are 1-indexed.
func (d *Dir) PagePath(issueID string, pageNum int) string {
	return filepath.Join(d.IssuePagesDir(issueID), fmt.Sprintf("page_%04d.png", pageNum))
}

// PagePaths returns paths for all pages of an issue.
func (d *Dir) PagePaths(issueID string, pageCount int) []string {
	paths := make([]string, pageCount)
	for i := 1; i <= pageCount; i++ {
		paths[i-1] = d.PagePath(issueID, i)
	}
	return paths
}

// EnsureIssuePagesDir creates the pages directory for an issue.
func (d *Dir) EnsureIssuePagesDir(issueID string) error {
	return os.MkdirAll(d.IssuePagesDir(issueID), 0o755)
}

// OriginalsDir returns the directory for an issue's original PDF files.
func (d *Dir) OriginalsDir(issueID string) string {
	return filepath.Join(d.IssuePagesDir(issueID), "originals")
}

// EnsureOriginalsDir creates the originals directory for an issue's PDFs.
func (d *Dir) EnsureOriginalsDir(issueID string) error {
	return os.MkdirAll(d.OriginalsDir(issueID), 0o755)
}

// IssueOutputDir returns the results directory for an issue or batch run.
func (d *Dir) IssueOutputDir(issueID string) string {
	return filepath.Join(d.OutputPath(), issueID)
}

// EnsureIssueOutputDir creates the results directory for an issue.
func (d *Dir) EnsureIssueOutputDir(issueID string) error {
	return os.MkdirAll(d.IssueOutputDir(issueID), 0o755)
}
