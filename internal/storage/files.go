package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clinicore/pdfjobs/internal/domain"
)

// ErrPathEscape is returned when a stored file path resolves outside the
// storage root. Treated as a security event by callers.
var ErrPathEscape = errors.New("file path escapes storage root")

// FileStore writes and resolves rendered PDFs under a single fixed directory.
// File names derive purely from the job id, never from user input.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o700); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	// Canonicalize once so later containment checks compare like with like.
	resolvedRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("canonicalize storage root: %w", err)
	}
	return &FileStore{root: resolvedRoot}, nil
}

func (s *FileStore) Root() string {
	return s.root
}

// Write persists rendered bytes for the job and returns the stored path.
func (s *FileStore) Write(jobID string, data []byte) (string, error) {
	path := filepath.Join(s.root, jobID+".pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write pdf file: %w", err)
	}
	return path, nil
}

// Resolve canonicalizes a stored path and verifies it lies strictly inside the
// storage root. The check runs on resolved absolute paths, not string prefixes
// of the raw value, because the stored value comes from a database row.
func (s *FileStore) Resolve(storedPath string) (string, error) {
	if strings.TrimSpace(storedPath) == "" {
		return "", ErrPathEscape
	}
	absPath, err := filepath.Abs(storedPath)
	if err != nil {
		return "", ErrPathEscape
	}
	resolvedDir, err := filepath.EvalSymlinks(filepath.Dir(absPath))
	if err != nil {
		return "", ErrPathEscape
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(absPath))

	relative, err := filepath.Rel(s.root, resolved)
	if err != nil {
		return "", ErrPathEscape
	}
	if relative == "." || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return resolved, nil
}

// DownloadFilename builds the attachment name clients see. It is derived from
// the job's type and referenced id so a tampered row cannot inject header text.
func DownloadFilename(job *domain.Job) string {
	reference := job.DocumentID()
	if reference == "" {
		reference = job.ID
	}
	return fmt.Sprintf("%s-%s.pdf", job.Type.URLSegment(), reference)
}
