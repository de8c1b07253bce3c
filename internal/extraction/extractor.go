// Package extraction defines the text-extraction seam to the external
// file-format collaborator.
//
// Format-specific parsing (PDF, DOCX, XLSX, CSV, JSON) lives outside the
// retrieval core; the core only consumes this interface.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// Sentinel errors for extraction.
var (
	// ErrNoContent indicates a document with no extractable text.
	ErrNoContent = errors.New("no extractable content")

	// ErrUnsupportedFile indicates a file the extractor cannot read.
	ErrUnsupportedFile = errors.New("unsupported file")
)

// FileMetadata describes the extracted source file.
type FileMetadata struct {
	// Path is the cleaned source path.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModTime is the file's modification time.
	ModTime time.Time `json:"mod_time"`

	// Extension is the lowercased file extension, including the dot.
	Extension string `json:"extension"`
}

// Extractor turns a file path into raw text plus metadata.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, FileMetadata, error)
}

// FileExtractor reads plain UTF-8 text files from disk. It stands in for
// the external format-aware collaborator in local and test deployments.
type FileExtractor struct {
	// MaxFileSize rejects files larger than this many bytes. Zero means
	// the 10MB default.
	MaxFileSize int64
}

const defaultMaxFileSize = 10 * 1024 * 1024

// NewFileExtractor creates a plain-file extractor.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// Extract reads the file and returns its text content.
//
// Binary files (invalid UTF-8) and empty files return ErrNoContent so the
// caller can mark the document Failed without aborting a batch.
func (e *FileExtractor) Extract(ctx context.Context, path string) (string, FileMetadata, error) {
	if err := ctx.Err(); err != nil {
		return "", FileMetadata{}, err
	}

	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		return "", FileMetadata{}, fmt.Errorf("stat %s: %w", cleanPath, err)
	}
	if info.IsDir() {
		return "", FileMetadata{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFile, cleanPath)
	}

	maxSize := e.MaxFileSize
	if maxSize == 0 {
		maxSize = defaultMaxFileSize
	}
	if info.Size() > maxSize {
		return "", FileMetadata{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrUnsupportedFile, cleanPath, maxSize)
	}

	content, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", FileMetadata{}, fmt.Errorf("reading %s: %w", cleanPath, err)
	}

	meta := FileMetadata{
		Path:      cleanPath,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Extension: strings.ToLower(filepath.Ext(cleanPath)),
	}

	if !utf8.Valid(content) {
		return "", meta, fmt.Errorf("%w: %s is not valid UTF-8", ErrNoContent, cleanPath)
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", meta, fmt.Errorf("%w: %s", ErrNoContent, cleanPath)
	}

	return text, meta, nil
}

// Ensure FileExtractor implements Extractor.
var _ Extractor = (*FileExtractor)(nil)
