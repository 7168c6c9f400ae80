package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies the source format of an uploaded document.
type Format string

// Supported document formats.
const (
	FormatPDF   Format = "pdf"
	FormatDOCX  Format = "docx"
	FormatText  Format = "text"
	FormatLaTeX Format = "latex"
)

// FormatForName returns the format implied by a filename's extension.
// The second return is false for unsupported extensions.
func FormatForName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDOCX, true
	case ".txt":
		return FormatText, true
	case ".tex":
		return FormatLaTeX, true
	default:
		return "", false
	}
}

// UnknownAuthor is recorded when a document carries no author metadata.
const UnknownAuthor = "Unknown"

// Document represents an uploaded document with metadata.
// It is identified by its owner and filename; re-uploading the same
// filename replaces it.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Owner is the namespace the document belongs to.
	Owner string

	// Name is the uploaded filename.
	Name string

	// Format is the detected source format.
	Format Format

	// Title is the human-readable title.
	Title string

	// Author is the best-effort author, UnknownAuthor if absent.
	Author string

	// Created is the creation date reported by the document, if any.
	Created string

	// Content is the full extracted text. It is not persisted in the catalog.
	Content string

	// Checksum is the SHA-256 of the uploaded bytes, hex encoded.
	Checksum string

	// ChunkCount is the number of chunks in the document's index.
	ChunkCount int

	// Indexed reports whether a vector index exists for the document.
	Indexed bool

	// Metadata contains extractor-specific key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the document was last processed.
	UpdatedAt time.Time
}

// Chunk represents a retrievable unit within a document.
type Chunk struct {
	// ID is the deterministic identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk. Never empty or whitespace-only.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// IngestResult summarises one ingestion run.
type IngestResult struct {
	// Document is the catalog entry for the upload.
	Document *Document

	// Chunks is the number of chunks produced.
	Chunks int

	// Indexed reports whether an index was written.
	Indexed bool

	// Reason explains why indexing was skipped, when Indexed is false.
	Reason string
}

// Checksum returns the hex SHA-256 of data. It identifies the exact bytes an
// index was built from.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
