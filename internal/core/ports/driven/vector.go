package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// IndexEntry is one chunk stored in a vector index.
type IndexEntry struct {
	// Position is the chunk position within the document.
	Position int

	// Text is the chunk text.
	Text string

	// Vector is the chunk embedding.
	Vector []float32
}

// VectorIndex holds the vectors of exactly one document and answers exact
// nearest-neighbour queries over them.
type VectorIndex interface {
	// Search returns up to k hits ordered by L2 distance ascending.
	// The query must have the index's dimension.
	Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error)

	// Entries returns the stored chunks in position order.
	Entries() []IndexEntry

	// Dimensions returns the vector dimension.
	Dimensions() int

	// Len returns the number of stored vectors.
	Len() int

	// SourceChecksum is the checksum of the source bytes the index was built from.
	SourceChecksum() string
}

// IndexInfo describes a persisted index.
type IndexInfo struct {
	// Document is the filename the index belongs to.
	Document string

	// Path is the on-disk artifact path.
	Path string

	// Size is the artifact size in bytes.
	Size int64

	// ModTime is when the artifact was last written, as Unix nanoseconds.
	ModTime int64
}

// IndexRegistry maps (user, filename) to uploads and persisted indexes.
// A user's namespace never resolves to another user's files.
type IndexRegistry interface {
	// SaveUpload stores the uploaded bytes, replacing any previous upload.
	SaveUpload(ctx context.Context, user domain.UserContext, name string, data []byte) error

	// ReadUpload returns the stored upload.
	ReadUpload(ctx context.Context, user domain.UserContext, name string) ([]byte, error)

	// Save persists entries as the index for name, replacing any previous index.
	Save(ctx context.Context, user domain.UserContext, name, checksum string, entries []IndexEntry) error

	// Load returns the index for name. It returns domain.ErrIndexNotFound when
	// none exists and domain.ErrStaleIndex when the upload changed since the
	// index was built.
	Load(ctx context.Context, user domain.UserContext, name string) (VectorIndex, error)

	// DropIndex removes the index for name and keeps the upload. A missing
	// index is not an error.
	DropIndex(ctx context.Context, user domain.UserContext, name string) error

	// Delete removes the upload and index for name.
	Delete(ctx context.Context, user domain.UserContext, name string) error

	// List returns the persisted indexes in the user's namespace, sorted by name.
	List(ctx context.Context, user domain.UserContext) ([]IndexInfo, error)

	// Prune deletes all but the newest keep indexes and returns the removed names.
	Prune(ctx context.Context, user domain.UserContext, keep int) ([]string, error)
}
