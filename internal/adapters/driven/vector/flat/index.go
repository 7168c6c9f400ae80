// Package flat provides an exact, brute-force L2 vector index for the
// chunks of a single document.
//
// Per-document chunk counts are small (tens to low hundreds), so a linear
// scan is fast enough and gives exact, reproducible rankings.
package flat

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index holds one vector per chunk position at a fixed dimension.
type Index struct {
	dim      int
	checksum string
	entries  []driven.IndexEntry
}

// Build creates an index from entries. All vectors must share one dimension
// and positions must be unique. Entries are copied and ordered by position.
func Build(checksum string, entries []driven.IndexEntry) (*Index, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("build index: no entries: %w", domain.ErrInvalidInput)
	}

	dim := len(entries[0].Vector)
	if dim == 0 {
		return nil, fmt.Errorf("build index: empty vector: %w", domain.ErrDimensionMismatch)
	}

	out := make([]driven.IndexEntry, len(entries))
	seen := make(map[int]struct{}, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("build index: position %d has dimension %d, want %d: %w",
				e.Position, len(e.Vector), dim, domain.ErrDimensionMismatch)
		}
		if _, dup := seen[e.Position]; dup {
			return nil, fmt.Errorf("build index: duplicate position %d: %w", e.Position, domain.ErrInvalidInput)
		}
		seen[e.Position] = struct{}{}

		vec := make([]float32, dim)
		copy(vec, e.Vector)
		out[i] = driven.IndexEntry{Position: e.Position, Text: e.Text, Vector: vec}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })

	return &Index{dim: dim, checksum: checksum, entries: out}, nil
}

// Search returns up to k entries nearest to query, ascending by L2
// distance. Equal distances are ordered by position.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("search: query has dimension %d, index has %d: %w",
			len(query), x.dim, domain.ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]domain.VectorHit, len(x.entries))
	for i, e := range x.entries {
		hits[i] = domain.VectorHit{
			Position: e.Position,
			Text:     e.Text,
			Distance: domain.L2Distance(math.Sqrt(domain.SquaredL2(query, e.Vector))),
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Entries returns the stored chunks in position order. Callers must not
// modify the returned vectors.
func (x *Index) Entries() []driven.IndexEntry {
	return x.entries
}

// Dimensions returns the vector dimension.
func (x *Index) Dimensions() int {
	return x.dim
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	return len(x.entries)
}

// SourceChecksum returns the checksum of the bytes the index was built from.
func (x *Index) SourceChecksum() string {
	return x.checksum
}
