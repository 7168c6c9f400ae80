// Package domain defines the core business entities for scholar.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded document with extracted metadata
//   - Chunk: A retrievable unit within a document
//   - UserContext: The namespace every operation runs in
//   - RawDocument: Uploaded bytes before extraction
//   - RetrievalReport, AnalysisReport: Results of retrieval and similarity analysis
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
