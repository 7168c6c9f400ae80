package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidNamespace indicates a user id or filename that would escape
	// its namespace directory.
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrUnsupportedType indicates an unknown normaliser or provider type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Extraction Errors.

	// ErrDocumentFormat indicates an unsupported extension or content that
	// could not be parsed.
	ErrDocumentFormat = errors.New("document format error")

	// Embedding and model errors.

	// ErrEmbeddingFailure indicates the embedding provider failed or returned
	// a malformed response.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrModelUnavailable indicates the language model could not be reached.
	ErrModelUnavailable = errors.New("language model unavailable")

	// ErrNoRelevantContext indicates retrieval found nothing to answer from.
	ErrNoRelevantContext = errors.New("no relevant context found")

	// Index Errors.

	// ErrIndexNotFound indicates no index has been built for a document.
	ErrIndexNotFound = errors.New("index not found")

	// ErrStaleIndex indicates the source document changed after its index was built.
	ErrStaleIndex = errors.New("index is stale")

	// ErrCorruptIndex indicates an index artifact could not be decoded.
	ErrCorruptIndex = errors.New("index is corrupt")

	// ErrDimensionMismatch indicates a vector of the wrong dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// UserMessage returns a short human-readable explanation of err,
// suitable for display at the CLI. Unknown errors return their own text.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIndexNotFound):
		return "Process this document first."
	case errors.Is(err, ErrStaleIndex):
		return "The document changed since it was processed. Reindex it."
	case errors.Is(err, ErrCorruptIndex):
		return "The stored index is damaged. Reindex the document."
	case errors.Is(err, ErrDocumentFormat):
		return "Unsupported or unreadable document."
	case errors.Is(err, ErrEmbeddingFailure), errors.Is(err, ErrEmbeddingUnavailable):
		return "The embedding service is unavailable. Try again later."
	case errors.Is(err, ErrModelUnavailable):
		return "The language model is unavailable. Try again later."
	case errors.Is(err, ErrNoRelevantContext):
		return "No relevant content was found in the selected documents."
	case errors.Is(err, ErrInvalidNamespace):
		return "Invalid user or document name."
	default:
		return err.Error()
	}
}
