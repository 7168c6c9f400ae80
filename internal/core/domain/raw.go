package domain

// RawDocument represents uploaded bytes before extraction.
type RawDocument struct {
	// Name is the uploaded filename.
	Name string

	// MIMEType is the detected content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains upload-specific key-value pairs.
	Metadata map[string]any
}
