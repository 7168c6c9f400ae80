package mcp

import (
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

// Ports aggregates the driving ports exposed by the MCP server.
type Ports struct {
	// Retrieval finds passages across indexed documents.
	Retrieval driving.RetrievalService

	// Ask answers questions from retrieved passages. Optional.
	Ask driving.AskService

	// Similarity compares texts. Optional.
	Similarity driving.SimilarityService

	// Ingest lists documents. Optional.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
