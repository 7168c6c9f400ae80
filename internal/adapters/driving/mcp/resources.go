package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for Scholar resources.
	uriScheme = "scholar://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "Documents in the shared namespace",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "users/{userId}/documents",
		Name:        "user-documents",
		Description: "Documents uploaded by a specific user",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)
}

type docInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Format  string `json:"format"`
	Chunks  int    `json:"chunks"`
	Indexed bool   `json:"indexed"`
}

// handleDocumentsResource lists the documents of the namespace named by the URI.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	user, ok := userFromURI(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if s.ports.Ingest == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	docs, err := s.ports.Ingest.List(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	infos := make([]docInfo, len(docs))
	for i := range docs {
		infos[i] = docInfo{
			Name:    docs[i].Name,
			Title:   docs[i].Title,
			Author:  docs[i].Author,
			Format:  string(docs[i].Format),
			Chunks:  docs[i].ChunkCount,
			Indexed: docs[i].Indexed,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// userFromURI resolves scholar://documents to the shared namespace and
// scholar://users/{userId}/documents to that user.
func userFromURI(uri string) (domain.UserContext, bool) {
	if uri == uriScheme+"documents" {
		return domain.Anonymous(), true
	}

	const prefix = uriScheme + "users/"
	const suffix = "/documents"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return domain.UserContext{}, false
	}

	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	user := domain.ForUser(id)
	if id == "" || user.Validate() != nil {
		return domain.UserContext{}, false
	}
	return user, true
}
