// Package docx extracts paragraph text from Word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".docx"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
// Some writers produce archives that only sniff as ZIP.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/zip",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts a DOCX document to a normalised document.
// Title and author come from docProps/core.xml when present, falling back
// to the filename stem and UnknownAuthor.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	archive, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%s: open archive: %w", raw.Name, domain.ErrDocumentFormat)
	}

	body, err := readPart(archive, bodyPart)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", raw.Name, domain.ErrDocumentFormat, err)
	}
	content, err := bodyText(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", raw.Name, domain.ErrDocumentFormat, err)
	}

	props := readCoreProperties(archive)
	title := strings.TrimSpace(props.Title)
	if title == "" {
		title = stem(raw.Name)
	}
	author := strings.TrimSpace(props.Creator)
	if author == "" {
		author = domain.UnknownAuthor
	}

	now := time.Now()
	metadata := make(map[string]any, len(raw.Metadata)+2)
	for k, v := range raw.Metadata {
		metadata[k] = v
	}
	metadata["mime_type"] = raw.MIMEType
	metadata["format"] = "docx"

	return &driven.NormaliseResult{
		Document: domain.Document{
			ID:        uuid.New().String(),
			Name:      raw.Name,
			Format:    domain.FormatDOCX,
			Title:     title,
			Author:    author,
			Content:   content,
			Metadata:  metadata,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}, nil
}

const (
	bodyPart = "word/document.xml"
	corePart = "docProps/core.xml"
)

var errPartMissing = errors.New("part missing")

func readPart(archive *zip.Reader, name string) ([]byte, error) {
	f, err := archive.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, errPartMissing)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// bodyText streams the body part and collects the text of every
// paragraph, including those nested in tables. Tabs and breaks inside a
// paragraph are kept as whitespace.
func bodyText(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		out    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", bodyPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return strings.TrimSpace(out.String()), nil
}

type coreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

// readCoreProperties returns the document's title and creator. A missing
// or unreadable part yields empty properties.
func readCoreProperties(archive *zip.Reader) coreProperties {
	var props coreProperties
	data, err := readPart(archive, corePart)
	if err != nil {
		return props
	}
	_ = xml.Unmarshal(data, &props)
	return props
}

// stem returns the filename without its extension.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
