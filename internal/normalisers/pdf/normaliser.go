// Package pdf extracts text from PDF documents.
//
// Text is taken from the first backend that yields any: the embedded text
// layer, then poppler's pdftotext, then OCR over rendered pages. Metadata is
// always read from the document information dictionary.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Tools are the external programs run by the fallback backends.
var Tools = []string{"pdftotext", "pdftoppm", "tesseract"}

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Backend extracts text from PDF bytes. An empty result with a nil error
// means the document has no text this backend can see.
type Backend interface {
	Name() string
	Extract(ctx context.Context, data []byte) (string, error)
}

// Info is the subset of the document information dictionary we record.
type Info struct {
	Title   string
	Author  string
	Created string
}

// InfoReader reads document properties.
type InfoReader func(data []byte) (Info, error)

// Normaliser handles PDF documents.
type Normaliser struct {
	backends []Backend
	info     InfoReader
}

// Option configures the normaliser.
type Option func(*config)

type config struct {
	runner    CommandRunner
	pdftotext bool
	ocr       bool
	dpi       int
	backends  []Backend
	info      InfoReader
}

// WithRunner replaces the command runner used by the external backends.
func WithRunner(r CommandRunner) Option {
	return func(c *config) { c.runner = r }
}

// WithPDFToText enables or disables the pdftotext fallback.
func WithPDFToText(enabled bool) Option {
	return func(c *config) { c.pdftotext = enabled }
}

// WithOCR enables or disables the OCR fallback and sets the rasterisation DPI.
func WithOCR(enabled bool, dpi int) Option {
	return func(c *config) {
		c.ocr = enabled
		if dpi > 0 {
			c.dpi = dpi
		}
	}
}

// WithBackends replaces the backend chain entirely.
func WithBackends(backends ...Backend) Option {
	return func(c *config) { c.backends = backends }
}

// WithInfoReader replaces the metadata reader.
func WithInfoReader(r InfoReader) Option {
	return func(c *config) { c.info = r }
}

// New creates a PDF normaliser. By default all three backends are enabled.
func New(opts ...Option) *Normaliser {
	cfg := &config{
		runner:    execRunner{},
		pdftotext: true,
		ocr:       true,
		dpi:       200,
		info:      readInfo,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	backends := cfg.backends
	if backends == nil {
		backends = []Backend{textLayer{}}
		if cfg.pdftotext {
			backends = append(backends, &pdfToText{runner: cfg.runner})
		}
		if cfg.ocr {
			backends = append(backends, &ocr{runner: cfg.runner, dpi: cfg.dpi})
		}
	}

	return &Normaliser{backends: backends, info: cfg.info}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".pdf"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts text and metadata from a PDF.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if len(raw.Content) == 0 {
		return nil, fmt.Errorf("%s: empty file: %w", raw.Name, domain.ErrDocumentFormat)
	}

	content, used, err := n.extract(ctx, raw)
	if err != nil {
		return nil, err
	}

	info, infoErr := n.info(raw.Content)
	if infoErr != nil {
		logger.Debug("pdf: no document properties for %s: %v", raw.Name, infoErr)
	}

	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = extractTitle(content, raw.Name)
	}
	author := strings.TrimSpace(info.Author)
	if author == "" {
		author = domain.UnknownAuthor
	}

	doc := domain.Document{
		ID:        uuid.New().String(),
		Name:      raw.Name,
		Format:    domain.FormatPDF,
		Title:     title,
		Author:    author,
		Created:   info.Created,
		Content:   content,
		Metadata:  copyMetadata(raw.Metadata),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = "pdf"
	doc.Metadata["extractor"] = used

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extract walks the backend chain. A backend is consulted only when every
// earlier one produced no usable text. If all backends failed outright the
// document is unreadable; if any ran cleanly but found nothing the result
// is simply empty.
func (n *Normaliser) extract(ctx context.Context, raw *domain.RawDocument) (string, string, error) {
	var errs []error
	for _, b := range n.backends {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		text, err := b.Extract(ctx, raw.Content)
		if err != nil {
			logger.Debug("pdf: %s backend failed for %s: %v", b.Name(), raw.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			logger.Debug("pdf: extracted %s with %s backend", raw.Name, b.Name())
			return text, b.Name(), nil
		}
		logger.Debug("pdf: %s backend found no text in %s", b.Name(), raw.Name)
	}

	if len(errs) == len(n.backends) && len(errs) > 0 {
		return "", "", fmt.Errorf("%s: %w: %w", raw.Name, domain.ErrDocumentFormat, errors.Join(errs...))
	}
	logger.Warn("pdf: no text could be extracted from %s", raw.Name)
	return "", "", nil
}

// MissingTools returns the fallback tools that are not in PATH. Without
// them only the embedded text layer is read.
func MissingTools() []string {
	return missingTools(exec.LookPath)
}

func missingTools(lookPath func(string) (string, error)) []string {
	var missing []string
	for _, tool := range Tools {
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}

// InstallInstructions returns platform-specific instructions for the
// external tools used by the fallback backends.
func InstallInstructions() string {
	return `The PDF fallbacks need pdftotext and pdftoppm (poppler) and tesseract:
  macOS:  brew install poppler tesseract
  Debian: apt install poppler-utils tesseract-ocr
  Fedora: dnf install poppler-utils tesseract`
}

// extractTitle uses the first short non-empty line, or the filename stem.
func extractTitle(content, name string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.ContainsRune(line, 0) {
			continue
		}
		if len(line) <= 200 {
			return line
		}
	}

	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// writeTemp stores data in a fresh temporary directory for the command line tools.
func writeTemp(data []byte) (dir, path string, err error) {
	dir, err = os.MkdirTemp("", "scholar-pdf-*")
	if err != nil {
		return "", "", err
	}
	path = filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		os.RemoveAll(dir)
		return "", "", err
	}
	return dir, path, nil
}
