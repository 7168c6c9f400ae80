package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// textLayer reads the embedded text layer.
type textLayer struct{}

func (textLayer) Name() string { return "text-layer" }

func (textLayer) Extract(_ context.Context, data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read text layer: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read text layer: %w", err)
	}
	return string(out), nil
}

// readInfo reads Title, Author and CreationDate from the information dictionary.
func readInfo(data []byte) (info Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, err
	}
	dict := reader.Trailer().Key("Info")
	if dict.IsNull() {
		return Info{}, nil
	}
	return Info{
		Title:   dict.Key("Title").Text(),
		Author:  dict.Key("Author").Text(),
		Created: dict.Key("CreationDate").Text(),
	}, nil
}

// pdfToText shells out to poppler's pdftotext.
type pdfToText struct {
	runner CommandRunner
}

func (b *pdfToText) Name() string { return "pdftotext" }

func (b *pdfToText) Extract(ctx context.Context, data []byte) (string, error) {
	dir, path, err := writeTemp(data)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	out, err := b.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrPDFToolNotFound
		}
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return string(out), nil
}

// ocr rasterises each page with pdftoppm and reads it with tesseract.
type ocr struct {
	runner CommandRunner
	dpi    int
}

func (b *ocr) Name() string { return "ocr" }

func (b *ocr) Extract(ctx context.Context, data []byte) (string, error) {
	dir, path, err := writeTemp(data)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	if _, err := b.runner.Run(ctx, "pdftoppm", "-r", strconv.Itoa(b.dpi), "-png", path, prefix); err != nil {
		return "", fmt.Errorf("pdftoppm failed: %w", err)
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", err
	}
	sort.Slice(pages, func(i, j int) bool { return pageNumber(pages[i]) < pageNumber(pages[j]) })

	var sb strings.Builder
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := b.runner.Run(ctx, "tesseract", page, "stdout")
		if err != nil {
			return "", fmt.Errorf("tesseract failed on %s: %w", filepath.Base(page), err)
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.Write(out)
	}
	return sb.String(), nil
}

// pageNumber parses N from "page-N.png"; pdftoppm zero-pads by page count.
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(base, "-")
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
