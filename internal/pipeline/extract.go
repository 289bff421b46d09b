package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/yuvalr-dev/librarium/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor converts PDFs, Office documents and HTML through
// docconv; plain text and markdown are read directly.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, filename, contentType string) (*core.ExtractedText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := map[string]string{}
	var body string

	if isPlainText(filename, contentType) {
		body = string(data)
	} else {
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = docconv.MimeTypeByExtension(filename)
		}
		res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
		if err != nil {
			return nil, &ExtractionError{Source: filename, Err: err}
		}
		body = res.Body
		for k, v := range res.Meta {
			meta[k] = v
		}
	}

	if strings.TrimSpace(body) == "" {
		return nil, &ExtractionError{Source: filename, Err: errEmptyExtraction}
	}

	return &core.ExtractedText{
		SourceName: filename,
		Pages:      splitPages(body),
		Metadata:   meta,
	}, nil
}

var errEmptyExtraction = errors.New("no text could be extracted")

// splitPages breaks the body on form feeds, the page separator pdftotext
// (and therefore docconv) emits. A single part means an unpaged source,
// reported as page number 0.
func splitPages(body string) []core.Page {
	parts := strings.Split(body, "\f")
	if len(parts) == 1 {
		return []core.Page{{Number: 0, Text: body}}
	}
	pages := make([]core.Page, 0, len(parts))
	n := 0
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		n++
		pages = append(pages, core.Page{Number: n, Text: p})
	}
	if len(pages) == 0 {
		return []core.Page{{Number: 0, Text: body}}
	}
	return pages
}

func isPlainText(filename, contentType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".csv", ".log":
		return true
	}
	return strings.HasPrefix(contentType, "text/plain") ||
		strings.HasPrefix(contentType, "text/markdown")
}
