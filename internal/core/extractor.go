package core

import "context"

// Page is one page (or the whole body, for unpaged formats) of
// extracted text. Number is 1-based; 0 means the source has no pages.
type Page struct {
	Number int
	Text   string
}

// ExtractedText is the output artifact of the extraction stage.
type ExtractedText struct {
	SourceName string
	Pages      []Page
	Metadata   map[string]string
}

// DocumentExtractor converts a raw file into plain text plus structural
// metadata. The filename and content type hints select the parsing
// strategy.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, filename, contentType string) (*ExtractedText, error)
}
