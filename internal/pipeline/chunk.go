package pipeline

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/yuvalr-dev/librarium/internal/core"
)

// Supported chunking methods.
const (
	MethodRecursive = "recursive"
	MethodCharacter = "character"
	MethodToken     = "token"
	MethodMarkdown  = "markdown"
	MethodHTML      = "html"
)

// ChunkData is one chunk of the chunk-stage artifact: text plus its
// position and the page it came from.
type ChunkData struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	PageNumber *int   `json:"page_number,omitempty"`
}

// ChunkText splits extracted text into ordered chunks. Pages are split
// independently so a chunk never spans a page boundary; indices stay
// contiguous across the whole document. Output is deterministic for
// identical input and parameters.
func ChunkText(extracted *core.ExtractedText, params *RunParams) ([]ChunkData, error) {
	if err := validateChunkParams(params); err != nil {
		return nil, err
	}

	// The structural splitters can emit empty fragments between headers;
	// those are dropped. Window pieces are kept verbatim, blank or not,
	// so adjacent chunks always share exactly the configured overlap.
	skipBlank := params.ChunkingMethod == MethodMarkdown || params.ChunkingMethod == MethodHTML

	var out []ChunkData
	for _, page := range extracted.Pages {
		pieces, err := splitByMethod(page.Text, params)
		if err != nil {
			return nil, err
		}
		var pageNum *int
		if page.Number > 0 {
			n := page.Number
			pageNum = &n
		}
		for _, p := range pieces {
			if skipBlank && strings.TrimSpace(p) == "" {
				continue
			}
			out = append(out, ChunkData{Index: len(out), Text: p, PageNumber: pageNum})
		}
	}
	return out, nil
}

func validateChunkParams(params *RunParams) error {
	if params.ChunkSize <= 0 {
		return &ChunkingError{Reason: fmt.Sprintf("chunk_size must be positive, got %d", params.ChunkSize)}
	}
	if params.ChunkOverlap < 0 {
		return &ChunkingError{Reason: fmt.Sprintf("chunk_overlap must not be negative, got %d", params.ChunkOverlap)}
	}
	if params.ChunkOverlap >= params.ChunkSize {
		return &ChunkingError{Reason: fmt.Sprintf("chunk_overlap %d must be smaller than chunk_size %d", params.ChunkOverlap, params.ChunkSize)}
	}
	switch params.ChunkingMethod {
	case MethodRecursive, MethodCharacter, MethodToken, MethodMarkdown, MethodHTML:
		return nil
	default:
		return &ChunkingError{Reason: fmt.Sprintf("unknown chunking method %q", params.ChunkingMethod)}
	}
}

func splitByMethod(text string, params *RunParams) ([]string, error) {
	switch params.ChunkingMethod {
	case MethodRecursive:
		return splitWindow([]rune(text), params.ChunkSize, params.ChunkOverlap), nil
	case MethodCharacter:
		return splitCharacter(text, params.ChunkSize, params.ChunkOverlap), nil
	case MethodToken:
		// Token sizes are converted to rune windows via the rough
		// 4-characters-per-token rule.
		return splitWindow([]rune(text), params.ChunkSize*charsPerToken, params.ChunkOverlap*charsPerToken), nil
	case MethodMarkdown:
		return splitMarkdown(text, params.ChunkSize, params.ChunkOverlap)
	case MethodHTML:
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return nil, &ChunkingError{Reason: "html conversion failed: " + err.Error()}
		}
		return splitMarkdown(md, params.ChunkSize, params.ChunkOverlap)
	default:
		return nil, &ChunkingError{Reason: fmt.Sprintf("unknown chunking method %q", params.ChunkingMethod)}
	}
}

const charsPerToken = 4

// splitWindow slides a fixed window over the text: each chunk is size
// runes long and starts size-overlap runes after the previous one, so
// adjacent chunks share exactly overlap runes. Only the final chunk may
// be shorter.
func splitWindow(runes []rune, size, overlap int) []string {
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}
	step := size - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// splitCharacter splits on paragraph breaks first, then packs the
// pieces into chunks no longer than size, carrying up to overlap runes
// of the previous chunk's tail into the next one. Paragraphs longer
// than size fall back to the window splitter.
func splitCharacter(text string, size, overlap int) []string {
	paras := strings.Split(text, "\n\n")
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, string(cur))
		if overlap > 0 && len(cur) > overlap {
			tail := make([]rune, overlap)
			copy(tail, cur[len(cur)-overlap:])
			cur = tail
		} else {
			cur = nil
		}
	}
	for _, para := range paras {
		p := []rune(strings.TrimSpace(para))
		if len(p) == 0 {
			continue
		}
		if len(p) > size {
			flush()
			cur = nil
			out = append(out, splitWindow(p, size, overlap)...)
			continue
		}
		sep := 0
		if len(cur) > 0 {
			sep = 2
		}
		if len(cur)+sep+len(p) > size {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, '\n', '\n')
		}
		cur = append(cur, p...)
	}
	if len(cur) > overlap || (len(out) == 0 && len(cur) > 0) {
		out = append(out, string(cur))
	}
	return out
}

func splitMarkdown(text string, size, overlap int) ([]string, error) {
	s := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
	pieces, err := s.SplitText(text)
	if err != nil {
		return nil, &ChunkingError{Reason: "markdown split failed: " + err.Error()}
	}
	return pieces, nil
}
