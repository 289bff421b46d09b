package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvalr-dev/librarium/internal/core"
)

func recursiveParams(size, overlap int) *RunParams {
	return &RunParams{
		ChunkingMethod: MethodRecursive,
		ChunkSize:      size,
		ChunkOverlap:   overlap,
	}
}

func singlePage(text string) *core.ExtractedText {
	return &core.ExtractedText{
		SourceName: "test.txt",
		Pages:      []core.Page{{Number: 0, Text: text}},
	}
}

func TestChunkTextRecursiveExactOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 240) // 2400 chars
	chunks, err := ChunkText(singlePage(text), recursiveParams(1000, 100))
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Text, 1000)
	assert.Len(t, chunks[1].Text, 1000)
	assert.Len(t, chunks[2].Text, 600)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}

	// Adjacent chunks share exactly 100 characters.
	assert.Equal(t, chunks[0].Text[900:], chunks[1].Text[:100])
	assert.Equal(t, chunks[1].Text[900:], chunks[2].Text[:100])

	// The chunk set covers the full source.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Text)
	for _, c := range chunks[1:] {
		rebuilt.WriteString(c.Text[100:])
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkTextKeepsWhitespaceWindows(t *testing.T) {
	// A chunk-sized run of whitespace lands entirely inside window two;
	// it must survive so neighbors still share exactly the overlap.
	text := strings.Repeat("x", 90) + strings.Repeat(" ", 100) + strings.Repeat("y", 110)
	chunks, err := ChunkText(singlePage(text), recursiveParams(100, 10))
	require.NoError(t, err)

	require.Len(t, chunks, 4)
	assert.Equal(t, strings.Repeat(" ", 100), chunks[1].Text)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		assert.Equal(t, string(prev[len(prev)-10:]), chunks[i].Text[:10])
	}

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Text)
	for _, c := range chunks[1:] {
		rebuilt.WriteString(c.Text[10:])
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkTextDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 100)

	first, err := ChunkText(singlePage(text), recursiveParams(300, 50))
	require.NoError(t, err)
	second, err := ChunkText(singlePage(text), recursiveParams(300, 50))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunkTextShortInputSingleChunk(t *testing.T) {
	chunks, err := ChunkText(singlePage("short text"), recursiveParams(1000, 100))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Nil(t, chunks[0].PageNumber)
}

func TestChunkTextPagesStayContiguous(t *testing.T) {
	extracted := &core.ExtractedText{
		SourceName: "paged.pdf",
		Pages: []core.Page{
			{Number: 1, Text: strings.Repeat("a", 250)},
			{Number: 2, Text: strings.Repeat("b", 250)},
		},
	}
	chunks, err := ChunkText(extracted, recursiveParams(100, 10))
	require.NoError(t, err)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "indices must be contiguous across pages")
		require.NotNil(t, c.PageNumber)
	}
	assert.Equal(t, 1, *chunks[0].PageNumber)
	assert.Equal(t, 2, *chunks[len(chunks)-1].PageNumber)
	// No chunk mixes pages.
	for _, c := range chunks {
		mixed := strings.Contains(c.Text, "a") && strings.Contains(c.Text, "b")
		assert.False(t, mixed)
	}
}

func TestChunkTextTokenMethod(t *testing.T) {
	text := strings.Repeat("x", 2000)
	params := &RunParams{ChunkingMethod: MethodToken, ChunkSize: 100, ChunkOverlap: 10}
	chunks, err := ChunkText(singlePage(text), params)
	require.NoError(t, err)

	// 100 tokens ≈ 400 chars per chunk, 40-char overlap.
	assert.Len(t, chunks[0].Text, 400)
	assert.Equal(t, chunks[0].Text[360:], chunks[1].Text[:40])
}

func TestChunkTextCharacterMethodRespectsSize(t *testing.T) {
	text := "first paragraph here.\n\nsecond paragraph follows.\n\n" + strings.Repeat("z", 500)
	params := &RunParams{ChunkingMethod: MethodCharacter, ChunkSize: 200, ChunkOverlap: 20}
	chunks, err := ChunkText(singlePage(text), params)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 200)
	}
}

func TestChunkTextMarkdownMethod(t *testing.T) {
	md := "# Title\n\nSome intro text.\n\n## Section\n\n" + strings.Repeat("body text ", 50)
	params := &RunParams{ChunkingMethod: MethodMarkdown, ChunkSize: 200, ChunkOverlap: 20}
	chunks, err := ChunkText(singlePage(md), params)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestChunkTextRejectsBadParams(t *testing.T) {
	cases := []struct {
		name   string
		params *RunParams
	}{
		{"zero size", &RunParams{ChunkingMethod: MethodRecursive, ChunkSize: 0, ChunkOverlap: 0}},
		{"negative overlap", &RunParams{ChunkingMethod: MethodRecursive, ChunkSize: 100, ChunkOverlap: -1}},
		{"overlap >= size", &RunParams{ChunkingMethod: MethodRecursive, ChunkSize: 100, ChunkOverlap: 100}},
		{"unknown method", &RunParams{ChunkingMethod: "semantic", ChunkSize: 100, ChunkOverlap: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ChunkText(singlePage("some text"), tc.params)
			require.Error(t, err)
			var chunkErr *ChunkingError
			assert.ErrorAs(t, err, &chunkErr)
		})
	}
}
