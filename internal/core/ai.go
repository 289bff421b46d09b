package core

import "context"

// EmbeddingProvider turns batches of texts into fixed-dimension vectors.
// The model is chosen per call so one client serves every workspace.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// LLMProvider generates answers. GenerateStream invokes onDelta for each
// text increment as it arrives; returning an error from onDelta stops
// the stream.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateStream(ctx context.Context, systemPrompt, userPrompt string, temperature float32, onDelta func(delta string) error) error
}
