package engine

// Event is one frame of a streamed answer. Exactly one field is set:
// Text carries an answer increment, Metadata the final debug record,
// Err a terminal failure reason. After a Metadata or Err event the
// channel closes.
type Event struct {
	Text     string
	Metadata *Metadata
	Err      string
}

// ChunkResult describes one retrieved chunk in the final metadata.
type ChunkResult struct {
	DocumentID string  `json:"doc_id"`
	FileName   string  `json:"file_name"`
	ChunkIndex int     `json:"chunk_index"`
	PageNumber *int    `json:"page_number,omitempty"`
	Similarity float64 `json:"similarity"`
	Preview    string  `json:"preview"`
}

// Metadata is the debug record emitted as the last event of a stream.
type Metadata struct {
	TotalDurationMs     int64         `json:"total_duration_ms"`
	RetrievalDurationMs int64         `json:"retrieval_duration_ms"`
	EmbeddingModel      string        `json:"embedding_model"`
	GenerativeModel     string        `json:"generative_model"`
	Temperature         float32       `json:"temperature"`
	TopK                int           `json:"top_k"`
	SimilarityMetric    string        `json:"similarity_metric"`
	HistorySize         int           `json:"history_size"`
	Chunks              []ChunkResult `json:"chunks"`
}

// StreamError marks a failure during answer generation. It terminates
// the stream with an explicit error event rather than a silent close.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return "answer stream failed: " + e.Err.Error()
}

func (e *StreamError) Unwrap() error { return e.Err }
