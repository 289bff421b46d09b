package pipeline

import "fmt"

// Stage error taxonomy. Terminal errors mark the document failed;
// a transient EmbeddingError leaves it at "chunked" so the embed stage
// can be re-run from the persisted chunk artifact.

type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type ChunkingError struct {
	Reason string
}

func (e *ChunkingError) Error() string {
	return "chunking failed: " + e.Reason
}

type EmbeddingError struct {
	Transient bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("embedding failed (%s): %v", kind, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension %d does not match configured dimension %d", e.Got, e.Want)
}

type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return "storage transaction failed: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }
