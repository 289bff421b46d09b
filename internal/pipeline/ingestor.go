package pipeline

import (
	"context"
	"log"
	"time"
)

// DocumentIngestor feeds uploaded documents through the Runner from a
// bounded job queue.
type DocumentIngestor struct {
	runner *Runner
	jobs   chan string
}

// NewDocumentIngestor constructs the ingestor with a bounded job queue (64).
func NewDocumentIngestor(runner *Runner) *DocumentIngestor {
	return &DocumentIngestor{
		runner: runner,
		jobs:   make(chan string, 64),
	}
}

// Start launches numWorkers goroutines reading from the jobs channel.
// Each picks one document at a time and runs the full pipeline for it,
// so a slow embedding call only occupies its own worker.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("DocumentIngestor: worker %d shutting down", w)
					return
				case docID := <-i.jobs:
					log.Printf("DocumentIngestor: worker %d processing document %s", w, docID)
					if err := i.processOne(docID); err != nil {
						log.Printf("DocumentIngestor: document %s: %v", docID, err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a document ID for ingestion. Blocks when the queue
// is full.
func (i *DocumentIngestor) Enqueue(docID string) {
	i.jobs <- docID
}

// processOne runs all four stages with a fresh timeout, detached from
// the request context that accepted the upload.
func (i *DocumentIngestor) processOne(docID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return i.runner.Run(ctx, docID, Overrides{}, nil)
}
