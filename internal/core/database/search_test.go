package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricOperator(t *testing.T) {
	cases := map[string]string{
		"cosine": "<=>",
		"l2":     "<->",
		"inner":  "<#>",
	}
	for metric, op := range cases {
		got, err := metricOperator(metric)
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}

	_, err := metricOperator("hamming")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hamming")
}

func TestSearchChunksQueryOrdering(t *testing.T) {
	q, err := searchChunksQuery("cosine")
	require.NoError(t, err)

	assert.Contains(t, q, "embedding <=> $1")
	// Deterministic ranking: distance, then chunk index, then doc id.
	assert.Contains(t, q, "ORDER BY distance ASC, c.chunk_index ASC, c.doc_id ASC")
	assert.Contains(t, q, "v.embedding_model = $3")
	assert.Contains(t, q, "LIMIT $4")

	_, err = searchChunksQuery("hamming")
	assert.Error(t, err)
}
