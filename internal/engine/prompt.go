package engine

import (
	"fmt"
	"strings"

	"github.com/yuvalr-dev/librarium/internal/models"
)

const systemPrompt = "You are an intelligent assistant answering strictly from the provided workspace context. " +
	"Cite the source document when it helps. If the context does not contain the answer, say so plainly."

const noContextPrompt = "You are an intelligent assistant. No relevant context was found in this workspace " +
	"for the question. Tell the user that no matching content was found and do not invent an answer."

// maxHistoryTurns caps how much trailing conversation is replayed into
// the prompt.
const maxHistoryTurns = 50

// buildPrompt assembles the system and user prompts from the ranked
// chunks, the trailing conversation history and the new question. Each
// chunk is tagged with its source document and page so the model can
// attribute its answer.
func buildPrompt(chunks []models.RankedChunk, history []Turn, query string) (system, user string) {
	system = systemPrompt
	if len(chunks) == 0 {
		system = noContextPrompt
	}

	var b strings.Builder

	if len(chunks) > 0 {
		b.WriteString("Context:\n")
		for _, rc := range chunks {
			b.WriteString(chunkTag(&rc))
			b.WriteString("\n")
			b.WriteString(rc.Chunk.Text)
			b.WriteString("\n---\n")
		}
		b.WriteString("\n")
	}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(query)

	return system, b.String()
}

func chunkTag(rc *models.RankedChunk) string {
	if rc.Chunk.PageNumber != nil && *rc.Chunk.PageNumber > 0 {
		return fmt.Sprintf("[source: %s, page %d, chunk %d]", rc.FileName, *rc.Chunk.PageNumber, rc.Chunk.Index)
	}
	return fmt.Sprintf("[source: %s, chunk %d]", rc.FileName, rc.Chunk.Index)
}
