package pipeline

import (
	"fmt"

	"github.com/sells-group/campus-cli/internal/model"
	"github.com/sells-group/campus-cli/pkg/llm"
)

// BuildChunks tags chunk texts with their position. The last chunk is final;
// an empty input yields a single empty final chunk so the model still
// receives a user turn.
func BuildChunks(texts []string) []model.PromptChunk {
	if len(texts) == 0 {
		return []model.PromptChunk{{Role: model.ChunkFinal}}
	}
	out := make([]model.PromptChunk, len(texts))
	for i, t := range texts {
		role := model.ChunkPartial
		if i == len(texts)-1 {
			role = model.ChunkFinal
		}
		out[i] = model.PromptChunk{Role: role, Text: t}
	}
	return out
}

// BuildMessages renders the user turns for an extraction request.
func BuildMessages(institution string, chunks []model.PromptChunk) []llm.Message {
	msgs := make([]llm.Message, 0, len(chunks))
	for _, c := range chunks {
		label := "Partial"
		if c.Role == model.ChunkFinal {
			label = "Final"
		}
		msgs = append(msgs, llm.Message{
			Role:    "user",
			Content: fmt.Sprintf("(%s chunk from %s):\n%s", label, institution, c.Text),
		})
	}
	return msgs
}
