package prompt

import (
	"fmt"
	"strings"

	"github.com/xxxsen/csassist/internal/model"
)

// NoReference stands in for the grounding block when retrieval found nothing.
const NoReference = "No relevant reference found."

const answerTemplate = `Use the following context to answer the student:
Context: %s
Student Question: %s
Answer:`

// Grounding renders references as question/answer blocks separated by a
// blank line, in the order given.
func Grounding(refs []model.Reference) string {
	if len(refs) == 0 {
		return NoReference
	}
	blocks := make([]string, 0, len(refs))
	for _, ref := range refs {
		blocks = append(blocks, fmt.Sprintf("Question: %s\nAnswer: %s", ref.Question, ref.Answer))
	}
	return strings.Join(blocks, "\n\n")
}

func Build(question string, refs []model.Reference) string {
	return fmt.Sprintf(answerTemplate, Grounding(refs), question)
}
