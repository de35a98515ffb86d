package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/csassist/internal/model"
)

func TestGrounding_Empty(t *testing.T) {
	require.Equal(t, NoReference, Grounding(nil))
	require.Equal(t, NoReference, Grounding([]model.Reference{}))
}

func TestGrounding_KeepsOrderAndText(t *testing.T) {
	refs := []model.Reference{
		{Question: "Who teaches CS 101?", Answer: "Dr. O'Brien.", Score: 0.4},
		{Question: "Where is the lab?", Answer: "Room 204, Science Hall", Score: 0.9},
	}
	got := Grounding(refs)
	require.Equal(t, "Question: Who teaches CS 101?\nAnswer: Dr. O'Brien.\n\nQuestion: Where is the lab?\nAnswer: Room 204, Science Hall", got)
	require.Less(t, strings.Index(got, "CS 101"), strings.Index(got, "Room 204"))
}

func TestBuild(t *testing.T) {
	got := Build("What are the prerequisites for CS 201?", nil)
	require.Equal(t, `Use the following context to answer the student:
Context: No relevant reference found.
Student Question: What are the prerequisites for CS 201?
Answer:`, got)

	got = Build("q?", []model.Reference{{Question: "a", Answer: "b"}})
	require.Contains(t, got, "Context: Question: a\nAnswer: b\n")
	require.True(t, strings.HasSuffix(got, "Student Question: q?\nAnswer:"))
}

func TestBuild_Deterministic(t *testing.T) {
	refs := []model.Reference{{Question: "x", Answer: "y", Score: 1}}
	require.Equal(t, Build("q", refs), Build("q", refs))
}
