package retriever

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/xxxsen/csassist/internal/model"
	"github.com/xxxsen/csassist/internal/pkg/dbutil"
	appErr "github.com/xxxsen/csassist/internal/pkg/errors"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]model.Reference, error)
}

// Options names the knowledge table and its columns. The table is owned
// outside this service and is only ever read.
type Options struct {
	Table           string
	QuestionColumn  string
	AnswerColumn    string
	EmbeddingColumn string
	MaxTopK         int
}

func (o Options) validate() error {
	if !dbutil.ValidTablePath(o.Table) {
		return fmt.Errorf("invalid knowledge table: %q", o.Table)
	}
	for _, col := range []string{o.QuestionColumn, o.AnswerColumn, o.EmbeddingColumn} {
		if !dbutil.ValidIdentifier(col) {
			return fmt.Errorf("invalid knowledge column: %q", col)
		}
	}
	if o.MaxTopK <= 0 {
		return fmt.Errorf("max top k must be positive")
	}
	return nil
}

func (o Options) checkTopK(k int) error {
	if k < 1 || k > o.MaxTopK {
		return fmt.Errorf("%w: top_k must be within [1, %d]", appErr.ErrInvalid, o.MaxTopK)
	}
	return nil
}

type referenceRow struct {
	Question sql.NullString  `db:"question"`
	Answer   sql.NullString  `db:"answer"`
	Score    sql.NullFloat64 `db:"score"`
}

func toReferences(rows []referenceRow) []model.Reference {
	refs := make([]model.Reference, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, model.Reference{
			Question: row.Question.String,
			Answer:   row.Answer.String,
			Score:    row.Score.Float64,
		})
	}
	SortByScore(refs)
	return refs
}

// SortByScore orders references by non-increasing score, keeping the
// warehouse order for ties.
func SortByScore(refs []model.Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Score > refs[j].Score
	})
}
