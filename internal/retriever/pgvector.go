package retriever

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/ai"
	"github.com/xxxsen/csassist/internal/model"
	"github.com/xxxsen/csassist/internal/pkg/dbutil"
	"github.com/xxxsen/csassist/internal/warehouse"
)

// PGVector embeds the query through a hosted model and ranks a postgres
// table with the pgvector cosine distance operator.
type PGVector struct {
	handle   warehouse.Handle
	opts     Options
	embedder ai.IEmbedder
	taskType string
}

func NewPGVector(handle warehouse.Handle, opts Options, embedder ai.IEmbedder, taskType string) (*PGVector, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("pgvector retriever requires an embedder")
	}
	return &PGVector{handle: handle, opts: opts, embedder: embedder, taskType: taskType}, nil
}

func (p *PGVector) Statement() string {
	query := fmt.Sprintf(`SELECT %s AS "question", %s AS "answer", 1 - (%s <=> ?) AS "score"
FROM %s
ORDER BY %s <=> ?
LIMIT ?`,
		p.opts.QuestionColumn, p.opts.AnswerColumn, p.opts.EmbeddingColumn,
		p.opts.Table,
		p.opts.EmbeddingColumn,
	)
	query, _ = dbutil.Finalize(query, nil)
	return query
}

func (p *PGVector) Retrieve(ctx context.Context, query string, k int) ([]model.Reference, error) {
	if err := p.opts.checkTopK(k); err != nil {
		return nil, err
	}
	emb, err := p.embedder.Embed(ctx, query, p.taskType)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	q, err := p.handle.Querier(ctx)
	if err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(emb)
	var rows []referenceRow
	if err := q.SelectContext(ctx, &rows, p.Statement(), vec, vec, k); err != nil {
		if dbutil.IsUndefinedTable(err) {
			logutil.GetLogger(ctx).Error("knowledge table missing", zap.String("table", p.opts.Table))
		}
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("pgvector retrieval finished", zap.Int("top_k", k), zap.Int("rows", len(rows)))
	return toReferences(rows), nil
}
