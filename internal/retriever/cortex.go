package retriever

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/model"
	"github.com/xxxsen/csassist/internal/pkg/dbutil"
	"github.com/xxxsen/csassist/internal/warehouse"
)

// Cortex embeds the query and ranks the knowledge table in one warehouse
// statement using the cortex embedding and vector similarity functions.
type Cortex struct {
	handle    warehouse.Handle
	opts      Options
	model     string
	dimension int
}

func NewCortex(handle warehouse.Handle, opts Options, embedModel string, dimension int) (*Cortex, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if dimension != 768 && dimension != 1024 {
		return nil, fmt.Errorf("cortex embedding dimension must be 768 or 1024, got %d", dimension)
	}
	if !dbutil.ValidModelName(embedModel) {
		return nil, fmt.Errorf("invalid embedding model: %q", embedModel)
	}
	return &Cortex{handle: handle, opts: opts, model: embedModel, dimension: dimension}, nil
}

func (c *Cortex) Statement(query string, k int) string {
	return fmt.Sprintf(`WITH q AS (
	SELECT SNOWFLAKE.CORTEX.EMBED_TEXT_%d(%s, %s) AS emb
)
SELECT %s AS "question", %s AS "answer", VECTOR_COSINE_SIMILARITY(%s, q.emb) AS "score"
FROM %s, q
ORDER BY "score" DESC
LIMIT %d`,
		c.dimension, dbutil.QuoteLiteral(c.model), dbutil.QuoteLiteral(query),
		c.opts.QuestionColumn, c.opts.AnswerColumn, c.opts.EmbeddingColumn,
		c.opts.Table,
		k,
	)
}

func (c *Cortex) Retrieve(ctx context.Context, query string, k int) ([]model.Reference, error) {
	if err := c.opts.checkTopK(k); err != nil {
		return nil, err
	}
	q, err := c.handle.Querier(ctx)
	if err != nil {
		return nil, err
	}
	var rows []referenceRow
	if err := q.SelectContext(ctx, &rows, c.Statement(query, k)); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("cortex retrieval finished", zap.Int("top_k", k), zap.Int("rows", len(rows)))
	return toReferences(rows), nil
}
