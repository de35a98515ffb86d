package retriever

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/csassist/internal/pkg/errors"
	"github.com/xxxsen/csassist/internal/warehouse"
)

type fakeQuerier struct {
	rows  []referenceRow
	err   error
	query string
	args  []interface{}
	calls int
}

func (f *fakeQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	f.calls++
	f.query = query
	f.args = args
	if f.err != nil {
		return f.err
	}
	*(dest.(*[]referenceRow)) = append([]referenceRow(nil), f.rows...)
	return nil
}

func (f *fakeQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errors.New("not implemented")
}

type fakeHandle struct {
	q   *fakeQuerier
	err error
}

func (h *fakeHandle) Querier(ctx context.Context) (warehouse.Querier, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.q, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) ModelName() string { return "fake" }

func row(q, a string, score float64) referenceRow {
	return referenceRow{
		Question: sql.NullString{String: q, Valid: true},
		Answer:   sql.NullString{String: a, Valid: true},
		Score:    sql.NullFloat64{Float64: score, Valid: true},
	}
}

func testOptions() Options {
	return Options{
		Table:           "CS.CS_SCHEMA.CS_TABLE",
		QuestionColumn:  "QUESTION",
		AnswerColumn:    "ANSWER",
		EmbeddingColumn: "QUESTION_EMBED",
		MaxTopK:         5,
	}
}

func TestCortexStatement(t *testing.T) {
	c, err := NewCortex(&fakeHandle{}, testOptions(), "snowflake-arctic-embed-m", 768)
	require.NoError(t, err)
	stmt := c.Statement("What's the TA's office?", 3)
	require.Contains(t, stmt, "SNOWFLAKE.CORTEX.EMBED_TEXT_768('snowflake-arctic-embed-m', 'What''s the TA''s office?')")
	require.Contains(t, stmt, `VECTOR_COSINE_SIMILARITY(QUESTION_EMBED, q.emb) AS "score"`)
	require.Contains(t, stmt, "FROM CS.CS_SCHEMA.CS_TABLE, q")
	require.True(t, strings.HasSuffix(stmt, "LIMIT 3"))

	c, err = NewCortex(&fakeHandle{}, testOptions(), "snowflake-arctic-embed-l-v2.0", 1024)
	require.NoError(t, err)
	require.Contains(t, c.Statement("x", 1), "EMBED_TEXT_1024(")
}

func TestCortexStatementEscapesInjection(t *testing.T) {
	c, err := NewCortex(&fakeHandle{}, testOptions(), "snowflake-arctic-embed-m", 768)
	require.NoError(t, err)
	stmt := c.Statement(`'); DROP TABLE CS_TABLE; --`, 3)
	require.Contains(t, stmt, `'''); DROP TABLE CS_TABLE; --'`)
}

func TestNewCortexValidation(t *testing.T) {
	_, err := NewCortex(&fakeHandle{}, testOptions(), "snowflake-arctic-embed-m", 512)
	require.Error(t, err)

	_, err = NewCortex(&fakeHandle{}, testOptions(), "bad'model", 768)
	require.Error(t, err)

	opts := testOptions()
	opts.Table = "CS_TABLE; DROP"
	_, err = NewCortex(&fakeHandle{}, opts, "snowflake-arctic-embed-m", 768)
	require.Error(t, err)

	opts = testOptions()
	opts.AnswerColumn = "ANSWER--"
	_, err = NewCortex(&fakeHandle{}, opts, "snowflake-arctic-embed-m", 768)
	require.Error(t, err)
}

func TestCortexRetrieve_SortsByScore(t *testing.T) {
	q := &fakeQuerier{rows: []referenceRow{
		row("q1", "a1", 0.41),
		row("q2", "a2", 0.93),
		row("q3", "a3", 0.41),
	}}
	c, err := NewCortex(&fakeHandle{q: q}, testOptions(), "snowflake-arctic-embed-m", 768)
	require.NoError(t, err)

	refs, err := c.Retrieve(context.Background(), "prerequisites for CS 101?", 3)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	require.Equal(t, "q2", refs[0].Question)
	require.Equal(t, "q1", refs[1].Question)
	require.Equal(t, "q3", refs[2].Question)
	require.Equal(t, 1, q.calls)
}

func TestCortexRetrieve_Empty(t *testing.T) {
	c, err := NewCortex(&fakeHandle{q: &fakeQuerier{}}, testOptions(), "snowflake-arctic-embed-m", 768)
	require.NoError(t, err)
	refs, err := c.Retrieve(context.Background(), "anything", 2)
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestCortexRetrieve_TopKBounds(t *testing.T) {
	q := &fakeQuerier{}
	c, err := NewCortex(&fakeHandle{q: q}, testOptions(), "snowflake-arctic-embed-m", 768)
	require.NoError(t, err)
	for _, k := range []int{0, -1, 6} {
		_, err := c.Retrieve(context.Background(), "q", k)
		require.ErrorIs(t, err, appErr.ErrInvalid)
	}
	require.Zero(t, q.calls)
}

func TestCortexRetrieve_Errors(t *testing.T) {
	c, err := NewCortex(&fakeHandle{err: errors.New("auth failed")}, testOptions(), "snowflake-arctic-embed-m", 768)
	require.NoError(t, err)
	_, err = c.Retrieve(context.Background(), "q", 1)
	require.EqualError(t, err, "auth failed")

	c, err = NewCortex(&fakeHandle{q: &fakeQuerier{err: errors.New("warehouse suspended")}}, testOptions(), "snowflake-arctic-embed-m", 768)
	require.NoError(t, err)
	_, err = c.Retrieve(context.Background(), "q", 1)
	require.EqualError(t, err, "warehouse suspended")
}

func TestPGVectorStatement(t *testing.T) {
	opts := testOptions()
	opts.Table = "public.cs_table"
	p, err := NewPGVector(&fakeHandle{}, opts, &fakeEmbedder{}, "RETRIEVAL_QUERY")
	require.NoError(t, err)
	stmt := p.Statement()
	require.Contains(t, stmt, `1 - (QUESTION_EMBED <=> $1) AS "score"`)
	require.Contains(t, stmt, "ORDER BY QUESTION_EMBED <=> $2")
	require.Contains(t, stmt, "LIMIT $3")
	require.Contains(t, stmt, "FROM public.cs_table")
}

func TestPGVectorRetrieve(t *testing.T) {
	q := &fakeQuerier{rows: []referenceRow{row("q1", "a1", 0.2), row("q2", "a2", 0.8)}}
	p, err := NewPGVector(&fakeHandle{q: q}, testOptions(), &fakeEmbedder{vec: []float32{0.1, 0.2}}, "RETRIEVAL_QUERY")
	require.NoError(t, err)

	refs, err := p.Retrieve(context.Background(), "office hours", 2)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, "q2", refs[0].Question)
	require.Len(t, q.args, 3)
	require.Equal(t, pgvector.NewVector([]float32{0.1, 0.2}), q.args[0])
	require.Equal(t, 2, q.args[2])
}

func TestPGVectorRetrieve_EmbedError(t *testing.T) {
	q := &fakeQuerier{}
	p, err := NewPGVector(&fakeHandle{q: q}, testOptions(), &fakeEmbedder{err: errors.New("quota")}, "")
	require.NoError(t, err)
	_, err = p.Retrieve(context.Background(), "x", 1)
	require.ErrorContains(t, err, "quota")
	require.Zero(t, q.calls)
}

func TestNewPGVector_RequiresEmbedder(t *testing.T) {
	_, err := NewPGVector(&fakeHandle{}, testOptions(), nil, "")
	require.Error(t, err)
}
