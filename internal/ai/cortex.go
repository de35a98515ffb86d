package ai

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xxxsen/csassist/internal/pkg/dbutil"
	"github.com/xxxsen/csassist/internal/warehouse"
)

// cortexProvider runs completions as warehouse statements. Embeddings for the
// cortex backend are computed inside the similarity statement instead.
type cortexProvider struct {
	handle warehouse.Handle
}

func NewCortexProvider(handle warehouse.Handle) IProvider {
	return &cortexProvider{handle: handle}
}

func (p *cortexProvider) Name() string {
	return "cortex"
}

func CompleteStatement(model string, prompt string) string {
	return fmt.Sprintf("SELECT SNOWFLAKE.CORTEX.COMPLETE(%s, %s)", dbutil.QuoteLiteral(model), dbutil.QuoteLiteral(prompt))
}

func (p *cortexProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.handle == nil {
		return "", ErrUnavailable
	}
	q, err := p.handle.Querier(ctx)
	if err != nil {
		return "", err
	}
	var out sql.NullString
	if err := q.GetContext(ctx, &out, CompleteStatement(model, prompt)); err != nil {
		return "", err
	}
	if !out.Valid {
		return "", fmt.Errorf("cortex complete returned null")
	}
	return strings.TrimSpace(out.String), nil
}

func (p *cortexProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	return nil, ErrUnavailable
}
