package transcript

import (
	"context"

	"github.com/xxxsen/csassist/internal/model"
)

// Store keeps the ordered turns of each chat session. Turns passed to one
// Append call are stored together or not at all.
type Store interface {
	Create(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Append(ctx context.Context, sessionID string, turns ...model.Turn) error
	List(ctx context.Context, sessionID string) ([]model.Turn, error)
	Clear(ctx context.Context, sessionID string) error
}
