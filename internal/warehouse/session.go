package warehouse

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/config"
	"github.com/xxxsen/csassist/internal/metrics"
	appErr "github.com/xxxsen/csassist/internal/pkg/errors"
)

// Querier is the subset of sqlx used by the retriever and the cortex provider.
type Querier interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type Handle interface {
	Querier(ctx context.Context) (Querier, error)
}

type Opener func(ctx context.Context) (*sqlx.DB, error)

// Session opens the warehouse connection on first use and keeps it for the
// life of the process. A failed open is not memoized and is reported as a
// remote failure of the session stage.
type Session struct {
	mu     sync.Mutex
	db     *sqlx.DB
	opener Opener
}

func NewSession(opener Opener) *Session {
	return &Session{opener: opener}
}

func (s *Session) DB(ctx context.Context) (*sqlx.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	db, err := s.opener(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Error("open warehouse session failed", zap.Error(err))
		return nil, appErr.Remote(metrics.StageSession, err)
	}
	logutil.GetLogger(ctx).Info("warehouse session opened", zap.String("driver", db.DriverName()))
	s.db = db
	return db, nil
}

func (s *Session) Querier(ctx context.Context) (Querier, error) {
	db, err := s.DB(ctx)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func NewOpener(cfg config.WarehouseConfig) (Opener, error) {
	switch cfg.Type {
	case config.WarehouseSnowflake:
		return snowflakeOpener(cfg.Snowflake), nil
	case config.WarehousePostgres:
		return postgresOpener(cfg.Postgres), nil
	default:
		return nil, fmt.Errorf("unsupported warehouse type: %s", cfg.Type)
	}
}

func openAndPing(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
