package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/model"
	appErr "github.com/xxxsen/csassist/internal/pkg/errors"
)

type memorySession struct {
	turns      []model.Turn
	lastAccess time.Time
}

// Memory holds transcripts in process memory. Sessions untouched for longer
// than the idle window are dropped by Sweep.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*memorySession),
		now:      time.Now,
	}
}

func (m *Memory) Create(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; ok {
		return nil
	}
	m.sessions[sessionID] = &memorySession{lastAccess: m.now()}
	return nil
}

func (m *Memory) Exists(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.touch(sessionID)
	return err == nil, nil
}

func (m *Memory) Append(ctx context.Context, sessionID string, turns ...model.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.touch(sessionID)
	if err != nil {
		return err
	}
	sess.turns = append(sess.turns, turns...)
	return nil
}

func (m *Memory) List(ctx context.Context, sessionID string) ([]model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.touch(sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

func (m *Memory) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.touch(sessionID)
	if err != nil {
		return err
	}
	sess.turns = nil
	return nil
}

// Sweep drops sessions idle for longer than idle and returns how many were removed.
func (m *Memory) Sweep(ctx context.Context, idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-idle)
	removed := 0
	for id, sess := range m.sessions {
		if sess.lastAccess.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("idle transcripts removed", zap.Int("count", removed), zap.Int("remain", len(m.sessions)))
	}
	return removed
}

func (m *Memory) touch(sessionID string) (*memorySession, error) {
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	sess.lastAccess = m.now()
	return sess, nil
}
