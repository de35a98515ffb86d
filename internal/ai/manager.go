package ai

import (
	"context"
	"fmt"
	"strings"
)

// Manager fronts the configured answer generator.
type Manager struct {
	answerer IGenerator
}

func NewManager(answerer IGenerator) *Manager {
	return &Manager{answerer: answerer}
}

func (m *Manager) Answer(ctx context.Context, prompt string) (string, error) {
	if m.answerer == nil {
		return "", fmt.Errorf("generator not configured")
	}
	resp, err := m.answerer.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}
