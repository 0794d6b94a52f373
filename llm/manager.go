package llm

import (
	"context"
	"fmt"

	"github.com/fluxionlabs/fluxion/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Manager fronts an ordered list of fallback providers. A failed completion
// is retried against the alternates, up to MaxAttempts providers per call;
// when every attempt fails the combined error lists each provider's failure.
type Manager struct {
	providers   []Provider
	maxAttempts int
}

func NewManager(providers []Provider, maxAttempts int) *Manager {
	if maxAttempts <= 0 {
		maxAttempts = len(providers)
	}
	return &Manager{providers: providers, maxAttempts: maxAttempts}
}

func (m *Manager) Providers() int { return len(m.providers) }

func (m *Manager) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(m.providers) == 0 {
		return nil, fmt.Errorf("no llm providers configured")
	}
	attempts := m.maxAttempts
	if attempts > len(m.providers) {
		attempts = len(m.providers)
	}
	var combined error
	for _, provider := range m.providers[:attempts] {
		resp, err := provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		logger.Warn("llm provider failed, trying next",
			zap.String("provider", provider.Name()), zap.String("request", req.ID), zap.Error(err))
		combined = multierr.Append(combined, fmt.Errorf("provider %s: %w", provider.Name(), err))
	}
	return nil, fmt.Errorf("all llm providers failed for request %s: %w", req.ID, combined)
}
