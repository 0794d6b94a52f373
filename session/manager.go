// Package session owns the per-session execution contexts of the runtime.
// The manager is an explicitly constructed service: a handle to it is passed
// to every component that needs session state, and it is torn down with the
// runtime.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/model"
	"go.uber.org/zap"
)

// Manager keys one ExecutionContext per session under a single RWMutex.
// Mutation goes through Update's exclusive closure so multi-field updates
// from one adapter result land atomically with respect to other sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*model.ExecutionContext
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*model.ExecutionContext)}
}

// Create seeds a session context from the flow's initial state. The state is
// deep-copied so sessions sharing one definition never alias.
func (m *Manager) Create(sessionID string, def *model.FlowDefinition) (*model.ExecutionContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[sessionID]; exists {
		return nil, fmt.Errorf("session %q already exists", sessionID)
	}
	ctx := &model.ExecutionContext{
		SessionID:        sessionID,
		FlowID:           def.ID,
		SharedState:      deepCopy(def.InitialState),
		AgentContexts:    map[string]any{},
		LLMContexts:      map[string]any{},
		TaskContexts:     map[string]any{},
		WorkflowContexts: map[string]any{},
		Variables:        map[string]any{},
		Metadata:         map[string]any{},
	}
	m.sessions[sessionID] = ctx
	logger.Debug("session created", zap.String("session", sessionID), zap.String("flow", def.ID))
	return snapshot(ctx), nil
}

// Get returns a copy of the session context; mutating it does not affect the
// stored one.
func (m *Manager) Get(sessionID string) (*model.ExecutionContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return snapshot(ctx), true
}

// Update applies fn to the stored context under the write lock.
func (m *Manager) Update(sessionID string, fn func(*model.ExecutionContext) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("no session %q", sessionID)
	}
	return fn(ctx)
}

func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// AddAgentResult folds one agent invocation result into the session's agent
// sub-context and variables.
func (m *Manager) AddAgentResult(sessionID, agentID string, result map[string]any) error {
	return m.Update(sessionID, func(ctx *model.ExecutionContext) error {
		ctx.AgentContexts[agentID] = result
		for k, v := range result {
			ctx.Variables[fmt.Sprintf("%s.%s", agentID, k)] = v
		}
		return nil
	})
}

func (m *Manager) AddLLMResult(sessionID, llmID string, result map[string]any) error {
	return m.Update(sessionID, func(ctx *model.ExecutionContext) error {
		ctx.LLMContexts[llmID] = result
		return nil
	})
}

func (m *Manager) AddTaskResult(sessionID, taskID string, result map[string]any) error {
	return m.Update(sessionID, func(ctx *model.ExecutionContext) error {
		ctx.TaskContexts[taskID] = result
		return nil
	})
}

func (m *Manager) AddWorkflowResult(sessionID, workflowID string, result map[string]any) error {
	return m.Update(sessionID, func(ctx *model.ExecutionContext) error {
		ctx.WorkflowContexts[workflowID] = result
		return nil
	})
}

// AddParallelResult merges one branch's output under
// shared_state.parallel_results.
func (m *Manager) AddParallelResult(sessionID, branch string, result map[string]any) error {
	return m.Update(sessionID, func(ctx *model.ExecutionContext) error {
		parallel, _ := ctx.SharedState["parallel_results"].(map[string]any)
		if parallel == nil {
			parallel = map[string]any{}
			ctx.SharedState["parallel_results"] = parallel
		}
		parallel[branch] = result
		return nil
	})
}

// snapshot deep-copies a context via JSON. A context holding values that do
// not round-trip falls back to the stored context itself, so a successful
// lookup never hands the caller nil.
func snapshot(ctx *model.ExecutionContext) *model.ExecutionContext {
	b, err := json.Marshal(ctx)
	if err != nil {
		logger.Warn("session context not copyable, returning live context",
			zap.String("session", ctx.SessionID), zap.Error(err))
		return ctx
	}
	var out model.ExecutionContext
	if err := json.Unmarshal(b, &out); err != nil {
		logger.Warn("session context not copyable, returning live context",
			zap.String("session", ctx.SessionID), zap.Error(err))
		return ctx
	}
	return &out
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{}
	}
	return out
}
