package resource

import (
	"fmt"

	"github.com/fluxionlabs/fluxion/model"
)

// Manager bundles the four typed pools behind one allocation strategy.
type Manager struct {
	strategy  Strategy
	Agents    *Pool[model.AgentResource]
	LLMs      *Pool[model.LLMResource]
	Tasks     *Pool[model.TaskResource]
	Workflows *Pool[model.WorkflowResource]
}

func NewManager(strategy Strategy) *Manager {
	return &Manager{
		strategy:  strategy,
		Agents:    NewPool[model.AgentResource](KindAgent),
		LLMs:      NewPool[model.LLMResource](KindLLM),
		Tasks:     NewPool[model.TaskResource](KindTask),
		Workflows: NewPool[model.WorkflowResource](KindWorkflow),
	}
}

func (m *Manager) AllocateAgent(req model.Requirement) (model.AgentResource, *Lease, error) {
	return m.Agents.Allocate(m.strategy.Name(), func(available []model.AgentResource) (model.AgentResource, error) {
		return m.strategy.SelectAgent(req, available)
	})
}

func (m *Manager) AllocateLLM(req model.Requirement) (model.LLMResource, *Lease, error) {
	return m.LLMs.Allocate(m.strategy.Name(), func(available []model.LLMResource) (model.LLMResource, error) {
		return m.strategy.SelectLLM(req, available)
	})
}

func (m *Manager) AllocateTask(req model.Requirement) (model.TaskResource, *Lease, error) {
	return m.Tasks.Allocate(m.strategy.Name(), func(available []model.TaskResource) (model.TaskResource, error) {
		return m.strategy.SelectTask(req, available)
	})
}

func (m *Manager) AllocateWorkflow(req model.Requirement) (model.WorkflowResource, *Lease, error) {
	return m.Workflows.Allocate(m.strategy.Name(), func(available []model.WorkflowResource) (model.WorkflowResource, error) {
		return m.strategy.SelectWorkflow(req, available)
	})
}

// Release returns the leased resource of whichever pool issued it.
func (m *Manager) Release(l *Lease) error {
	if l == nil {
		return fmt.Errorf("nil lease")
	}
	switch l.Kind {
	case KindAgent:
		return m.Agents.Release(l)
	case KindLLM:
		return m.LLMs.Release(l)
	case KindTask:
		return m.Tasks.Release(l)
	case KindWorkflow:
		return m.Workflows.Release(l)
	default:
		return fmt.Errorf("unknown lease kind %q", l.Kind)
	}
}

// RecordExecution folds one completed execution into the resource's metrics.
func (m *Manager) RecordExecution(l *Lease, success bool, latencyMS float64) error {
	if l == nil {
		return fmt.Errorf("nil lease")
	}
	fold := func(metrics model.PerformanceMetrics) model.PerformanceMetrics {
		n := float64(metrics.TotalExecutions)
		metrics.AvgLatencyMS = (metrics.AvgLatencyMS*n + latencyMS) / (n + 1)
		metrics.TotalExecutions++
		if success {
			metrics.SuccessfulExecutions++
		}
		return metrics
	}
	switch l.Kind {
	case KindAgent:
		return m.Agents.Update(l.ResourceID, func(r model.AgentResource) model.AgentResource {
			r.Metrics = fold(r.Metrics)
			return r
		})
	case KindLLM:
		return m.LLMs.Update(l.ResourceID, func(r model.LLMResource) model.LLMResource {
			r.Metrics = fold(r.Metrics)
			return r
		})
	case KindTask:
		return m.Tasks.Update(l.ResourceID, func(r model.TaskResource) model.TaskResource {
			r.Metrics = fold(r.Metrics)
			return r
		})
	case KindWorkflow:
		return m.Workflows.Update(l.ResourceID, func(r model.WorkflowResource) model.WorkflowResource {
			r.Metrics = fold(r.Metrics)
			return r
		})
	default:
		return fmt.Errorf("unknown lease kind %q", l.Kind)
	}
}
