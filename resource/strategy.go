package resource

import (
	"github.com/fluxionlabs/fluxion/model"
	"go.uber.org/atomic"
)

// Strategy selects one resource from an availability snapshot for a
// requirement. Implementations must fail with AllocationError when no
// candidate qualifies.
type Strategy interface {
	Name() string
	SelectAgent(req model.Requirement, available []model.AgentResource) (model.AgentResource, error)
	SelectLLM(req model.Requirement, available []model.LLMResource) (model.LLMResource, error)
	SelectTask(req model.Requirement, available []model.TaskResource) (model.TaskResource, error)
	SelectWorkflow(req model.Requirement, available []model.WorkflowResource) (model.WorkflowResource, error)
}

func empty[T Descriptor](kind Kind, strategy string) (T, error) {
	var zero T
	return zero, AllocationError{Kind: kind, Strategy: strategy, Reason: "pool has no available resources"}
}

// RoundRobin rotates through each pool with an atomic cursor, ignoring the
// requirement entirely so rotation stays even.
type RoundRobin struct {
	agents    *atomic.Uint64
	llms      *atomic.Uint64
	tasks     *atomic.Uint64
	workflows *atomic.Uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{
		agents:    atomic.NewUint64(0),
		llms:      atomic.NewUint64(0),
		tasks:     atomic.NewUint64(0),
		workflows: atomic.NewUint64(0),
	}
}

func (r *RoundRobin) Name() string { return "round_robin" }

func pickRoundRobin[T Descriptor](kind Kind, cursor *atomic.Uint64, available []T) (T, error) {
	if len(available) == 0 {
		return empty[T](kind, "round_robin")
	}
	idx := (cursor.Inc() - 1) % uint64(len(available))
	return available[idx], nil
}

func (r *RoundRobin) SelectAgent(_ model.Requirement, available []model.AgentResource) (model.AgentResource, error) {
	return pickRoundRobin(KindAgent, r.agents, available)
}

func (r *RoundRobin) SelectLLM(_ model.Requirement, available []model.LLMResource) (model.LLMResource, error) {
	return pickRoundRobin(KindLLM, r.llms, available)
}

func (r *RoundRobin) SelectTask(_ model.Requirement, available []model.TaskResource) (model.TaskResource, error) {
	return pickRoundRobin(KindTask, r.tasks, available)
}

func (r *RoundRobin) SelectWorkflow(_ model.Requirement, available []model.WorkflowResource) (model.WorkflowResource, error) {
	return pickRoundRobin(KindWorkflow, r.workflows, available)
}

// CapabilityBased hard-filters agents on required capability names; first
// match wins. LLM/task/workflow kinds carry no skill list under this policy
// and degrade to first-available.
type CapabilityBased struct{}

func (CapabilityBased) Name() string { return "capability_based" }

func (CapabilityBased) SelectAgent(req model.Requirement, available []model.AgentResource) (model.AgentResource, error) {
	if len(available) == 0 {
		return empty[model.AgentResource](KindAgent, "capability_based")
	}
	for _, agent := range available {
		if hasAllSkills(&agent.Capabilities, req.Capabilities) {
			return agent, nil
		}
	}
	return model.AgentResource{}, AllocationError{Kind: KindAgent, Strategy: "capability_based",
		Reason: "no agent declares every required capability"}
}

func hasAllSkills(caps *model.AgentCapabilities, required []string) bool {
	for _, name := range required {
		if caps.Skill(name) == nil {
			return false
		}
	}
	return true
}

func (CapabilityBased) SelectLLM(_ model.Requirement, available []model.LLMResource) (model.LLMResource, error) {
	return firstAvailable(KindLLM, "capability_based", available)
}

func (CapabilityBased) SelectTask(_ model.Requirement, available []model.TaskResource) (model.TaskResource, error) {
	return firstAvailable(KindTask, "capability_based", available)
}

func (CapabilityBased) SelectWorkflow(_ model.Requirement, available []model.WorkflowResource) (model.WorkflowResource, error) {
	return firstAvailable(KindWorkflow, "capability_based", available)
}

// LoadBalanced picks the resource with the fewest total executions,
// approximating least-loaded without a live queue-depth signal.
type LoadBalanced struct{}

func (LoadBalanced) Name() string { return "load_balanced" }

func pickLeastLoaded[T Descriptor](kind Kind, available []T) (T, error) {
	if len(available) == 0 {
		return empty[T](kind, "load_balanced")
	}
	best := available[0]
	for _, candidate := range available[1:] {
		if candidate.ResourceMetrics().TotalExecutions < best.ResourceMetrics().TotalExecutions {
			best = candidate
		}
	}
	return best, nil
}

func (LoadBalanced) SelectAgent(_ model.Requirement, available []model.AgentResource) (model.AgentResource, error) {
	return pickLeastLoaded(KindAgent, available)
}

func (LoadBalanced) SelectLLM(_ model.Requirement, available []model.LLMResource) (model.LLMResource, error) {
	return pickLeastLoaded(KindLLM, available)
}

func (LoadBalanced) SelectTask(_ model.Requirement, available []model.TaskResource) (model.TaskResource, error) {
	return pickLeastLoaded(KindTask, available)
}

func (LoadBalanced) SelectWorkflow(_ model.Requirement, available []model.WorkflowResource) (model.WorkflowResource, error) {
	return pickLeastLoaded(KindWorkflow, available)
}

// PriorityBased matches task requirements against declared cpu/memory
// ceilings; other kinds degrade to first-available since no priority queue
// is modeled for them.
type PriorityBased struct{}

func (PriorityBased) Name() string { return "priority_based" }

func (PriorityBased) SelectTask(req model.Requirement, available []model.TaskResource) (model.TaskResource, error) {
	if len(available) == 0 {
		return empty[model.TaskResource](KindTask, "priority_based")
	}
	for _, task := range available {
		if task.CPUCores >= req.CPUCores && task.MemoryMB >= req.MemoryMB {
			return task, nil
		}
	}
	return model.TaskResource{}, AllocationError{Kind: KindTask, Strategy: "priority_based",
		Reason: "no task resource satisfies the cpu/memory requirement"}
}

func (PriorityBased) SelectAgent(_ model.Requirement, available []model.AgentResource) (model.AgentResource, error) {
	return firstAvailable(KindAgent, "priority_based", available)
}

func (PriorityBased) SelectLLM(_ model.Requirement, available []model.LLMResource) (model.LLMResource, error) {
	return firstAvailable(KindLLM, "priority_based", available)
}

func (PriorityBased) SelectWorkflow(_ model.Requirement, available []model.WorkflowResource) (model.WorkflowResource, error) {
	return firstAvailable(KindWorkflow, "priority_based", available)
}

func firstAvailable[T Descriptor](kind Kind, strategy string, available []T) (T, error) {
	if len(available) == 0 {
		return empty[T](kind, strategy)
	}
	return available[0], nil
}
