package model

// PerformanceMetrics is the running execution counter every resource
// descriptor carries. Load-balanced allocation reads TotalExecutions as an
// approximation of current load.
type PerformanceMetrics struct {
	TotalExecutions      uint64  `json:"total_executions"`
	SuccessfulExecutions uint64  `json:"successful_executions"`
	AvgLatencyMS         float64 `json:"avg_latency_ms"`
}

// Skill is one named proficiency an agent declares, optionally scoped to
// domains.
type Skill struct {
	Name        string   `json:"name"`
	Proficiency float64  `json:"proficiency"`
	Domains     []string `json:"domains,omitempty"`
}

// AgentPerformance is the agent's self-reported quality profile, matched
// against a matcher's performance requirements.
type AgentPerformance struct {
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

type AgentCapabilities struct {
	Skills      []Skill          `json:"skills"`
	Performance AgentPerformance `json:"performance"`
}

// Skill returns the named skill, or nil when the agent does not declare it.
func (c *AgentCapabilities) Skill(name string) *Skill {
	for i := range c.Skills {
		if c.Skills[i].Name == name {
			return &c.Skills[i]
		}
	}
	return nil
}

type AgentResource struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Capabilities AgentCapabilities  `json:"capabilities"`
	Metrics      PerformanceMetrics `json:"metrics"`
}

type LLMResource struct {
	ID           string             `json:"id"`
	Model        string             `json:"model"`
	Capabilities []string           `json:"capabilities,omitempty"`
	SpeedTier    int                `json:"speed_tier"`
	CostTier     int                `json:"cost_tier"`
	MaxTokens    int                `json:"max_tokens"`
	Metrics      PerformanceMetrics `json:"metrics"`
}

type TaskResource struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	CPUCores int                `json:"cpu_cores"`
	MemoryMB int                `json:"memory_mb"`
	Metrics  PerformanceMetrics `json:"metrics"`
}

// ExecutionMode selects how a workflow resource runs its inputs.
type ExecutionMode string

const (
	ModeSequential    ExecutionMode = "sequential"
	ModeParallel      ExecutionMode = "parallel"
	ModeAdaptiveBatch ExecutionMode = "adaptive_batch"
)

type WorkflowResource struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Modes   []ExecutionMode    `json:"modes,omitempty"`
	Metrics PerformanceMetrics `json:"metrics"`
}

// Requirement describes what an allocation request needs from a resource.
// Strategies interpret the fields relevant to their policy and resource kind.
type Requirement struct {
	Capabilities []string `json:"capabilities,omitempty"`
	CPUCores     int      `json:"cpu_cores,omitempty"`
	MemoryMB     int      `json:"memory_mb,omitempty"`
	Priority     int      `json:"priority,omitempty"`
}

func (a AgentResource) ResourceID() string { return a.ID }

func (a AgentResource) ResourceMetrics() PerformanceMetrics { return a.Metrics }

func (l LLMResource) ResourceID() string { return l.ID }

func (l LLMResource) ResourceMetrics() PerformanceMetrics { return l.Metrics }

func (t TaskResource) ResourceID() string { return t.ID }

func (t TaskResource) ResourceMetrics() PerformanceMetrics { return t.Metrics }

func (w WorkflowResource) ResourceID() string { return w.ID }

func (w WorkflowResource) ResourceMetrics() PerformanceMetrics { return w.Metrics }
