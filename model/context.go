package model

// ExecutionContext holds all mutable state of one orchestration session.
// It is owned by the session manager and must only be mutated through its
// Update accessor.
type ExecutionContext struct {
	SessionID        string         `json:"session_id"`
	FlowID           string         `json:"flow_id"`
	SharedState      map[string]any `json:"shared_state"`
	AgentContexts    map[string]any `json:"agent_contexts"`
	LLMContexts      map[string]any `json:"llm_contexts"`
	TaskContexts     map[string]any `json:"task_contexts"`
	WorkflowContexts map[string]any `json:"workflow_contexts"`
	Variables        map[string]any `json:"variables"`
	FinalResult      any            `json:"final_result,omitempty"`
	Metadata         map[string]any `json:"metadata"`
}
