package orchestrator

import (
	"context"
	"fmt"

	"github.com/fluxionlabs/fluxion/capability"
	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/model"
	"github.com/fluxionlabs/fluxion/util"
	"go.uber.org/zap"
)

// AgentCall is the payload an await block addressed to an agent resource
// carries. Success and failure criteria tell the agent (and its operator)
// when the delegated work is done.
type AgentCall struct {
	ID              string                              `json:"id"`
	Prompt          string                              `json:"prompt"`
	Instructions    string                              `json:"instructions,omitempty"`
	SuccessCriteria []string                            `json:"success_criteria"`
	FailureCriteria []string                            `json:"failure_criteria"`
	RequiredSkills  []capability.SkillRequirement       `json:"required_skills,omitempty"`
	PreferredSkills []capability.SkillRequirement       `json:"preferred_skills,omitempty"`
	Performance     *capability.PerformanceRequirements `json:"performance,omitempty"`
	Requirement     model.Requirement                   `json:"requirement,omitempty"`
}

// AgentRunner delegates a call to a concrete agent backend.
type AgentRunner interface {
	Run(ctx context.Context, res model.AgentResource, call AgentCall) (map[string]any, error)
}

type AgentAdapter struct {
	runner AgentRunner
}

func NewAgentAdapter(runner AgentRunner) *AgentAdapter {
	return &AgentAdapter{runner: runner}
}

func (a *AgentAdapter) Name() string { return "agent" }

func (a *AgentAdapter) validate(call AgentCall) error {
	if call.ID == "" {
		return invalidInput(a.Name(), "call id is empty")
	}
	if call.Prompt == "" {
		return invalidInput(a.Name(), "prompt is empty for call %s", call.ID)
	}
	if len(call.Prompt) > maxPromptLen {
		return invalidInput(a.Name(), "prompt exceeds %d characters for call %s", maxPromptLen, call.ID)
	}
	if len(call.SuccessCriteria) == 0 {
		return invalidInput(a.Name(), "no success criteria for call %s", call.ID)
	}
	if len(call.FailureCriteria) == 0 {
		return invalidInput(a.Name(), "no failure criteria for call %s", call.ID)
	}
	return nil
}

// Match scores the candidate agent against the call's skill requirements.
func (a *AgentAdapter) Match(call AgentCall, caps model.AgentCapabilities) capability.Match {
	matcher := capability.Matcher{
		RequiredSkills:  call.RequiredSkills,
		PreferredSkills: call.PreferredSkills,
	}
	if call.Performance != nil {
		matcher.Performance = call.Performance
	}
	return matcher.Evaluate(caps)
}

func (a *AgentAdapter) Execute(ctx context.Context, res model.AgentResource, call AgentCall, vars map[string]any) (map[string]any, error) {
	if err := a.validate(call); err != nil {
		return nil, err
	}
	call.Prompt = util.SubstituteTokens(vars, call.Prompt)
	call.Instructions = util.SubstituteTokens(vars, call.Instructions)

	if a.runner == nil {
		logger.Debug("no agent runner configured, returning simulated result", zap.String("agent", res.ID))
		return map[string]any{
			"agent_id":  res.ID,
			"content":   fmt.Sprintf("[simulated agent response for call %s]", call.ID),
			"status":    "completed",
			"simulated": true,
		}, nil
	}

	out, err := a.runner.Run(ctx, res, call)
	if err != nil {
		return nil, executionFailure(a.Name(), err)
	}
	result := map[string]any{
		"agent_id":  res.ID,
		"status":    "completed",
		"simulated": false,
	}
	for k, v := range out {
		result[k] = v
	}
	return result, nil
}
