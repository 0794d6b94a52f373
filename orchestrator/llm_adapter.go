package orchestrator

import (
	"context"
	"fmt"

	"github.com/fluxionlabs/fluxion/llm"
	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/model"
	"github.com/fluxionlabs/fluxion/util"
	"go.uber.org/zap"
)

const (
	maxPromptLen       = 32768
	maxSystemPromptLen = 8192
	maxStopSequences   = 8
	maxTokensCeiling   = 200000
)

// LLMCall is the payload an await block addressed to an llm resource carries.
type LLMCall struct {
	ID                string                `json:"id"`
	Prompt            string                `json:"prompt"`
	SystemPrompt      string                `json:"system_prompt,omitempty"`
	ModelRequirements llm.ModelRequirements `json:"model_requirements"`
	Generation        llm.GenerationConfig  `json:"generation_config"`
	Context           map[string]any        `json:"context,omitempty"`
	Requirement       model.Requirement     `json:"requirement,omitempty"`
}

// LLMAdapter turns validated calls into provider completions. Without a
// manager it answers with a clearly flagged simulated result.
type LLMAdapter struct {
	manager *llm.Manager
}

func NewLLMAdapter(manager *llm.Manager) *LLMAdapter {
	return &LLMAdapter{manager: manager}
}

func (a *LLMAdapter) Name() string { return "llm" }

func (a *LLMAdapter) validate(call LLMCall) error {
	if call.ID == "" {
		return invalidInput(a.Name(), "request id is empty")
	}
	if call.Prompt == "" {
		return invalidInput(a.Name(), "prompt is empty for request %s", call.ID)
	}
	if len(call.Prompt) > maxPromptLen {
		return invalidInput(a.Name(), "prompt exceeds %d characters for request %s", maxPromptLen, call.ID)
	}
	if len(call.SystemPrompt) > maxSystemPromptLen {
		return invalidInput(a.Name(), "system prompt exceeds %d characters for request %s", maxSystemPromptLen, call.ID)
	}
	gen := call.Generation
	if gen.Temperature < 0 || gen.Temperature > 2 {
		return invalidInput(a.Name(), "temperature %v outside [0,2] for request %s", gen.Temperature, call.ID)
	}
	if gen.TopP < 0 || gen.TopP > 1 {
		return invalidInput(a.Name(), "top_p %v outside [0,1] for request %s", gen.TopP, call.ID)
	}
	if gen.MaxTokens < 0 || gen.MaxTokens > maxTokensCeiling {
		return invalidInput(a.Name(), "max_tokens %d outside [0,%d] for request %s", gen.MaxTokens, maxTokensCeiling, call.ID)
	}
	if len(gen.StopSequences) > maxStopSequences {
		return invalidInput(a.Name(), "more than %d stop sequences for request %s", maxStopSequences, call.ID)
	}
	return nil
}

// Execute validates the call, substitutes context variables into the prompt
// and dispatches it through the fallback manager. vars is the session's
// variable snapshot, addressed by jsonpath tokens in the prompt text.
func (a *LLMAdapter) Execute(ctx context.Context, call LLMCall, vars map[string]any) (map[string]any, error) {
	if err := a.validate(call); err != nil {
		return nil, err
	}
	prompt := util.SubstituteTokens(vars, call.Prompt)
	system := util.SubstituteTokens(vars, call.SystemPrompt)

	if a.manager == nil || a.manager.Providers() == 0 {
		logger.Debug("no llm provider configured, returning simulated completion", zap.String("request", call.ID))
		return map[string]any{
			"content":   fmt.Sprintf("[simulated completion for request %s]", call.ID),
			"request":   call.ID,
			"simulated": true,
		}, nil
	}

	resp, err := a.manager.Complete(ctx, llm.Request{
		ID:                call.ID,
		Prompt:            prompt,
		SystemPrompt:      system,
		ModelRequirements: call.ModelRequirements,
		Generation:        call.Generation,
		Context:           call.Context,
	})
	if err != nil {
		return nil, executionFailure(a.Name(), err)
	}
	return map[string]any{
		"content":       resp.Content,
		"model":         resp.Model,
		"provider":      resp.Provider,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
		"request":       call.ID,
		"simulated":     resp.Simulated,
	}, nil
}
