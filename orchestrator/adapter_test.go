package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fluxionlabs/fluxion/capability"
	"github.com/fluxionlabs/fluxion/llm"
	"github.com/fluxionlabs/fluxion/model"
	"github.com/stretchr/testify/require"
)

type capturingProvider struct {
	lastReq llm.Request
}

func (p *capturingProvider) Name() string { return "capturing" }

func (p *capturingProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.lastReq = req
	return &llm.Response{Content: "echo: " + req.Prompt, Provider: p.Name()}, nil
}

func TestLLMAdapter(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"test validation rejects bad input": testLLMValidation,
		"test simulated without manager":    testLLMSimulated,
		"test prompt substitution":          testLLMSubstitution,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testLLMValidation(t *testing.T) {
	a := NewLLMAdapter(nil)
	ctx := context.Background()

	cases := []LLMCall{
		{ID: "", Prompt: "hi"},
		{ID: "r1", Prompt: ""},
		{ID: "r2", Prompt: strings.Repeat("x", maxPromptLen+1)},
		{ID: "r3", Prompt: "hi", SystemPrompt: strings.Repeat("x", maxSystemPromptLen+1)},
		{ID: "r4", Prompt: "hi", Generation: llm.GenerationConfig{Temperature: 3}},
		{ID: "r5", Prompt: "hi", Generation: llm.GenerationConfig{TopP: 1.5}},
		{ID: "r6", Prompt: "hi", Generation: llm.GenerationConfig{MaxTokens: maxTokensCeiling + 1}},
		{ID: "r7", Prompt: "hi", Generation: llm.GenerationConfig{StopSequences: make([]string, maxStopSequences+1)}},
	}
	for _, call := range cases {
		_, err := a.Execute(ctx, call, nil)
		var adapterErr AdapterError
		require.True(t, errors.As(err, &adapterErr), "call %s should be rejected", call.ID)
		require.Equal(t, ErrInvalidInput, adapterErr.Kind)
		require.Equal(t, "llm", adapterErr.Adapter)
	}
}

func testLLMSimulated(t *testing.T) {
	a := NewLLMAdapter(nil)
	result, err := a.Execute(context.Background(), LLMCall{ID: "r1", Prompt: "summarize"}, nil)
	require.NoError(t, err)
	// a fallback answer must be clearly distinguishable from a real one
	require.Equal(t, true, result["simulated"])
	require.NotEmpty(t, result["content"])
}

func testLLMSubstitution(t *testing.T) {
	provider := &capturingProvider{}
	a := NewLLMAdapter(llm.NewManager([]llm.Provider{provider}, 1))

	vars := map[string]any{"customer": "acme", "order": map[string]any{"total": 99}}
	result, err := a.Execute(context.Background(), LLMCall{
		ID:     "r1",
		Prompt: "summarize order {$.order.total} for {$.customer}",
	}, vars)
	require.NoError(t, err)
	require.Equal(t, "summarize order 99 for acme", provider.lastReq.Prompt)
	require.Equal(t, false, result["simulated"])
	require.Equal(t, "capturing", result["provider"])
}

type capturingTaskRunner struct {
	lastTask Task
	err      error
}

func (r *capturingTaskRunner) Run(_ context.Context, _ model.TaskResource, task Task) (map[string]any, error) {
	r.lastTask = task
	if r.err != nil {
		return nil, r.err
	}
	return map[string]any{"rows": 10}, nil
}

func TestTaskAdapter(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"test validation":        testTaskValidation,
		"test metadata snapshot": testTaskMetadata,
		"test simulated":         testTaskSimulated,
		"test runner failure":    testTaskFailure,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testTaskValidation(t *testing.T) {
	a := NewTaskAdapter(nil)
	ctx := context.Background()
	res := model.TaskResource{ID: "t1"}

	cases := []TaskCall{
		{ID: "", Name: "export"},
		{ID: "c1", Name: ""},
		{ID: "c2", Name: strings.Repeat("x", maxTaskNameLen+1)},
		{ID: "c3", Name: "export", CPUCores: -1},
		{ID: "c4", Name: "export", TimeoutMS: -5},
	}
	for _, call := range cases {
		_, err := a.Execute(ctx, res, call, nil)
		var adapterErr AdapterError
		require.True(t, errors.As(err, &adapterErr))
		require.Equal(t, ErrInvalidInput, adapterErr.Kind)
	}
}

func testTaskMetadata(t *testing.T) {
	runner := &capturingTaskRunner{}
	a := NewTaskAdapter(runner)
	res := model.TaskResource{ID: "t1", CPUCores: 8}

	vars := map[string]any{"region": "eu"}
	result, err := a.Execute(context.Background(), res, TaskCall{
		ID:        "c1",
		Name:      "export",
		Input:     map[string]any{"target": "warehouse-{$.region}"},
		CPUCores:  4,
		MemoryMB:  2048,
		TimeoutMS: 30000,
	}, vars)
	require.NoError(t, err)
	require.Equal(t, false, result["simulated"])
	require.Equal(t, float64(10), toFloat(result["rows"]))

	// the task snapshots the requesting step's configuration
	task := runner.lastTask
	require.NotEmpty(t, task.ID)
	require.Equal(t, "c1", task.Metadata["call_id"])
	require.Equal(t, 4, task.Metadata["cpu_cores"])
	require.Equal(t, 2048, task.Metadata["memory_mb"])
	require.Equal(t, "t1", task.Metadata["resource"])
	require.Equal(t, "warehouse-eu", task.Input["target"])
	require.False(t, task.SubmittedAt.IsZero())
}

func testTaskSimulated(t *testing.T) {
	a := NewTaskAdapter(nil)
	result, err := a.Execute(context.Background(), model.TaskResource{ID: "t1"}, TaskCall{ID: "c1", Name: "export"}, nil)
	require.NoError(t, err)
	require.Equal(t, true, result["simulated"])
	require.Equal(t, "completed", result["status"])
}

func testTaskFailure(t *testing.T) {
	a := NewTaskAdapter(&capturingTaskRunner{err: errors.New("backend down")})
	_, err := a.Execute(context.Background(), model.TaskResource{ID: "t1"}, TaskCall{ID: "c1", Name: "export"}, nil)
	var adapterErr AdapterError
	require.True(t, errors.As(err, &adapterErr))
	require.Equal(t, ErrExecution, adapterErr.Kind)
	require.Contains(t, adapterErr.Reason, "backend down")
}

// toFloat eases assertions over numbers that may arrive as int or float64.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}

type fakeSubFlowRunner struct {
	mu    sync.Mutex
	calls []map[string]any
	fail  bool
}

func (r *fakeSubFlowRunner) RunSubFlow(_ context.Context, flowID string, input map[string]any, _ uint64) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, fmt.Errorf("sub-flow %s failed", flowID)
	}
	r.calls = append(r.calls, input)
	n := toFloat(input["n"])
	return map[string]any{"result": n * 2, fmt.Sprintf("out-%v", n): true}, nil
}

func TestWorkflowAdapter(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"test validation":          testWorkflowValidation,
		"test sequential mode":     testWorkflowSequential,
		"test parallel mode":       testWorkflowParallel,
		"test adaptive batch size": testAdaptiveBatchSize,
		"test output mapping":      testWorkflowOutputMapping,
		"test runner failure":      testWorkflowFailure,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testWorkflowValidation(t *testing.T) {
	a := NewWorkflowAdapter(&fakeSubFlowRunner{})
	ctx := context.Background()
	cases := []WorkflowCall{
		{ID: "", FlowID: "f", Inputs: []map[string]any{{}}},
		{ID: "c1", FlowID: "", Inputs: []map[string]any{{}}},
		{ID: "c2", FlowID: "f", Inputs: nil},
		{ID: "c3", FlowID: "f", Inputs: []map[string]any{{}}, Mode: "teleport"},
	}
	for _, call := range cases {
		_, err := a.Execute(ctx, call)
		var adapterErr AdapterError
		require.True(t, errors.As(err, &adapterErr))
		require.Equal(t, ErrInvalidInput, adapterErr.Kind)
	}
}

func testWorkflowSequential(t *testing.T) {
	runner := &fakeSubFlowRunner{}
	a := NewWorkflowAdapter(runner)
	result, err := a.Execute(context.Background(), WorkflowCall{
		ID:     "c1",
		FlowID: "sub",
		Inputs: []map[string]any{{"n": 1}, {"n": 2}, {"n": 3}},
	})
	require.NoError(t, err)
	require.Equal(t, "sequential", result["mode"])
	require.Len(t, result["results"], 3)
	// sequential mode preserves input order
	require.Equal(t, float64(1), toFloat(runner.calls[0]["n"]))
	require.Equal(t, float64(3), toFloat(runner.calls[2]["n"]))
}

func testWorkflowParallel(t *testing.T) {
	runner := &fakeSubFlowRunner{}
	a := NewWorkflowAdapter(runner)
	result, err := a.Execute(context.Background(), WorkflowCall{
		ID:     "c1",
		FlowID: "sub",
		Mode:   string(model.ModeParallel),
		Inputs: []map[string]any{{"n": 1}, {"n": 2}, {"n": 3}, {"n": 4}},
	})
	require.NoError(t, err)
	require.Len(t, runner.calls, 4)
	results := result["results"].([]any)
	require.Len(t, results, 4)
	// results land at their input's index regardless of completion order
	first := results[0].(map[string]any)
	require.Equal(t, float64(2), toFloat(first["result"]))
}

func testAdaptiveBatchSize(t *testing.T) {
	small := []map[string]any{{"n": 1}, {"n": 2}}
	require.Equal(t, maxAdaptiveBatch, adaptiveBatchSize(small))

	big := make([]map[string]any, 2)
	for i := range big {
		big[i] = map[string]any{"blob": strings.Repeat("x", 64*1024)}
	}
	require.Equal(t, minAdaptiveBatch, adaptiveBatchSize(big))

	runner := &fakeSubFlowRunner{}
	a := NewWorkflowAdapter(runner)
	result, err := a.Execute(context.Background(), WorkflowCall{
		ID:     "c1",
		FlowID: "sub",
		Mode:   string(model.ModeAdaptiveBatch),
		Inputs: []map[string]any{{"n": 1}, {"n": 2}, {"n": 3}},
	})
	require.NoError(t, err)
	require.Len(t, result["results"], 3)
}

func testWorkflowOutputMapping(t *testing.T) {
	a := NewWorkflowAdapter(&fakeSubFlowRunner{})
	result, err := a.Execute(context.Background(), WorkflowCall{
		ID:            "c1",
		FlowID:        "sub",
		Inputs:        []map[string]any{{"n": 5}},
		OutputMapping: map[string]string{"result": "doubled", "missing": "never_set"},
	})
	require.NoError(t, err)
	outputs := result["outputs"].(map[string]any)
	require.Equal(t, float64(10), toFloat(outputs["doubled"]))
	require.NotContains(t, outputs, "never_set")
}

func testWorkflowFailure(t *testing.T) {
	a := NewWorkflowAdapter(&fakeSubFlowRunner{fail: true})
	_, err := a.Execute(context.Background(), WorkflowCall{
		ID:     "c1",
		FlowID: "sub",
		Inputs: []map[string]any{{"n": 1}},
	})
	var adapterErr AdapterError
	require.True(t, errors.As(err, &adapterErr))
	require.Equal(t, ErrExecution, adapterErr.Kind)
}

func TestAgentAdapter(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"test validation": testAgentValidation,
		"test simulated":  testAgentSimulated,
		"test match":      testAgentMatch,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testAgentValidation(t *testing.T) {
	a := NewAgentAdapter(nil)
	ctx := context.Background()
	res := model.AgentResource{ID: "a1"}
	criteria := []string{"done"}

	cases := []AgentCall{
		{ID: "", Prompt: "review", SuccessCriteria: criteria, FailureCriteria: criteria},
		{ID: "c1", Prompt: "", SuccessCriteria: criteria, FailureCriteria: criteria},
		{ID: "c2", Prompt: "review", SuccessCriteria: nil, FailureCriteria: criteria},
		{ID: "c3", Prompt: "review", SuccessCriteria: criteria, FailureCriteria: nil},
	}
	for _, call := range cases {
		_, err := a.Execute(ctx, res, call, nil)
		var adapterErr AdapterError
		require.True(t, errors.As(err, &adapterErr))
		require.Equal(t, ErrInvalidInput, adapterErr.Kind)
	}
}

func testAgentSimulated(t *testing.T) {
	a := NewAgentAdapter(nil)
	result, err := a.Execute(context.Background(), model.AgentResource{ID: "a1"}, AgentCall{
		ID:              "c1",
		Prompt:          "review the change",
		SuccessCriteria: []string{"verdict given"},
		FailureCriteria: []string{"no verdict"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, true, result["simulated"])
	require.Equal(t, "a1", result["agent_id"])
}

func testAgentMatch(t *testing.T) {
	a := NewAgentAdapter(nil)
	caps := model.AgentCapabilities{
		Skills: []model.Skill{{Name: "code-review", Proficiency: 0.9}},
	}
	match := a.Match(AgentCall{
		RequiredSkills: []capability.SkillRequirement{{Name: "code-review", MinProficiency: 0.5, Weight: 1}},
	}, caps)
	require.True(t, match.RequiredSkillsMet)
	require.InDelta(t, 0.9, match.Score, 1e-9)
}
