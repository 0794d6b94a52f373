package session

import (
	"testing"

	"github.com/fluxionlabs/fluxion/model"
	"github.com/stretchr/testify/require"
)

func testDef() *model.FlowDefinition {
	return &model.FlowDefinition{
		ID:           "review-flow",
		StartBlockID: "start",
		Blocks:       []model.BlockDefinition{{ID: "start", Type: model.BlockTerminate}},
		InitialState: map[string]any{"counts": map[string]any{"seen": 0}},
	}
}

func TestManager(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, m *Manager){
		"test create and get":      testCreateGet,
		"test duplicate rejected":  testDuplicate,
		"test context isolation":   testIsolation,
		"test update is exclusive": testUpdate,
		"test result folding":      testResultFolding,
		"test parallel results":    testParallelResults,
		"test uncopyable context":  testUncopyableContext,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewManager())
		})
	}
}

func testCreateGet(t *testing.T, m *Manager) {
	ctx, err := m.Create("s1", testDef())
	require.NoError(t, err)
	require.Equal(t, "s1", ctx.SessionID)
	require.Equal(t, "review-flow", ctx.FlowID)

	got, ok := m.Get("s1")
	require.True(t, ok)
	require.Equal(t, float64(0), got.SharedState["counts"].(map[string]any)["seen"])

	_, ok = m.Get("missing")
	require.False(t, ok)

	m.Remove("s1")
	require.Equal(t, 0, m.Size())
}

func testDuplicate(t *testing.T, m *Manager) {
	_, err := m.Create("s1", testDef())
	require.NoError(t, err)
	_, err = m.Create("s1", testDef())
	require.Error(t, err)
}

func testIsolation(t *testing.T, m *Manager) {
	def := testDef()
	_, err := m.Create("s1", def)
	require.NoError(t, err)
	_, err = m.Create("s2", def)
	require.NoError(t, err)

	require.NoError(t, m.Update("s1", func(ctx *model.ExecutionContext) error {
		ctx.SharedState["counts"].(map[string]any)["seen"] = 99
		return nil
	}))

	s2, _ := m.Get("s2")
	require.Equal(t, float64(0), s2.SharedState["counts"].(map[string]any)["seen"])

	// mutating a Get snapshot must not leak back either
	s2.SharedState["counts"].(map[string]any)["seen"] = 7
	again, _ := m.Get("s2")
	require.Equal(t, float64(0), again.SharedState["counts"].(map[string]any)["seen"])
}

func testUpdate(t *testing.T, m *Manager) {
	_, err := m.Create("s1", testDef())
	require.NoError(t, err)

	require.NoError(t, m.Update("s1", func(ctx *model.ExecutionContext) error {
		ctx.Variables["a"] = 1
		ctx.Variables["b"] = 2
		return nil
	}))
	got, _ := m.Get("s1")
	require.Len(t, got.Variables, 2)

	require.Error(t, m.Update("missing", func(*model.ExecutionContext) error { return nil }))
}

func testResultFolding(t *testing.T, m *Manager) {
	_, err := m.Create("s1", testDef())
	require.NoError(t, err)

	require.NoError(t, m.AddAgentResult("s1", "agent:reviewer", map[string]any{"verdict": "approve"}))
	require.NoError(t, m.AddLLMResult("s1", "llm-1", map[string]any{"content": "summary"}))
	require.NoError(t, m.AddTaskResult("s1", "task-1", map[string]any{"status": "completed"}))
	require.NoError(t, m.AddWorkflowResult("s1", "wf-1", map[string]any{"outputs": 3}))

	got, _ := m.Get("s1")
	require.Contains(t, got.AgentContexts, "agent:reviewer")
	require.Contains(t, got.LLMContexts, "llm-1")
	require.Contains(t, got.TaskContexts, "task-1")
	require.Contains(t, got.WorkflowContexts, "wf-1")
	// agent results additionally flatten into variables
	require.Equal(t, "approve", got.Variables["agent:reviewer.verdict"])
}

func testParallelResults(t *testing.T, m *Manager) {
	_, err := m.Create("s1", testDef())
	require.NoError(t, err)

	require.NoError(t, m.AddParallelResult("s1", "branch-0", map[string]any{"n": 1}))
	require.NoError(t, m.AddParallelResult("s1", "branch-1", map[string]any{"n": 2}))

	got, _ := m.Get("s1")
	parallel := got.SharedState["parallel_results"].(map[string]any)
	require.Len(t, parallel, 2)
	require.Equal(t, float64(1), parallel["branch-0"].(map[string]any)["n"])
}

func testUncopyableContext(t *testing.T, m *Manager) {
	_, err := m.Create("s1", testDef())
	require.NoError(t, err)
	// a value JSON cannot round-trip must not turn lookups into nils
	require.NoError(t, m.Update("s1", func(ctx *model.ExecutionContext) error {
		ctx.Variables["done"] = make(chan struct{})
		return nil
	}))

	got, ok := m.Get("s1")
	require.True(t, ok)
	require.NotNil(t, got)
	require.Equal(t, "s1", got.SessionID)
}
