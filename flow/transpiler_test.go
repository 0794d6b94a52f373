package flow

import (
	"testing"

	"github.com/fluxionlabs/fluxion/metadata"
	"github.com/fluxionlabs/fluxion/model"
	"github.com/stretchr/testify/require"
)

func fullFlow() *model.FlowDefinition {
	return &model.FlowDefinition{
		ID:           "everything",
		StartBlockID: "guard",
		Blocks: []model.BlockDefinition{
			{ID: "guard", Type: model.BlockTryCatch, TryBlock: "loop", CatchBlock: "recover", NextBlock: "end"},
			{ID: "loop", Type: model.BlockForEach, SourcePath: "items", ItemVar: "item", BodyBlock: "work", ExitBlock: "end"},
			{ID: "work", Type: model.BlockCompute, Expression: "$.total = ($.total || 0) + $.item", OutputPath: "total", NextBlock: "decide"},
			{ID: "decide", Type: model.BlockConditional, Condition: "$.total > 100", TrueBlock: "stop", FalseBlock: "next"},
			{ID: "next", Type: model.BlockContinue, LoopBlock: "loop"},
			{ID: "stop", Type: model.BlockBreak, ExitBlock: "end", LoopBlock: "loop"},
			{ID: "recover", Type: model.BlockCompute, Expression: "0", OutputPath: "total", NextBlock: "end"},
			{ID: "end", Type: model.BlockTerminate, ResultPath: "state.total"},
		},
		InitialState: map[string]any{"items": []any{1, 2, 3}},
	}
}

func TestTranspile(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"test totality over all block types": testTranspileTotality,
		"test block ops":                     testTranspileOps,
		"test invalid flow rejected":         testTranspileInvalid,
		"test loop source roots":             testLoopSourceRoots,
		"test service caches contracts":      testServiceCache,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testTranspileTotality(t *testing.T) {
	def := fullFlow()
	contract, err := Transpile(def)
	require.NoError(t, err)
	require.Equal(t, ContractVersion, contract.Version)
	require.Equal(t, def.StartBlockID, contract.StartBlockID)

	// the contract's block-id set matches the definition's exactly
	require.Len(t, contract.Blocks, len(def.Blocks))
	for _, b := range def.Blocks {
		require.Contains(t, contract.Blocks, b.ID)
		require.NotNil(t, contract.Blocks[b.ID])
	}
}

func testTranspileOps(t *testing.T) {
	contract, err := Transpile(fullFlow())
	require.NoError(t, err)

	require.Equal(t, model.OpSequence, contract.Blocks["guard"].Op)
	require.Equal(t, model.OpPushErrorHandler, contract.Blocks["guard"].Children("children")[0].Op)
	require.Equal(t, model.OpIf, contract.Blocks["decide"].Op)
	require.Equal(t, model.OpSetNextBlock, contract.Blocks["next"].Op)
	require.Equal(t, "loop", contract.Blocks["next"].Str("target"))
	require.Equal(t, model.OpTerminate, contract.Blocks["end"].Op)
	require.Equal(t, "state.total", contract.Blocks["end"].Str("result_path"))

	// break with a loop_block first resets the loop counter
	brk := contract.Blocks["stop"]
	require.Equal(t, model.OpSequence, brk.Op)
	require.Equal(t, model.OpEvaluate, brk.Children("children")[0].Op)

	// every node carries the originating block for diagnostics
	for id, n := range contract.Blocks {
		require.NotNil(t, n.Loc, "block %s has no source location", id)
		require.Equal(t, id, n.Loc.BlockID)
	}
}

func testLoopSourceRoots(t *testing.T) {
	// the bind script and the length condition must address the same tree
	// whether or not the source path names its root
	require.Equal(t, "$.items", scriptRef("items"))
	require.Equal(t, "$.items", scriptRef("state.items"))
	require.Equal(t, "$input.xs", scriptRef("input.xs"))

	bind := loopBindScript("loop", "item", "state.items")
	require.Contains(t, bind, `$.items[$.__loops["loop"]]`)
	require.NotContains(t, bind, "$.state.")
}

func testTranspileInvalid(t *testing.T) {
	def := fullFlow()
	def.Blocks[1].BodyBlock = "ghost"
	_, err := Transpile(def)
	require.Error(t, err)
}

func testServiceCache(t *testing.T) {
	svc := NewService(metadata.NewInMemoryStorage())
	def := fullFlow()
	require.NoError(t, svc.Save(*def))

	c1, err := svc.Contract(def.ID)
	require.NoError(t, err)
	c2, err := svc.Contract(def.ID)
	require.NoError(t, err)
	require.Same(t, c1, c2)

	// a re-save invalidates the cached contract
	def.StartBlockID = "end"
	require.NoError(t, svc.Save(*def))
	c3, err := svc.Contract(def.ID)
	require.NoError(t, err)
	require.NotSame(t, c1, c3)
	require.Equal(t, "end", c3.StartBlockID)

	_, err = svc.Contract("missing")
	require.Error(t, err)

	require.NoError(t, svc.Delete(def.ID))
	_, err = svc.Get(def.ID)
	require.Error(t, err)
}
