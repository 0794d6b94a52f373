package flow

import (
	"fmt"
	"strings"

	"github.com/fluxionlabs/fluxion/model"
)

// ContractVersion tags every transpiled contract. Bump it together with the
// interpreter gas schedule: existing contracts observe gas exhaustion at
// schedule-dependent points.
const ContractVersion = "1"

// Transpile maps a validated flow definition onto its executable contract:
// one AST tree per block, with control transfers expressed as explicit
// SetNextBlock references instead of nested subtrees. Keeping the contract a
// flat graph of small trees is what lets jumps express loops and branch
// convergence without unbounded AST depth.
func Transpile(def *model.FlowDefinition) (*model.Contract, error) {
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}
	blocks := make(map[string]*model.AstNode, len(def.Blocks))
	for i := range def.Blocks {
		b := &def.Blocks[i]
		node, err := transpileBlock(b)
		if err != nil {
			return nil, err
		}
		blocks[b.ID] = node
	}
	return &model.Contract{
		Version:      ContractVersion,
		StartBlockID: def.StartBlockID,
		Blocks:       blocks,
		InitialState: def.InitialState,
		Permissions:  def.Permissions,
		Participants: def.Participants,
	}, nil
}

func transpileBlock(b *model.BlockDefinition) (*model.AstNode, error) {
	switch b.Type {
	case model.BlockCompute:
		return sequence(b.ID,
			node(model.OpEvaluate, b.ID, "expression", map[string]any{
				"bytecode":    b.Expression,
				"output_path": b.OutputPath,
			}),
			setNext(b.ID, b.NextBlock),
		), nil
	case model.BlockConditional:
		return node(model.OpIf, b.ID, "condition", map[string]any{
			"condition": node(model.OpEvaluate, b.ID, "condition", map[string]any{
				"bytecode": b.Condition,
			}),
			"then": setNext(b.ID, b.TrueBlock),
			"else": setNext(b.ID, b.FalseBlock),
		}), nil
	case model.BlockAwaitInput:
		return node(model.OpAwait, b.ID, "", map[string]any{
			"interaction_id": b.InteractionID,
			"agent_id":       b.AgentID,
			"prompt":         b.Prompt,
			"timeout_ms":     b.TimeoutMS,
			"next_block":     b.NextBlock,
		}), nil
	case model.BlockForEach:
		return transpileForEach(b), nil
	case model.BlockTryCatch:
		return sequence(b.ID,
			node(model.OpPushErrorHandler, b.ID, "catch_block", map[string]any{
				"catch_block": b.CatchBlock,
				"until_block": b.NextBlock,
			}),
			setNext(b.ID, b.TryBlock),
		), nil
	case model.BlockContinue:
		return setNext(b.ID, b.LoopBlock), nil
	case model.BlockBreak:
		if b.LoopBlock != "" {
			return sequence(b.ID,
				node(model.OpEvaluate, b.ID, "loop_block", map[string]any{
					"bytecode": loopResetScript(b.LoopBlock),
				}),
				setNext(b.ID, b.ExitBlock),
			), nil
		}
		return setNext(b.ID, b.ExitBlock), nil
	case model.BlockTerminate:
		meta := map[string]any{}
		if b.ResultPath != "" {
			meta["result_path"] = b.ResultPath
		}
		return node(model.OpTerminate, b.ID, "", meta), nil
	default:
		return nil, ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("unknown block type %q", b.Type)}
	}
}

// transpileForEach emits a self-looping header: a per-block counter under
// state.__loops drives an If(counter < len(source)) that either binds the
// item variable and jumps to the body, or resets the counter and jumps to
// the exit. Body blocks route back to the header id to iterate.
func transpileForEach(b *model.BlockDefinition) *model.AstNode {
	counterPath := fmt.Sprintf("__loops.%s", b.ID)
	return sequence(b.ID,
		node(model.OpEvaluate, b.ID, "source_path", map[string]any{
			"bytecode": loopInitScript(b.ID),
		}),
		node(model.OpIf, b.ID, "", map[string]any{
			"condition": node(model.OpLessThan, b.ID, "", map[string]any{
				"lhs_path": counterPath,
				"rhs": node(model.OpLength, b.ID, "source_path", map[string]any{
					"source_path": b.SourcePath,
				}),
			}),
			"then": sequence(b.ID,
				node(model.OpEvaluate, b.ID, "item_var", map[string]any{
					"bytecode": loopBindScript(b.ID, b.ItemVar, b.SourcePath),
				}),
				setNext(b.ID, b.BodyBlock),
			),
			"else": sequence(b.ID,
				node(model.OpEvaluate, b.ID, "exit_block", map[string]any{
					"bytecode": loopResetScript(b.ID),
				}),
				setNext(b.ID, b.ExitBlock),
			),
		}),
	)
}

func loopInitScript(blockID string) string {
	return fmt.Sprintf(`if (!$.__loops) { $.__loops = {}; }
if ($.__loops[%q] === undefined) { $.__loops[%q] = 0; }`, blockID, blockID)
}

func loopBindScript(blockID, itemVar, sourcePath string) string {
	return fmt.Sprintf(`$[%q] = %s[$.__loops[%q]];
$.__loops[%q] = $.__loops[%q] + 1;`, itemVar, scriptRef(sourcePath), blockID, blockID, blockID)
}

// scriptRef rewrites a rooted path into the reference the evaluator binds:
// $ for the state tree, $input for the input tree. Paths without a root
// prefix address state, matching the interpreter's path parser.
func scriptRef(path string) string {
	if rest, ok := strings.CutPrefix(path, "input."); ok {
		return "$input." + rest
	}
	return "$." + strings.TrimPrefix(path, "state.")
}

func loopResetScript(blockID string) string {
	return fmt.Sprintf(`if ($.__loops) { $.__loops[%q] = 0; }`, blockID)
}

func node(op model.Op, blockID, field string, meta map[string]any) *model.AstNode {
	loc := &model.SourceLocation{BlockID: blockID}
	if field != "" {
		loc.Field = field
	}
	return &model.AstNode{Op: op, Metadata: meta, Loc: loc}
}

func sequence(blockID string, children ...*model.AstNode) *model.AstNode {
	return node(model.OpSequence, blockID, "", map[string]any{"children": children})
}

func setNext(blockID, target string) *model.AstNode {
	return node(model.OpSetNextBlock, blockID, "", map[string]any{"target": target})
}
