package flow

import (
	"encoding/json"
	"fmt"

	"github.com/fluxionlabs/fluxion/model"
)

// JSONError wraps a malformed flow description.
type JSONError struct {
	Err error
}

func (e JSONError) Error() string {
	return fmt.Sprintf("malformed flow description: %v", e.Err)
}

func (e JSONError) Unwrap() error { return e.Err }

// ValidationError reports a structural defect in a flow definition, naming
// the offending block.
type ValidationError struct {
	BlockID string
	Reason  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("flow validation failed at block %q: %s", e.BlockID, e.Reason)
}

// Parse decodes a flow description and validates block-reference integrity.
// Returns JSONError on malformed input and ValidationError when the start
// block or any referenced block id is absent.
func Parse(data []byte) (*model.FlowDefinition, error) {
	var def model.FlowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, JSONError{Err: err}
	}
	if err := ValidateDefinition(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ValidateDefinition checks a definition that was constructed in memory the
// same way Parse checks a decoded one.
func ValidateDefinition(def *model.FlowDefinition) error {
	if def.ID == "" {
		return ValidationError{Reason: "flow id is empty"}
	}
	if len(def.Blocks) == 0 {
		return ValidationError{Reason: "flow has no blocks"}
	}
	ids := make(map[string]struct{}, len(def.Blocks))
	for i := range def.Blocks {
		b := &def.Blocks[i]
		if b.ID == "" {
			return ValidationError{Reason: "block with empty id"}
		}
		if _, dup := ids[b.ID]; dup {
			return ValidationError{BlockID: b.ID, Reason: "duplicate block id"}
		}
		ids[b.ID] = struct{}{}
	}
	if def.StartBlockID == "" {
		return ValidationError{Reason: "start_block_id is empty"}
	}
	if _, ok := ids[def.StartBlockID]; !ok {
		return ValidationError{BlockID: def.StartBlockID, Reason: "start block does not exist"}
	}
	for i := range def.Blocks {
		b := &def.Blocks[i]
		if err := validateBlockFields(b); err != nil {
			return err
		}
		for _, ref := range b.Outgoing() {
			if _, ok := ids[ref]; !ok {
				return ValidationError{
					BlockID: ref,
					Reason:  fmt.Sprintf("referenced by block %q but does not exist", b.ID),
				}
			}
		}
	}
	return nil
}

func validateBlockFields(b *model.BlockDefinition) error {
	missing := func(field string) error {
		return ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("%s block requires %s", b.Type, field)}
	}
	switch b.Type {
	case model.BlockConditional:
		if b.Condition == "" {
			return missing("condition")
		}
		if b.TrueBlock == "" {
			return missing("true_block")
		}
		if b.FalseBlock == "" {
			return missing("false_block")
		}
	case model.BlockCompute:
		if b.Expression == "" {
			return missing("expression")
		}
		if b.OutputPath == "" {
			return missing("output_path")
		}
		if b.NextBlock == "" {
			return missing("next_block")
		}
	case model.BlockAwaitInput:
		if b.InteractionID == "" {
			return missing("interaction_id")
		}
		if b.AgentID == "" {
			return missing("agent_id")
		}
		if b.NextBlock == "" {
			return missing("next_block")
		}
		if b.TimeoutMS < 0 {
			return ValidationError{BlockID: b.ID, Reason: "timeout_ms must be >= 0"}
		}
	case model.BlockForEach:
		if b.SourcePath == "" {
			return missing("source_path")
		}
		if b.ItemVar == "" {
			return missing("item_var")
		}
		if b.BodyBlock == "" {
			return missing("body_block")
		}
		if b.ExitBlock == "" {
			return missing("exit_block")
		}
	case model.BlockTryCatch:
		if b.TryBlock == "" {
			return missing("try_block")
		}
		if b.CatchBlock == "" {
			return missing("catch_block")
		}
		if b.NextBlock == "" {
			return missing("next_block")
		}
	case model.BlockContinue:
		if b.LoopBlock == "" {
			return missing("loop_block")
		}
	case model.BlockBreak:
		if b.ExitBlock == "" {
			return missing("exit_block")
		}
	case model.BlockTerminate:
	default:
		return ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("unknown block type %q", b.Type)}
	}
	return nil
}
