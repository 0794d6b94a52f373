package model

type BlockType string

const (
	BlockConditional BlockType = "conditional"
	BlockCompute     BlockType = "compute"
	BlockAwaitInput  BlockType = "await_input"
	BlockForEach     BlockType = "for_each"
	BlockTryCatch    BlockType = "try_catch"
	BlockContinue    BlockType = "continue"
	BlockBreak       BlockType = "break"
	BlockTerminate   BlockType = "terminate"
)

// BlockDefinition is one node of a user authored flow graph. The populated
// fields depend on Type; control-transfer fields always name other block ids.
type BlockDefinition struct {
	ID   string    `json:"id"`
	Type BlockType `json:"type"`

	// conditional
	Condition  string `json:"condition,omitempty"`
	TrueBlock  string `json:"true_block,omitempty"`
	FalseBlock string `json:"false_block,omitempty"`

	// compute
	Expression string `json:"expression,omitempty"`
	OutputPath string `json:"output_path,omitempty"`

	// shared by compute, await_input and try_catch
	NextBlock string `json:"next_block,omitempty"`

	// await_input
	InteractionID string `json:"interaction_id,omitempty"`
	AgentID       string `json:"agent_id,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
	TimeoutMS     int64  `json:"timeout_ms,omitempty"`

	// for_each
	SourcePath string `json:"source_path,omitempty"`
	ItemVar    string `json:"item_var,omitempty"`
	BodyBlock  string `json:"body_block,omitempty"`

	// for_each and break
	ExitBlock string `json:"exit_block,omitempty"`

	// try_catch
	TryBlock   string `json:"try_block,omitempty"`
	CatchBlock string `json:"catch_block,omitempty"`

	// continue and break (break uses it to reset the loop counter)
	LoopBlock string `json:"loop_block,omitempty"`

	// terminate
	ResultPath string `json:"result_path,omitempty"`
}

// Outgoing returns every block id this block can transfer control to.
func (b *BlockDefinition) Outgoing() []string {
	var out []string
	add := func(ids ...string) {
		for _, id := range ids {
			if id != "" {
				out = append(out, id)
			}
		}
	}
	switch b.Type {
	case BlockConditional:
		add(b.TrueBlock, b.FalseBlock)
	case BlockCompute, BlockAwaitInput:
		add(b.NextBlock)
	case BlockForEach:
		add(b.BodyBlock, b.ExitBlock)
	case BlockTryCatch:
		add(b.TryBlock, b.CatchBlock, b.NextBlock)
	case BlockContinue:
		add(b.LoopBlock)
	case BlockBreak:
		add(b.ExitBlock, b.LoopBlock)
	case BlockTerminate:
	}
	return out
}

// FlowDefinition is the parsed, validated form of a flow description.
// Immutable once transpiled.
type FlowDefinition struct {
	ID           string              `json:"id"`
	StartBlockID string              `json:"start_block_id"`
	Blocks       []BlockDefinition   `json:"blocks"`
	Participants []string            `json:"participants,omitempty"`
	Permissions  map[string][]string `json:"permissions,omitempty"`
	InitialState map[string]any      `json:"initial_state,omitempty"`
	StateSchema  map[string]any      `json:"state_schema,omitempty"`
}

func (f *FlowDefinition) Block(id string) *BlockDefinition {
	for i := range f.Blocks {
		if f.Blocks[i].ID == id {
			return &f.Blocks[i]
		}
	}
	return nil
}
