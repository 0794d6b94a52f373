package model

// Op is the closed instruction set of the contract AST.
type Op string

const (
	OpLiteral          Op = "literal"
	OpSequence         Op = "sequence"
	OpIf               Op = "if"
	OpEvaluate         Op = "evaluate"
	OpAwait            Op = "await"
	OpSetNextBlock     Op = "set_next_block"
	OpTerminate        Op = "terminate"
	OpPushErrorHandler Op = "push_error_handler"
	OpPopErrorHandler  Op = "pop_error_handler"
	OpAdd              Op = "add"
	OpLessThan         Op = "less_than"
	OpLength           Op = "length"
)

// SourceLocation points an AST node back at the flow block and field it was
// transpiled from.
type SourceLocation struct {
	BlockID string `json:"block_id"`
	Field   string `json:"field,omitempty"`
}

// AstNode is one node of a transpiled contract. Operands and child nodes
// live in Metadata under fixed, per-op keys. Trees are immutable after
// transpilation; only interpreter-local state mutates during execution.
type AstNode struct {
	Op       Op              `json:"op"`
	Metadata map[string]any  `json:"metadata,omitempty"`
	Loc      *SourceLocation `json:"source_location,omitempty"`
}

// Child returns the child node stored under key, or nil.
func (n *AstNode) Child(key string) *AstNode {
	if n.Metadata == nil {
		return nil
	}
	c, _ := n.Metadata[key].(*AstNode)
	return c
}

// Children returns the node list stored under key.
func (n *AstNode) Children(key string) []*AstNode {
	if n.Metadata == nil {
		return nil
	}
	c, _ := n.Metadata[key].([]*AstNode)
	return c
}

// Str returns the string stored under key, or "".
func (n *AstNode) Str(key string) string {
	if n.Metadata == nil {
		return ""
	}
	s, _ := n.Metadata[key].(string)
	return s
}

// Int64 returns the integer stored under key, coercing json float64s.
func (n *AstNode) Int64(key string) int64 {
	if n.Metadata == nil {
		return 0
	}
	switch v := n.Metadata[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Contract is the executable artifact produced by transpiling a flow
// definition: a flat, addressable graph of per-block AST trees. Produced
// once per definition, executed once per session.
type Contract struct {
	Version      string              `json:"version"`
	StartBlockID string              `json:"start_block_id"`
	Blocks       map[string]*AstNode `json:"blocks"`
	InitialState map[string]any      `json:"initial_state,omitempty"`
	Permissions  map[string][]string `json:"permissions,omitempty"`
	Participants []string            `json:"participants,omitempty"`
}
