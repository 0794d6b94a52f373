package interp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/model"
	"go.uber.org/zap"
)

// Registry exposes named Go functions to Evaluate expressions. Values must
// be funcs goja can bind.
type Registry map[string]any

type StatusKind int

const (
	StatusCompleted StatusKind = iota
	StatusAwaitingInput
	StatusFailed
)

func (k StatusKind) String() string {
	switch k {
	case StatusCompleted:
		return "completed"
	case StatusAwaitingInput:
		return "awaiting_input"
	default:
		return "failed"
	}
}

// AwaitSignal surfaces everything a caller needs to satisfy an await and
// resume the run.
type AwaitSignal struct {
	InteractionID string `json:"interaction_id"`
	AgentID       string `json:"agent_id"`
	Prompt        string `json:"prompt"`
	TimeoutMS     int64  `json:"timeout_ms"`
}

// HandlerFrame is one entry of the error handler stack. A frame is popped
// when an error unwinds to it, by an explicit PopErrorHandler, or
// automatically when control reaches its UntilBlock.
type HandlerFrame struct {
	CatchBlock string `json:"catch_block"`
	UntilBlock string `json:"until_block,omitempty"`
}

// Snapshot freezes a suspended run so it can be resumed at the same logical
// point once the awaited answer arrives.
type Snapshot struct {
	ResumeBlock   string         `json:"resume_block"`
	InteractionID string         `json:"interaction_id"`
	State         map[string]any `json:"state"`
	Input         map[string]any `json:"input"`
	Handlers      []HandlerFrame `json:"handlers,omitempty"`
	GasRemaining  uint64         `json:"gas_remaining"`
	GasCharged    uint64         `json:"gas_charged"`
	InitialGas    uint64         `json:"initial_gas"`
}

// ExecutionStatus is the single terminal result of one interpreter run.
type ExecutionStatus struct {
	Kind     StatusKind
	Value    any
	State    map[string]any
	GasUsed  uint64
	Await    *AwaitSignal
	Snapshot *Snapshot
	Err      error
}

// Interpreter tree-walks one contract for one session. It is single
// threaded: one run is strictly sequential and yields only at Await nodes.
type Interpreter struct {
	contract   *model.Contract
	registry   Registry
	initialGas uint64
	startGas   uint64
	gasBase    uint64
	gas        uint64
	state      map[string]any
	input      map[string]any
	handlers   []HandlerFrame
	last       any
	curBlock   string
}

// Execute runs a contract from its start block with the given gas budget.
// A nil registry is treated as empty.
func Execute(c *model.Contract, initialGas uint64, registry Registry) ExecutionStatus {
	if c == nil {
		return ExecutionStatus{Kind: StatusFailed, Err: errors.New("nil contract")}
	}
	if initialGas == 0 {
		return ExecutionStatus{Kind: StatusFailed, Err: errors.New("initial gas must be > 0")}
	}
	in := &Interpreter{
		contract:   c,
		registry:   registry,
		initialGas: initialGas,
		startGas:   initialGas,
		gas:        initialGas,
		state:      deepCopyMap(c.InitialState),
		input:      map[string]any{},
	}
	return in.run(c.StartBlockID)
}

// Resume re-enters a suspended run with the awaited answer injected into the
// input tree under the interaction id (and mirrored into state under
// "inputs" so Evaluate scripts see it).
func Resume(c *model.Contract, snap *Snapshot, answer any, registry Registry) ExecutionStatus {
	if c == nil || snap == nil {
		return ExecutionStatus{Kind: StatusFailed, Err: errors.New("nil contract or snapshot")}
	}
	in := &Interpreter{
		contract:   c,
		registry:   registry,
		initialGas: snap.InitialGas,
		startGas:   snap.GasRemaining,
		gasBase:    snap.GasCharged,
		gas:        snap.GasRemaining,
		state:      deepCopyMap(snap.State),
		input:      deepCopyMap(snap.Input),
		handlers:   append([]HandlerFrame(nil), snap.Handlers...),
	}
	in.input[snap.InteractionID] = answer
	inputs, _ := in.state["inputs"].(map[string]any)
	if inputs == nil {
		inputs = map[string]any{}
		in.state["inputs"] = inputs
	}
	inputs[snap.InteractionID] = answer
	return in.run(snap.ResumeBlock)
}

func (in *Interpreter) run(start string) ExecutionStatus {
	cur := start
	for {
		in.curBlock = cur
		in.popScopedHandlers(cur)
		node, ok := in.contract.Blocks[cur]
		if !ok {
			if next, handled := in.unwind(fmt.Errorf("no block %q in contract", cur)); handled {
				cur = next
				continue
			}
			return in.failed(fmt.Errorf("no block %q in contract", cur))
		}
		if err := in.charge(costBlockDispatch); err != nil {
			return in.failed(err)
		}
		res, err := in.eval(node)
		if err != nil {
			var gasErr GasExhaustedError
			if errors.As(err, &gasErr) {
				// Gas exhaustion is terminal; handlers don't get to run.
				return in.failed(err)
			}
			logger.Debug("block evaluation failed",
				zap.String("block", cur), zap.Error(err))
			if next, handled := in.unwind(err); handled {
				cur = next
				continue
			}
			return in.failed(err)
		}
		if res.value != nil {
			in.last = res.value
		}
		switch res.ctl {
		case ctlJump:
			cur = res.next
		case ctlAwait:
			snap := &Snapshot{
				ResumeBlock:   res.next,
				InteractionID: res.await.InteractionID,
				State:         in.state,
				Input:         in.input,
				Handlers:      append([]HandlerFrame(nil), in.handlers...),
				GasRemaining:  in.gas,
				GasCharged:    in.gasUsed(),
				InitialGas:    in.initialGas,
			}
			return ExecutionStatus{
				Kind:     StatusAwaitingInput,
				State:    in.state,
				GasUsed:  in.gasUsed(),
				Await:    res.await,
				Snapshot: snap,
			}
		case ctlTerminate:
			return ExecutionStatus{
				Kind:    StatusCompleted,
				Value:   res.value,
				State:   in.state,
				GasUsed: in.gasUsed(),
			}
		default:
			err := fmt.Errorf("block %q finished without transferring control", cur)
			if next, handled := in.unwind(err); handled {
				cur = next
				continue
			}
			return in.failed(err)
		}
	}
}

func (in *Interpreter) gasUsed() uint64 {
	return in.gasBase + in.startGas - in.gas
}

func (in *Interpreter) failed(err error) ExecutionStatus {
	return ExecutionStatus{Kind: StatusFailed, Err: err, State: in.state, GasUsed: in.gasUsed()}
}

// popScopedHandlers drops handler frames whose protected region ends at the
// block control is entering.
func (in *Interpreter) popScopedHandlers(blockID string) {
	for len(in.handlers) > 0 && in.handlers[len(in.handlers)-1].UntilBlock == blockID {
		in.handlers = in.handlers[:len(in.handlers)-1]
	}
}

// unwind pops the nearest handler and redirects control to its catch block,
// recording the failure under state.__error. Returns false when the stack is
// empty and the error is fatal.
func (in *Interpreter) unwind(err error) (string, bool) {
	if len(in.handlers) == 0 {
		return "", false
	}
	frame := in.handlers[len(in.handlers)-1]
	in.handlers = in.handlers[:len(in.handlers)-1]
	in.state["__error"] = map[string]any{
		"message": err.Error(),
		"block":   in.curBlock,
	}
	return frame.CatchBlock, true
}

type ctlKind int

const (
	ctlNone ctlKind = iota
	ctlJump
	ctlAwait
	ctlTerminate
)

type evalResult struct {
	value any
	ctl   ctlKind
	next  string
	await *AwaitSignal
}

func (in *Interpreter) eval(n *model.AstNode) (evalResult, error) {
	if n == nil {
		return evalResult{}, nil
	}
	if err := in.charge(opCosts[n.Op]); err != nil {
		return evalResult{}, err
	}
	switch n.Op {
	case model.OpLiteral:
		return evalResult{value: n.Metadata["value"]}, nil
	case model.OpSequence:
		var last any
		for _, child := range n.Children("children") {
			res, err := in.eval(child)
			if err != nil {
				return evalResult{}, err
			}
			if res.ctl != ctlNone {
				return res, nil
			}
			last = res.value
		}
		return evalResult{value: last}, nil
	case model.OpIf:
		cond, err := in.eval(n.Child("condition"))
		if err != nil {
			return evalResult{}, err
		}
		if cond.ctl != ctlNone {
			return evalResult{}, errors.New("if condition cannot transfer control")
		}
		branch := n.Child("else")
		if truthy(cond.value) {
			branch = n.Child("then")
		}
		if branch == nil {
			return evalResult{}, nil
		}
		return in.eval(branch)
	case model.OpEvaluate:
		return in.evalScript(n)
	case model.OpAwait:
		sig := &AwaitSignal{
			InteractionID: n.Str("interaction_id"),
			AgentID:       n.Str("agent_id"),
			Prompt:        n.Str("prompt"),
			TimeoutMS:     n.Int64("timeout_ms"),
		}
		return evalResult{ctl: ctlAwait, next: n.Str("next_block"), await: sig}, nil
	case model.OpSetNextBlock:
		return evalResult{ctl: ctlJump, next: n.Str("target")}, nil
	case model.OpTerminate:
		value := in.last
		if rp := n.Str("result_path"); rp != "" {
			p, err := ParsePath(rp)
			if err != nil {
				return evalResult{}, err
			}
			v, err := in.readPath(p)
			if err != nil {
				return evalResult{}, err
			}
			value = v
		}
		return evalResult{ctl: ctlTerminate, value: value}, nil
	case model.OpPushErrorHandler:
		in.handlers = append(in.handlers, HandlerFrame{
			CatchBlock: n.Str("catch_block"),
			UntilBlock: n.Str("until_block"),
		})
		return evalResult{}, nil
	case model.OpPopErrorHandler:
		if len(in.handlers) > 0 {
			in.handlers = in.handlers[:len(in.handlers)-1]
		}
		return evalResult{}, nil
	case model.OpAdd:
		lf, rf, err := in.numericOperands(n)
		if err != nil {
			return evalResult{}, err
		}
		return evalResult{value: lf + rf}, nil
	case model.OpLessThan:
		lf, rf, err := in.numericOperands(n)
		if err != nil {
			return evalResult{}, err
		}
		return evalResult{value: lf < rf}, nil
	case model.OpLength:
		var v any
		var err error
		if sp := n.Str("source_path"); sp != "" {
			var p Path
			p, err = ParsePath(sp)
			if err == nil {
				v, err = in.readPath(p)
			}
		} else {
			v, err = in.operand(n, "value")
		}
		if err != nil {
			return evalResult{}, err
		}
		switch t := v.(type) {
		case []any:
			return evalResult{value: float64(len(t))}, nil
		case map[string]any:
			return evalResult{value: float64(len(t))}, nil
		case string:
			return evalResult{value: float64(len(t))}, nil
		default:
			return evalResult{}, fmt.Errorf("length of %T is undefined", v)
		}
	default:
		return evalResult{}, fmt.Errorf("unknown op %q", n.Op)
	}
}

// operand resolves an arithmetic/comparison operand: a child AST node under
// key, a path under "<key>_path", or an inline literal under key.
func (in *Interpreter) operand(n *model.AstNode, key string) (any, error) {
	if child := n.Child(key); child != nil {
		res, err := in.eval(child)
		if err != nil {
			return nil, err
		}
		if res.ctl != ctlNone {
			return nil, fmt.Errorf("operand %q cannot transfer control", key)
		}
		return res.value, nil
	}
	if raw := n.Str(key + "_path"); raw != "" {
		p, err := ParsePath(raw)
		if err != nil {
			return nil, err
		}
		return in.readPath(p)
	}
	if n.Metadata != nil {
		if v, ok := n.Metadata[key]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("missing operand %q", key)
}

func (in *Interpreter) numericOperands(n *model.AstNode) (float64, float64, error) {
	l, err := in.operand(n, "lhs")
	if err != nil {
		return 0, 0, err
	}
	r, err := in.operand(n, "rhs")
	if err != nil {
		return 0, 0, err
	}
	lf, err := toFloat(l)
	if err != nil {
		return 0, 0, err
	}
	rf, err := toFloat(r)
	if err != nil {
		return 0, 0, err
	}
	return lf, rf, nil
}

// evalScript runs an Evaluate node's bytecode with $ bound to the state tree
// and $input to the input tree. Script mutations of $ persist; the script's
// value is additionally written at output_path when one is set.
func (in *Interpreter) evalScript(n *model.AstNode) (evalResult, error) {
	bytecode := n.Str("bytecode")
	if bytecode == "" {
		return evalResult{}, errors.New("evaluate node without bytecode")
	}
	vm := goja.New()
	for name, fn := range in.registry {
		if err := vm.Set(name, fn); err != nil {
			return evalResult{}, fmt.Errorf("binding registry function %q: %w", name, err)
		}
	}
	stateJSON, err := json.Marshal(in.state)
	if err != nil {
		return evalResult{}, err
	}
	inputJSON, err := json.Marshal(in.input)
	if err != nil {
		return evalResult{}, err
	}
	prelude := fmt.Sprintf("var $ = %s;\nvar $input = %s;\n", stateJSON, inputJSON)
	v, err := vm.RunString(prelude + bytecode)
	if err != nil {
		return evalResult{}, fmt.Errorf("error executing expression: %w", err)
	}
	value := normalize(v.Export())
	dollar, err := vm.RunString("$")
	if err == nil {
		if m, ok := normalize(dollar.Export()).(map[string]any); ok {
			in.state = m
		}
	}
	if out := n.Str("output_path"); out != "" {
		p, err := ParsePath(out)
		if err != nil {
			return evalResult{}, err
		}
		if err := in.writePath(p, value); err != nil {
			return evalResult{}, err
		}
	}
	return evalResult{value: value}, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("%T is not numeric", v)
	}
}

// normalize round-trips a value through JSON so interpreter state always
// holds the JSON type set regardless of what goja exported.
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{}
	}
	return out
}
