package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fluxionlabs/fluxion/model"
	"golang.org/x/sync/errgroup"
)

const (
	minAdaptiveBatch = 1
	maxAdaptiveBatch = 8
	// payload bytes per unit of batch size; larger inputs get smaller batches
	adaptiveBatchDivisor = 4096
)

// WorkflowCall is the payload an await block addressed to a workflow
// resource carries. OutputMapping remaps sub-flow output keys to the caller's
// variable names.
type WorkflowCall struct {
	ID            string            `json:"id"`
	FlowID        string            `json:"flow_id"`
	Mode          string            `json:"mode,omitempty"`
	Inputs        []map[string]any  `json:"inputs"`
	Gas           uint64            `json:"gas,omitempty"`
	OutputMapping map[string]string `json:"output_mapping,omitempty"`
	Requirement   model.Requirement `json:"requirement,omitempty"`
}

// SubWorkflowRunner runs one named flow to completion and returns its final
// state.
type SubWorkflowRunner interface {
	RunSubFlow(ctx context.Context, flowID string, input map[string]any, gas uint64) (map[string]any, error)
}

type WorkflowAdapter struct {
	runner SubWorkflowRunner
}

func NewWorkflowAdapter(runner SubWorkflowRunner) *WorkflowAdapter {
	return &WorkflowAdapter{runner: runner}
}

func (a *WorkflowAdapter) Name() string { return "workflow" }

func (a *WorkflowAdapter) validate(call WorkflowCall) error {
	if call.ID == "" {
		return invalidInput(a.Name(), "call id is empty")
	}
	if call.FlowID == "" {
		return invalidInput(a.Name(), "flow id is empty for call %s", call.ID)
	}
	if len(call.Inputs) == 0 {
		return invalidInput(a.Name(), "no inputs for call %s", call.ID)
	}
	switch model.ExecutionMode(call.Mode) {
	case model.ModeSequential, model.ModeParallel, model.ModeAdaptiveBatch, "":
	default:
		return invalidInput(a.Name(), "unknown execution mode %q for call %s", call.Mode, call.ID)
	}
	return nil
}

// Execute runs the named sub-flow once per input under the requested
// execution mode, then applies the output mapping over the merged results.
func (a *WorkflowAdapter) Execute(ctx context.Context, call WorkflowCall) (map[string]any, error) {
	if err := a.validate(call); err != nil {
		return nil, err
	}
	if a.runner == nil {
		return map[string]any{
			"flow_id":   call.FlowID,
			"results":   []any{},
			"simulated": true,
		}, nil
	}

	mode := model.ExecutionMode(call.Mode)
	if mode == "" {
		mode = model.ModeSequential
	}

	var results []map[string]any
	var err error
	switch mode {
	case model.ModeSequential:
		results, err = a.runSequential(ctx, call)
	case model.ModeParallel:
		results, err = a.runParallel(ctx, call, call.Inputs)
	case model.ModeAdaptiveBatch:
		results, err = a.runAdaptiveBatch(ctx, call)
	}
	if err != nil {
		return nil, executionFailure(a.Name(), err)
	}

	merged := make(map[string]any)
	for _, r := range results {
		for k, v := range r {
			merged[k] = v
		}
	}
	outputs := make(map[string]any, len(call.OutputMapping))
	for from, to := range call.OutputMapping {
		if v, ok := merged[from]; ok {
			outputs[to] = v
		}
	}

	anyResults := make([]any, 0, len(results))
	for _, r := range results {
		anyResults = append(anyResults, r)
	}
	return map[string]any{
		"flow_id":   call.FlowID,
		"mode":      string(mode),
		"results":   anyResults,
		"outputs":   outputs,
		"simulated": false,
	}, nil
}

func (a *WorkflowAdapter) runSequential(ctx context.Context, call WorkflowCall) ([]map[string]any, error) {
	results := make([]map[string]any, 0, len(call.Inputs))
	for i, input := range call.Inputs {
		out, err := a.runner.RunSubFlow(ctx, call.FlowID, input, call.Gas)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		results = append(results, out)
	}
	return results, nil
}

func (a *WorkflowAdapter) runParallel(ctx context.Context, call WorkflowCall, inputs []map[string]any) ([]map[string]any, error) {
	results := make([]map[string]any, len(inputs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			out, err := a.runner.RunSubFlow(gctx, call.FlowID, input, call.Gas)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			mu.Lock()
			results[i] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *WorkflowAdapter) runAdaptiveBatch(ctx context.Context, call WorkflowCall) ([]map[string]any, error) {
	batch := adaptiveBatchSize(call.Inputs)
	var results []map[string]any
	for start := 0; start < len(call.Inputs); start += batch {
		end := start + batch
		if end > len(call.Inputs) {
			end = len(call.Inputs)
		}
		out, err := a.runParallel(ctx, call, call.Inputs[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, out...)
	}
	return results, nil
}

// adaptiveBatchSize shrinks the batch as the average encoded input grows.
func adaptiveBatchSize(inputs []map[string]any) int {
	total := 0
	for _, in := range inputs {
		if data, err := json.Marshal(in); err == nil {
			total += len(data)
		}
	}
	avg := total / len(inputs)
	size := maxAdaptiveBatch - avg/adaptiveBatchDivisor
	if size < minAdaptiveBatch {
		return minAdaptiveBatch
	}
	if size > maxAdaptiveBatch {
		return maxAdaptiveBatch
	}
	return size
}
