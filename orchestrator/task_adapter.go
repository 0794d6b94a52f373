package orchestrator

import (
	"context"
	"time"

	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/model"
	"github.com/fluxionlabs/fluxion/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxTaskNameLen = 256

// TaskCall is the payload an await block addressed to a task resource
// carries.
type TaskCall struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Input       map[string]any    `json:"input,omitempty"`
	CPUCores    int               `json:"cpu_cores,omitempty"`
	MemoryMB    int               `json:"memory_mb,omitempty"`
	TimeoutMS   int64             `json:"timeout_ms,omitempty"`
	Requirement model.Requirement `json:"requirement,omitempty"`
}

// Task is the submitted unit of work. Metadata snapshots the requesting
// step's configuration so the runner sees it as it was at submission time.
type Task struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Input       map[string]any `json:"input,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// TaskRunner executes a submitted task against some backend.
type TaskRunner interface {
	Run(ctx context.Context, res model.TaskResource, task Task) (map[string]any, error)
}

type TaskAdapter struct {
	runner TaskRunner
}

func NewTaskAdapter(runner TaskRunner) *TaskAdapter {
	return &TaskAdapter{runner: runner}
}

func (a *TaskAdapter) Name() string { return "task" }

func (a *TaskAdapter) validate(call TaskCall) error {
	if call.ID == "" {
		return invalidInput(a.Name(), "task id is empty")
	}
	if call.Name == "" {
		return invalidInput(a.Name(), "task name is empty for task %s", call.ID)
	}
	if len(call.Name) > maxTaskNameLen {
		return invalidInput(a.Name(), "task name exceeds %d characters for task %s", maxTaskNameLen, call.ID)
	}
	if call.CPUCores < 0 || call.MemoryMB < 0 {
		return invalidInput(a.Name(), "negative resource request for task %s", call.ID)
	}
	if call.TimeoutMS < 0 {
		return invalidInput(a.Name(), "negative timeout for task %s", call.ID)
	}
	return nil
}

// Execute builds the task, resolving jsonpath tokens in its input against the
// session variables, and hands it to the runner. Without a runner it returns
// a simulated completion.
func (a *TaskAdapter) Execute(ctx context.Context, res model.TaskResource, call TaskCall, vars map[string]any) (map[string]any, error) {
	if err := a.validate(call); err != nil {
		return nil, err
	}
	task := Task{
		ID:    uuid.New().String(),
		Name:  call.Name,
		Input: util.ResolveParams(vars, call.Input),
		Metadata: map[string]any{
			"call_id":    call.ID,
			"cpu_cores":  call.CPUCores,
			"memory_mb":  call.MemoryMB,
			"timeout_ms": call.TimeoutMS,
			"resource":   res.ID,
		},
		SubmittedAt: time.Now(),
	}

	if a.runner == nil {
		logger.Debug("no task runner configured, returning simulated result", zap.String("task", call.Name))
		return map[string]any{
			"task_id":   task.ID,
			"name":      task.Name,
			"status":    "completed",
			"simulated": true,
		}, nil
	}

	out, err := a.runner.Run(ctx, res, task)
	if err != nil {
		return nil, executionFailure(a.Name(), err)
	}
	result := map[string]any{
		"task_id":   task.ID,
		"name":      task.Name,
		"status":    "completed",
		"simulated": false,
	}
	for k, v := range out {
		result[k] = v
	}
	return result, nil
}
