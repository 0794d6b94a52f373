package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fluxionlabs/fluxion/flow"
	"github.com/fluxionlabs/fluxion/interp"
	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/metrics"
	"github.com/fluxionlabs/fluxion/model"
	"github.com/fluxionlabs/fluxion/resource"
	"github.com/fluxionlabs/fluxion/session"
	"github.com/fluxionlabs/fluxion/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Managed await prefixes. An agent_id of the form "<kind>:<hint>" routes the
// await through the matching adapter; anything else surfaces to the caller.
const (
	prefixLLM      = "llm:"
	prefixTask     = "task:"
	prefixWorkflow = "workflow:"
	prefixAgent    = "agent:"
)

// SessionResult is the coordinator's answer to a start or resume call.
type SessionResult struct {
	SessionID string              `json:"session_id"`
	FlowID    string              `json:"flow_id"`
	Status    string              `json:"status"`
	Result    any                 `json:"result,omitempty"`
	State     map[string]any      `json:"state,omitempty"`
	GasUsed   uint64              `json:"gas_used"`
	Await     *interp.AwaitSignal `json:"await,omitempty"`
}

type pendingAwait struct {
	sessionID string
	flowID    string
	contract  *model.Contract
	snapshot  *interp.Snapshot
	await     interp.AwaitSignal
	deadline  time.Time
}

// Coordinator drives sessions end to end: it runs the interpreter, satisfies
// managed awaits through adapters against leased resources, parks unmanaged
// awaits for external resolution, and records provenance.
type Coordinator struct {
	flows     *flow.Service
	sessions  *session.Manager
	resources *resource.Manager
	llm       *LLMAdapter
	tasks     *TaskAdapter
	workflows *WorkflowAdapter
	agents    *AgentAdapter
	prov      store.Provenance
	registry  interp.Registry

	mu      sync.Mutex
	pending map[string]*pendingAwait
}

type Config struct {
	Flows     *flow.Service
	Sessions  *session.Manager
	Resources *resource.Manager
	LLM       *LLMAdapter
	Tasks     *TaskAdapter
	Agents    *AgentAdapter
	Prov      store.Provenance
	Registry  interp.Registry
}

func NewCoordinator(conf Config) *Coordinator {
	c := &Coordinator{
		flows:     conf.Flows,
		sessions:  conf.Sessions,
		resources: conf.Resources,
		llm:       conf.LLM,
		tasks:     conf.Tasks,
		agents:    conf.Agents,
		prov:      conf.Prov,
		registry:  conf.Registry,
		pending:   make(map[string]*pendingAwait),
	}
	if c.llm == nil {
		c.llm = NewLLMAdapter(nil)
	}
	if c.tasks == nil {
		c.tasks = NewTaskAdapter(nil)
	}
	if c.agents == nil {
		c.agents = NewAgentAdapter(nil)
	}
	if c.prov == nil {
		c.prov = store.Noop{}
	}
	// sub-flow calls re-enter the coordinator itself
	c.workflows = NewWorkflowAdapter(c)
	return c
}

// StartSession creates a session for the flow and runs it until it
// completes, fails, or parks on an await the caller must answer.
func (c *Coordinator) StartSession(ctx context.Context, flowID string, input map[string]any, gas uint64) (*SessionResult, error) {
	def, err := c.flows.Get(flowID)
	if err != nil {
		return nil, err
	}
	contract, err := c.flows.Contract(flowID)
	if err != nil {
		return nil, err
	}
	sessionID := uuid.New().String()
	if _, err := c.sessions.Create(sessionID, def); err != nil {
		return nil, err
	}
	if len(input) > 0 {
		if err := c.sessions.Update(sessionID, func(ec *model.ExecutionContext) error {
			for k, v := range input {
				ec.Variables[k] = v
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	metrics.SessionsStarted.Inc()
	c.recordEvent(ctx, "session_started", sessionID, flowID, map[string]any{"gas": gas})
	logger.Info("session started", zap.String("session", sessionID), zap.String("flow", flowID))

	status := interp.Execute(contract, gas, c.registry)
	return c.drive(ctx, sessionID, flowID, contract, status)
}

// ResumeSession answers a parked await and continues the session.
func (c *Coordinator) ResumeSession(ctx context.Context, sessionID string, answer any) (*SessionResult, error) {
	c.mu.Lock()
	p, ok := c.pending[sessionID]
	if ok {
		delete(c.pending, sessionID)
	}
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s has no pending await", sessionID)
	}
	metrics.SessionsAwaiting.Dec()
	c.recordEvent(ctx, "session_resumed", sessionID, p.flowID, map[string]any{"interaction_id": p.await.InteractionID})

	status := interp.Resume(p.contract, p.snapshot, answer, c.registry)
	return c.drive(ctx, sessionID, p.flowID, p.contract, status)
}

// PendingAwait reports the await a session is parked on, if any.
func (c *Coordinator) PendingAwait(sessionID string) (*interp.AwaitSignal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[sessionID]
	if !ok {
		return nil, false
	}
	await := p.await
	return &await, true
}

// FailExpired fails every parked session whose await deadline has passed.
// It returns the number of sessions failed.
func (c *Coordinator) FailExpired(now time.Time) int {
	c.mu.Lock()
	var expired []*pendingAwait
	for id, p := range c.pending {
		if !p.deadline.IsZero() && now.After(p.deadline) {
			expired = append(expired, p)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	ctx := context.Background()
	for _, p := range expired {
		metrics.SessionsAwaiting.Dec()
		metrics.AwaitTimeouts.Inc()
		metrics.SessionsFailed.WithLabelValues("await_timeout").Inc()
		logger.Warn("session await timed out",
			zap.String("session", p.sessionID),
			zap.String("interaction", p.await.InteractionID))
		if err := c.prov.RecordExecution(ctx, store.ExecutionRecord{
			SessionID: p.sessionID,
			FlowID:    p.flowID,
			Status:    "await_timeout",
		}); err != nil {
			logger.Error("error recording timed out session", zap.Error(err))
		}
	}
	return len(expired)
}

// RunSubFlow executes a nested flow synchronously to completion. Sub-flows
// may not themselves park on unmanaged awaits.
func (c *Coordinator) RunSubFlow(ctx context.Context, flowID string, input map[string]any, gas uint64) (map[string]any, error) {
	res, err := c.StartSession(ctx, flowID, input, gas)
	if err != nil {
		return nil, err
	}
	if res.Status == interp.StatusAwaitingInput.String() {
		c.clearPending(res.SessionID)
		return nil, fmt.Errorf("sub-flow %s parked on unmanaged await %s", flowID, res.Await.InteractionID)
	}
	return res.State, nil
}

// clearPending drops a parked await if it is still present, keeping the
// awaiting gauge in step with the map. The sweeper may have claimed the
// entry first.
func (c *Coordinator) clearPending(sessionID string) bool {
	c.mu.Lock()
	_, ok := c.pending[sessionID]
	delete(c.pending, sessionID)
	c.mu.Unlock()
	if ok {
		metrics.SessionsAwaiting.Dec()
	}
	return ok
}

// drive advances a session until it terminates or parks on an await only the
// caller can answer. Managed awaits are satisfied in-loop by adapters.
func (c *Coordinator) drive(ctx context.Context, sessionID, flowID string, contract *model.Contract, status interp.ExecutionStatus) (*SessionResult, error) {
	for status.Kind == interp.StatusAwaitingInput {
		await := *status.Await
		if !managedAwait(await.AgentID) {
			deadline := time.Time{}
			if await.TimeoutMS > 0 {
				deadline = time.Now().Add(time.Duration(await.TimeoutMS) * time.Millisecond)
			}
			c.mu.Lock()
			c.pending[sessionID] = &pendingAwait{
				sessionID: sessionID,
				flowID:    flowID,
				contract:  contract,
				snapshot:  status.Snapshot,
				await:     await,
				deadline:  deadline,
			}
			c.mu.Unlock()
			metrics.SessionsAwaiting.Inc()
			c.syncState(sessionID, status.State)
			return &SessionResult{
				SessionID: sessionID,
				FlowID:    flowID,
				Status:    status.Kind.String(),
				State:     status.State,
				GasUsed:   status.GasUsed,
				Await:     &await,
			}, nil
		}

		answer, err := c.dispatch(ctx, sessionID, await)
		if err != nil {
			metrics.SessionsFailed.WithLabelValues("adapter").Inc()
			c.recordFinish(ctx, sessionID, flowID, "failed", status)
			return nil, fmt.Errorf("session %s await %s: %w", sessionID, await.InteractionID, err)
		}
		status = interp.Resume(contract, status.Snapshot, answer, c.registry)
	}

	c.syncState(sessionID, status.State)
	metrics.GasUsed.Observe(float64(status.GasUsed))

	switch status.Kind {
	case interp.StatusCompleted:
		metrics.SessionsCompleted.Inc()
		if err := c.sessions.Update(sessionID, func(ec *model.ExecutionContext) error {
			ec.FinalResult = status.Value
			return nil
		}); err != nil {
			logger.Error("error storing final result", zap.String("session", sessionID), zap.Error(err))
		}
		c.recordFinish(ctx, sessionID, flowID, "completed", status)
		return &SessionResult{
			SessionID: sessionID,
			FlowID:    flowID,
			Status:    status.Kind.String(),
			Result:    status.Value,
			State:     status.State,
			GasUsed:   status.GasUsed,
		}, nil
	default:
		reason := "execution"
		var gasErr interp.GasExhaustedError
		if errors.As(status.Err, &gasErr) {
			reason = "gas_exhausted"
		}
		metrics.SessionsFailed.WithLabelValues(reason).Inc()
		c.recordFinish(ctx, sessionID, flowID, "failed", status)
		return nil, fmt.Errorf("session %s: %w", sessionID, status.Err)
	}
}

// dispatch satisfies one managed await: allocate a resource, run the
// adapter, fold the result into the session, release the lease.
func (c *Coordinator) dispatch(ctx context.Context, sessionID string, await interp.AwaitSignal) (map[string]any, error) {
	vars := c.sessionVars(sessionID)

	callCtx := ctx
	var cancel context.CancelFunc
	if await.TimeoutMS > 0 {
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(await.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	started := time.Now()
	switch {
	case strings.HasPrefix(await.AgentID, prefixLLM):
		return c.dispatchLLM(callCtx, sessionID, await, vars, started)
	case strings.HasPrefix(await.AgentID, prefixTask):
		return c.dispatchTask(callCtx, sessionID, await, vars, started)
	case strings.HasPrefix(await.AgentID, prefixWorkflow):
		return c.dispatchWorkflow(callCtx, sessionID, await, started)
	case strings.HasPrefix(await.AgentID, prefixAgent):
		return c.dispatchAgent(callCtx, sessionID, await, vars, started)
	}
	return nil, fmt.Errorf("unroutable agent id %q", await.AgentID)
}

func (c *Coordinator) dispatchLLM(ctx context.Context, sessionID string, await interp.AwaitSignal, vars map[string]any, started time.Time) (map[string]any, error) {
	var call LLMCall
	if !decodeCall(await.Prompt, &call) {
		call = LLMCall{Prompt: await.Prompt}
	}
	if call.ID == "" {
		call.ID = await.InteractionID
	}
	if len(call.Requirement.Capabilities) == 0 {
		call.Requirement.Capabilities = call.ModelRequirements.Capabilities
	}

	res, lease, err := c.resources.AllocateLLM(call.Requirement)
	if err != nil {
		metrics.AllocationFailures.WithLabelValues(string(resource.KindLLM)).Inc()
		return nil, err
	}
	result, execErr := c.llm.Execute(ctx, call, vars)
	c.settle(lease, execErr == nil, started, "llm")
	if execErr != nil {
		return nil, execErr
	}
	result["resource"] = res.ID
	if err := c.sessions.AddLLMResult(sessionID, res.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) dispatchTask(ctx context.Context, sessionID string, await interp.AwaitSignal, vars map[string]any, started time.Time) (map[string]any, error) {
	var call TaskCall
	if !decodeCall(await.Prompt, &call) {
		return nil, invalidInput("task", "await %s carries no task payload", await.InteractionID)
	}
	if call.ID == "" {
		call.ID = await.InteractionID
	}
	req := call.Requirement
	if req.CPUCores == 0 {
		req.CPUCores = call.CPUCores
	}
	if req.MemoryMB == 0 {
		req.MemoryMB = call.MemoryMB
	}

	res, lease, err := c.resources.AllocateTask(req)
	if err != nil {
		metrics.AllocationFailures.WithLabelValues(string(resource.KindTask)).Inc()
		return nil, err
	}
	result, execErr := c.tasks.Execute(ctx, res, call, vars)
	c.settle(lease, execErr == nil, started, "task")
	if execErr != nil {
		return nil, execErr
	}
	if err := c.sessions.AddTaskResult(sessionID, res.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) dispatchWorkflow(ctx context.Context, sessionID string, await interp.AwaitSignal, started time.Time) (map[string]any, error) {
	var call WorkflowCall
	if !decodeCall(await.Prompt, &call) {
		return nil, invalidInput("workflow", "await %s carries no workflow payload", await.InteractionID)
	}
	if call.ID == "" {
		call.ID = await.InteractionID
	}

	res, lease, err := c.resources.AllocateWorkflow(call.Requirement)
	if err != nil {
		metrics.AllocationFailures.WithLabelValues(string(resource.KindWorkflow)).Inc()
		return nil, err
	}
	result, execErr := c.workflows.Execute(ctx, call)
	c.settle(lease, execErr == nil, started, "workflow")
	if execErr != nil {
		return nil, execErr
	}
	result["resource"] = res.ID
	if err := c.sessions.AddWorkflowResult(sessionID, res.ID, result); err != nil {
		return nil, err
	}
	if outputs, ok := result["outputs"].(map[string]any); ok && len(outputs) > 0 {
		if err := c.sessions.Update(sessionID, func(ec *model.ExecutionContext) error {
			for k, v := range outputs {
				ec.Variables[k] = v
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (c *Coordinator) dispatchAgent(ctx context.Context, sessionID string, await interp.AwaitSignal, vars map[string]any, started time.Time) (map[string]any, error) {
	var call AgentCall
	if !decodeCall(await.Prompt, &call) {
		call = AgentCall{
			Prompt:          await.Prompt,
			SuccessCriteria: []string{"response produced"},
			FailureCriteria: []string{"no response"},
		}
	}
	if call.ID == "" {
		call.ID = await.InteractionID
	}
	req := call.Requirement
	if len(req.Capabilities) == 0 {
		for _, s := range call.RequiredSkills {
			req.Capabilities = append(req.Capabilities, s.Name)
		}
	}

	res, lease, err := c.resources.AllocateAgent(req)
	if err != nil {
		metrics.AllocationFailures.WithLabelValues(string(resource.KindAgent)).Inc()
		return nil, err
	}
	result, execErr := c.agents.Execute(ctx, res, call, vars)
	c.settle(lease, execErr == nil, started, "agent")
	if execErr != nil {
		return nil, execErr
	}
	if len(call.RequiredSkills) > 0 {
		match := c.agents.Match(call, res.Capabilities)
		result["match_score"] = match.Score
		result["required_skills_met"] = match.RequiredSkillsMet
	}
	if err := c.sessions.AddAgentResult(sessionID, res.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// settle releases a lease and folds the observed execution into the
// resource's metrics.
func (c *Coordinator) settle(lease *resource.Lease, success bool, started time.Time, adapter string) {
	latency := time.Since(started)
	metrics.AdapterLatency.WithLabelValues(adapter).Observe(latency.Seconds())
	if err := c.resources.RecordExecution(lease, success, float64(latency.Milliseconds())); err != nil {
		logger.Error("error recording resource execution", zap.Error(err))
	}
	if err := c.resources.Release(lease); err != nil {
		logger.Error("error releasing lease", zap.String("lease", lease.ID), zap.Error(err))
	}
}

func (c *Coordinator) sessionVars(sessionID string) map[string]any {
	ec, ok := c.sessions.Get(sessionID)
	if !ok {
		return map[string]any{}
	}
	return ec.Variables
}

// syncState mirrors the interpreter's state map into the session's shared
// state so adapters and callers observe the latest values.
func (c *Coordinator) syncState(sessionID string, state map[string]any) {
	if state == nil {
		return
	}
	if err := c.sessions.Update(sessionID, func(ec *model.ExecutionContext) error {
		for k, v := range state {
			ec.SharedState[k] = v
		}
		return nil
	}); err != nil {
		logger.Error("error syncing session state", zap.String("session", sessionID), zap.Error(err))
	}
}

func (c *Coordinator) recordEvent(ctx context.Context, kind, sessionID, flowID string, payload map[string]any) {
	if _, err := c.prov.UpsertCanonicalEvent(ctx, store.CanonicalEvent{
		Kind:      kind,
		SessionID: sessionID,
		FlowID:    flowID,
		Payload:   payload,
	}); err != nil {
		logger.Error("error recording event", zap.String("kind", kind), zap.Error(err))
	}
}

func (c *Coordinator) recordFinish(ctx context.Context, sessionID, flowID, outcome string, status interp.ExecutionStatus) {
	if err := c.prov.RecordExecution(ctx, store.ExecutionRecord{
		SessionID: sessionID,
		FlowID:    flowID,
		Status:    outcome,
		GasUsed:   status.GasUsed,
	}); err != nil {
		logger.Error("error recording execution", zap.Error(err))
	}
	if outcome == "completed" {
		if err := c.prov.RecordCommit(ctx, store.CommitRecord{
			SessionID:   sessionID,
			FlowID:      flowID,
			StateDigest: stateDigest(status.State),
		}); err != nil {
			logger.Error("error recording commit", zap.Error(err))
		}
	}
}

func managedAwait(agentID string) bool {
	return strings.HasPrefix(agentID, prefixLLM) ||
		strings.HasPrefix(agentID, prefixTask) ||
		strings.HasPrefix(agentID, prefixWorkflow) ||
		strings.HasPrefix(agentID, prefixAgent)
}

// decodeCall treats the await prompt as a JSON payload when it parses as an
// object, which is how flow authors address managed resources.
func decodeCall(prompt string, out any) bool {
	trimmed := strings.TrimSpace(prompt)
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	return json.Unmarshal([]byte(trimmed), out) == nil
}

func stateDigest(state map[string]any) string {
	data, err := json.Marshal(state)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
