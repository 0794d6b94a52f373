// Package engine runs coordinator requests through a bounded worker pool and
// sweeps expired awaits on a timer.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/orchestrator"
	"github.com/fluxionlabs/fluxion/util"
	"go.uber.org/zap"
)

type requestType int

const (
	startRequest requestType = iota
	resumeRequest
)

// Request is one unit of engine work: start a new session or resume a parked
// one. Reply receives the outcome; a nil Reply drops it.
type Request struct {
	Type      requestType
	FlowID    string
	SessionID string
	Input     map[string]any
	Answer    any
	Gas       uint64
	Reply     chan Result
}

type Result struct {
	Session *orchestrator.SessionResult
	Err     error
}

// Engine dispatches requests onto a fixed pool of workers so that at most
// `capacity` sessions execute concurrently, and periodically fails sessions
// whose await deadline passed.
type Engine struct {
	coordinator *orchestrator.Coordinator
	defaultGas  uint64
	workers     []*util.Worker
	sweeper     *util.TickWorker
	next        int
	mu          sync.Mutex
	wg          *sync.WaitGroup
}

type Config struct {
	Coordinator   *orchestrator.Coordinator
	DefaultGas    uint64
	Workers       int
	Capacity      int
	SweepInterval int
}

func New(conf Config, wg *sync.WaitGroup) *Engine {
	if conf.Workers <= 0 {
		conf.Workers = 4
	}
	if conf.Capacity <= 0 {
		conf.Capacity = 100
	}
	if conf.SweepInterval <= 0 {
		conf.SweepInterval = 5
	}
	e := &Engine{
		coordinator: conf.Coordinator,
		defaultGas:  conf.DefaultGas,
		wg:          wg,
	}
	for i := 0; i < conf.Workers; i++ {
		name := fmt.Sprintf("session-worker-%d", i)
		e.workers = append(e.workers, util.NewWorker(name, wg, e.handle, conf.Capacity))
	}
	e.sweeper = util.NewTickWorker("await-sweeper", conf.SweepInterval, make(chan struct{}), e.sweep, wg)
	return e
}

func (e *Engine) Start() {
	for _, w := range e.workers {
		w.Start()
	}
	e.sweeper.Start()
	logger.Info("engine started", zap.Int("workers", len(e.workers)))
}

func (e *Engine) Stop() {
	for _, w := range e.workers {
		w.Stop()
	}
	e.sweeper.Stop()
}

// StartSession submits a start request and blocks for its result.
func (e *Engine) StartSession(flowID string, input map[string]any, gas uint64) (*orchestrator.SessionResult, error) {
	if gas == 0 {
		gas = e.defaultGas
	}
	return e.submit(Request{Type: startRequest, FlowID: flowID, Input: input, Gas: gas})
}

// ResumeSession submits a resume request and blocks for its result.
func (e *Engine) ResumeSession(sessionID string, answer any) (*orchestrator.SessionResult, error) {
	return e.submit(Request{Type: resumeRequest, SessionID: sessionID, Answer: answer})
}

func (e *Engine) submit(req Request) (*orchestrator.SessionResult, error) {
	req.Reply = make(chan Result, 1)
	e.pick().Sender() <- req
	res := <-req.Reply
	return res.Session, res.Err
}

// pick rotates across workers so long-running sessions do not starve the
// others queued behind them.
func (e *Engine) pick() *util.Worker {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.workers[e.next%len(e.workers)]
	e.next++
	return w
}

func (e *Engine) handle(task util.Task) error {
	req, ok := task.(Request)
	if !ok {
		return fmt.Errorf("unexpected task type %T", task)
	}
	ctx := context.Background()
	var res Result
	switch req.Type {
	case resumeRequest:
		res.Session, res.Err = e.coordinator.ResumeSession(ctx, req.SessionID, req.Answer)
	default:
		res.Session, res.Err = e.coordinator.StartSession(ctx, req.FlowID, req.Input, req.Gas)
	}
	if req.Reply != nil {
		req.Reply <- res
	}
	return res.Err
}

func (e *Engine) sweep() {
	if n := e.coordinator.FailExpired(time.Now()); n > 0 {
		logger.Warn("failed expired awaits", zap.Int("count", n))
	}
}
