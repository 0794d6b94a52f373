package util

import (
	"sync"

	"github.com/fluxionlabs/fluxion/logger"
	"go.uber.org/zap"
)

type Task any

// Worker drains a bounded queue through a handler until stopped. Submission
// via Sender blocks once the queue fills, which is the caller's backpressure.
type Worker struct {
	name  string
	queue chan Task
	quit  chan struct{}
	wg    *sync.WaitGroup
	run   func(Task) error
}

func NewWorker(name string, wg *sync.WaitGroup, run func(Task) error, queueSize int) *Worker {
	return &Worker{
		name:  name,
		queue: make(chan Task, queueSize),
		quit:  make(chan struct{}),
		wg:    wg,
		run:   run,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case item := <-w.queue:
				if err := w.run(item); err != nil {
					logger.Error("worker task failed",
						zap.String("worker", w.name), zap.Error(err))
				}
			case <-w.quit:
				logger.Info("worker stopped", zap.String("worker", w.name))
				return
			}
		}
	}()
}

func (w *Worker) Sender() chan<- Task {
	return w.queue
}

func (w *Worker) Stop() {
	close(w.quit)
}
