package util

import (
	"sync"
	"time"

	"github.com/fluxionlabs/fluxion/logger"
	"go.uber.org/zap"
)

// TickWorker runs fn on a fixed interval until the stop channel fires.
type TickWorker struct {
	name  string
	every time.Duration
	stop  chan struct{}
	fn    func()
	wg    *sync.WaitGroup
}

func NewTickWorker(name string, intervalSeconds int, stop chan struct{}, fn func(), wg *sync.WaitGroup) *TickWorker {
	return &TickWorker{
		name:  name,
		every: time.Duration(intervalSeconds) * time.Second,
		stop:  stop,
		fn:    fn,
		wg:    wg,
	}
}

func (tw *TickWorker) Start() {
	ticker := time.NewTicker(tw.every)
	tw.wg.Add(1)
	go func() {
		defer tw.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tw.fn()
			case <-tw.stop:
				logger.Info("tick worker stopped", zap.String("worker", tw.name))
				return
			}
		}
	}()
	logger.Info("tick worker started", zap.String("worker", tw.name))
}

func (tw *TickWorker) Stop() {
	tw.stop <- struct{}{}
}
