// Package agent wires the runtime together: storage, pools, adapters,
// coordinator, engine and the http surface, with ordered startup and
// shutdown.
package agent

import (
	"sync"

	"github.com/fluxionlabs/fluxion/config"
	"github.com/fluxionlabs/fluxion/engine"
	"github.com/fluxionlabs/fluxion/flow"
	"github.com/fluxionlabs/fluxion/llm"
	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/metadata"
	"github.com/fluxionlabs/fluxion/orchestrator"
	"github.com/fluxionlabs/fluxion/resource"
	"github.com/fluxionlabs/fluxion/rest"
	"github.com/fluxionlabs/fluxion/session"
	"github.com/fluxionlabs/fluxion/store"
)

type Agent struct {
	Config       config.Config
	flowService  *flow.Service
	sessions     *session.Manager
	resources    *resource.Manager
	coordinator  *orchestrator.Coordinator
	engine       *engine.Engine
	httpServer   *rest.Server
	shutdown     bool
	shutdowns    chan struct{}
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config:    conf,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupLogger,
		a.setupFlowService,
		a.setupSessionManager,
		a.setupResourceManager,
		a.setupCoordinator,
		a.setupEngine,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupLogger() error {
	level := a.Config.LogLevel
	if level == "" {
		level = "info"
	}
	return logger.InitLogger(level, false)
}

func (a *Agent) setupFlowService() error {
	var storage metadata.Storage
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		storage = metadata.NewRedisStorage(metadata.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		})
	default:
		storage = metadata.NewInMemoryStorage()
	}
	a.flowService = flow.NewService(storage)
	return nil
}

func (a *Agent) setupSessionManager() error {
	a.sessions = session.NewManager()
	return nil
}

func (a *Agent) setupResourceManager() error {
	var strategy resource.Strategy
	switch a.Config.AllocationStrategy {
	case config.STRATEGY_CAPABILITY_BASED:
		strategy = resource.CapabilityBased{}
	case config.STRATEGY_LOAD_BALANCED:
		strategy = resource.LoadBalanced{}
	case config.STRATEGY_PRIORITY_BASED:
		strategy = resource.PriorityBased{}
	default:
		strategy = resource.NewRoundRobin()
	}
	a.resources = resource.NewManager(strategy)
	return nil
}

func (a *Agent) setupCoordinator() error {
	var providers []llm.Provider
	if a.Config.AnthropicAPIKey != "" {
		provider, err := llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey: a.Config.AnthropicAPIKey,
			Model:  a.Config.AnthropicModel,
		})
		if err != nil {
			return err
		}
		providers = append(providers, provider)
	}
	var llmManager *llm.Manager
	if len(providers) > 0 {
		llmManager = llm.NewManager(providers, a.Config.LLMMaxAttempts)
	}

	var prov store.Provenance = store.Noop{}
	if a.Config.StorageType == config.STORAGE_TYPE_REDIS {
		prov = store.NewRedisProvenance(store.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		})
	}

	a.coordinator = orchestrator.NewCoordinator(orchestrator.Config{
		Flows:     a.flowService,
		Sessions:  a.sessions,
		Resources: a.resources,
		LLM:       orchestrator.NewLLMAdapter(llmManager),
		Prov:      prov,
	})
	return nil
}

func (a *Agent) setupEngine() error {
	a.engine = engine.New(engine.Config{
		Coordinator:   a.coordinator,
		DefaultGas:    a.Config.DefaultGas,
		Workers:       a.Config.EngineWorkers,
		Capacity:      a.Config.ExecutorCapacity,
		SweepInterval: a.Config.SweepInterval,
	}, &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.flowService, a.sessions, a.resources, a.engine)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	a.engine.Start()
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down runtime")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.engine.Stop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
