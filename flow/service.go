package flow

import (
	"time"

	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/metadata"
	"github.com/fluxionlabs/fluxion/model"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const contractCacheExpiry = 10 * time.Minute

// Service owns flow definition lifecycle: validation on save, lookup, and a
// compiled-contract cache so repeated executions skip the transpiler.
type Service struct {
	storage   metadata.Storage
	contracts *gocache.Cache
}

func NewService(storage metadata.Storage) *Service {
	return &Service{
		storage:   storage,
		contracts: gocache.New(contractCacheExpiry, 2*contractCacheExpiry),
	}
}

// Save validates and transpiles the definition before persisting it, so a
// stored flow is always executable. A re-save invalidates the cached contract.
func (s *Service) Save(def model.FlowDefinition) error {
	if _, err := Transpile(&def); err != nil {
		return err
	}
	if err := s.storage.SaveFlowDefinition(def); err != nil {
		return err
	}
	s.contracts.Delete(def.ID)
	logger.Info("saved flow definition", zap.String("flow", def.ID))
	return nil
}

func (s *Service) Get(id string) (*model.FlowDefinition, error) {
	return s.storage.GetFlowDefinition(id)
}

func (s *Service) Delete(id string) error {
	if err := s.storage.DeleteFlowDefinition(id); err != nil {
		return err
	}
	s.contracts.Delete(id)
	return nil
}

// Contract returns the compiled contract for a flow, transpiling on a cache
// miss.
func (s *Service) Contract(id string) (*model.Contract, error) {
	if cached, ok := s.contracts.Get(id); ok {
		return cached.(*model.Contract), nil
	}
	def, err := s.storage.GetFlowDefinition(id)
	if err != nil {
		return nil, err
	}
	contract, err := Transpile(def)
	if err != nil {
		return nil, err
	}
	s.contracts.Set(id, contract, gocache.DefaultExpiration)
	return contract, nil
}
