package metadata

import (
	"fmt"
	"sync"

	"github.com/fluxionlabs/fluxion/model"
)

// NotFoundError is returned when a flow definition does not exist.
type NotFoundError struct {
	FlowID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("flow definition %s not found", e.FlowID)
}

type Storage interface {
	SaveFlowDefinition(def model.FlowDefinition) error
	DeleteFlowDefinition(id string) error
	GetFlowDefinition(id string) (*model.FlowDefinition, error)
}

type inMemoryStorage struct {
	mu    sync.RWMutex
	flows map[string]model.FlowDefinition
}

func NewInMemoryStorage() Storage {
	return &inMemoryStorage{
		flows: make(map[string]model.FlowDefinition),
	}
}

func (s *inMemoryStorage) SaveFlowDefinition(def model.FlowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[def.ID] = def
	return nil
}

func (s *inMemoryStorage) DeleteFlowDefinition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[id]; !ok {
		return NotFoundError{FlowID: id}
	}
	delete(s.flows, id)
	return nil
}

func (s *inMemoryStorage) GetFlowDefinition(id string) (*model.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.flows[id]
	if !ok {
		return nil, NotFoundError{FlowID: id}
	}
	return &def, nil
}
