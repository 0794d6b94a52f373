// Package resource holds typed pools of allocatable resource descriptors and
// the pluggable policies that pick one for a requirement. Allocation is a
// lease: selection and reservation happen atomically under the pool lock,
// and the resource stays unavailable until the lease is released.
package resource

import (
	"fmt"
	"sync"
	"time"

	"github.com/fluxionlabs/fluxion/model"
	"github.com/google/uuid"
)

type Kind string

const (
	KindAgent    Kind = "agent"
	KindLLM      Kind = "llm"
	KindTask     Kind = "task"
	KindWorkflow Kind = "workflow"
)

// AllocationError reports that no resource in the pool qualified. It is
// surfaced to the caller, never silently retried with a degraded resource.
type AllocationError struct {
	Kind     Kind
	Strategy string
	Reason   string
}

func (e AllocationError) Error() string {
	return fmt.Sprintf("no %s resource could be allocated (strategy %s): %s", e.Kind, e.Strategy, e.Reason)
}

// Descriptor is the minimum surface every resource kind exposes to pools and
// strategies.
type Descriptor interface {
	ResourceID() string
	ResourceMetrics() model.PerformanceMetrics
}

// Lease is the reservation token returned by a successful allocation.
type Lease struct {
	ID         string
	Kind       Kind
	ResourceID string
	AcquiredAt time.Time
}

// Pool is a typed registry of resource descriptors with lease tracking.
type Pool[T Descriptor] struct {
	mu        sync.Mutex
	kind      Kind
	resources map[string]T
	order     []string
	reserved  map[string]string // resource id -> lease id
	leases    map[string]string // lease id -> resource id
}

func NewPool[T Descriptor](kind Kind) *Pool[T] {
	return &Pool[T]{
		kind:      kind,
		resources: make(map[string]T),
		reserved:  make(map[string]string),
		leases:    make(map[string]string),
	}
}

// Add registers or replaces a descriptor.
func (p *Pool[T]) Add(r T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := r.ResourceID()
	if _, exists := p.resources[id]; !exists {
		p.order = append(p.order, id)
	}
	p.resources[id] = r
}

func (p *Pool[T]) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resources, id)
	delete(p.reserved, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Pool[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}

// Available returns the unreserved descriptors in registration order.
func (p *Pool[T]) Available() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availableLocked()
}

func (p *Pool[T]) availableLocked() []T {
	out := make([]T, 0, len(p.resources))
	for _, id := range p.order {
		if _, busy := p.reserved[id]; busy {
			continue
		}
		if r, ok := p.resources[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Allocate runs selector over the unreserved snapshot and reserves the chosen
// resource, all under one lock acquisition.
func (p *Pool[T]) Allocate(strategyName string, selector func([]T) (T, error)) (T, *Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	chosen, err := selector(p.availableLocked())
	if err != nil {
		return zero, nil, err
	}
	id := chosen.ResourceID()
	if _, busy := p.reserved[id]; busy {
		return zero, nil, AllocationError{Kind: p.kind, Strategy: strategyName,
			Reason: fmt.Sprintf("resource %q already reserved", id)}
	}
	lease := &Lease{
		ID:         uuid.New().String(),
		Kind:       p.kind,
		ResourceID: id,
		AcquiredAt: time.Now(),
	}
	p.reserved[id] = lease.ID
	p.leases[lease.ID] = id
	return chosen, lease, nil
}

// Release returns a leased resource to the available set.
func (p *Pool[T]) Release(l *Lease) error {
	if l == nil {
		return fmt.Errorf("nil lease")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.leases[l.ID]
	if !ok {
		return fmt.Errorf("lease %q is not held", l.ID)
	}
	delete(p.leases, l.ID)
	delete(p.reserved, id)
	return nil
}

// Update applies fn to one descriptor, e.g. to fold in execution metrics.
func (p *Pool[T]) Update(id string, fn func(T) T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[id]
	if !ok {
		return fmt.Errorf("no %s resource %q", p.kind, id)
	}
	p.resources[id] = fn(r)
	return nil
}
