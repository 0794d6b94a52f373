package resource

import (
	"errors"
	"sync"
	"testing"

	"github.com/fluxionlabs/fluxion/model"
	"github.com/stretchr/testify/require"
)

func agent(id string, skills ...string) model.AgentResource {
	res := model.AgentResource{ID: id, Name: id}
	for _, s := range skills {
		res.Capabilities.Skills = append(res.Capabilities.Skills, model.Skill{Name: s, Proficiency: 0.8})
	}
	return res
}

func TestPool(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"test lease exclusivity":        testLeaseExclusivity,
		"test release restores":         testReleaseRestores,
		"test double release rejected":  testDoubleRelease,
		"test remove drops reservation": testRemove,
		"test concurrent allocation":    testConcurrentAllocation,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testLeaseExclusivity(t *testing.T) {
	m := NewManager(NewRoundRobin())
	m.Agents.Add(agent("a1"))

	res, lease, err := m.AllocateAgent(model.Requirement{})
	require.NoError(t, err)
	require.Equal(t, "a1", res.ID)
	require.Equal(t, "a1", lease.ResourceID)
	require.Equal(t, KindAgent, lease.Kind)

	// the only resource is reserved, so a second allocation must fail
	_, _, err = m.AllocateAgent(model.Requirement{})
	var allocErr AllocationError
	require.True(t, errors.As(err, &allocErr))
	require.Equal(t, KindAgent, allocErr.Kind)
}

func testReleaseRestores(t *testing.T) {
	m := NewManager(NewRoundRobin())
	m.Agents.Add(agent("a1"))

	_, lease, err := m.AllocateAgent(model.Requirement{})
	require.NoError(t, err)
	require.NoError(t, m.Release(lease))

	res, lease2, err := m.AllocateAgent(model.Requirement{})
	require.NoError(t, err)
	require.Equal(t, "a1", res.ID)
	require.NotEqual(t, lease.ID, lease2.ID)
}

func testDoubleRelease(t *testing.T) {
	m := NewManager(NewRoundRobin())
	m.Agents.Add(agent("a1"))
	_, lease, err := m.AllocateAgent(model.Requirement{})
	require.NoError(t, err)
	require.NoError(t, m.Release(lease))
	require.Error(t, m.Release(lease))
	require.Error(t, m.Release(nil))
}

func testRemove(t *testing.T) {
	p := NewPool[model.AgentResource](KindAgent)
	p.Add(agent("a1"))
	p.Add(agent("a2"))
	require.Equal(t, 2, p.Size())
	p.Remove("a1")
	require.Equal(t, 1, p.Size())
	require.Len(t, p.Available(), 1)
	require.Equal(t, "a2", p.Available()[0].ID)
}

func testConcurrentAllocation(t *testing.T) {
	m := NewManager(NewRoundRobin())
	const n = 8
	for i := 0; i < n; i++ {
		m.Agents.Add(agent(string(rune('a' + i))))
	}

	// n resources, 2n contenders: exactly n must win, each a distinct
	// resource
	var wg sync.WaitGroup
	var mu sync.Mutex
	got := map[string]int{}
	var failures int
	for i := 0; i < 2*n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := m.AllocateAgent(model.Requirement{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				return
			}
			got[res.ID]++
		}()
	}
	wg.Wait()
	require.Equal(t, n, failures)
	require.Len(t, got, n)
	for id, count := range got {
		require.Equal(t, 1, count, "resource %s leased more than once", id)
	}
}
