package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	name string
	deps []string
}

func (n node) NodeName() string   { return n.name }
func (n node) NodeDeps() []string { return n.deps }

func idx(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestOrderRespectsDependencies(t *testing.T) {
	nodes := []Node{
		node{name: "r1"},
		node{name: "r2", deps: []string{"r1"}},
		node{name: "r3", deps: []string{"r2"}},
	}

	order, err := Order(nodes)
	require.NoError(t, err)
	assert.Less(t, idx(order, "r1"), idx(order, "r2"))
	assert.Less(t, idx(order, "r2"), idx(order, "r3"))
	assert.Len(t, order, 3)
}

func TestOrderDetectsCycle(t *testing.T) {
	nodes := []Node{
		node{name: "r1", deps: []string{"r2"}},
		node{name: "r2", deps: []string{"r1"}},
	}

	_, err := Order(nodes)
	require.Error(t, err)
	var cycleErr *ErrCycle
	assert.ErrorAs(t, err, &cycleErr)
}

func TestHasCycle(t *testing.T) {
	assert.False(t, HasCycle([]Node{node{name: "a"}, node{name: "b", deps: []string{"a"}}}))
	assert.True(t, HasCycle([]Node{node{name: "a", deps: []string{"b"}}, node{name: "b", deps: []string{"a"}}}))
}
