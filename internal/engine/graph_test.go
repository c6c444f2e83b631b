package engine

import (
	"strings"
	"testing"

	"github.com/groundwork-iac/groundwork/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOf(list []string, v string) int {
	for i, item := range list {
		if item == v {
			return i
		}
	}
	return -1
}

func TestBuildDAG_NoDependencies(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "a", Provider: "null"},
		{Type: "null", Name: "b", Provider: "null"},
		{Type: "null", Name: "c", Provider: "null"},
	}

	dag, err := BuildDAG(resources, nil)
	require.NoError(t, err)
	assert.Len(t, dag.CreationOrder(), 3)
}

func TestBuildDAG_ExplicitDependsOn(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "a", Provider: "null", DependsOn: []string{"null.b"}},
		{Type: "null", Name: "b", Provider: "null"},
		{Type: "null", Name: "c", Provider: "null", DependsOn: []string{"null.a"}},
	}

	dag, err := BuildDAG(resources, nil)
	require.NoError(t, err)

	order := dag.CreationOrder()
	require.Len(t, order, 3)

	assert.Less(t, indexOf(order, "null.b"), indexOf(order, "null.a"))
	assert.Less(t, indexOf(order, "null.a"), indexOf(order, "null.c"))
}

func TestBuildDAG_ImplicitReference(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "aws:lambda.Function",
			Name:     "ingest",
			Provider: "aws",
			Properties: map[string]any{
				"roleArn": "ref://aws:iam.Role.exec/arn",
			},
		},
		{Type: "aws:iam.Role", Name: "exec", Provider: "aws"},
	}

	dag, err := BuildDAG(resources, nil)
	require.NoError(t, err)

	order := dag.CreationOrder()
	assert.Less(t, indexOf(order, "aws:iam.Role.exec"), indexOf(order, "aws:lambda.Function.ingest"))
}

func TestBuildDAG_DeterministicOrder(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "c", Provider: "null"},
		{Type: "null", Name: "a", Provider: "null"},
		{Type: "null", Name: "b", Provider: "null"},
	}

	// Ready nodes tie-break by declaration order, run after run.
	first, err := BuildDAG(resources, nil)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		dag, err := BuildDAG(resources, nil)
		require.NoError(t, err)
		assert.Equal(t, first.CreationOrder(), dag.CreationOrder())
	}
	assert.Equal(t, []string{"null.c", "null.a", "null.b"}, first.CreationOrder())
}

func TestBuildDAG_CycleDetectionNamesMembers(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "a", Provider: "null", DependsOn: []string{"null.b"}},
		{Type: "null", Name: "b", Provider: "null", DependsOn: []string{"null.c"}},
		{Type: "null", Name: "c", Provider: "null", DependsOn: []string{"null.a"}},
	}

	_, err := BuildDAG(resources, nil)
	require.Error(t, err)

	var cycleErr *CyclicDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, err.Error(), "dependency cycle detected")
	for _, member := range []string{"null.a", "null.b", "null.c"} {
		assert.Contains(t, cycleErr.Cycle, member)
	}
}

func TestBuildDAG_SelfReferenceIsCycle(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "a", Provider: "null", DependsOn: []string{"null.a"}},
	}

	_, err := BuildDAG(resources, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildDAG_UnknownReference(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "a", Provider: "null", DependsOn: []string{"null.ghost"}},
	}

	_, err := BuildDAG(resources, nil)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "unknown resource")
}

func TestBuildDAG_DisabledReference(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "null",
			Name:     "a",
			Provider: "null",
			Properties: map[string]any{
				"target": "ref://null.flagged/id",
			},
		},
	}
	disabled := map[string]bool{"null.flagged": true}

	_, err := BuildDAG(resources, disabled)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "disabled (count = 0)")
}

func TestBuildDAG_DisabledReferenceWithIndex(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "a", Provider: "null", DependsOn: []string{`null.flagged[0]`}},
	}
	disabled := map[string]bool{"null.flagged": true}

	_, err := BuildDAG(resources, disabled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestBuildDAG_DuplicateAddress(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "a", Provider: "null"},
		{Type: "null", Name: "a", Provider: "null"},
	}

	_, err := BuildDAG(resources, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestDAG_DestructionOrderIsReverse(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "base", Provider: "null"},
		{Type: "null", Name: "mid", Provider: "null", DependsOn: []string{"null.base"}},
		{Type: "null", Name: "top", Provider: "null", DependsOn: []string{"null.mid"}},
	}

	dag, err := BuildDAG(resources, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"null.base", "null.mid", "null.top"}, dag.CreationOrder())
	assert.Equal(t, []string{"null.top", "null.mid", "null.base"}, dag.DestructionOrder())
}

func TestDAG_TransitiveDependents(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "base", Provider: "null"},
		{Type: "null", Name: "mid", Provider: "null", DependsOn: []string{"null.base"}},
		{Type: "null", Name: "top", Provider: "null", DependsOn: []string{"null.mid"}},
		{Type: "null", Name: "side", Provider: "null"},
	}

	dag, err := BuildDAG(resources, nil)
	require.NoError(t, err)

	downstream := dag.TransitiveDependents("null.base")
	assert.ElementsMatch(t, []string{"null.mid", "null.top"}, downstream)
}

func TestBuildDAGFromState(t *testing.T) {
	stored := []*ir.ResourceState{
		{Type: "null", Name: "top", Dependencies: []string{"null.base"}},
		{Type: "null", Name: "base"},
	}

	dag, err := BuildDAGFromState(stored)
	require.NoError(t, err)
	assert.Equal(t, []string{"null.base", "null.top"}, dag.CreationOrder())
}

func TestDAG_ToDOT(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "a", Provider: "null"},
		{Type: "null", Name: "b", Provider: "null", DependsOn: []string{"null.a"}},
	}

	dag, err := BuildDAG(resources, nil)
	require.NoError(t, err)

	dot := dag.ToDOT()
	assert.True(t, strings.HasPrefix(dot, "digraph"))
	assert.Contains(t, dot, `"null.a" -> "null.b"`)
}
