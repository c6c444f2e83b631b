package engine

import (
	"testing"

	"github.com/groundwork-iac/groundwork/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRef(t *testing.T) {
	addr, attr, ok := splitRef("ref://aws:s3.Bucket.data/arn")
	require.True(t, ok)
	assert.Equal(t, "aws:s3.Bucket.data", addr)
	assert.Equal(t, "arn", attr)

	// Expanded instance addresses keep their index suffix.
	addr, attr, ok = splitRef(`ref://null.worker[0]/id`)
	require.True(t, ok)
	assert.Equal(t, `null.worker[0]`, addr)
	assert.Equal(t, "id", attr)

	_, _, ok = splitRef("ref://missing-attribute")
	assert.False(t, ok)

	_, _, ok = splitRef("not-a-ref")
	assert.False(t, ok)
}

func TestExtractRefs(t *testing.T) {
	props := map[string]any{
		"plain": "value",
		"role":  "ref://aws:iam.Role.exec/arn",
		"nested": map[string]any{
			"bucket": "ref://aws:s3.Bucket.data/bucket",
		},
		"list": []any{"ref://null.a/id"},
	}

	refs := extractRefs(props)
	assert.ElementsMatch(t, []string{
		"ref://aws:iam.Role.exec/arn",
		"ref://aws:s3.Bucket.data/bucket",
		"ref://null.a/id",
	}, refs)
}

func TestResolveRefs_PrefersOutputs(t *testing.T) {
	state := ir.NewState()
	state.Put(&ir.ResourceState{
		Type:    "null",
		Name:    "a",
		Inputs:  map[string]any{"id": "declared"},
		Outputs: map[string]any{"id": "assigned"},
	})

	resolved, err := resolveRefs("ref://null.a/id", state)
	require.NoError(t, err)
	assert.Equal(t, "assigned", resolved)
}

func TestResolveRefs_FallsBackToInputs(t *testing.T) {
	state := ir.NewState()
	state.Put(&ir.ResourceState{
		Type:   "null",
		Name:   "a",
		Inputs: map[string]any{"size": 3},
	})

	resolved, err := resolveRefs("ref://null.a/size", state)
	require.NoError(t, err)
	assert.Equal(t, 3, resolved)
}

func TestResolveRefs_UnknownTargetFails(t *testing.T) {
	_, err := resolveRefs("ref://null.ghost/id", ir.NewState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in state")
}

func TestResolveRefs_MissingAttributeFails(t *testing.T) {
	state := ir.NewState()
	state.Put(&ir.ResourceState{Type: "null", Name: "a"})

	_, err := resolveRefs("ref://null.a/arn", state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no attribute")
}

func TestResolveRefs_WalksNestedStructures(t *testing.T) {
	state := ir.NewState()
	state.Put(&ir.ResourceState{
		Type:    "null",
		Name:    "a",
		Outputs: map[string]any{"id": "assigned"},
	})

	resolved, err := resolveRefs(map[string]any{
		"env": map[string]any{"TARGET": "ref://null.a/id"},
		"ids": []any{"ref://null.a/id"},
	}, state)
	require.NoError(t, err)

	m := resolved.(map[string]any)
	assert.Equal(t, "assigned", m["env"].(map[string]any)["TARGET"])
	assert.Equal(t, "assigned", m["ids"].([]any)[0])
}
