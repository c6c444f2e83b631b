package engine

import (
	"testing"

	"github.com/groundwork-iac/groundwork/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestExpandResources_CountExpansion(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "null",
			Name:     "worker",
			Provider: "null",
			Count:    intPtr(3),
			Properties: map[string]any{
				"index": "worker-${count.index}",
			},
		},
	}

	expanded, disabled := ExpandResources(resources)
	require.Len(t, expanded, 3)
	assert.Empty(t, disabled)

	assert.Equal(t, "null.worker[0]", expanded[0].Addr())
	assert.Equal(t, "null.worker[2]", expanded[2].Addr())
	assert.Equal(t, "worker-0", expanded[0].Properties["index"])
	assert.Equal(t, "worker-2", expanded[2].Properties["index"])
}

func TestExpandResources_CountZeroDisables(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "flagged", Provider: "null", Count: intPtr(0)},
		{Type: "null", Name: "kept", Provider: "null"},
	}

	expanded, disabled := ExpandResources(resources)
	require.Len(t, expanded, 1)
	assert.Equal(t, "null.kept", expanded[0].Addr())
	assert.True(t, disabled["null.flagged"])
}

func TestExpandResources_ForEach(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "aws:logs.LogGroup",
			Name:     "lambda_logs",
			Provider: "aws",
			ForEach: map[string]any{
				"process": "p",
				"ingest":  "i",
			},
			Properties: map[string]any{
				"logGroupName": "/aws/lambda/${each.key}",
				"marker":       "${each.value}",
			},
		},
	}

	expanded, _ := ExpandResources(resources)
	require.Len(t, expanded, 2)

	// Keys expand in sorted order for stable plans.
	assert.Equal(t, `aws:logs.LogGroup.lambda_logs["ingest"]`, expanded[0].Addr())
	assert.Equal(t, `aws:logs.LogGroup.lambda_logs["process"]`, expanded[1].Addr())
	assert.Equal(t, "/aws/lambda/ingest", expanded[0].Properties["logGroupName"])
	assert.Equal(t, "i", expanded[0].Properties["marker"])
}

func TestExpandResources_ClonesAreIndependent(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "null",
			Name:     "worker",
			Provider: "null",
			Count:    intPtr(2),
			Properties: map[string]any{
				"nested": map[string]any{"value": "${count.index}"},
			},
		},
	}

	expanded, _ := ExpandResources(resources)
	require.Len(t, expanded, 2)

	first := expanded[0].Properties["nested"].(map[string]any)
	second := expanded[1].Properties["nested"].(map[string]any)
	assert.Equal(t, "0", first["value"])
	assert.Equal(t, "1", second["value"])

	first["value"] = "mutated"
	assert.Equal(t, "1", second["value"])
}

func TestExpandResources_SingleInstanceUntouched(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null", Name: "solo", Provider: "null"},
	}

	expanded, disabled := ExpandResources(resources)
	require.Len(t, expanded, 1)
	assert.Equal(t, "null.solo", expanded[0].Addr())
	assert.Empty(t, disabled)
}
