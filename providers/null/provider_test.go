package null

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/groundwork-iac/groundwork/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_AssignsSyntheticID(t *testing.T) {
	p := New()

	resp, err := p.Create(context.Background(), &provider.CreateRequest{
		Type:       "null",
		Name:       "web",
		ConfigJSON: []byte(`{"triggers": {"rev": "abc"}}`),
	})
	require.NoError(t, err)

	var state State
	require.NoError(t, json.Unmarshal(resp.StateJSON, &state))
	assert.Equal(t, "null-web", state.ID)
	assert.Equal(t, "abc", state.Triggers["rev"])
}

func TestRead_EchoesStoredState(t *testing.T) {
	p := New()

	stored := []byte(`{"id": "null-web", "triggers": {"rev": "abc"}}`)
	resp, err := p.Read(context.Background(), &provider.ReadRequest{
		Type:             "null",
		Name:             "web",
		CurrentStateJSON: stored,
	})
	require.NoError(t, err)
	assert.True(t, resp.Exists)
	assert.Equal(t, stored, resp.StateJSON)
}

func TestUpdate_PreservesID(t *testing.T) {
	p := New()

	resp, err := p.Update(context.Background(), &provider.UpdateRequest{
		Type:           "null",
		Name:           "web",
		ConfigJSON:     []byte(`{"triggers": {"rev": "def"}}`),
		PriorStateJSON: []byte(`{"id": "null-web"}`),
	})
	require.NoError(t, err)

	var state State
	require.NoError(t, json.Unmarshal(resp.StateJSON, &state))
	assert.Equal(t, "null-web", state.ID)
	assert.Equal(t, "def", state.Triggers["rev"])
}

func TestDelete_IsANoOp(t *testing.T) {
	p := New()

	_, err := p.Delete(context.Background(), &provider.DeleteRequest{
		Type: "null",
		Name: "web",
		ID:   "null-web",
	})
	assert.NoError(t, err)
}
