package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/groundwork-iac/groundwork/internal/ir"
	"github.com/groundwork-iac/groundwork/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg := provider.NewRegistry()
	require.NoError(t, reg.LoadProvider("null"))
	return NewEngine(reg)
}

func storedRecord(typ, name string, inputs map[string]any) *ir.ResourceState {
	if inputs == nil {
		inputs = map[string]any{}
	}
	return &ir.ResourceState{
		Type:       typ,
		Name:       name,
		Provider:   "null",
		Inputs:     inputs,
		InputsHash: HashInputs(inputs),
		Outputs:    map[string]any{"id": "null-" + name},
	}
}

func TestCreatePlan_AllNew(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Type: "null", Name: "top", Provider: "null", DependsOn: []string{"null.base"}},
			{Type: "null", Name: "base", Provider: "null"},
		},
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, ir.NewState())
	require.NoError(t, err)

	require.Len(t, plan.Changes, 2)
	assert.Equal(t, "null.base", plan.Changes[0].Address)
	assert.Equal(t, "null.top", plan.Changes[1].Address)
	assert.Equal(t, ir.ActionCreate, plan.Changes[0].Action)
	assert.Equal(t, 2, plan.Summary.Create)
	assert.Equal(t, []string{"null.base"}, plan.Changes[1].Deps)
	assert.True(t, plan.HasChanges())
}

func TestCreatePlan_ConfiguresProviderOnce(t *testing.T) {
	fake := newFakeProvider()
	eng := fakeEngine(t, fake)

	cfg := &ir.Config{
		Providers: map[string]map[string]string{
			"fake": {"region": "eu-west-1", "profile": "pipeline"},
		},
		Resources: []*ir.Resource{fakeResource("a")},
	}
	state := ir.NewState()

	_, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", fake.settings["region"])
	assert.Equal(t, "pipeline", fake.settings["profile"])

	// Settings reach the provider once; re-planning does not reconfigure.
	_, err = eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.configureCalls)
}

func TestCreatePlan_NoChangesIsNoOp(t *testing.T) {
	eng := newTestEngine(t)

	props := map[string]any{"key": "value"}
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Type: "null", Name: "steady", Provider: "null", Properties: props},
		},
	}
	state := ir.NewState()
	state.Put(storedRecord("null", "steady", map[string]any{"key": "value"}))

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	assert.Empty(t, plan.Changes)
	assert.Equal(t, 1, plan.Summary.NoOp)
	assert.False(t, plan.HasChanges())
}

func TestCreatePlan_PlansAreIdempotent(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Type: "null", Name: "a", Provider: "null", Properties: map[string]any{"k": "v"}},
		},
	}
	state := ir.NewState()

	first, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	second, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)

	require.Len(t, first.Changes, 1)
	require.Len(t, second.Changes, 1)
	assert.Equal(t, first.Changes[0].Address, second.Changes[0].Address)
	assert.Equal(t, first.Changes[0].Action, second.Changes[0].Action)
}

func TestCreatePlan_UpdateOnChangedAttribute(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Type: "null", Name: "drift", Provider: "null", Properties: map[string]any{"key": "new"}},
		},
	}
	state := ir.NewState()
	state.Put(storedRecord("null", "drift", map[string]any{"key": "old"}))

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)

	require.Len(t, plan.Changes, 1)
	change := plan.Changes[0]
	assert.Equal(t, ir.ActionUpdate, change.Action)
	require.Contains(t, change.Diff, "key")
	assert.Equal(t, "old", change.Diff["key"].Before)
	assert.Equal(t, "new", change.Diff["key"].After)
}

func TestCreatePlan_IgnoreChangesSuppressesUpdate(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Type:       "null",
				Name:       "pinned",
				Provider:   "null",
				Lifecycle:  &ir.Lifecycle{IgnoreChanges: []string{"key"}},
				Properties: map[string]any{"key": "new"},
			},
		},
	}
	state := ir.NewState()
	state.Put(storedRecord("null", "pinned", map[string]any{"key": "old"}))

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	assert.Empty(t, plan.Changes)
	assert.Equal(t, 1, plan.Summary.NoOp)
}

func TestCreatePlan_ImmutableAttributeForcesReplace(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Type:       "null",
				Name:       "frozen",
				Provider:   "null",
				Lifecycle:  &ir.Lifecycle{Immutable: []string{"key"}},
				Properties: map[string]any{"key": "new"},
			},
		},
	}
	state := ir.NewState()
	state.Put(storedRecord("null", "frozen", map[string]any{"key": "old"}))

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)

	require.Len(t, plan.Changes, 1)
	change := plan.Changes[0]
	assert.Equal(t, ir.ActionReplace, change.Action)
	assert.True(t, change.Diff["key"].ForcesReplacement)
	assert.Equal(t, 1, plan.Summary.Replace)
}

func TestCreatePlan_PreventDestroyBlocksReplace(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Type:     "null",
				Name:     "precious",
				Provider: "null",
				Lifecycle: &ir.Lifecycle{
					PreventDestroy: true,
					Immutable:      []string{"key"},
				},
				Properties: map[string]any{"key": "new"},
			},
		},
	}
	state := ir.NewState()
	state.Put(storedRecord("null", "precious", map[string]any{"key": "old"}))

	_, err := eng.CreatePlan(context.Background(), cfg, state)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "preventDestroy")
}

func TestCreatePlan_TaintedForcesReplace(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Type: "null", Name: "sick", Provider: "null", Properties: map[string]any{"key": "value"}},
		},
	}
	state := ir.NewState()
	record := storedRecord("null", "sick", map[string]any{"key": "value"})
	record.Tainted = true
	state.Put(record)

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)

	require.Len(t, plan.Changes, 1)
	assert.Equal(t, ir.ActionReplace, plan.Changes[0].Action)
}

func TestCreatePlan_DeletesOrphansInReverseOrder(t *testing.T) {
	eng := newTestEngine(t)

	state := ir.NewState()
	base := storedRecord("null", "base", nil)
	top := storedRecord("null", "top", nil)
	top.Dependencies = []string{"null.base"}
	state.Put(base)
	state.Put(top)

	plan, err := eng.CreatePlan(context.Background(), &ir.Config{}, state)
	require.NoError(t, err)

	require.Len(t, plan.Changes, 2)
	assert.Equal(t, "null.top", plan.Changes[0].Address)
	assert.Equal(t, "null.base", plan.Changes[1].Address)
	assert.Equal(t, ir.ActionDelete, plan.Changes[0].Action)
	assert.Equal(t, 2, plan.Summary.Delete)

	// The base delete must wait for its dependent's delete.
	assert.Equal(t, []string{"null.top"}, plan.Changes[1].Deps)
}

func TestCreatePlan_ReplaceRewiresUnchangedDependents(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Type: "null", Name: "base", Provider: "null", Properties: map[string]any{"k": "v"}},
			{
				Type:       "null",
				Name:       "dependent",
				Provider:   "null",
				Properties: map[string]any{"target": "ref://null.base/id"},
			},
		},
	}
	state := ir.NewState()
	baseRecord := storedRecord("null", "base", map[string]any{"k": "v"})
	baseRecord.Tainted = true
	state.Put(baseRecord)
	state.Put(storedRecord("null", "dependent", map[string]any{"target": "ref://null.base/id"}))

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)

	actions := make(map[string]ir.Action)
	for _, c := range plan.Changes {
		actions[c.Address] = c.Action
	}
	assert.Equal(t, ir.ActionReplace, actions["null.base"])
	assert.Equal(t, ir.ActionUpdate, actions["null.dependent"])
	assert.Equal(t, 0, plan.Summary.NoOp)
}

func TestCreatePlan_DisabledReferenceFails(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Type: "null", Name: "flagged", Provider: "null", Count: intPtr(0)},
			{
				Type:       "null",
				Name:       "needy",
				Provider:   "null",
				Properties: map[string]any{"target": "ref://null.flagged/id"},
			},
		},
	}

	_, err := eng.CreatePlan(context.Background(), cfg, ir.NewState())
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "disabled")
}

func TestCreatePlan_SensitiveValuesRedacted(t *testing.T) {
	eng := newTestEngine(t)
	eng.SensitiveValues = []string{"hunter2"}

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Type:       "null",
				Name:       "secretive",
				Provider:   "null",
				Properties: map[string]any{"password": "hunter2"},
			},
		},
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, ir.NewState())
	require.NoError(t, err)

	require.Len(t, plan.Changes, 1)
	after, ok := plan.Changes[0].Diff["password"].After.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(after, "sha256:"))
	assert.NotContains(t, after, "hunter2")
}

func TestDigestValue_Irreversible(t *testing.T) {
	digest := DigestValue("hunter2")
	assert.True(t, strings.HasPrefix(digest, "sha256:"))
	assert.NotContains(t, digest, "hunter2")
	assert.Equal(t, digest, DigestValue("hunter2"))
	assert.NotEqual(t, digest, DigestValue("hunter3"))
}

func TestHashInputs_OrderIndependent(t *testing.T) {
	a := map[string]any{"x": 1, "y": "two", "z": []any{"3"}}
	b := map[string]any{"z": []any{"3"}, "y": "two", "x": 1}
	assert.Equal(t, HashInputs(a), HashInputs(b))

	c := map[string]any{"x": 2, "y": "two", "z": []any{"3"}}
	assert.NotEqual(t, HashInputs(a), HashInputs(c))
}
