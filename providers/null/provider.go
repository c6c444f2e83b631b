// Package null implements an in-memory provider with no remote side
// effects. It is the reference backend for engine and CLI tests.
package null

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/groundwork-iac/groundwork/pkg/provider"
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

// Config and State mirror each other: the null provider's state is
// whatever configuration it was given, plus a synthetic id.
type Config struct {
	Triggers map[string]any `json:"triggers"`
}

type State struct {
	ID       string         `json:"id"`
	Triggers map[string]any `json:"triggers"`
}

func (p *Provider) Configure(ctx context.Context, req *provider.ConfigureRequest) error {
	return nil
}

func (p *Provider) Create(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired Config
	if len(req.ConfigJSON) > 0 {
		if err := json.Unmarshal(req.ConfigJSON, &desired); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	state := State{
		ID:       fmt.Sprintf("null-%s", req.Name),
		Triggers: desired.Triggers,
	}
	stateJSON, _ := json.Marshal(state)

	return &provider.CreateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	// Null resources have no remote side, so stored state is truth.
	return &provider.ReadResponse{
		Exists:    true,
		StateJSON: req.CurrentStateJSON,
	}, nil
}

func (p *Provider) Update(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var desired Config
	if len(req.ConfigJSON) > 0 {
		if err := json.Unmarshal(req.ConfigJSON, &desired); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	var prior State
	if len(req.PriorStateJSON) > 0 {
		_ = json.Unmarshal(req.PriorStateJSON, &prior)
	}
	if prior.ID == "" {
		prior.ID = fmt.Sprintf("null-%s", req.Name)
	}

	state := State{ID: prior.ID, Triggers: desired.Triggers}
	stateJSON, _ := json.Marshal(state)

	return &provider.UpdateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) Delete(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	return &provider.DeleteResponse{}, nil
}
