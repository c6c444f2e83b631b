package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	apitypes "github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"
	"github.com/groundwork-iac/groundwork/pkg/provider"
)

type HTTPAPIConfig struct {
	APIName     string   `json:"apiName"`
	Description string   `json:"description,omitempty"`
	TargetARN   string   `json:"targetArn,omitempty"`
	RouteKeys   []string `json:"routeKeys,omitempty"`
	CORSOrigins []string `json:"corsOrigins,omitempty"`
}

type HTTPAPIState struct {
	ID       string `json:"id"`
	APIName  string `json:"apiName"`
	Endpoint string `json:"endpoint"`
}

func (p *Provider) createHTTPAPI(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var cfg HTTPAPIConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api config: %w", err)
	}
	if cfg.APIName == "" {
		return nil, fmt.Errorf("api name is required")
	}

	input := &apigatewayv2.CreateApiInput{
		Name:         awssdk.String(cfg.APIName),
		ProtocolType: apitypes.ProtocolTypeHttp,
	}
	if cfg.Description != "" {
		input.Description = awssdk.String(cfg.Description)
	}
	if cfg.TargetARN != "" {
		input.Target = awssdk.String(cfg.TargetARN)
	}
	if len(cfg.CORSOrigins) > 0 {
		input.CorsConfiguration = &apitypes.Cors{AllowOrigins: cfg.CORSOrigins}
	}

	out, err := p.apiClient.CreateApi(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create api %s: %w", cfg.APIName, err)
	}

	stateJSON, _ := json.Marshal(HTTPAPIState{
		ID:       awssdk.ToString(out.ApiId),
		APIName:  cfg.APIName,
		Endpoint: awssdk.ToString(out.ApiEndpoint),
	})
	return &provider.CreateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) readHTTPAPI(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current HTTPAPIState
	if len(req.CurrentStateJSON) > 0 {
		if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
			return nil, fmt.Errorf("failed to unmarshal api state: %w", err)
		}
	}
	if current.ID == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	out, err := p.apiClient.GetApi(ctx, &apigatewayv2.GetApiInput{ApiId: awssdk.String(current.ID)})
	if err != nil {
		if isNotFound(err) {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to read api %s: %w", current.ID, err)
	}

	current.APIName = awssdk.ToString(out.Name)
	current.Endpoint = awssdk.ToString(out.ApiEndpoint)
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, StateJSON: stateJSON}, nil
}

func (p *Provider) updateHTTPAPI(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var cfg HTTPAPIConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api config: %w", err)
	}
	var prior HTTPAPIState
	if len(req.PriorStateJSON) > 0 {
		_ = json.Unmarshal(req.PriorStateJSON, &prior)
	}
	if prior.ID == "" {
		return nil, fmt.Errorf("api %s: missing identifier in prior state", cfg.APIName)
	}

	input := &apigatewayv2.UpdateApiInput{
		ApiId: awssdk.String(prior.ID),
		Name:  awssdk.String(cfg.APIName),
	}
	if cfg.Description != "" {
		input.Description = awssdk.String(cfg.Description)
	}
	if cfg.TargetARN != "" {
		input.Target = awssdk.String(cfg.TargetARN)
	}

	out, err := p.apiClient.UpdateApi(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update api %s: %w", prior.ID, err)
	}

	stateJSON, _ := json.Marshal(HTTPAPIState{
		ID:       awssdk.ToString(out.ApiId),
		APIName:  cfg.APIName,
		Endpoint: awssdk.ToString(out.ApiEndpoint),
	})
	return &provider.UpdateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteHTTPAPI(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var current HTTPAPIState
	if len(req.CurrentStateJSON) > 0 {
		_ = json.Unmarshal(req.CurrentStateJSON, &current)
	}
	if current.ID == "" {
		current.ID = req.ID
	}
	if current.ID == "" {
		return &provider.DeleteResponse{}, nil
	}

	_, err := p.apiClient.DeleteApi(ctx, &apigatewayv2.DeleteApiInput{ApiId: awssdk.String(current.ID)})
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to delete api %s: %w", current.ID, err)
	}
	return &provider.DeleteResponse{}, nil
}
