package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/groundwork-iac/groundwork/pkg/provider"
)

type RoleConfig struct {
	RoleName         string       `json:"roleName"`
	AssumeRolePolicy string       `json:"assumeRolePolicy"`
	InlinePolicies   []RolePolicy `json:"inlinePolicies,omitempty"`
	ManagedPolicies  []string     `json:"managedPolicies,omitempty"`
}

type RolePolicy struct {
	Name   string `json:"name"`
	Policy string `json:"policy"`
}

type RoleState struct {
	ID       string `json:"id"`
	ARN      string `json:"arn"`
	RoleName string `json:"roleName"`
}

func (p *Provider) createRole(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var cfg RoleConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role config: %w", err)
	}
	if cfg.RoleName == "" {
		return nil, fmt.Errorf("role name is required")
	}
	if cfg.AssumeRolePolicy == "" {
		return nil, fmt.Errorf("assume role policy is required for role %s", cfg.RoleName)
	}

	var arn string
	out, err := p.iamClient.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 awssdk.String(cfg.RoleName),
		AssumeRolePolicyDocument: awssdk.String(cfg.AssumeRolePolicy),
	})
	if err != nil {
		if !isAlreadyExists(err) {
			return nil, fmt.Errorf("failed to create role %s: %w", cfg.RoleName, err)
		}
		got, gerr := p.iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: awssdk.String(cfg.RoleName)})
		if gerr != nil {
			return nil, fmt.Errorf("failed to read existing role %s: %w", cfg.RoleName, gerr)
		}
		arn = awssdk.ToString(got.Role.Arn)
	} else {
		arn = awssdk.ToString(out.Role.Arn)
	}

	if err := p.attachRolePolicies(ctx, cfg); err != nil {
		return nil, err
	}

	stateJSON, _ := json.Marshal(RoleState{ID: cfg.RoleName, ARN: arn, RoleName: cfg.RoleName})
	return &provider.CreateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) readRole(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current RoleState
	if len(req.CurrentStateJSON) > 0 {
		if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
			return nil, fmt.Errorf("failed to unmarshal role state: %w", err)
		}
	}
	if current.RoleName == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	out, err := p.iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: awssdk.String(current.RoleName)})
	if err != nil {
		if isNotFound(err) {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to read role %s: %w", current.RoleName, err)
	}

	current.ARN = awssdk.ToString(out.Role.Arn)
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, StateJSON: stateJSON}, nil
}

func (p *Provider) updateRole(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var cfg RoleConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role config: %w", err)
	}
	var prior RoleState
	if len(req.PriorStateJSON) > 0 {
		_ = json.Unmarshal(req.PriorStateJSON, &prior)
	}

	_, err := p.iamClient.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
		RoleName:       awssdk.String(cfg.RoleName),
		PolicyDocument: awssdk.String(cfg.AssumeRolePolicy),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update assume role policy on %s: %w", cfg.RoleName, err)
	}

	if err := p.attachRolePolicies(ctx, cfg); err != nil {
		return nil, err
	}

	arn := prior.ARN
	if arn == "" {
		got, gerr := p.iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: awssdk.String(cfg.RoleName)})
		if gerr != nil {
			return nil, fmt.Errorf("failed to read role %s: %w", cfg.RoleName, gerr)
		}
		arn = awssdk.ToString(got.Role.Arn)
	}

	stateJSON, _ := json.Marshal(RoleState{ID: cfg.RoleName, ARN: arn, RoleName: cfg.RoleName})
	return &provider.UpdateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteRole(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var current RoleState
	if len(req.CurrentStateJSON) > 0 {
		_ = json.Unmarshal(req.CurrentStateJSON, &current)
	}
	if current.RoleName == "" {
		current.RoleName = req.ID
	}
	if current.RoleName == "" {
		return &provider.DeleteResponse{}, nil
	}

	// Inline and managed policies must be detached before the role can go.
	if err := p.detachRolePolicies(ctx, current.RoleName); err != nil {
		return nil, err
	}

	_, err := p.iamClient.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: awssdk.String(current.RoleName)})
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to delete role %s: %w", current.RoleName, err)
	}
	return &provider.DeleteResponse{}, nil
}

func (p *Provider) attachRolePolicies(ctx context.Context, cfg RoleConfig) error {
	for _, pol := range cfg.InlinePolicies {
		_, err := p.iamClient.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
			RoleName:       awssdk.String(cfg.RoleName),
			PolicyName:     awssdk.String(pol.Name),
			PolicyDocument: awssdk.String(pol.Policy),
		})
		if err != nil {
			return fmt.Errorf("failed to put inline policy %s on role %s: %w", pol.Name, cfg.RoleName, err)
		}
	}
	for _, arn := range cfg.ManagedPolicies {
		_, err := p.iamClient.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  awssdk.String(cfg.RoleName),
			PolicyArn: awssdk.String(arn),
		})
		if err != nil {
			return fmt.Errorf("failed to attach policy %s to role %s: %w", arn, cfg.RoleName, err)
		}
	}
	return nil
}

func (p *Provider) detachRolePolicies(ctx context.Context, roleName string) error {
	inline, err := p.iamClient.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: awssdk.String(roleName),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list inline policies on role %s: %w", roleName, err)
	}
	for _, name := range inline.PolicyNames {
		_, err := p.iamClient.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   awssdk.String(roleName),
			PolicyName: awssdk.String(name),
		})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to delete inline policy %s on role %s: %w", name, roleName, err)
		}
	}

	attached, err := p.iamClient.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: awssdk.String(roleName),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list attached policies on role %s: %w", roleName, err)
	}
	for _, pol := range attached.AttachedPolicies {
		_, err := p.iamClient.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  awssdk.String(roleName),
			PolicyArn: pol.PolicyArn,
		})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to detach policy %s from role %s: %w", awssdk.ToString(pol.PolicyArn), roleName, err)
		}
	}
	return nil
}
