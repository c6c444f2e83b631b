package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/groundwork-iac/groundwork/pkg/provider"
)

type RuleConfig struct {
	RuleName           string       `json:"ruleName"`
	ScheduleExpression string       `json:"scheduleExpression,omitempty"`
	EventPattern       string       `json:"eventPattern,omitempty"`
	Enabled            *bool        `json:"enabled,omitempty"`
	Targets            []RuleTarget `json:"targets,omitempty"`
}

type RuleTarget struct {
	ID    string `json:"id"`
	ARN   string `json:"arn"`
	Input string `json:"input,omitempty"`
}

type RuleState struct {
	ID       string `json:"id"`
	ARN      string `json:"arn"`
	RuleName string `json:"ruleName"`
}

func (p *Provider) createRule(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	return p.putRule(ctx, req.ConfigJSON)
}

func (p *Provider) readRule(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current RuleState
	if len(req.CurrentStateJSON) > 0 {
		if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule state: %w", err)
		}
	}
	if current.RuleName == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	out, err := p.eventsClient.DescribeRule(ctx, &eventbridge.DescribeRuleInput{
		Name: awssdk.String(current.RuleName),
	})
	if err != nil {
		if isNotFound(err) {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to describe rule %s: %w", current.RuleName, err)
	}

	current.ARN = awssdk.ToString(out.Arn)
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, StateJSON: stateJSON}, nil
}

func (p *Provider) updateRule(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	resp, err := p.putRule(ctx, req.ConfigJSON)
	if err != nil {
		return nil, err
	}
	return &provider.UpdateResponse{StateJSON: resp.StateJSON}, nil
}

func (p *Provider) deleteRule(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var current RuleState
	if len(req.CurrentStateJSON) > 0 {
		_ = json.Unmarshal(req.CurrentStateJSON, &current)
	}
	if current.RuleName == "" {
		current.RuleName = req.ID
	}
	if current.RuleName == "" {
		return &provider.DeleteResponse{}, nil
	}

	// Targets must be removed first or DeleteRule fails.
	targets, err := p.eventsClient.ListTargetsByRule(ctx, &eventbridge.ListTargetsByRuleInput{
		Rule: awssdk.String(current.RuleName),
	})
	if err == nil && len(targets.Targets) > 0 {
		ids := make([]string, len(targets.Targets))
		for i, t := range targets.Targets {
			ids[i] = awssdk.ToString(t.Id)
		}
		_, err := p.eventsClient.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
			Rule: awssdk.String(current.RuleName),
			Ids:  ids,
		})
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("failed to remove targets from rule %s: %w", current.RuleName, err)
		}
	}

	_, err = p.eventsClient.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
		Name: awssdk.String(current.RuleName),
	})
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to delete rule %s: %w", current.RuleName, err)
	}
	return &provider.DeleteResponse{}, nil
}

// putRule serves both create and update: PutRule and PutTargets are
// upserts on the EventBridge side.
func (p *Provider) putRule(ctx context.Context, configJSON []byte) (*provider.CreateResponse, error) {
	var cfg RuleConfig
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule config: %w", err)
	}
	if cfg.RuleName == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	if cfg.ScheduleExpression == "" && cfg.EventPattern == "" {
		return nil, fmt.Errorf("rule %s: scheduleExpression or eventPattern is required", cfg.RuleName)
	}

	input := &eventbridge.PutRuleInput{
		Name:  awssdk.String(cfg.RuleName),
		State: eventtypes.RuleStateEnabled,
	}
	if cfg.Enabled != nil && !*cfg.Enabled {
		input.State = eventtypes.RuleStateDisabled
	}
	if cfg.ScheduleExpression != "" {
		input.ScheduleExpression = awssdk.String(cfg.ScheduleExpression)
	}
	if cfg.EventPattern != "" {
		input.EventPattern = awssdk.String(cfg.EventPattern)
	}

	out, err := p.eventsClient.PutRule(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to put rule %s: %w", cfg.RuleName, err)
	}

	if len(cfg.Targets) > 0 {
		targets := make([]eventtypes.Target, len(cfg.Targets))
		for i, t := range cfg.Targets {
			target := eventtypes.Target{
				Id:  awssdk.String(t.ID),
				Arn: awssdk.String(t.ARN),
			}
			if t.Input != "" {
				target.Input = awssdk.String(t.Input)
			}
			targets[i] = target
		}
		_, err := p.eventsClient.PutTargets(ctx, &eventbridge.PutTargetsInput{
			Rule:    awssdk.String(cfg.RuleName),
			Targets: targets,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to put targets on rule %s: %w", cfg.RuleName, err)
		}
	}

	stateJSON, _ := json.Marshal(RuleState{
		ID:       cfg.RuleName,
		ARN:      awssdk.ToString(out.RuleArn),
		RuleName: cfg.RuleName,
	})
	return &provider.CreateResponse{StateJSON: stateJSON}, nil
}
