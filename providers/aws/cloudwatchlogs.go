package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/groundwork-iac/groundwork/pkg/provider"
)

type LogGroupConfig struct {
	LogGroupName  string            `json:"logGroupName"`
	RetentionDays int32             `json:"retentionDays,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

type LogGroupState struct {
	ID           string `json:"id"`
	ARN          string `json:"arn"`
	LogGroupName string `json:"logGroupName"`
}

func (p *Provider) createLogGroup(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var cfg LogGroupConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal log group config: %w", err)
	}
	if cfg.LogGroupName == "" {
		return nil, fmt.Errorf("log group name is required")
	}

	input := &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: awssdk.String(cfg.LogGroupName),
	}
	if len(cfg.Tags) > 0 {
		input.Tags = cfg.Tags
	}

	if _, err := p.logsClient.CreateLogGroup(ctx, input); err != nil && !isAlreadyExists(err) {
		return nil, fmt.Errorf("failed to create log group %s: %w", cfg.LogGroupName, err)
	}

	if cfg.RetentionDays > 0 {
		_, err := p.logsClient.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
			LogGroupName:    awssdk.String(cfg.LogGroupName),
			RetentionInDays: awssdk.Int32(cfg.RetentionDays),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set retention on log group %s: %w", cfg.LogGroupName, err)
		}
	}

	arn, err := p.logGroupARN(ctx, cfg.LogGroupName)
	if err != nil {
		return nil, err
	}

	stateJSON, _ := json.Marshal(LogGroupState{
		ID:           cfg.LogGroupName,
		ARN:          arn,
		LogGroupName: cfg.LogGroupName,
	})
	return &provider.CreateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) readLogGroup(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current LogGroupState
	if len(req.CurrentStateJSON) > 0 {
		if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log group state: %w", err)
		}
	}
	if current.LogGroupName == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	arn, err := p.logGroupARN(ctx, current.LogGroupName)
	if err != nil {
		return nil, err
	}
	if arn == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	current.ARN = arn
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, StateJSON: stateJSON}, nil
}

func (p *Provider) updateLogGroup(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var cfg LogGroupConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal log group config: %w", err)
	}

	if cfg.RetentionDays > 0 {
		_, err := p.logsClient.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
			LogGroupName:    awssdk.String(cfg.LogGroupName),
			RetentionInDays: awssdk.Int32(cfg.RetentionDays),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set retention on log group %s: %w", cfg.LogGroupName, err)
		}
	} else {
		_, err := p.logsClient.DeleteRetentionPolicy(ctx, &cloudwatchlogs.DeleteRetentionPolicyInput{
			LogGroupName: awssdk.String(cfg.LogGroupName),
		})
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("failed to clear retention on log group %s: %w", cfg.LogGroupName, err)
		}
	}

	arn, err := p.logGroupARN(ctx, cfg.LogGroupName)
	if err != nil {
		return nil, err
	}

	stateJSON, _ := json.Marshal(LogGroupState{
		ID:           cfg.LogGroupName,
		ARN:          arn,
		LogGroupName: cfg.LogGroupName,
	})
	return &provider.UpdateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteLogGroup(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var current LogGroupState
	if len(req.CurrentStateJSON) > 0 {
		_ = json.Unmarshal(req.CurrentStateJSON, &current)
	}
	if current.LogGroupName == "" {
		current.LogGroupName = req.ID
	}
	if current.LogGroupName == "" {
		return &provider.DeleteResponse{}, nil
	}

	_, err := p.logsClient.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: awssdk.String(current.LogGroupName),
	})
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to delete log group %s: %w", current.LogGroupName, err)
	}
	return &provider.DeleteResponse{}, nil
}

// logGroupARN looks a group up by exact-name prefix match. Empty string
// means the group does not exist.
func (p *Provider) logGroupARN(ctx context.Context, name string) (string, error) {
	out, err := p.logsClient.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: awssdk.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to describe log group %s: %w", name, err)
	}
	for _, group := range out.LogGroups {
		if awssdk.ToString(group.LogGroupName) == name {
			return awssdk.ToString(group.Arn), nil
		}
	}
	return "", nil
}
