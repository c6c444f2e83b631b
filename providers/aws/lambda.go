package aws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/groundwork-iac/groundwork/pkg/provider"
)

type FunctionConfig struct {
	FunctionName string            `json:"functionName"`
	Runtime      string            `json:"runtime"`
	Handler      string            `json:"handler"`
	RoleARN      string            `json:"roleArn"`
	CodePath     string            `json:"codePath,omitempty"`
	CodeBase64   string            `json:"codeBase64,omitempty"`
	S3Bucket     string            `json:"s3Bucket,omitempty"`
	S3Key        string            `json:"s3Key,omitempty"`
	MemoryMB     int32             `json:"memoryMb,omitempty"`
	TimeoutSec   int32             `json:"timeoutSec,omitempty"`
	Environment  map[string]string `json:"environment,omitempty"`
}

type FunctionState struct {
	ID           string `json:"id"`
	ARN          string `json:"arn"`
	FunctionName string `json:"functionName"`
	Version      string `json:"version,omitempty"`
}

func (p *Provider) createFunction(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var cfg FunctionConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal function config: %w", err)
	}
	if cfg.FunctionName == "" {
		return nil, fmt.Errorf("function name is required")
	}
	if cfg.RoleARN == "" {
		return nil, fmt.Errorf("execution role is required for function %s", cfg.FunctionName)
	}

	code, err := functionCode(cfg)
	if err != nil {
		return nil, err
	}

	input := &lambda.CreateFunctionInput{
		FunctionName: awssdk.String(cfg.FunctionName),
		Runtime:      lambdatypes.Runtime(cfg.Runtime),
		Handler:      awssdk.String(cfg.Handler),
		Role:         awssdk.String(cfg.RoleARN),
		Code:         code,
	}
	if cfg.MemoryMB > 0 {
		input.MemorySize = awssdk.Int32(cfg.MemoryMB)
	}
	if cfg.TimeoutSec > 0 {
		input.Timeout = awssdk.Int32(cfg.TimeoutSec)
	}
	if len(cfg.Environment) > 0 {
		input.Environment = &lambdatypes.Environment{Variables: cfg.Environment}
	}

	out, err := p.lambdaClient.CreateFunction(ctx, input)
	if err != nil {
		if !isAlreadyExists(err) {
			return nil, fmt.Errorf("failed to create function %s: %w", cfg.FunctionName, err)
		}
		return p.functionCreateResponse(ctx, cfg.FunctionName)
	}

	state := FunctionState{
		ID:           cfg.FunctionName,
		ARN:          awssdk.ToString(out.FunctionArn),
		FunctionName: cfg.FunctionName,
		Version:      awssdk.ToString(out.Version),
	}
	stateJSON, _ := json.Marshal(state)
	return &provider.CreateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) functionCreateResponse(ctx context.Context, name string) (*provider.CreateResponse, error) {
	out, err := p.lambdaClient.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: awssdk.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read existing function %s: %w", name, err)
	}
	state := FunctionState{
		ID:           name,
		ARN:          awssdk.ToString(out.Configuration.FunctionArn),
		FunctionName: name,
		Version:      awssdk.ToString(out.Configuration.Version),
	}
	stateJSON, _ := json.Marshal(state)
	return &provider.CreateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) readFunction(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current FunctionState
	if len(req.CurrentStateJSON) > 0 {
		if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
			return nil, fmt.Errorf("failed to unmarshal function state: %w", err)
		}
	}
	if current.FunctionName == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	out, err := p.lambdaClient.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: awssdk.String(current.FunctionName),
	})
	if err != nil {
		if isNotFound(err) {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to read function %s: %w", current.FunctionName, err)
	}

	current.ARN = awssdk.ToString(out.Configuration.FunctionArn)
	current.Version = awssdk.ToString(out.Configuration.Version)
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, StateJSON: stateJSON}, nil
}

func (p *Provider) updateFunction(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var cfg FunctionConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal function config: %w", err)
	}

	confInput := &lambda.UpdateFunctionConfigurationInput{
		FunctionName: awssdk.String(cfg.FunctionName),
		Runtime:      lambdatypes.Runtime(cfg.Runtime),
		Handler:      awssdk.String(cfg.Handler),
		Role:         awssdk.String(cfg.RoleARN),
	}
	if cfg.MemoryMB > 0 {
		confInput.MemorySize = awssdk.Int32(cfg.MemoryMB)
	}
	if cfg.TimeoutSec > 0 {
		confInput.Timeout = awssdk.Int32(cfg.TimeoutSec)
	}
	if len(cfg.Environment) > 0 {
		confInput.Environment = &lambdatypes.Environment{Variables: cfg.Environment}
	}

	if _, err := p.lambdaClient.UpdateFunctionConfiguration(ctx, confInput); err != nil {
		return nil, fmt.Errorf("failed to update function configuration %s: %w", cfg.FunctionName, err)
	}

	codeInput := &lambda.UpdateFunctionCodeInput{
		FunctionName: awssdk.String(cfg.FunctionName),
	}
	if cfg.S3Bucket != "" {
		codeInput.S3Bucket = awssdk.String(cfg.S3Bucket)
		codeInput.S3Key = awssdk.String(cfg.S3Key)
	} else {
		code, err := functionCode(cfg)
		if err != nil {
			return nil, err
		}
		codeInput.ZipFile = code.ZipFile
	}

	out, err := p.lambdaClient.UpdateFunctionCode(ctx, codeInput)
	if err != nil {
		return nil, fmt.Errorf("failed to update function code %s: %w", cfg.FunctionName, err)
	}

	state := FunctionState{
		ID:           cfg.FunctionName,
		ARN:          awssdk.ToString(out.FunctionArn),
		FunctionName: cfg.FunctionName,
		Version:      awssdk.ToString(out.Version),
	}
	stateJSON, _ := json.Marshal(state)
	return &provider.UpdateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteFunction(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var current FunctionState
	if len(req.CurrentStateJSON) > 0 {
		_ = json.Unmarshal(req.CurrentStateJSON, &current)
	}
	if current.FunctionName == "" {
		current.FunctionName = req.ID
	}
	if current.FunctionName == "" {
		return &provider.DeleteResponse{}, nil
	}

	_, err := p.lambdaClient.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: awssdk.String(current.FunctionName),
	})
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to delete function %s: %w", current.FunctionName, err)
	}
	return &provider.DeleteResponse{}, nil
}

// functionCode resolves the deployment package from whichever source the
// declaration provides: an S3 object, inline base64, or a local zip path.
func functionCode(cfg FunctionConfig) (*lambdatypes.FunctionCode, error) {
	if cfg.S3Bucket != "" {
		if cfg.S3Key == "" {
			return nil, fmt.Errorf("function %s: s3Key is required with s3Bucket", cfg.FunctionName)
		}
		return &lambdatypes.FunctionCode{
			S3Bucket: awssdk.String(cfg.S3Bucket),
			S3Key:    awssdk.String(cfg.S3Key),
		}, nil
	}
	if cfg.CodeBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(cfg.CodeBase64)
		if err != nil {
			return nil, fmt.Errorf("function %s: invalid base64 code: %w", cfg.FunctionName, err)
		}
		return &lambdatypes.FunctionCode{ZipFile: raw}, nil
	}
	if cfg.CodePath != "" {
		raw, err := os.ReadFile(cfg.CodePath)
		if err != nil {
			return nil, fmt.Errorf("function %s: failed to read code package: %w", cfg.FunctionName, err)
		}
		return &lambdatypes.FunctionCode{ZipFile: raw}, nil
	}
	return nil, fmt.Errorf("function %s: one of s3Bucket, codeBase64, or codePath is required", cfg.FunctionName)
}
