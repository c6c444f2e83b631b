package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/groundwork-iac/groundwork/pkg/provider"
)

type BucketConfig struct {
	Bucket       string `json:"bucket"`
	Versioning   bool   `json:"versioning"`
	ForceDestroy bool   `json:"forceDestroy"`
}

type BucketState struct {
	ID         string `json:"id"`
	ARN        string `json:"arn"`
	Bucket     string `json:"bucket"`
	Versioning bool   `json:"versioning"`
}

func (p *Provider) createBucket(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var cfg BucketConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bucket config: %w", err)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	input := &s3.CreateBucketInput{Bucket: awssdk.String(cfg.Bucket)}
	if p.region != "" && p.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.region),
		}
	}

	if _, err := p.s3Client.CreateBucket(ctx, input); err != nil && !isAlreadyExists(err) {
		return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
	}

	if err := p.setBucketVersioning(ctx, cfg.Bucket, cfg.Versioning); err != nil {
		return nil, err
	}

	return &provider.CreateResponse{StateJSON: marshalBucketState(cfg)}, nil
}

func (p *Provider) readBucket(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current BucketState
	if len(req.CurrentStateJSON) > 0 {
		if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bucket state: %w", err)
		}
	}
	if current.Bucket == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	_, err := p.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: awssdk.String(current.Bucket)})
	if err != nil {
		if isNotFound(err) {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to check bucket %s: %w", current.Bucket, err)
	}

	ver, err := p.s3Client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: awssdk.String(current.Bucket)})
	if err == nil {
		current.Versioning = ver.Status == s3types.BucketVersioningStatusEnabled
	}

	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, StateJSON: stateJSON}, nil
}

func (p *Provider) updateBucket(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var cfg BucketConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bucket config: %w", err)
	}

	if err := p.setBucketVersioning(ctx, cfg.Bucket, cfg.Versioning); err != nil {
		return nil, err
	}

	return &provider.UpdateResponse{StateJSON: marshalBucketState(cfg)}, nil
}

func (p *Provider) deleteBucket(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var current BucketState
	if len(req.CurrentStateJSON) > 0 {
		_ = json.Unmarshal(req.CurrentStateJSON, &current)
	}
	if current.Bucket == "" {
		current.Bucket = req.ID
	}
	if current.Bucket == "" {
		return &provider.DeleteResponse{}, nil
	}

	if _, err := p.s3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: awssdk.String(current.Bucket)}); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to delete bucket %s: %w", current.Bucket, err)
	}
	return &provider.DeleteResponse{}, nil
}

func (p *Provider) setBucketVersioning(ctx context.Context, bucket string, enabled bool) error {
	status := s3types.BucketVersioningStatusSuspended
	if enabled {
		status = s3types.BucketVersioningStatusEnabled
	}
	_, err := p.s3Client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: awssdk.String(bucket),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: status,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set versioning on bucket %s: %w", bucket, err)
	}
	return nil
}

func marshalBucketState(cfg BucketConfig) []byte {
	stateJSON, _ := json.Marshal(BucketState{
		ID:         cfg.Bucket,
		ARN:        "arn:aws:s3:::" + cfg.Bucket,
		Bucket:     cfg.Bucket,
		Versioning: cfg.Versioning,
	})
	return stateJSON
}
