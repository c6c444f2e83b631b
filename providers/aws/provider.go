// Package aws implements the backend adapter for the AWS resource types
// used by ingestion pipelines: object storage, key-value tables, IAM
// roles, serverless functions, schedule rules, HTTP APIs, and log groups.
package aws

import (
	"context"
	"fmt"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/groundwork-iac/groundwork/pkg/provider"
)

// Resource types served by this provider.
const (
	TypeBucket   = "aws:s3.Bucket"
	TypeTable    = "aws:dynamodb.Table"
	TypeRole     = "aws:iam.Role"
	TypeFunction = "aws:lambda.Function"
	TypeRule     = "aws:events.Rule"
	TypeHTTPAPI  = "aws:apigatewayv2.Api"
	TypeLogGroup = "aws:logs.LogGroup"
)

type Provider struct {
	region  string
	profile string

	initOnce sync.Once
	initErr  error

	s3Client     *s3.Client
	dbClient     *dynamodb.Client
	iamClient    *iam.Client
	lambdaClient *lambda.Client
	eventsClient *eventbridge.Client
	apiClient    *apigatewayv2.Client
	logsClient   *cloudwatchlogs.Client
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Configure(ctx context.Context, req *provider.ConfigureRequest) error {
	if req != nil {
		p.region = req.Config["region"]
		p.profile = req.Config["profile"]
	}
	return p.ensureClients(ctx)
}

func (p *Provider) ensureClients(ctx context.Context) error {
	p.initOnce.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if p.region != "" {
			opts = append(opts, awsconfig.WithRegion(p.region))
		}
		if p.profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(p.profile))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			p.initErr = fmt.Errorf("unable to load AWS config: %w", err)
			return
		}

		p.s3Client = s3.NewFromConfig(cfg)
		p.dbClient = dynamodb.NewFromConfig(cfg)
		p.iamClient = iam.NewFromConfig(cfg)
		p.lambdaClient = lambda.NewFromConfig(cfg)
		p.eventsClient = eventbridge.NewFromConfig(cfg)
		p.apiClient = apigatewayv2.NewFromConfig(cfg)
		p.logsClient = cloudwatchlogs.NewFromConfig(cfg)
	})
	return p.initErr
}

func (p *Provider) Create(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}
	switch req.Type {
	case TypeBucket:
		return p.createBucket(ctx, req)
	case TypeTable:
		return p.createTable(ctx, req)
	case TypeRole:
		return p.createRole(ctx, req)
	case TypeFunction:
		return p.createFunction(ctx, req)
	case TypeRule:
		return p.createRule(ctx, req)
	case TypeHTTPAPI:
		return p.createHTTPAPI(ctx, req)
	case TypeLogGroup:
		return p.createLogGroup(ctx, req)
	default:
		return nil, fmt.Errorf("aws provider does not support resource type %q", req.Type)
	}
}

func (p *Provider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}
	switch req.Type {
	case TypeBucket:
		return p.readBucket(ctx, req)
	case TypeTable:
		return p.readTable(ctx, req)
	case TypeRole:
		return p.readRole(ctx, req)
	case TypeFunction:
		return p.readFunction(ctx, req)
	case TypeRule:
		return p.readRule(ctx, req)
	case TypeHTTPAPI:
		return p.readHTTPAPI(ctx, req)
	case TypeLogGroup:
		return p.readLogGroup(ctx, req)
	default:
		return nil, fmt.Errorf("aws provider does not support resource type %q", req.Type)
	}
}

func (p *Provider) Update(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}
	switch req.Type {
	case TypeBucket:
		return p.updateBucket(ctx, req)
	case TypeTable:
		return p.updateTable(ctx, req)
	case TypeRole:
		return p.updateRole(ctx, req)
	case TypeFunction:
		return p.updateFunction(ctx, req)
	case TypeRule:
		return p.updateRule(ctx, req)
	case TypeHTTPAPI:
		return p.updateHTTPAPI(ctx, req)
	case TypeLogGroup:
		return p.updateLogGroup(ctx, req)
	default:
		return nil, fmt.Errorf("aws provider does not support resource type %q", req.Type)
	}
}

func (p *Provider) Delete(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}
	switch req.Type {
	case TypeBucket:
		return p.deleteBucket(ctx, req)
	case TypeTable:
		return p.deleteTable(ctx, req)
	case TypeRole:
		return p.deleteRole(ctx, req)
	case TypeFunction:
		return p.deleteFunction(ctx, req)
	case TypeRule:
		return p.deleteRule(ctx, req)
	case TypeHTTPAPI:
		return p.deleteHTTPAPI(ctx, req)
	case TypeLogGroup:
		return p.deleteLogGroup(ctx, req)
	default:
		return nil, fmt.Errorf("aws provider does not support resource type %q", req.Type)
	}
}
