package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/groundwork-iac/groundwork/pkg/provider"
)

type TableConfig struct {
	TableName   string            `json:"tableName"`
	HashKey     TableKey          `json:"hashKey"`
	RangeKey    *TableKey         `json:"rangeKey,omitempty"`
	BillingMode string            `json:"billingMode,omitempty"`
	TTL         *TableTTLConfig   `json:"ttl,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

type TableKey struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type TableTTLConfig struct {
	AttributeName string `json:"attributeName"`
	Enabled       bool   `json:"enabled"`
}

type TableState struct {
	ID        string `json:"id"`
	ARN       string `json:"arn"`
	TableName string `json:"tableName"`
	Status    string `json:"status"`
}

func (p *Provider) createTable(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var cfg TableConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table config: %w", err)
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	attrs := []dbtypes.AttributeDefinition{{
		AttributeName: awssdk.String(cfg.HashKey.Name),
		AttributeType: keyType(cfg.HashKey.Type),
	}}
	schema := []dbtypes.KeySchemaElement{{
		AttributeName: awssdk.String(cfg.HashKey.Name),
		KeyType:       dbtypes.KeyTypeHash,
	}}
	if cfg.RangeKey != nil {
		attrs = append(attrs, dbtypes.AttributeDefinition{
			AttributeName: awssdk.String(cfg.RangeKey.Name),
			AttributeType: keyType(cfg.RangeKey.Type),
		})
		schema = append(schema, dbtypes.KeySchemaElement{
			AttributeName: awssdk.String(cfg.RangeKey.Name),
			KeyType:       dbtypes.KeyTypeRange,
		})
	}

	billing := dbtypes.BillingModePayPerRequest
	if cfg.BillingMode == "PROVISIONED" {
		billing = dbtypes.BillingModeProvisioned
	}

	input := &dynamodb.CreateTableInput{
		TableName:            awssdk.String(cfg.TableName),
		AttributeDefinitions: attrs,
		KeySchema:            schema,
		BillingMode:          billing,
	}
	for k, v := range cfg.Tags {
		input.Tags = append(input.Tags, dbtypes.Tag{Key: awssdk.String(k), Value: awssdk.String(v)})
	}

	out, err := p.dbClient.CreateTable(ctx, input)
	if err != nil {
		if !isAlreadyExists(err) {
			return nil, fmt.Errorf("failed to create table %s: %w", cfg.TableName, err)
		}
		return p.tableCreateResponse(ctx, cfg)
	}

	if cfg.TTL != nil {
		if err := p.setTableTTL(ctx, cfg.TableName, cfg.TTL); err != nil {
			return nil, err
		}
	}

	state := TableState{
		ID:        cfg.TableName,
		TableName: cfg.TableName,
	}
	if out.TableDescription != nil {
		state.ARN = awssdk.ToString(out.TableDescription.TableArn)
		state.Status = string(out.TableDescription.TableStatus)
	}
	stateJSON, _ := json.Marshal(state)
	return &provider.CreateResponse{StateJSON: stateJSON}, nil
}

// tableCreateResponse reads an existing table back so a create racing a
// previous partial apply still lands in a consistent state.
func (p *Provider) tableCreateResponse(ctx context.Context, cfg TableConfig) (*provider.CreateResponse, error) {
	out, err := p.dbClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: awssdk.String(cfg.TableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", cfg.TableName, err)
	}
	state := TableState{
		ID:        cfg.TableName,
		ARN:       awssdk.ToString(out.Table.TableArn),
		TableName: cfg.TableName,
		Status:    string(out.Table.TableStatus),
	}
	stateJSON, _ := json.Marshal(state)
	return &provider.CreateResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) readTable(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current TableState
	if len(req.CurrentStateJSON) > 0 {
		if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
			return nil, fmt.Errorf("failed to unmarshal table state: %w", err)
		}
	}
	if current.TableName == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	out, err := p.dbClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: awssdk.String(current.TableName),
	})
	if err != nil {
		if isNotFound(err) {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to describe table %s: %w", current.TableName, err)
	}

	current.ARN = awssdk.ToString(out.Table.TableArn)
	current.Status = string(out.Table.TableStatus)
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, StateJSON: stateJSON}, nil
}

func (p *Provider) updateTable(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var cfg TableConfig
	if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table config: %w", err)
	}

	if cfg.TTL != nil {
		if err := p.setTableTTL(ctx, cfg.TableName, cfg.TTL); err != nil {
			return nil, err
		}
	}

	resp, err := p.tableCreateResponse(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &provider.UpdateResponse{StateJSON: resp.StateJSON}, nil
}

func (p *Provider) deleteTable(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var current TableState
	if len(req.CurrentStateJSON) > 0 {
		_ = json.Unmarshal(req.CurrentStateJSON, &current)
	}
	if current.TableName == "" {
		current.TableName = req.ID
	}
	if current.TableName == "" {
		return &provider.DeleteResponse{}, nil
	}

	_, err := p.dbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: awssdk.String(current.TableName),
	})
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to delete table %s: %w", current.TableName, err)
	}
	return &provider.DeleteResponse{}, nil
}

func (p *Provider) setTableTTL(ctx context.Context, table string, ttl *TableTTLConfig) error {
	_, err := p.dbClient.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: awssdk.String(table),
		TimeToLiveSpecification: &dbtypes.TimeToLiveSpecification{
			AttributeName: awssdk.String(ttl.AttributeName),
			Enabled:       awssdk.Bool(ttl.Enabled),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set TTL on table %s: %w", table, err)
	}
	return nil
}

func keyType(t string) dbtypes.ScalarAttributeType {
	switch t {
	case "N":
		return dbtypes.ScalarAttributeTypeN
	case "B":
		return dbtypes.ScalarAttributeTypeB
	default:
		return dbtypes.ScalarAttributeTypeS
	}
}
