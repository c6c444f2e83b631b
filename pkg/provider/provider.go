// Package provider defines the request/response contract between the
// engine core and resource backends. Providers expose a per-resource-type
// CRUD capability set; the core never talks to a cloud API directly.
package provider

import "context"

type ConfigureRequest struct {
	Config map[string]string
}

type CreateRequest struct {
	Type       string
	Name       string
	ConfigJSON []byte
}

type CreateResponse struct {
	// StateJSON holds the provider-observed state after creation,
	// including backend-assigned identifiers (id, arn).
	StateJSON []byte
}

type ReadRequest struct {
	Type             string
	Name             string
	CurrentStateJSON []byte
}

type ReadResponse struct {
	Exists    bool
	StateJSON []byte
}

type UpdateRequest struct {
	Type           string
	Name           string
	ConfigJSON     []byte
	PriorStateJSON []byte
}

type UpdateResponse struct {
	StateJSON []byte
}

type DeleteRequest struct {
	Type             string
	Name             string
	ID               string
	CurrentStateJSON []byte
}

type DeleteResponse struct{}

// Interface is the polymorphic capability set a backend implements for
// its resource types. Create is idempotent where the backend allows it:
// an "already exists" failure is read back and reported as success.
type Interface interface {
	Configure(ctx context.Context, req *ConfigureRequest) error
	Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error)
	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
	Update(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error)
	Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error)
}
